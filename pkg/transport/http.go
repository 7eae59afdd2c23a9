package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/eppkit/epp-go/pkg/log"
)

// maxDrainSize bounds how much of a failed response body is discarded so
// the underlying connection can be reused.
const maxDrainSize = 64 << 10

// HTTPOption configures an HTTPTransport.
type HTTPOption func(*HTTPTransport)

// WithLogger sets the protocol logger.
func WithLogger(logger log.Logger) HTTPOption {
	return func(t *HTTPTransport) {
		t.logger = log.OrNoop(logger)
	}
}

// WithRoundTripper replaces the TLS-configured base round tripper.
// SecurityOptions passed to Connect are ignored when one is set.
func WithRoundTripper(rt http.RoundTripper) HTTPOption {
	return func(t *HTTPTransport) {
		t.roundTripper = rt
	}
}

// WithResponseLimit sets the largest accepted response body.
func WithResponseLimit(size uint32) HTTPOption {
	return func(t *HTTPTransport) {
		if size > 0 {
			t.maxMessageSize = size
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every command.
func WithUserAgent(ua string) HTTPOption {
	return func(t *HTTPTransport) {
		t.userAgent = ua
	}
}

// HTTPTransport carries EPP documents as HTTP(S) POST bodies.
//
// Write performs the whole round trip and stores the response body; Read
// hands it back without network I/O.
type HTTPTransport struct {
	endpoint     Endpoint
	logger       log.Logger
	roundTripper   http.RoundTripper
	userAgent      string
	maxMessageSize uint32

	mu      sync.Mutex
	client  *http.Client
	connID  string
	pending slot
	status  int
	elapsed time.Duration
}

// NewHTTPTransport creates an unconnected transport for endpoint.
func NewHTTPTransport(endpoint Endpoint, opts ...HTTPOption) *HTTPTransport {
	t := &HTTPTransport{
		endpoint:       endpoint,
		logger:         log.NoopLogger{},
		maxMessageSize: DefaultMaxMessageSize,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Endpoint returns the registry endpoint.
func (t *HTTPTransport) Endpoint() Endpoint {
	return t.endpoint
}

// State returns the current lifecycle state.
func (t *HTTPTransport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return StateUninitialized
	}
	return StateConnected
}

// ConnectionID returns the ID assigned by the last Connect, or "".
func (t *HTTPTransport) ConnectionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connID
}

// Connect creates the HTTP client bound to the endpoint's base address.
// No network I/O happens until the first Write. Calling Connect again
// replaces the client.
func (t *HTTPTransport) Connect(ctx context.Context, opts SecurityOptions) error {
	base := t.endpoint.BaseURL()
	if err := t.endpoint.Validate(); err != nil {
		t.logError("connect", err, nil)
		return err
	}

	rt := t.roundTripper
	if rt == nil {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		if t.endpoint.Scheme() == SchemeSecure {
			tlsConf, err := NewClientTLSConfig(opts, t.endpoint.Host())
			if err != nil {
				cerr := &ConnectionError{Address: base, Err: err}
				t.logError("connect", cerr, nil)
				return cerr
			}
			tr.TLSClientConfig = tlsConf
		}
		rt = tr
	}

	client := &http.Client{
		Transport: otelhttp.NewTransport(rt),
		Timeout:   t.endpoint.ReadTimeout(),
	}

	t.mu.Lock()
	old := t.client
	oldState := StateUninitialized
	if old != nil {
		oldState = StateConnected
	}
	t.client = client
	t.connID = uuid.NewString()
	t.pending.clear()
	t.mu.Unlock()

	if old != nil {
		old.CloseIdleConnections()
	}

	t.logState(oldState, StateConnected, "connect "+base)
	return nil
}

// Disconnect is a no-op: HTTP has no per-session connection to tear down.
// The client lives until Release.
func (t *HTTPTransport) Disconnect() error {
	return nil
}

// Write POSTs doc to the base address and blocks until the response body
// has been read into the pending slot, replacing any unread response.
//
// A non-2xx status returns a *TransportError and leaves the slot as it was.
// A timeout returns a *TimeoutError and empties the slot.
func (t *HTTPTransport) Write(ctx context.Context, doc Document) error {
	t.mu.Lock()
	client := t.client
	t.mu.Unlock()

	if client == nil {
		return ErrNotConnected
	}

	body, err := documentBody(doc)
	if err != nil {
		return err
	}

	t.logMessage(log.DirectionOut, log.NewMessage(log.MessageTypeCommand, []byte(body)))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint.BaseURL()+"/", strings.NewReader(body))
	if err != nil {
		cerr := &ConnectionError{Address: t.endpoint.BaseURL(), Err: err}
		t.logError("write", cerr, nil)
		return cerr
	}
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return t.failWrite(client, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainSize))
		serr := &TransportError{Op: "write", StatusCode: resp.StatusCode, Status: resp.Status}
		code := resp.StatusCode
		t.logError("write", serr, &code)
		return serr
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, int64(t.maxMessageSize)+1))
	if err != nil {
		return t.failWrite(client, err)
	}
	if len(data) > int(t.maxMessageSize) {
		terr := &TransportError{
			Op:  "write",
			Err: fmt.Errorf("%w: response exceeds %d bytes", ErrMessageTooLarge, t.maxMessageSize),
		}
		t.logError("write", terr, nil)
		return terr
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client != client {
		// Released or reconnected while the exchange was in flight.
		return ErrNotConnected
	}
	t.pending.set(string(data))
	t.status = resp.StatusCode
	t.elapsed = time.Since(start)
	return nil
}

// failWrite classifies a network failure. Timeouts empty the slot so a
// stale response cannot be mistaken for the answer to this command.
func (t *HTTPTransport) failWrite(client *http.Client, err error) error {
	werr := classifyNetError("write", t.endpoint.ReadTimeout(), err)
	if IsTimeout(werr) {
		t.mu.Lock()
		if t.client == client {
			t.pending.clear()
		}
		t.mu.Unlock()
	}
	t.logError("write", werr, nil)
	return werr
}

// Read drains the pending slot and returns its UTF-8 bytes.
// It returns ErrNoPendingResponse when no response is waiting.
func (t *HTTPTransport) Read(ctx context.Context) ([]byte, error) {
	t.mu.Lock()
	if t.client == nil {
		t.mu.Unlock()
		return nil, ErrNotConnected
	}
	body, ok := t.pending.take()
	status, elapsed := t.status, t.elapsed
	t.mu.Unlock()

	if !ok {
		return nil, ErrNoPendingResponse
	}

	data := EncodeUTF8(body)
	msg := log.NewMessage(log.MessageTypeResponse, data)
	msg.StatusCode = &status
	msg.Elapsed = &elapsed
	t.logMessage(log.DirectionIn, msg)

	return data, nil
}

// Pending reports whether a response is waiting to be read.
func (t *HTTPTransport) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending.pending()
}

// Release drops the HTTP client and any unread response. Safe to call
// repeatedly and before Connect.
func (t *HTTPTransport) Release() error {
	t.mu.Lock()
	client := t.client
	t.client = nil
	t.pending.clear()
	t.mu.Unlock()

	if client == nil {
		return nil
	}
	client.CloseIdleConnections()
	t.logState(StateConnected, StateUninitialized, "release")
	return nil
}

func (t *HTTPTransport) event(dir log.Direction, cat log.Category) log.Event {
	t.mu.Lock()
	connID := t.connID
	t.mu.Unlock()

	return log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    dir,
		Layer:        log.LayerTransport,
		Category:     cat,
		Transport:    log.TransportHTTP,
		RemoteAddr:   t.endpoint.BaseURL(),
	}
}

func (t *HTTPTransport) logMessage(dir log.Direction, msg *log.MessageEvent) {
	e := t.event(dir, log.CategoryMessage)
	e.Message = msg
	t.logger.Log(e)
}

func (t *HTTPTransport) logState(from, to State, reason string) {
	e := t.event(log.DirectionOut, log.CategoryState)
	e.StateChange = &log.StateChangeEvent{
		OldState: from.String(),
		NewState: to.String(),
		Reason:   reason,
	}
	t.logger.Log(e)
}

func (t *HTTPTransport) logError(op string, err error, code *int) {
	e := t.event(log.DirectionOut, log.CategoryError)
	e.Error = &log.ErrorEventData{
		Layer:   log.LayerTransport,
		Message: err.Error(),
		Code:    code,
		Context: op,
	}
	t.logger.Log(e)
}

// Compile-time interface satisfaction check.
var _ Transport = (*HTTPTransport)(nil)

package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eppkit/epp-go/pkg/log"
)

// DefaultDialTimeout bounds TCP connect plus TLS handshake when the caller's
// context has no deadline.
const DefaultDialTimeout = 30 * time.Second

// StreamOption configures a StreamTransport.
type StreamOption func(*StreamTransport)

// WithStreamLogger sets the protocol logger.
func WithStreamLogger(logger log.Logger) StreamOption {
	return func(t *StreamTransport) {
		t.logger = log.OrNoop(logger)
	}
}

// WithMaxMessageSize sets the largest accepted data unit.
func WithMaxMessageSize(size uint32) StreamOption {
	return func(t *StreamTransport) {
		if size > LengthPrefixSize {
			t.maxMessageSize = size
		}
	}
}

// WithDialTimeout sets the connect timeout.
func WithDialTimeout(d time.Duration) StreamOption {
	return func(t *StreamTransport) {
		if d > 0 {
			t.dialTimeout = d
		}
	}
}

// StreamTransport carries EPP documents as length-prefixed frames over a
// persistent TLS (or, for SchemeInsecure, plain TCP) connection.
type StreamTransport struct {
	endpoint       Endpoint
	logger         log.Logger
	maxMessageSize uint32
	dialTimeout    time.Duration

	// ioMu serializes Write and Read; mu guards the fields below and is
	// never held across network I/O so Disconnect can interrupt a Read.
	ioMu     sync.Mutex
	mu       sync.Mutex
	conn     net.Conn
	framer   *Framer
	connID   string
	tlsState *tls.ConnectionState
	greeted  bool
}

// NewStreamTransport creates an unconnected transport for endpoint.
func NewStreamTransport(endpoint Endpoint, opts ...StreamOption) *StreamTransport {
	t := &StreamTransport{
		endpoint:       endpoint,
		logger:         log.NoopLogger{},
		maxMessageSize: DefaultMaxMessageSize,
		dialTimeout:    DefaultDialTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Endpoint returns the registry endpoint.
func (t *StreamTransport) Endpoint() Endpoint {
	return t.endpoint
}

// State returns the current lifecycle state.
func (t *StreamTransport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return StateUninitialized
	}
	return StateConnected
}

// ConnectionID returns the ID of the live connection, or "".
func (t *StreamTransport) ConnectionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connID
}

// TLSState returns the negotiated TLS state, if the connection uses TLS.
func (t *StreamTransport) TLSState() (tls.ConnectionState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tlsState == nil {
		return tls.ConnectionState{}, false
	}
	return *t.tlsState, true
}

// Connect dials the registry and completes the TLS handshake.
// The registry greeting is returned by the first Read.
func (t *StreamTransport) Connect(ctx context.Context, opts SecurityOptions) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return ErrAlreadyConnected
	}

	address := t.endpoint.Address()
	if err := t.endpoint.Validate(); err != nil {
		t.logError("", "connect", err)
		return err
	}

	var tlsConf *tls.Config
	if t.endpoint.Scheme() == SchemeSecure {
		var err error
		tlsConf, err = NewClientTLSConfig(opts, t.endpoint.Host())
		if err != nil {
			cerr := &ConnectionError{Address: address, Err: err}
			t.logError("", "connect", cerr)
			return cerr
		}
	}

	// Apply dial timeout if context doesn't have one
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.dialTimeout)
		defer cancel()
	}

	dialer := &net.Dialer{}
	raw, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		cerr := &ConnectionError{Address: address, Err: err}
		t.logError("", "connect", cerr)
		return cerr
	}

	conn := raw
	var state *tls.ConnectionState
	if tlsConf != nil {
		tlsConn := tls.Client(raw, tlsConf)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			raw.Close()
			cerr := &ConnectionError{Address: address, Err: err}
			t.logError("", "connect", cerr)
			return cerr
		}
		cs := tlsConn.ConnectionState()
		if err := VerifyTLSVersion(cs, tlsConf.MinVersion); err != nil {
			tlsConn.Close()
			cerr := &ConnectionError{Address: address, Err: err}
			t.logError("", "connect", cerr)
			return cerr
		}
		conn = tlsConn
		state = &cs
	}

	t.connID = uuid.NewString()
	t.conn = conn
	t.tlsState = state
	t.greeted = false
	t.framer = NewFramerWithMaxSize(conn, t.maxMessageSize)
	t.framer.SetLogger(t.logger, t.connID, address)

	t.logState(t.connID, StateUninitialized, StateConnected, "connect "+address)
	return nil
}

// session is a consistent view of the live connection.
type session struct {
	conn    net.Conn
	framer  *Framer
	connID  string
	greeted bool
}

func (t *StreamTransport) snapshot() session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return session{conn: t.conn, framer: t.framer, connID: t.connID, greeted: t.greeted}
}

// Write sends doc as one frame.
func (t *StreamTransport) Write(ctx context.Context, doc Document) error {
	t.ioMu.Lock()
	defer t.ioMu.Unlock()

	s := t.snapshot()
	if s.conn == nil {
		return ErrNotConnected
	}
	conn := s.conn

	body, err := documentBody(doc)
	if err != nil {
		return err
	}

	t.logMessage(s.connID, log.DirectionOut, log.NewMessage(log.MessageTypeCommand, []byte(body)))

	deadline, _ := ctx.Deadline()
	conn.SetWriteDeadline(deadline)
	defer conn.SetWriteDeadline(time.Time{})
	stop := context.AfterFunc(ctx, func() { conn.SetWriteDeadline(time.Now()) })
	defer stop()

	if err := s.framer.WriteFrame([]byte(body)); err != nil {
		werr := t.classify(ctx, "write", err)
		t.logError(s.connID, "write", werr)
		return werr
	}
	return nil
}

// Read blocks for the next frame. The wait is bounded by the endpoint read
// timeout and the context deadline, whichever comes first. After a timeout
// the stream position is undefined; the caller should Disconnect.
func (t *StreamTransport) Read(ctx context.Context) ([]byte, error) {
	t.ioMu.Lock()
	defer t.ioMu.Unlock()

	s := t.snapshot()
	if s.conn == nil {
		return nil, ErrNotConnected
	}
	conn := s.conn

	var deadline time.Time
	if rt := t.endpoint.ReadTimeout(); rt > 0 {
		deadline = time.Now().Add(rt)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	conn.SetReadDeadline(deadline)
	defer conn.SetReadDeadline(time.Time{})
	stop := context.AfterFunc(ctx, func() { conn.SetReadDeadline(time.Now()) })
	defer stop()

	payload, err := s.framer.ReadFrame()
	if err != nil {
		rerr := t.classify(ctx, "read", err)
		t.logError(s.connID, "read", rerr)
		return nil, rerr
	}

	typ := log.MessageTypeResponse
	if !s.greeted {
		typ = log.MessageTypeGreeting
		t.mu.Lock()
		t.greeted = true
		t.mu.Unlock()
	}

	data := EncodeUTF8(string(payload))
	t.logMessage(s.connID, log.DirectionIn, log.NewMessage(typ, data))
	return data, nil
}

// classify maps an I/O failure to the transport error taxonomy.
func (t *StreamTransport) classify(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, io.EOF):
		return &TransportError{Op: op, Err: ErrConnectionClosed}
	case errors.Is(err, ErrMessageTooLarge), errors.Is(err, ErrMessageEmpty), errors.Is(err, ErrFrameTruncated):
		return &TransportError{Op: op, Err: err}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return &TimeoutError{Op: op, Err: ctxErr}
		}
		return &TransportError{Op: op, Err: ctxErr}
	}
	return classifyNetError(op, t.endpoint.ReadTimeout(), err)
}

// Disconnect closes the connection. It is a no-op when not connected and
// unblocks a Read in progress.
func (t *StreamTransport) Disconnect() error {
	t.mu.Lock()
	conn, connID := t.conn, t.connID
	t.conn = nil
	t.framer = nil
	t.tlsState = nil
	t.mu.Unlock()

	if conn == nil {
		return nil
	}

	t.logState(connID, StateConnected, StateUninitialized, "disconnect")
	if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return &TransportError{Op: "disconnect", Err: err}
	}
	return nil
}

// Release closes the connection if one is open. Idempotent.
func (t *StreamTransport) Release() error {
	return t.Disconnect()
}

func (t *StreamTransport) event(connID string, dir log.Direction, cat log.Category) log.Event {
	return log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    dir,
		Layer:        log.LayerSession,
		Category:     cat,
		Transport:    log.TransportStream,
		RemoteAddr:   t.endpoint.Address(),
	}
}

func (t *StreamTransport) logMessage(connID string, dir log.Direction, msg *log.MessageEvent) {
	e := t.event(connID, dir, log.CategoryMessage)
	e.Message = msg
	t.logger.Log(e)
}

func (t *StreamTransport) logState(connID string, from, to State, reason string) {
	e := t.event(connID, log.DirectionOut, log.CategoryState)
	e.StateChange = &log.StateChangeEvent{
		OldState: from.String(),
		NewState: to.String(),
		Reason:   reason,
	}
	t.logger.Log(e)
}

func (t *StreamTransport) logError(connID, op string, err error) {
	e := t.event(connID, log.DirectionOut, log.CategoryError)
	e.Error = &log.ErrorEventData{
		Layer:   log.LayerTransport,
		Message: err.Error(),
		Context: op,
	}
	t.logger.Log(e)
}

// Compile-time interface satisfaction check.
var _ Transport = (*StreamTransport)(nil)

package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

// Transport errors.
var (
	// ErrNotConnected indicates Write or Read before Connect or after Release.
	ErrNotConnected = errors.New("transport not connected")

	// ErrAlreadyConnected indicates Connect on a live stream connection.
	ErrAlreadyConnected = errors.New("transport already connected")

	// ErrNoPendingResponse indicates Read without a response waiting.
	ErrNoPendingResponse = errors.New("no pending response")

	// ErrDocumentEmpty indicates a nil or blank document.
	ErrDocumentEmpty = errors.New("document is empty")

	// ErrConnectionClosed indicates the registry closed the connection.
	ErrConnectionClosed = errors.New("connection closed by peer")

	// ErrTimeout matches every *TimeoutError via errors.Is.
	ErrTimeout = errors.New("timeout")
)

// ConnectionError reports that the base address is malformed or the
// underlying client or socket could not be set up.
type ConnectionError struct {
	Address string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Address, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TransportError reports a failed transmission or a non-success status.
// StatusCode is zero unless the registry answered with an HTTP status.
type TransportError struct {
	Op         string
	StatusCode int
	Status     string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Status != "":
		return fmt.Sprintf("%s: HTTP status %s", e.Op, e.Status)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: HTTP status %d", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Op + ": transport failure"
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// TimeoutError reports an exchange that exceeded its deadline.
type TimeoutError struct {
	Op    string
	After time.Duration // configured limit, 0 when only a context deadline applied
	Err   error
}

func (e *TimeoutError) Error() string {
	if e.After > 0 {
		return fmt.Sprintf("%s: timed out after %s", e.Op, e.After)
	}
	return e.Op + ": timed out"
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrTimeout) true.
func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// Timeout reports true, matching net.Error.
func (e *TimeoutError) Timeout() bool { return true }

// Temporary reports false; it completes the net.Error interface.
func (e *TimeoutError) Temporary() bool { return false }

// IsTimeout reports whether err is or wraps a timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var te *TransportError
	if errors.As(err, &te) {
		return te.StatusCode
	}
	return 0
}

// classifyNetError maps a network failure to *TimeoutError or
// *TransportError.
func classifyNetError(op string, timeout time.Duration, err error) error {
	if isDeadline(err) {
		return &TimeoutError{Op: op, After: timeout, Err: err}
	}
	return &TransportError{Op: op, Err: err}
}

func isDeadline(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eppkit/epp-go/pkg/transport"
)

// HelloDocument is the EPP <hello/> request. Registries answer with a
// <greeting>.
const HelloDocument = transport.RawDocument(`<?xml version="1.0" encoding="UTF-8" standalone="no"?>` +
	`<epp xmlns="urn:ietf:params:xml:ns:epp-1.0"><hello/></epp>`)

// ErrSessionClosed is returned after Close.
var ErrSessionClosed = errors.New("session is closed")

// Option configures a Session.
type Option func(*Session)

// WithCommandTimeout bounds each Execute call (0 = no limit beyond the
// transport's own read timeout).
func WithCommandTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.timeout = d
	}
}

// Session serializes commands over a Transport.
type Session struct {
	mu        sync.Mutex
	transport transport.Transport
	timeout   time.Duration
	closed    bool

	commands atomic.Uint64
}

// New creates a session over t. The transport is not connected until Open.
func New(t transport.Transport, opts ...Option) *Session {
	s := &Session{transport: t}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Transport returns the underlying transport.
func (s *Session) Transport() transport.Transport {
	return s.transport
}

// Commands returns the number of commands that completed successfully.
func (s *Session) Commands() uint64 {
	return s.commands.Load()
}

// Open connects the transport.
func (s *Session) Open(ctx context.Context, opts transport.SecurityOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if err := s.transport.Connect(ctx, opts); err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	return nil
}

// ReadGreeting returns the greeting a stream registry sends right after
// connecting. HTTP registries send none; use Hello there.
func (s *Session) ReadGreeting(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	greeting, err := s.transport.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read greeting: %w", err)
	}
	return greeting, nil
}

// Execute sends doc and returns the registry response.
func (s *Session) Execute(ctx context.Context, doc transport.Document) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.transport.Write(ctx, doc); err != nil {
		return nil, fmt.Errorf("send command: %w", err)
	}
	resp, err := s.transport.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	s.commands.Add(1)
	return resp, nil
}

// Hello sends <hello/> and returns the greeting.
func (s *Session) Hello(ctx context.Context) ([]byte, error) {
	return s.Execute(ctx, HelloDocument)
}

// Close disconnects and releases the transport. Later calls return nil.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	return errors.Join(s.transport.Disconnect(), s.transport.Release())
}

func (s *Session) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return ctx, func() {}
}

package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/eppkit/epp-go/pkg/log"
)

// ServerConfig configures a stub registry server.
type ServerConfig struct {
	// TLSConfig enables TLS when set; nil serves plain TCP.
	TLSConfig *tls.Config

	// Address to listen on (e.g., ":700" or "127.0.0.1:0").
	Address string

	// MaxMessageSize is the maximum data unit size (default: 4 MB).
	MaxMessageSize uint32

	// Logger for protocol logging (optional).
	Logger log.Logger

	// Greeting is sent to every client right after the handshake.
	// Empty sends nothing.
	Greeting []byte

	// Handler answers each command frame. Required.
	Handler Handler

	// OnError is called when a connection fails (optional).
	OnError func(connID string, err error)
}

// Server is a stub EPP registry speaking the length-prefixed stream
// mapping. It serves tests and local development.
type Server struct {
	config   ServerConfig
	logger   log.Logger
	listener net.Listener

	// Open client sessions by connection ID
	sessions   map[string]net.Conn
	sessionsMu sync.Mutex

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer creates a new stub registry server.
func NewServer(config ServerConfig) (*Server, error) {
	if config.Handler == nil {
		return nil, errors.New("handler is required")
	}
	if config.Address == "" {
		config.Address = fmt.Sprintf(":%d", DefaultStreamPort)
	}
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}

	return &Server{
		config:   config,
		logger:   log.OrNoop(config.Logger),
		sessions: make(map[string]net.Conn),
	}, nil
}

// Start listens on the configured address and serves clients in the
// background until Stop or ctx cancellation.
func (s *Server) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("server already running")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(s.ctx, "tcp", s.config.Address)
	if err != nil {
		s.cancel()
		s.running.Store(false)
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Stop closes the listener and every open session, then waits for the
// session goroutines to finish.
func (s *Server) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	s.cancel()
	s.listener.Close()

	s.sessionsMu.Lock()
	for _, conn := range s.sessions {
		conn.Close()
	}
	s.sessionsMu.Unlock()

	s.wg.Wait()
	return nil
}

// Addr returns the listen address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ConnectionCount returns the number of open client sessions.
func (s *Server) ConnectionCount() int {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	return len(s.sessions)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || !s.running.Load() {
				return
			}
			s.reportError("", fmt.Errorf("accept error: %w", err))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(conn)
		}()
	}
}

func (s *Server) reportError(connID string, err error) {
	if s.config.OnError != nil {
		s.config.OnError(connID, err)
	}
}

// handshake upgrades raw to TLS when the server has a TLS config.
func (s *Server) handshake(raw net.Conn) (net.Conn, error) {
	if s.config.TLSConfig == nil {
		return raw, nil
	}
	tlsConn := tls.Server(raw, s.config.TLSConfig)
	if err := tlsConn.HandshakeContext(s.ctx); err != nil {
		return nil, fmt.Errorf("TLS handshake failed: %w", err)
	}
	if err := VerifyTLSVersion(tlsConn.ConnectionState(), s.config.TLSConfig.MinVersion); err != nil {
		tlsConn.Close()
		return nil, err
	}
	return tlsConn, nil
}

func (s *Server) track(connID string, conn net.Conn) bool {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	if !s.running.Load() {
		return false
	}
	s.sessions[connID] = conn
	return true
}

func (s *Server) untrack(connID string) {
	s.sessionsMu.Lock()
	delete(s.sessions, connID)
	s.sessionsMu.Unlock()
}

// serveConn runs one client session: greeting first, then one handler
// call per command frame until the client hangs up, the handler asks to
// close or the server stops.
func (s *Server) serveConn(raw net.Conn) {
	connID := uuid.NewString()
	remote := raw.RemoteAddr().String()

	conn, err := s.handshake(raw)
	if err != nil {
		raw.Close()
		s.reportError(connID, err)
		return
	}
	defer conn.Close()

	if !s.track(connID, conn) {
		return
	}
	defer s.untrack(connID)

	s.logState(connID, remote, StateUninitialized, StateConnected, "accept")
	reason := s.exchange(connID, remote, conn)
	s.logState(connID, remote, StateConnected, StateUninitialized, reason)
}

// exchange answers commands on conn and returns why the session ended.
func (s *Server) exchange(connID, remote string, conn net.Conn) string {
	framer := NewFramerWithMaxSize(conn, s.config.MaxMessageSize)
	framer.SetLogger(s.logger, connID, remote)

	if len(s.config.Greeting) > 0 {
		if err := framer.WriteFrame(s.config.Greeting); err != nil {
			s.reportError(connID, fmt.Errorf("send greeting: %w", err))
			return "greeting failed"
		}
	}

	for s.ctx.Err() == nil {
		command, err := framer.ReadFrame()
		switch {
		case errors.Is(err, io.EOF):
			return "client closed"
		case err != nil:
			if s.ctx.Err() == nil {
				s.reportError(connID, err)
			}
			return "read failed"
		}

		response, closeAfter, err := s.config.Handler(s.ctx, command)
		if err != nil {
			s.reportError(connID, fmt.Errorf("handler: %w", err))
			return "handler failed"
		}
		if len(response) > 0 {
			if err := framer.WriteFrame(response); err != nil {
				s.reportError(connID, fmt.Errorf("send response: %w", err))
				return "write failed"
			}
		}
		if closeAfter {
			return "session ended"
		}
	}
	return "server stopped"
}

func (s *Server) logState(connID, remote string, from, to State, reason string) {
	s.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    log.DirectionIn,
		Layer:        log.LayerTransport,
		Category:     log.CategoryState,
		Transport:    log.TransportStream,
		RemoteAddr:   remote,
		StateChange: &log.StateChangeEvent{
			OldState: from.String(),
			NewState: to.String(),
			Reason:   reason,
		},
	})
}

package transport

import (
	"context"
	"net"
)

// StubServer represents a stub registry listener.
// Implemented by Server.
type StubServer interface {
	// Start begins accepting connections.
	Start(ctx context.Context) error

	// Stop closes the listener and every open session.
	Stop() error

	// Addr returns the server's listen address.
	Addr() net.Addr

	// ConnectionCount returns the number of active sessions.
	ConnectionCount() int
}

// Compile-time interface satisfaction check.
var _ StubServer = (*Server)(nil)

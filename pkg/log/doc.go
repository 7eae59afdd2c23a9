// Package log provides structured protocol logging for EPP transports.
//
// This package defines the Logger interface and Event types for capturing
// protocol-level events at the transport and session layers. It is separate
// from operational logging (slog) - protocol capture provides a complete
// machine-readable trace of every command and response for debugging and
// registry support tickets.
//
// # Basic Usage
//
// A Logger is injected into each transport at construction:
//
//	// For development: log to console via slog
//	t := transport.NewHTTPTransport(ep, transport.WithLogger(log.NewSlogAdapter(slog.Default())))
//
//	// For production: write to binary file
//	fl, _ := log.NewFileLogger("/var/log/epp/registry.elog")
//
//	// Both: use MultiLogger
//	logger := log.NewMultiLogger(log.NewSlogAdapter(slog.Default()), fl)
//
// # Event Types
//
// Events are captured at two layers:
//   - Transport: raw length-prefixed frames (FrameEvent) and EPP documents
//     sent or received (MessageEvent)
//   - Session: connection lifecycle (StateChangeEvent)
//
// Errors at any layer have a dedicated event type.
//
// # File Format
//
// Log files use CBOR encoding with the .elog extension. The epp-log CLI tool
// provides viewing, statistics and export.
package log

package commands

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/eppkit/epp-go/pkg/log"
)

const (
	connA = "abc12345-6789-0123-4567-890abcdef012"
	connB = "def67890-1111-2222-3333-444455556666"
)

var baseTime = time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.elog")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("failed to close logger: %v", err)
	}
	return path
}

// sessionEvents is a stream session followed by one HTTP exchange.
func sessionEvents() []log.Event {
	status := 200
	elapsed := 42 * time.Millisecond
	code := 503

	return []log.Event{
		{
			Timestamp:    baseTime,
			ConnectionID: connA,
			Direction:    log.DirectionOut,
			Layer:        log.LayerSession,
			Category:     log.CategoryState,
			Transport:    log.TransportStream,
			RemoteAddr:   "epp.registry.example:700",
			StateChange:  &log.StateChangeEvent{OldState: "UNINITIALIZED", NewState: "CONNECTED", Reason: "connect epp.registry.example:700"},
		},
		{
			Timestamp:    baseTime.Add(10 * time.Millisecond),
			ConnectionID: connA,
			Direction:    log.DirectionIn,
			Layer:        log.LayerSession,
			Category:     log.CategoryMessage,
			Transport:    log.TransportStream,
			RemoteAddr:   "epp.registry.example:700",
			Message:      log.NewMessage(log.MessageTypeGreeting, []byte("<epp><greeting/></epp>")),
		},
		{
			Timestamp:    baseTime.Add(20 * time.Millisecond),
			ConnectionID: connA,
			Direction:    log.DirectionOut,
			Layer:        log.LayerTransport,
			Category:     log.CategoryMessage,
			Transport:    log.TransportStream,
			RemoteAddr:   "epp.registry.example:700",
			Frame:        &log.FrameEvent{Size: 25, Data: []byte("<epp><hello/></epp>\n\x00\x01")},
		},
		{
			Timestamp:    baseTime.Add(2 * time.Second),
			ConnectionID: connB,
			Direction:    log.DirectionOut,
			Layer:        log.LayerTransport,
			Category:     log.CategoryMessage,
			Transport:    log.TransportHTTP,
			RemoteAddr:   "https://epp.registry.example:443",
			Message:      log.NewMessage(log.MessageTypeCommand, []byte("<epp><command><check/></command></epp>")),
		},
		{
			Timestamp:    baseTime.Add(2*time.Second + 42*time.Millisecond),
			ConnectionID: connB,
			Direction:    log.DirectionIn,
			Layer:        log.LayerTransport,
			Category:     log.CategoryMessage,
			Transport:    log.TransportHTTP,
			RemoteAddr:   "https://epp.registry.example:443",
			Message: &log.MessageEvent{
				Type:       log.MessageTypeResponse,
				Size:       9,
				Body:       []byte("<epp>ok</epp>"),
				StatusCode: &status,
				Elapsed:    &elapsed,
			},
		},
		{
			Timestamp:    baseTime.Add(3 * time.Second),
			ConnectionID: connB,
			Direction:    log.DirectionOut,
			Layer:        log.LayerTransport,
			Category:     log.CategoryError,
			Transport:    log.TransportHTTP,
			RemoteAddr:   "https://epp.registry.example:443",
			Error: &log.ErrorEventData{
				Layer:   log.LayerTransport,
				Message: "write: HTTP 503 Service Unavailable",
				Code:    &code,
				Context: "write",
			},
		},
	}
}

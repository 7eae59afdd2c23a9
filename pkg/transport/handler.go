package transport

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/eppkit/epp-go/pkg/log"
)

// Handler answers one EPP command. closeAfter ends the client session
// once the response is sent (used for <logout>).
type Handler func(ctx context.Context, command []byte) (response []byte, closeAfter bool, err error)

// NewHTTPHandler serves h over the HTTP mapping: one POST to "/" per
// command, response document in the body. Other paths return 404 and
// other methods 405; a command larger than DefaultMaxMessageSize returns
// 413 without reaching h; a handler error returns 500.
func NewHTTPHandler(h Handler, logger log.Logger) http.Handler {
	logger = log.OrNoop(logger)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		reqID := uuid.NewString()
		command, err := io.ReadAll(io.LimitReader(r.Body, DefaultMaxMessageSize+1))
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}
		if len(command) > DefaultMaxMessageSize {
			// Consume the rest so the client reads the status instead of a reset.
			_, _ = io.Copy(io.Discard, io.LimitReader(r.Body, DefaultMaxMessageSize))
			http.Error(w, "command too large", http.StatusRequestEntityTooLarge)
			return
		}
		logHTTP(logger, reqID, r.RemoteAddr, log.DirectionIn, log.MessageTypeCommand, command)

		response, _, err := h(r.Context(), command)
		if err != nil {
			logger.Log(log.Event{
				Timestamp:    time.Now(),
				ConnectionID: reqID,
				Direction:    log.DirectionOut,
				Layer:        log.LayerTransport,
				Category:     log.CategoryError,
				Transport:    log.TransportHTTP,
				RemoteAddr:   r.RemoteAddr,
				Error: &log.ErrorEventData{
					Layer:   log.LayerSession,
					Message: err.Error(),
					Context: "handler",
				},
			})
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/epp+xml; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(response)
		logHTTP(logger, reqID, r.RemoteAddr, log.DirectionOut, log.MessageTypeResponse, response)
	})
}

func logHTTP(logger log.Logger, reqID, remote string, dir log.Direction, typ log.MessageType, body []byte) {
	logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: reqID,
		Direction:    dir,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		Transport:    log.TransportHTTP,
		RemoteAddr:   remote,
		Message:      log.NewMessage(typ, body),
	})
}

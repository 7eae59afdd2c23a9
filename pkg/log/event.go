package log

import (
	"time"
)

// MaxLogDataSize is the maximum payload size included in log events (4 KB).
// Larger payloads are truncated to avoid excessive memory usage.
const MaxLogDataSize = 4096

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the transport session (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Transport identifies the wire mechanism that produced the event.
	Transport TransportKind `cbor:"6,keyasint,omitempty"`

	// RemoteAddr is the registry address (host:port or base URL).
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Length-prefixed frame
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"` // EPP document
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Transport lifecycle
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerTransport is the wire layer (frames, HTTP bodies).
	LayerTransport Layer = 0
	// LayerSession is the command/response session layer.
	LayerSession Layer = 1
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerSession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates an EPP document or frame.
	CategoryMessage Category = 0
	// CategoryState indicates a state change.
	CategoryState Category = 1
	// CategoryError indicates an error event.
	CategoryError Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// TransportKind identifies the wire mechanism.
type TransportKind uint8

const (
	// TransportUnknown is the zero value.
	TransportUnknown TransportKind = 0
	// TransportStream is EPP over TLS/TCP with length-prefixed frames.
	TransportStream TransportKind = 1
	// TransportHTTP is EPP over HTTP(S) POST.
	TransportHTTP TransportKind = 2
)

// String returns the transport kind name.
func (k TransportKind) String() string {
	switch k {
	case TransportStream:
		return "STREAM"
	case TransportHTTP:
		return "HTTP"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures raw frame data at the transport layer.
type FrameEvent struct {
	// Size is the frame size in bytes (including length prefix).
	Size int `cbor:"1,keyasint"`

	// Data is the frame payload (may be truncated for large frames).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// MessageEvent captures one EPP document crossing the transport boundary.
type MessageEvent struct {
	// Type distinguishes command/response/greeting.
	Type MessageType `cbor:"1,keyasint"`

	// Size is the full document size in bytes.
	Size int `cbor:"2,keyasint"`

	// Body is the document text (may be truncated).
	Body []byte `cbor:"3,keyasint,omitempty"`

	// Truncated indicates if Body was truncated.
	Truncated bool `cbor:"4,keyasint,omitempty"`

	// StatusCode is the HTTP status of the exchange (HTTP responses only).
	StatusCode *int `cbor:"5,keyasint,omitempty"`

	// Elapsed is the round-trip time of the exchange (responses only).
	Elapsed *time.Duration `cbor:"6,keyasint,omitempty"`
}

// MessageType distinguishes command/response/greeting.
type MessageType uint8

const (
	// MessageTypeCommand indicates a client command.
	MessageTypeCommand MessageType = 0
	// MessageTypeResponse indicates a server response.
	MessageTypeResponse MessageType = 1
	// MessageTypeGreeting indicates a server greeting.
	MessageTypeGreeting MessageType = 2
)

// String returns the message type name.
func (m MessageType) String() string {
	switch m {
	case MessageTypeCommand:
		return "COMMAND"
	case MessageTypeResponse:
		return "RESPONSE"
	case MessageTypeGreeting:
		return "GREETING"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures transport lifecycle events.
type StateChangeEvent struct {
	// OldState is the previous state (may be empty).
	OldState string `cbor:"1,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"2,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"3,keyasint,omitempty"`
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is the error code (HTTP status, if applicable).
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}

// TruncateData limits data to MaxLogDataSize bytes.
// Returns the (possibly shortened) slice and whether it was truncated.
func TruncateData(data []byte) ([]byte, bool) {
	if len(data) > MaxLogDataSize {
		return data[:MaxLogDataSize], true
	}
	return data, false
}

// NewMessage builds a MessageEvent for body, truncating it for the log.
func NewMessage(typ MessageType, body []byte) *MessageEvent {
	data, truncated := TruncateData(body)
	return &MessageEvent{
		Type:      typ,
		Size:      len(body),
		Body:      data,
		Truncated: truncated,
	}
}

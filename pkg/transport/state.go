package transport

// State is the lifecycle state of a transport.
type State int

const (
	// StateUninitialized indicates no session state exists.
	StateUninitialized State = iota

	// StateConnected indicates Write and Read may be called.
	StateConnected
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateConnected:
		return "CONNECTED"
	default:
		return "UNKNOWN"
	}
}

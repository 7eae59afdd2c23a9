// Package transport carries EPP documents between a client and a registry.
//
// Two wire mechanisms sit behind one Transport interface:
//
//	┌────────────────────────────────┬────────────────────────────────┐
//	│        StreamTransport         │         HTTPTransport          │
//	├────────────────────────────────┼────────────────────────────────┤
//	│  Length-Prefix Framing (4B)    │  POST {scheme}://host:port/    │
//	├────────────────────────────────┼────────────────────────────────┤
//	│         TLS 1.2+               │         HTTP(S)                │
//	├────────────────────────────────┼────────────────────────────────┤
//	│           TCP                  │           TCP                  │
//	└────────────────────────────────┴────────────────────────────────┘
//
// # Command Cycle
//
// A caller connects once, then repeats Write(doc) followed by Read() for
// each command, and finally calls Disconnect and Release. Only one command
// may be in flight per transport.
//
// StreamTransport performs two network operations: Write sends a frame and
// Read blocks for the next one. The first frame after Connect is the server
// greeting.
//
// HTTPTransport does the whole round trip inside Write and keeps the
// response body in a single-value slot. Read drains the slot without network
// I/O. A second Write before Read overwrites the slot; a Read with nothing
// pending returns ErrNoPendingResponse.
//
// # Framing
//
// Stream frames carry a 4-byte big-endian header holding the total length
// of the data unit, header included (RFC 5734).
package transport

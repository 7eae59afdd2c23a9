package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/eppkit/epp-go/pkg/log"
)

// Framing constants.
const (
	// LengthPrefixSize is the size of the length header in bytes.
	LengthPrefixSize = 4

	// DefaultMaxMessageSize is the default maximum data unit size (4 MB),
	// header included. Large <domain:info> and poll responses fit easily.
	DefaultMaxMessageSize = 4 << 20
)

// Framing errors.
var (
	// ErrMessageTooLarge indicates the data unit exceeds the maximum size.
	ErrMessageTooLarge = errors.New("message too large")

	// ErrMessageEmpty indicates a data unit without payload.
	ErrMessageEmpty = errors.New("message is empty")

	// ErrFrameTruncated indicates the stream ended inside a frame.
	ErrFrameTruncated = errors.New("frame truncated")
)

// frameLogger emits frame events for one connection.
type frameLogger struct {
	logger log.Logger
	connID string
	remote string
}

func (fl *frameLogger) log(payload []byte, direction log.Direction) {
	if fl.logger == nil {
		return
	}
	data, truncated := log.TruncateData(payload)
	fl.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: fl.connID,
		Direction:    direction,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		Transport:    log.TransportStream,
		RemoteAddr:   fl.remote,
		Frame: &log.FrameEvent{
			Size:      FrameSize(len(payload)),
			Data:      data,
			Truncated: truncated,
		},
	})
}

// FrameWriter writes length-prefixed EPP data units.
type FrameWriter struct {
	w              io.Writer
	maxMessageSize uint32
	mu             sync.Mutex
	fl             frameLogger
}

// NewFrameWriter creates a new frame writer.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return NewFrameWriterWithMaxSize(w, DefaultMaxMessageSize)
}

// NewFrameWriterWithMaxSize creates a frame writer with a custom max size.
func NewFrameWriterWithMaxSize(w io.Writer, maxSize uint32) *FrameWriter {
	return &FrameWriter{
		w:              w,
		maxMessageSize: maxSize,
	}
}

// SetLogger configures logging for this writer.
// Pass nil to disable logging.
func (fw *FrameWriter) SetLogger(logger log.Logger, connID, remote string) {
	fw.fl = frameLogger{logger: logger, connID: connID, remote: remote}
}

// WriteFrame writes one data unit: a 4-byte big-endian total length
// (header included) followed by data.
// Thread-safe: can be called from multiple goroutines.
func (fw *FrameWriter) WriteFrame(data []byte) error {
	if len(data) == 0 {
		return ErrMessageEmpty
	}
	total := uint64(FrameSize(len(data)))
	if total > uint64(fw.maxMessageSize) {
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, total, fw.maxMessageSize)
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()

	// Header and payload go out in one write so a TLS record never
	// carries a bare header.
	frame := make([]byte, total)
	binary.BigEndian.PutUint32(frame[:LengthPrefixSize], uint32(total))
	copy(frame[LengthPrefixSize:], data)

	if _, err := fw.w.Write(frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}

	fw.fl.log(data, log.DirectionOut)
	return nil
}

// FrameReader reads length-prefixed EPP data units.
type FrameReader struct {
	r              io.Reader
	maxMessageSize uint32
	lengthBuf      [LengthPrefixSize]byte
	fl             frameLogger
}

// NewFrameReader creates a new frame reader.
func NewFrameReader(r io.Reader) *FrameReader {
	return NewFrameReaderWithMaxSize(r, DefaultMaxMessageSize)
}

// NewFrameReaderWithMaxSize creates a frame reader with a custom max size.
func NewFrameReaderWithMaxSize(r io.Reader, maxSize uint32) *FrameReader {
	return &FrameReader{
		r:              r,
		maxMessageSize: maxSize,
	}
}

// SetLogger configures logging for this reader.
// Pass nil to disable logging.
func (fr *FrameReader) SetLogger(logger log.Logger, connID, remote string) {
	fr.fl = frameLogger{logger: logger, connID: connID, remote: remote}
}

// ReadFrame reads one data unit and returns its payload (header stripped).
// A clean end of stream before the header returns io.EOF.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	if _, err := io.ReadFull(fr.r, fr.lengthBuf[:]); err != nil {
		if err == io.EOF {
			return nil, err
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrFrameTruncated
		}
		return nil, fmt.Errorf("failed to read length prefix: %w", err)
	}

	total := binary.BigEndian.Uint32(fr.lengthBuf[:])

	if total <= LengthPrefixSize {
		return nil, fmt.Errorf("%w: length %d", ErrMessageEmpty, total)
	}
	if total > fr.maxMessageSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, total, fr.maxMessageSize)
	}

	payload := make([]byte, total-LengthPrefixSize)
	if _, err := io.ReadFull(fr.r, payload); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || err == io.EOF {
			return nil, ErrFrameTruncated
		}
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}

	fr.fl.log(payload, log.DirectionIn)
	return payload, nil
}

// Framer combines frame reading and writing.
type Framer struct {
	*FrameReader
	*FrameWriter
}

// NewFramer creates a new framer for bidirectional communication.
func NewFramer(rw io.ReadWriter) *Framer {
	return NewFramerWithMaxSize(rw, DefaultMaxMessageSize)
}

// NewFramerWithMaxSize creates a framer with a custom max data unit size.
func NewFramerWithMaxSize(rw io.ReadWriter, maxSize uint32) *Framer {
	return &Framer{
		FrameReader: NewFrameReaderWithMaxSize(rw, maxSize),
		FrameWriter: NewFrameWriterWithMaxSize(rw, maxSize),
	}
}

// SetLogger configures logging for both reader and writer.
// Pass nil to disable logging.
func (f *Framer) SetLogger(logger log.Logger, connID, remote string) {
	f.FrameReader.SetLogger(logger, connID, remote)
	f.FrameWriter.SetLogger(logger, connID, remote)
}

// FrameSize returns the total data unit size including the length header.
func FrameSize(payloadSize int) int {
	return LengthPrefixSize + payloadSize
}

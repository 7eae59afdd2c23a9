package log

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventCBORRoundTrip(t *testing.T) {
	ts := time.Date(2026, 10, 18, 10, 15, 32, 123456789, time.UTC)
	original := Event{
		Timestamp:    ts,
		ConnectionID: "abc12345-def6-7890-abcd-ef1234567890",
		Direction:    DirectionOut,
		Layer:        LayerTransport,
		Category:     CategoryMessage,
		Transport:    TransportHTTP,
		RemoteAddr:   "https://epp.registry.example:443",
	}

	data, err := EncodeEvent(original)
	require.NoError(t, err)

	decoded, err := DecodeEvent(data)
	require.NoError(t, err)

	assert.True(t, decoded.Timestamp.Equal(ts), "timestamp keeps nanosecond precision")
	assert.Equal(t, original.ConnectionID, decoded.ConnectionID)
	assert.Equal(t, original.Direction, decoded.Direction)
	assert.Equal(t, original.Layer, decoded.Layer)
	assert.Equal(t, original.Category, decoded.Category)
	assert.Equal(t, original.Transport, decoded.Transport)
	assert.Equal(t, original.RemoteAddr, decoded.RemoteAddr)
}

func TestMessageEventCBORRoundTrip(t *testing.T) {
	status := 200
	elapsed := 42 * time.Millisecond
	msg := NewMessage(MessageTypeResponse, []byte("<epp>OK</epp>"))
	msg.StatusCode = &status
	msg.Elapsed = &elapsed

	data, err := EncodeEvent(Event{
		Timestamp: time.Now(),
		Direction: DirectionIn,
		Category:  CategoryMessage,
		Message:   msg,
	})
	require.NoError(t, err)

	decoded, err := DecodeEvent(data)
	require.NoError(t, err)
	require.NotNil(t, decoded.Message)

	assert.Equal(t, MessageTypeResponse, decoded.Message.Type)
	assert.Equal(t, 13, decoded.Message.Size)
	assert.Equal(t, []byte("<epp>OK</epp>"), decoded.Message.Body)
	require.NotNil(t, decoded.Message.StatusCode)
	assert.Equal(t, 200, *decoded.Message.StatusCode)
	require.NotNil(t, decoded.Message.Elapsed)
	assert.Equal(t, elapsed, *decoded.Message.Elapsed)
	assert.Nil(t, decoded.Frame)
	assert.Nil(t, decoded.Error)
}

func TestEncodeEventIsDeterministic(t *testing.T) {
	event := Event{
		Timestamp:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		ConnectionID: "conn-1",
		Category:     CategoryState,
		StateChange:  &StateChangeEvent{OldState: "UNINITIALIZED", NewState: "CONNECTED"},
	}

	a, err := EncodeEvent(event)
	require.NoError(t, err)
	b, err := EncodeEvent(event)
	require.NoError(t, err)

	assert.True(t, bytes.Equal(a, b))
}

func TestDecodeEventRejectsGarbage(t *testing.T) {
	_, err := DecodeEvent([]byte{0xff, 0x00, 0x13})
	assert.Error(t, err)
}

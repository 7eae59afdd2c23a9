package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDocument(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"hello", `<?xml version="1.0" encoding="UTF-8"?>` + "\n" + `<epp xmlns="urn:ietf:params:xml:ns:epp-1.0"><hello/></epp>`, false},
		{"surrounding whitespace", "\n  <epp/>\n", false},
		{"comment after root", "<epp/><!-- trailer -->", false},
		{"empty", "", true},
		{"blank", " \t\n", true},
		{"unclosed", "<epp><hello></epp>", true},
		{"two roots", "<epp/><epp/>", true},
		{"text only", "hello", true},
		{"text after root", "<epp/>junk", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := ParseDocument([]byte(tt.in))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, doc.OuterXML())
		})
	}
}

func TestParseDocumentEmpty(t *testing.T) {
	_, err := ParseDocument(nil)
	assert.ErrorIs(t, err, ErrDocumentEmpty)
}

func TestDocumentBody(t *testing.T) {
	_, err := documentBody(nil)
	assert.ErrorIs(t, err, ErrDocumentEmpty)

	_, err = documentBody(RawDocument(""))
	assert.ErrorIs(t, err, ErrDocumentEmpty)

	body, err := documentBody(RawDocument("<epp/>"))
	require.NoError(t, err)
	assert.Equal(t, "<epp/>", body)
}

func TestSlot(t *testing.T) {
	var s slot
	_, ok := s.take()
	assert.False(t, ok)

	s.set("a")
	s.set("b")
	assert.True(t, s.pending())

	v, ok := s.take()
	assert.True(t, ok)
	assert.Equal(t, "b", v)
	assert.False(t, s.pending())

	// An empty body is still a response
	s.set("")
	v, ok = s.take()
	assert.True(t, ok)
	assert.Equal(t, "", v)

	s.set("c")
	s.clear()
	assert.False(t, s.pending())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "UNINITIALIZED", StateUninitialized.String())
	assert.Equal(t, "CONNECTED", StateConnected.String())
}

func TestTransportsImplementInterface(t *testing.T) {
	var _ Transport = NewHTTPTransport(Endpoint{})
	var _ Transport = NewStreamTransport(Endpoint{})
}

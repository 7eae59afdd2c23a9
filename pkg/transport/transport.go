package transport

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Transport moves one EPP document to a registry and hands back its
// response. Implemented by StreamTransport and HTTPTransport.
type Transport interface {
	// Connect establishes the session state the mechanism needs.
	Connect(ctx context.Context, opts SecurityOptions) error

	// Disconnect tears down session state. Safe to call when not connected.
	Disconnect() error

	// Write submits one EPP document.
	Write(ctx context.Context, doc Document) error

	// Read returns the UTF-8 bytes of the most recently received response.
	Read(ctx context.Context) ([]byte, error)

	// Release frees held resources. Idempotent.
	Release() error
}

// Document is an XML document that can render its canonical string form.
type Document interface {
	OuterXML() string
}

// RawDocument is a Document backed by already-serialized XML.
type RawDocument string

// OuterXML returns the document text.
func (d RawDocument) OuterXML() string {
	return string(d)
}

// ParseDocument checks that data is a single well-formed XML document and
// returns it as a RawDocument. EPP schema validation is left to the registry.
func ParseDocument(data []byte) (RawDocument, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return "", ErrDocumentEmpty
	}

	dec := xml.NewDecoder(bytes.NewReader(trimmed))
	depth, roots := 0, 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("malformed XML document: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				roots++
			}
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			if depth == 0 && len(bytes.TrimSpace(t)) > 0 {
				return "", errors.New("malformed XML document: text outside root element")
			}
		}
	}
	if roots != 1 {
		return "", fmt.Errorf("malformed XML document: %d root elements", roots)
	}

	return RawDocument(trimmed), nil
}

// documentBody serializes doc, rejecting nil and empty documents.
func documentBody(doc Document) (string, error) {
	if doc == nil {
		return "", ErrDocumentEmpty
	}
	body := doc.OuterXML()
	if strings.TrimSpace(body) == "" {
		return "", ErrDocumentEmpty
	}
	return body, nil
}

package main

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// EPP result codes the stub answers with.
const (
	codeOK           = 1000
	codeNoMessages   = 1300
	codeEndSession   = 1500
	codeUnknownCmd   = 2000
	codeSyntaxError  = 2001
	codeCommandFails = 2400
)

var resultMessages = map[int]string{
	codeOK:           "Command completed successfully",
	codeNoMessages:   "Command completed successfully; no messages",
	codeEndSession:   "Command completed successfully; ending session",
	codeUnknownCmd:   "Unknown command",
	codeSyntaxError:  "Command syntax error",
	codeCommandFails: "Command failed",
}

// RegistryConfig configures the canned registry.
type RegistryConfig struct {
	// ServerID is reported as <svID> in the greeting.
	ServerID string

	// Delay is added before every response.
	Delay time.Duration

	// FailCommands answers these command names (e.g. "create") with 2400.
	FailCommands []string
}

// Registry answers EPP commands with canned responses. It recognizes
// <hello/> and every <command> child by element name; it does not
// validate against the EPP schemas.
type Registry struct {
	config   RegistryConfig
	fail     map[string]bool
	commands atomic.Uint64
}

// NewRegistry creates a canned registry.
func NewRegistry(config RegistryConfig) *Registry {
	if config.ServerID == "" {
		config.ServerID = "epp-stub"
	}
	fail := make(map[string]bool, len(config.FailCommands))
	for _, name := range config.FailCommands {
		fail[strings.ToLower(strings.TrimSpace(name))] = true
	}
	return &Registry{config: config, fail: fail}
}

// Commands returns the number of documents answered.
func (r *Registry) Commands() uint64 {
	return r.commands.Load()
}

// Greeting renders the <greeting> document.
func (r *Registry) Greeting() []byte {
	var b bytes.Buffer
	b.WriteString(xml.Header)
	b.WriteString(`<epp xmlns="urn:ietf:params:xml:ns:epp-1.0"><greeting>`)
	fmt.Fprintf(&b, "<svID>%s</svID>", escape(r.config.ServerID))
	fmt.Fprintf(&b, "<svDate>%s</svDate>", time.Now().UTC().Format(time.RFC3339))
	b.WriteString(`<svcMenu><version>1.0</version><lang>en</lang>`)
	b.WriteString(`<objURI>urn:ietf:params:xml:ns:domain-1.0</objURI>`)
	b.WriteString(`<objURI>urn:ietf:params:xml:ns:contact-1.0</objURI>`)
	b.WriteString(`<objURI>urn:ietf:params:xml:ns:host-1.0</objURI>`)
	b.WriteString(`</svcMenu><dcp><access><all/></access><statement><purpose><admin/><prov/></purpose>`)
	b.WriteString(`<recipient><ours/></recipient><retention><stated/></retention></statement></dcp>`)
	b.WriteString(`</greeting></epp>`)
	return b.Bytes()
}

// Handle implements transport.Handler.
func (r *Registry) Handle(ctx context.Context, command []byte) ([]byte, bool, error) {
	if r.config.Delay > 0 {
		select {
		case <-time.After(r.config.Delay):
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}
	r.commands.Add(1)

	req, err := parseRequest(command)
	if err != nil {
		return r.response(codeSyntaxError, ""), false, nil
	}

	switch {
	case req.hello:
		return r.Greeting(), false, nil
	case req.command == "":
		return r.response(codeSyntaxError, req.clTRID), false, nil
	case r.fail[req.command]:
		return r.response(codeCommandFails, req.clTRID), false, nil
	}

	switch req.command {
	case "login", "check", "info", "create", "update", "delete", "renew", "transfer":
		return r.response(codeOK, req.clTRID), false, nil
	case "poll":
		return r.response(codeNoMessages, req.clTRID), false, nil
	case "logout":
		return r.response(codeEndSession, req.clTRID), true, nil
	default:
		return r.response(codeUnknownCmd, req.clTRID), false, nil
	}
}

func (r *Registry) response(code int, clTRID string) []byte {
	var b bytes.Buffer
	b.WriteString(xml.Header)
	b.WriteString(`<epp xmlns="urn:ietf:params:xml:ns:epp-1.0"><response>`)
	fmt.Fprintf(&b, `<result code="%d"><msg>%s</msg></result>`, code, resultMessages[code])
	b.WriteString("<trID>")
	if clTRID != "" {
		fmt.Fprintf(&b, "<clTRID>%s</clTRID>", escape(clTRID))
	}
	fmt.Fprintf(&b, "<svTRID>%s</svTRID>", uuid.NewString())
	b.WriteString("</trID></response></epp>")
	return b.Bytes()
}

// request is the part of an incoming document the stub cares about.
type request struct {
	hello   bool
	command string
	clTRID  string
}

var errNotEPP = errors.New("root element is not <epp>")

// parseRequest walks the document tokens: <epp> then <hello> or
// <command><NAME>...<clTRID>.
func parseRequest(data []byte) (request, error) {
	var req request
	dec := xml.NewDecoder(bytes.NewReader(data))

	var path []string
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return req, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			if len(path) == 0 && name != "epp" {
				return req, errNotEPP
			}
			switch {
			case len(path) == 1 && name == "hello":
				req.hello = true
			case len(path) == 2 && path[1] == "command" && name != "clTRID" && name != "extension" && req.command == "":
				req.command = strings.ToLower(name)
			case len(path) == 2 && path[1] == "command" && name == "clTRID":
				var id string
				if err := dec.DecodeElement(&id, &t); err != nil {
					return req, err
				}
				req.clTRID = strings.TrimSpace(id)
				continue
			}
			path = append(path, name)
		case xml.EndElement:
			if len(path) > 0 {
				path = path[:len(path)-1]
			}
		}
	}

	if len(path) != 0 {
		return req, io.ErrUnexpectedEOF
	}
	return req, nil
}

func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

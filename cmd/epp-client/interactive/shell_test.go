package interactive

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/eppkit/epp-go/pkg/config"
	"github.com/eppkit/epp-go/pkg/session"
	"github.com/eppkit/epp-go/pkg/transport"
	"github.com/eppkit/epp-go/pkg/transport/mocks"
)

const (
	checkCommand = `<epp xmlns="urn:ietf:params:xml:ns:epp-1.0"><command><check/></command></epp>`
	okResponse   = `<epp><response><result code="1000"/></response></epp>`
)

func newTestShell(t *testing.T) (*Shell, *mocks.MockTransport, *bytes.Buffer) {
	t.Helper()
	tr := mocks.NewMockTransport(t)
	cfg := config.Default()
	cfg.Host = "epp.registry.example"

	var out bytes.Buffer
	return newShell(session.New(tr), &cfg, &out), tr, &out
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestShellSend(t *testing.T) {
	sh, tr, out := newTestShell(t)
	path := writeFile(t, "check.xml", checkCommand)

	tr.EXPECT().Write(mock.Anything, transport.RawDocument(checkCommand)).Return(nil).Once()
	tr.EXPECT().Read(mock.Anything).Return([]byte(okResponse), nil).Once()

	assert.True(t, sh.Exec(context.Background(), "send "+path))
	assert.Contains(t, out.String(), okResponse)
	assert.Equal(t, uint64(1), sh.sess.Commands())
}

func TestShellSendInvalidXML(t *testing.T) {
	sh, _, out := newTestShell(t)
	path := writeFile(t, "broken.xml", "<epp><command>")

	sh.Exec(context.Background(), "send "+path)
	assert.Contains(t, out.String(), "Error:")
}

func TestShellSendMissingFile(t *testing.T) {
	sh, _, out := newTestShell(t)

	sh.Exec(context.Background(), "send /nonexistent/login.xml")
	assert.Contains(t, out.String(), "Error:")

	out.Reset()
	sh.Exec(context.Background(), "send")
	assert.Contains(t, out.String(), "Usage: send")
}

func TestShellHello(t *testing.T) {
	sh, tr, out := newTestShell(t)
	greeting := `<epp><greeting><svID>Test</svID></greeting></epp>`

	tr.EXPECT().Write(mock.Anything, session.HelloDocument).Return(nil).Once()
	tr.EXPECT().Read(mock.Anything).Return([]byte(greeting), nil).Once()

	sh.Exec(context.Background(), "hello")
	assert.Contains(t, out.String(), "<svID>Test</svID>")
}

func TestShellReadErrors(t *testing.T) {
	sh, tr, out := newTestShell(t)

	tr.EXPECT().Read(mock.Anything).Return(nil, transport.ErrNoPendingResponse).Once()
	sh.Exec(context.Background(), "read")
	assert.Contains(t, out.String(), "No response pending")

	out.Reset()
	tr.EXPECT().Read(mock.Anything).Return(nil, &transport.TimeoutError{Op: "read", After: time.Second}).Once()
	sh.Exec(context.Background(), "r")
	assert.Contains(t, out.String(), "Timeout:")
}

func TestShellHTTPStatusError(t *testing.T) {
	sh, tr, out := newTestShell(t)

	tr.EXPECT().Write(mock.Anything, mock.Anything).
		Return(&transport.TransportError{Op: "write", StatusCode: 503, Status: "503 Service Unavailable"}).Once()

	sh.Exec(context.Background(), "hello")
	assert.Contains(t, out.String(), "HTTP 503")
}

func TestShellSave(t *testing.T) {
	sh, tr, out := newTestShell(t)
	target := filepath.Join(t.TempDir(), "resp.xml")

	sh.Exec(context.Background(), "save "+target)
	assert.Contains(t, out.String(), "No response to save")

	tr.EXPECT().Write(mock.Anything, mock.Anything).Return(nil).Once()
	tr.EXPECT().Read(mock.Anything).Return([]byte(okResponse), nil).Once()
	sh.Exec(context.Background(), "hello")
	sh.Exec(context.Background(), "save "+target)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, okResponse, string(data))
}

func TestShellCertInfo(t *testing.T) {
	sh, _, out := newTestShell(t)

	sh.Exec(context.Background(), "certinfo")
	assert.Contains(t, out.String(), "No certificate configured")

	out.Reset()
	sh.Exec(context.Background(), "certinfo ../../../pkg/cert/testdata/client.crt")
	assert.Contains(t, out.String(), "CN=registrar-test")
	assert.Contains(t, out.String(), "Status:")
}

func TestShellStatus(t *testing.T) {
	sh, _, out := newTestShell(t)

	sh.Exec(context.Background(), "status")
	assert.Contains(t, out.String(), "Transport:    tcp")
	assert.Contains(t, out.String(), "epp.registry.example:700")
	assert.Contains(t, out.String(), "Commands:     0")
}

func TestShellStatusStream(t *testing.T) {
	cfg := config.Default()
	cfg.Host = "epp.registry.example"
	tr, err := config.NewTransport(&cfg, nil)
	require.NoError(t, err)

	var out bytes.Buffer
	sh := newShell(session.New(tr), &cfg, &out)
	sh.Exec(context.Background(), "status")
	assert.Contains(t, out.String(), "State:        "+transport.StateUninitialized.String())
}

func TestShellQuitAndUnknown(t *testing.T) {
	sh, _, out := newTestShell(t)

	assert.True(t, sh.Exec(context.Background(), ""))
	assert.True(t, sh.Exec(context.Background(), "frobnicate"))
	assert.Contains(t, out.String(), "Unknown command: frobnicate")

	assert.True(t, sh.Exec(context.Background(), "help"))
	assert.Contains(t, out.String(), "EPP Client Commands")

	assert.False(t, sh.Exec(context.Background(), "quit"))
	assert.False(t, sh.Exec(context.Background(), "EXIT"))
}

package main

import (
	"context"
	"crypto/tls"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eppkit/epp-go/pkg/session"
	"github.com/eppkit/epp-go/pkg/transport"
)

const (
	checkCommand = `<?xml version="1.0" encoding="UTF-8"?>
<epp xmlns="urn:ietf:params:xml:ns:epp-1.0">
  <command>
    <check><domain:check xmlns:domain="urn:ietf:params:xml:ns:domain-1.0"><domain:name>example.test</domain:name></domain:check></check>
    <clTRID>ABC-12345</clTRID>
  </command>
</epp>`
	logoutCommand = `<epp xmlns="urn:ietf:params:xml:ns:epp-1.0"><command><logout/><clTRID>BYE-1</clTRID></command></epp>`
	createCommand = `<epp xmlns="urn:ietf:params:xml:ns:epp-1.0"><command><create/><clTRID>C-1</clTRID></command></epp>`
)

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		want    request
		wantErr bool
	}{
		{"hello", string(session.HelloDocument), request{hello: true}, false},
		{"check", checkCommand, request{command: "check", clTRID: "ABC-12345"}, false},
		{"logout", logoutCommand, request{command: "logout", clTRID: "BYE-1"}, false},
		{"clTRID first", `<epp><command><clTRID>X</clTRID><info/></command></epp>`, request{command: "info", clTRID: "X"}, false},
		{"extension ignored", `<epp><command><update/><extension><foo/></extension></command></epp>`, request{command: "update"}, false},
		{"not epp", `<html><body/></html>`, request{}, true},
		{"truncated", `<epp><command><check>`, request{}, true},
		{"garbage", `<<<`, request{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRequest([]byte(tt.doc))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistryHandle(t *testing.T) {
	reg := NewRegistry(RegistryConfig{ServerID: "Test Registry", FailCommands: []string{" Create "}})
	ctx := context.Background()

	resp, closeAfter, err := reg.Handle(ctx, []byte(session.HelloDocument))
	require.NoError(t, err)
	assert.False(t, closeAfter)
	assert.Contains(t, string(resp), "<svID>Test Registry</svID>")

	resp, closeAfter, err = reg.Handle(ctx, []byte(checkCommand))
	require.NoError(t, err)
	assert.False(t, closeAfter)
	assert.Contains(t, string(resp), `<result code="1000">`)
	assert.Contains(t, string(resp), "<clTRID>ABC-12345</clTRID>")
	assert.Contains(t, string(resp), "<svTRID>")

	resp, _, err = reg.Handle(ctx, []byte(createCommand))
	require.NoError(t, err)
	assert.Contains(t, string(resp), `<result code="2400">`)

	resp, _, err = reg.Handle(ctx, []byte(`<epp><command><frobnicate/></command></epp>`))
	require.NoError(t, err)
	assert.Contains(t, string(resp), `<result code="2000">`)

	resp, _, err = reg.Handle(ctx, []byte(`not xml at all <`))
	require.NoError(t, err)
	assert.Contains(t, string(resp), `<result code="2001">`)

	resp, _, err = reg.Handle(ctx, []byte(`<epp><command><poll/></command></epp>`))
	require.NoError(t, err)
	assert.Contains(t, string(resp), `<result code="1300">`)

	resp, closeAfter, err = reg.Handle(ctx, []byte(logoutCommand))
	require.NoError(t, err)
	assert.True(t, closeAfter)
	assert.Contains(t, string(resp), `<result code="1500">`)

	assert.Equal(t, uint64(7), reg.Commands())
}

func TestRegistryEscapesClientTRID(t *testing.T) {
	reg := NewRegistry(RegistryConfig{})
	resp, _, err := reg.Handle(context.Background(),
		[]byte(`<epp><command><info/><clTRID>a&amp;b&lt;c</clTRID></command></epp>`))
	require.NoError(t, err)
	assert.Contains(t, string(resp), "<clTRID>a&amp;b&lt;c</clTRID>")

	_, err = transport.ParseDocument(resp)
	assert.NoError(t, err)
}

func TestRegistryDelayHonorsContext(t *testing.T) {
	reg := NewRegistry(RegistryConfig{Delay: time.Minute})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, _, err := reg.Handle(ctx, []byte(checkCommand))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, reg.Commands())
}

func TestGreetingIsWellFormed(t *testing.T) {
	reg := NewRegistry(RegistryConfig{ServerID: "R&D <stub>"})
	doc, err := transport.ParseDocument(reg.Greeting())
	require.NoError(t, err)
	assert.Contains(t, doc.OuterXML(), "<svID>R&amp;D &lt;stub&gt;</svID>")
}

func TestStubOverStream(t *testing.T) {
	reg := NewRegistry(RegistryConfig{})
	srv, err := transport.NewServer(transport.ServerConfig{
		Address:  "127.0.0.1:0",
		Greeting: reg.Greeting(),
		Handler:  reg.Handle,
	})
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background()))
	defer srv.Stop()

	port := srv.Addr().(*net.TCPAddr).Port
	endpoint := transport.NewEndpoint("127.0.0.1", port, transport.SchemeInsecure, 5*time.Second)
	sess := session.New(transport.NewStreamTransport(endpoint))

	ctx := context.Background()
	require.NoError(t, sess.Open(ctx, transport.SecurityOptions{}))
	defer sess.Close()

	greeting, err := sess.ReadGreeting(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(greeting), "<svID>epp-stub</svID>")

	resp, err := sess.Execute(ctx, transport.RawDocument(checkCommand))
	require.NoError(t, err)
	assert.Contains(t, string(resp), "<clTRID>ABC-12345</clTRID>")

	resp, err = sess.Execute(ctx, transport.RawDocument(logoutCommand))
	require.NoError(t, err)
	assert.Contains(t, string(resp), `<result code="1500">`)

	_, err = sess.Execute(ctx, transport.RawDocument(checkCommand))
	assert.Error(t, err, "session should be closed by the registry after logout")
}

func TestStubOverHTTP(t *testing.T) {
	reg := NewRegistry(RegistryConfig{})
	srv := httptest.NewServer(transport.NewHTTPHandler(reg.Handle, nil))
	defer srv.Close()

	addr := srv.Listener.Addr().(*net.TCPAddr)
	endpoint := transport.NewEndpoint("http://"+addr.IP.String(), addr.Port, transport.SchemeInsecure, 5*time.Second)
	sess := session.New(transport.NewHTTPTransport(endpoint))

	ctx := context.Background()
	require.NoError(t, sess.Open(ctx, transport.SecurityOptions{}))
	defer sess.Close()

	greeting, err := sess.Hello(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(greeting), "<greeting>")

	resp, err := sess.Execute(ctx, transport.RawDocument(checkCommand))
	require.NoError(t, err)
	assert.Contains(t, string(resp), "<clTRID>ABC-12345</clTRID>")
	assert.Equal(t, uint64(2), sess.Commands())
}

func TestServerTLSConfig(t *testing.T) {
	conf, err := serverTLSConfig(Config{Insecure: true})
	require.NoError(t, err)
	assert.Nil(t, conf)

	conf, err = serverTLSConfig(Config{ServerID: "stub"})
	require.NoError(t, err)
	require.Len(t, conf.Certificates, 1)
	assert.Equal(t, tls.NoClientCert, conf.ClientAuth)
	assert.Equal(t, "TLS", mode(conf))

	conf, err = serverTLSConfig(Config{ServerID: "stub", ClientCAFile: "../../pkg/cert/testdata/ca.crt"})
	require.NoError(t, err)
	assert.Equal(t, tls.RequireAndVerifyClientCert, conf.ClientAuth)
	assert.True(t, strings.HasPrefix(mode(conf), "TLS, client"))

	_, err = serverTLSConfig(Config{CertFile: "/nonexistent.crt", KeyFile: "/nonexistent.key"})
	assert.Error(t, err)

	assert.Equal(t, "plain", mode(nil))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"create", "renew"}, splitList(" create, ,renew,"))
	assert.Nil(t, splitList(""))
}

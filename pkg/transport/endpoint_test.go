package transport

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestStripScheme(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"epp.registry.example", "epp.registry.example"},
		{"https://epp.registry.example", "epp.registry.example"},
		{"http://epp.registry.example", "epp.registry.example"},
		{"HTTPS://epp.registry.example", "epp.registry.example"},
		{"Http://epp.registry.example/", "epp.registry.example"},
		{"  https://epp.registry.example  ", "epp.registry.example"},
		{"ftp://epp.registry.example", "ftp://epp.registry.example"},
		{"https://", ""},
		{"httpsfoo", "httpsfoo"},
		{"https://http://epp.registry.example", "epp.registry.example"},
		{"HTTP://https://http://epp.registry.example/", "epp.registry.example"},
		{"[::1]", "::1"},
		{"https://[2001:db8::7]/", "2001:db8::7"},
	}

	for _, tt := range tests {
		if got := StripScheme(tt.in); got != tt.want {
			t.Errorf("StripScheme(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEndpointIPv6Host(t *testing.T) {
	for _, host := range []string{"[::1]", "https://[::1]", "::1"} {
		e := NewEndpoint(host, 700, SchemeSecure, NoTimeout)
		require.NoError(t, e.Validate(), host)
		assert.Equal(t, "::1", e.Host())
		assert.Equal(t, "[::1]:700", e.Address())
		assert.Equal(t, "https://[::1]:700", e.BaseURL())
	}
}

func TestStripSchemeProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		host := rapid.StringMatching(`[a-z0-9]([a-z0-9-]{0,20}[a-z0-9])?(\.[a-z]{2,6}){1,3}`).Draw(t, "host")
		prefix := rapid.SampledFrom([]string{"", "http://", "https://", "HTTP://", "HTTPS://", "hTtPs://"}).Draw(t, "prefix")
		port := rapid.IntRange(1, 65535).Draw(t, "port")
		scheme := rapid.SampledFrom([]Scheme{SchemeSecure, SchemeInsecure}).Draw(t, "scheme")

		e := NewEndpoint(prefix+host, port, scheme, NoTimeout)
		if e.Host() != host {
			t.Fatalf("Host() = %q, want %q", e.Host(), host)
		}
		if e.Scheme() != scheme {
			t.Fatalf("Scheme() = %v, want %v", e.Scheme(), scheme)
		}
		if err := e.Validate(); err != nil {
			t.Fatalf("Validate() = %v", err)
		}
		if strings.Count(e.BaseURL(), "://") != 1 {
			t.Fatalf("BaseURL() = %q has a doubled scheme", e.BaseURL())
		}
	})
}

func TestEndpointAccessors(t *testing.T) {
	e := NewEndpoint("https://epp.registry.example", 700, SchemeSecure, 30*time.Second)

	assert.Equal(t, "epp.registry.example", e.Host())
	assert.Equal(t, 700, e.Port())
	assert.Equal(t, SchemeSecure, e.Scheme())
	assert.Equal(t, 30*time.Second, e.ReadTimeout())
	assert.Equal(t, "epp.registry.example:700", e.Address())
	assert.Equal(t, "https://epp.registry.example:700", e.BaseURL())
	assert.Equal(t, e.BaseURL(), e.String())
}

func TestEndpointSchemeArgumentWins(t *testing.T) {
	e := NewEndpoint("https://epp.registry.example", 80, SchemeInsecure, NoTimeout)
	assert.Equal(t, "http://epp.registry.example:80", e.BaseURL())
}

func TestEndpointIPv6(t *testing.T) {
	e := NewEndpoint("::1", 700, SchemeSecure, NoTimeout)
	assert.Equal(t, "[::1]:700", e.Address())
	assert.Equal(t, "https://[::1]:700", e.BaseURL())
	assert.NoError(t, e.Validate())
}

func TestEndpointNegativeTimeout(t *testing.T) {
	e := NewEndpoint("epp.registry.example", 700, SchemeSecure, -time.Second)
	assert.Equal(t, NoTimeout, e.ReadTimeout())
}

func TestEndpointValidate(t *testing.T) {
	tests := []struct {
		name     string
		endpoint Endpoint
		wantErr  bool
	}{
		{"valid", NewEndpoint("epp.registry.example", 700, SchemeSecure, NoTimeout), false},
		{"empty host", NewEndpoint("", 700, SchemeSecure, NoTimeout), true},
		{"scheme only", NewEndpoint("https://", 700, SchemeSecure, NoTimeout), true},
		{"port zero", NewEndpoint("epp.registry.example", 0, SchemeSecure, NoTimeout), true},
		{"port too large", NewEndpoint("epp.registry.example", 70000, SchemeSecure, NoTimeout), true},
		{"unknown scheme", NewEndpoint("epp.registry.example", 700, Scheme(9), NoTimeout), true},
		{"path", NewEndpoint("epp.registry.example/v1", 700, SchemeSecure, NoTimeout), true},
		{"space", NewEndpoint("epp registry", 700, SchemeSecure, NoTimeout), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.endpoint.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var ce *ConnectionError
			assert.True(t, errors.As(err, &ce), "expected ConnectionError, got %v", err)
		})
	}
}

func TestParseScheme(t *testing.T) {
	tests := []struct {
		in      string
		want    Scheme
		wantErr bool
	}{
		{"", SchemeSecure, false},
		{"https", SchemeSecure, false},
		{"TLS", SchemeSecure, false},
		{"http", SchemeInsecure, false},
		{" plain ", SchemeInsecure, false},
		{"gopher", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseScheme(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	assert.Equal(t, "https", SchemeSecure.String())
	assert.Equal(t, "http", SchemeInsecure.String())
	assert.Equal(t, "unknown", Scheme(7).String())
}

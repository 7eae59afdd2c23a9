package transport

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// NoTimeout disables read-timeout enforcement.
const NoTimeout time.Duration = 0

// Default registry ports.
const (
	// DefaultStreamPort is the IANA port for EPP over TCP (RFC 5734).
	DefaultStreamPort = 700

	// DefaultHTTPSPort is the default port for EPP over HTTPS.
	DefaultHTTPSPort = 443
)

// Scheme selects whether the registry is reached over TLS.
type Scheme int

const (
	// SchemeSecure uses TLS (https for HTTP transports).
	SchemeSecure Scheme = iota

	// SchemeInsecure uses plain TCP (http for HTTP transports).
	SchemeInsecure
)

// String returns the URL scheme.
func (s Scheme) String() string {
	switch s {
	case SchemeSecure:
		return "https"
	case SchemeInsecure:
		return "http"
	default:
		return "unknown"
	}
}

// ParseScheme parses a scheme name. The empty string yields SchemeSecure.
func ParseScheme(s string) (Scheme, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "https", "secure", "tls":
		return SchemeSecure, nil
	case "http", "insecure", "plain", "tcp":
		return SchemeInsecure, nil
	default:
		return 0, fmt.Errorf("unknown scheme %q (use https or http)", s)
	}
}

// Endpoint identifies a registry. It is immutable after construction.
type Endpoint struct {
	scheme      Scheme
	host        string
	port        int
	readTimeout time.Duration
}

// NewEndpoint builds an Endpoint. A scheme prefix on host ("https://" or
// "http://", any case) is stripped; the scheme argument always wins.
// A non-positive readTimeout means NoTimeout.
func NewEndpoint(host string, port int, scheme Scheme, readTimeout time.Duration) Endpoint {
	if readTimeout < 0 {
		readTimeout = NoTimeout
	}
	return Endpoint{
		scheme:      scheme,
		host:        StripScheme(host),
		port:        port,
		readTimeout: readTimeout,
	}
}

// StripScheme removes leading http:// or https:// prefixes (repeated ones
// included), trailing slashes and the brackets around an IPv6 literal.
func StripScheme(host string) string {
	h := strings.TrimSpace(host)
	for stripped := true; stripped; {
		stripped = false
		for _, prefix := range []string{"https://", "http://"} {
			if len(h) >= len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
				h = h[len(prefix):]
				stripped = true
			}
		}
	}
	h = strings.TrimRight(h, "/")
	if len(h) > 1 && h[0] == '[' && h[len(h)-1] == ']' {
		h = h[1 : len(h)-1]
	}
	return h
}

// Scheme returns the configured scheme.
func (e Endpoint) Scheme() Scheme { return e.scheme }

// Host returns the bare host name.
func (e Endpoint) Host() string { return e.host }

// Port returns the port.
func (e Endpoint) Port() int { return e.port }

// ReadTimeout returns the read timeout (NoTimeout when disabled).
func (e Endpoint) ReadTimeout() time.Duration { return e.readTimeout }

// Address returns host:port.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.host, strconv.Itoa(e.port))
}

// BaseURL returns scheme://host:port.
func (e Endpoint) BaseURL() string {
	return e.scheme.String() + "://" + e.Address()
}

// String returns the base URL.
func (e Endpoint) String() string {
	return e.BaseURL()
}

// Validate reports a *ConnectionError if the endpoint cannot be dialed.
func (e Endpoint) Validate() error {
	addr := e.BaseURL()
	if e.host == "" {
		return &ConnectionError{Address: addr, Err: fmt.Errorf("host is empty")}
	}
	if e.port < 1 || e.port > 65535 {
		return &ConnectionError{Address: addr, Err: fmt.Errorf("port %d out of range", e.port)}
	}
	if e.scheme != SchemeSecure && e.scheme != SchemeInsecure {
		return &ConnectionError{Address: addr, Err: fmt.Errorf("unknown scheme %d", e.scheme)}
	}
	u, err := url.Parse(addr)
	if err != nil {
		return &ConnectionError{Address: addr, Err: err}
	}
	if u.Hostname() != e.host || u.Path != "" {
		return &ConnectionError{Address: addr, Err: fmt.Errorf("host %q is not a bare host name", e.host)}
	}
	return nil
}

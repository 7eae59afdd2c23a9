package transport

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"strings"
)

// DefaultMinTLSVersion is the lowest TLS version negotiated with registries.
const DefaultMinTLSVersion = tls.VersionTLS12

// SecurityOptions configures the TLS side of a transport session.
// The zero value negotiates TLS 1.2 or later against the system roots
// without a client certificate.
type SecurityOptions struct {
	// MinVersion is the lowest accepted TLS version (default TLS 1.2).
	MinVersion uint16

	// MaxVersion is the highest accepted TLS version (0 = newest).
	MaxVersion uint16

	// Certificates are the client credentials presented to the registry.
	// Most registries require one for EPP over TCP.
	Certificates []tls.Certificate

	// RootCAs verifies the registry certificate (nil = system roots).
	RootCAs *x509.CertPool

	// ServerName overrides the name verified against the registry
	// certificate. Defaults to the endpoint host.
	ServerName string

	// InsecureSkipVerify disables certificate verification.
	// Only for testing - never use against a production registry!
	InsecureSkipVerify bool

	// VerifyPeerCertificate is an optional callback for custom verification.
	VerifyPeerCertificate func(rawCerts [][]byte, verifiedChains [][]*x509.Certificate) error
}

// NewClientTLSConfig creates the TLS configuration for connecting to host.
func NewClientTLSConfig(opts SecurityOptions, host string) (*tls.Config, error) {
	minVersion := opts.MinVersion
	if minVersion == 0 {
		minVersion = DefaultMinTLSVersion
	}
	if minVersion < tls.VersionTLS12 {
		return nil, fmt.Errorf("TLS version %s is below the TLS 1.2 minimum", tls.VersionName(minVersion))
	}
	if opts.MaxVersion != 0 && opts.MaxVersion < minVersion {
		return nil, fmt.Errorf("max TLS version %s is below min version %s",
			tls.VersionName(opts.MaxVersion), tls.VersionName(minVersion))
	}

	serverName := opts.ServerName
	if serverName == "" {
		serverName = strings.Trim(host, "[]")
	}

	return &tls.Config{
		MinVersion: minVersion,
		MaxVersion: opts.MaxVersion,

		// Client credentials presented to the registry
		Certificates: opts.Certificates,

		// CA pool for verifying the registry certificate
		RootCAs: opts.RootCAs,

		// Server name for SNI and verification
		ServerName: serverName,

		// Custom verification callback
		VerifyPeerCertificate: opts.VerifyPeerCertificate,

		// For testing only
		InsecureSkipVerify: opts.InsecureSkipVerify,
	}, nil
}

// NewServerTLSConfig creates a TLS configuration for a stub registry.
// When clientCAs is non-nil, clients must present a certificate it verifies.
func NewServerTLSConfig(cert tls.Certificate, clientCAs *x509.CertPool) (*tls.Config, error) {
	if len(cert.Certificate) == 0 {
		return nil, fmt.Errorf("server certificate is required")
	}

	cfg := &tls.Config{
		MinVersion:   DefaultMinTLSVersion,
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.NoClientCert,
	}
	if clientCAs != nil {
		cfg.ClientCAs = clientCAs
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return cfg, nil
}

// VerifyTLSVersion checks that a negotiated connection meets minVersion.
func VerifyTLSVersion(state tls.ConnectionState, minVersion uint16) error {
	if minVersion == 0 {
		minVersion = DefaultMinTLSVersion
	}
	if state.Version < minVersion {
		return fmt.Errorf("negotiated %s, need at least %s",
			tls.VersionName(state.Version), tls.VersionName(minVersion))
	}
	return nil
}

// ParseTLSVersion parses "1.2" or "1.3" (with or without a "TLS" prefix).
// The empty string returns 0.
func ParseTLSVersion(s string) (uint16, error) {
	v := strings.TrimSpace(strings.ToLower(s))
	v = strings.TrimPrefix(v, "tls")
	v = strings.TrimSpace(strings.TrimPrefix(v, "v"))
	switch v {
	case "":
		return 0, nil
	case "1.2", "12":
		return tls.VersionTLS12, nil
	case "1.3", "13":
		return tls.VersionTLS13, nil
	default:
		return 0, fmt.Errorf("unsupported TLS version %q (use 1.2 or 1.3)", s)
	}
}

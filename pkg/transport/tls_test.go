package transport

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/eppkit/epp-go/pkg/cert"
)

// generateTestCertificate creates a self-signed loopback certificate.
func generateTestCertificate(t *testing.T) (tls.Certificate, *x509.Certificate) {
	t.Helper()

	pair, err := cert.GenerateSelfSigned("localhost", []string{"localhost", "127.0.0.1", "::1"}, time.Hour)
	if err != nil {
		t.Fatalf("GenerateSelfSigned failed: %v", err)
	}
	return pair, pair.Leaf
}

// generateCAAndCert returns a registry CA and a registrar client
// certificate it issued.
func generateCAAndCert(t *testing.T, cn string) (*x509.Certificate, tls.Certificate) {
	t.Helper()

	ca, err := cert.GenerateSelfSigned("Test Registry CA", nil, time.Hour)
	if err != nil {
		t.Fatalf("GenerateSelfSigned failed: %v", err)
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Minute),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, ca.Leaf, &key.PublicKey, ca.PrivateKey)
	if err != nil {
		t.Fatalf("failed to issue client cert: %v", err)
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("failed to parse client cert: %v", err)
	}

	return ca.Leaf, tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key, Leaf: leaf}
}

func TestNewServerTLSConfig(t *testing.T) {
	cert, _ := generateTestCertificate(t)

	cfg, err := NewServerTLSConfig(cert, nil)
	if err != nil {
		t.Fatalf("NewServerTLSConfig failed: %v", err)
	}
	if cfg.MinVersion != tls.VersionTLS12 {
		t.Errorf("MinVersion = %x, want TLS 1.2", cfg.MinVersion)
	}
	if cfg.ClientAuth != tls.NoClientCert {
		t.Errorf("ClientAuth = %v, want NoClientCert", cfg.ClientAuth)
	}

	caCert, _ := generateCAAndCert(t, "registrar")
	pool := x509.NewCertPool()
	pool.AddCert(caCert)

	cfg, err = NewServerTLSConfig(cert, pool)
	if err != nil {
		t.Fatalf("NewServerTLSConfig failed: %v", err)
	}
	if cfg.ClientAuth != tls.RequireAndVerifyClientCert {
		t.Errorf("ClientAuth = %v, want RequireAndVerifyClientCert", cfg.ClientAuth)
	}
}

func TestNewServerTLSConfigNoCert(t *testing.T) {
	if _, err := NewServerTLSConfig(tls.Certificate{}, nil); err == nil {
		t.Error("expected error without certificate")
	}
}

func TestNewClientTLSConfig(t *testing.T) {
	cert, leaf := generateTestCertificate(t)
	pool := x509.NewCertPool()
	pool.AddCert(leaf)

	cfg, err := NewClientTLSConfig(SecurityOptions{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
	}, "epp.registry.example")
	if err != nil {
		t.Fatalf("NewClientTLSConfig failed: %v", err)
	}

	if cfg.MinVersion != tls.VersionTLS12 {
		t.Errorf("MinVersion = %x, want TLS 1.2", cfg.MinVersion)
	}
	if cfg.ServerName != "epp.registry.example" {
		t.Errorf("ServerName = %q, want endpoint host", cfg.ServerName)
	}
	if len(cfg.Certificates) != 1 {
		t.Errorf("Certificates = %d, want 1", len(cfg.Certificates))
	}
	if cfg.RootCAs != pool {
		t.Error("RootCAs not propagated")
	}
	if cfg.InsecureSkipVerify {
		t.Error("InsecureSkipVerify should default to false")
	}
}

func TestNewClientTLSConfigServerName(t *testing.T) {
	cfg, err := NewClientTLSConfig(SecurityOptions{ServerName: "override.example"}, "10.0.0.1")
	if err != nil {
		t.Fatalf("NewClientTLSConfig failed: %v", err)
	}
	if cfg.ServerName != "override.example" {
		t.Errorf("ServerName = %q, want override", cfg.ServerName)
	}

	cfg, err = NewClientTLSConfig(SecurityOptions{}, "[::1]")
	if err != nil {
		t.Fatalf("NewClientTLSConfig failed: %v", err)
	}
	if cfg.ServerName != "::1" {
		t.Errorf("ServerName = %q, want brackets stripped", cfg.ServerName)
	}
}

func TestNewClientTLSConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		opts SecurityOptions
	}{
		{"tls 1.1 min", SecurityOptions{MinVersion: tls.VersionTLS11}},
		{"max below min", SecurityOptions{MinVersion: tls.VersionTLS13, MaxVersion: tls.VersionTLS12}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewClientTLSConfig(tt.opts, "localhost"); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestVerifyTLSVersion(t *testing.T) {
	if err := VerifyTLSVersion(tls.ConnectionState{Version: tls.VersionTLS13}, 0); err != nil {
		t.Errorf("TLS 1.3 rejected: %v", err)
	}
	if err := VerifyTLSVersion(tls.ConnectionState{Version: tls.VersionTLS12}, 0); err != nil {
		t.Errorf("TLS 1.2 rejected by default minimum: %v", err)
	}
	if err := VerifyTLSVersion(tls.ConnectionState{Version: tls.VersionTLS12}, tls.VersionTLS13); err == nil {
		t.Error("TLS 1.2 accepted with 1.3 minimum")
	}
	if err := VerifyTLSVersion(tls.ConnectionState{Version: tls.VersionTLS11}, 0); err == nil {
		t.Error("TLS 1.1 accepted")
	}
}

func TestParseTLSVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    uint16
		wantErr bool
	}{
		{"", 0, false},
		{"1.2", tls.VersionTLS12, false},
		{"TLS1.3", tls.VersionTLS13, false},
		{"tlsv1.2", tls.VersionTLS12, false},
		{" 13 ", tls.VersionTLS13, false},
		{"1.1", 0, true},
		{"ssl3", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseTLSVersion(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTLSVersion(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTLSVersion(%q) = %x, want %x", tt.in, got, tt.want)
		}
	}
}

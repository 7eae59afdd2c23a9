package cert

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"golang.org/x/crypto/pkcs12"
)

// ReadCertPool reads every certificate in a PEM file into a pool for
// verifying the registry.
func ReadCertPool(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	certs, err := DecodeCertsPEM(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	pool := x509.NewCertPool()
	for _, c := range certs {
		pool.AddCert(c)
	}
	return pool, nil
}

// LoadKeyPair loads a PEM certificate chain and its private key.
func LoadKeyPair(certFile, keyFile string) (tls.Certificate, error) {
	pair, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("load key pair %s: %w", certFile, err)
	}
	return pair, nil
}

// LoadPKCS12 loads a client certificate and key from a PKCS#12 (.p12/.pfx)
// bundle. Bundles protected with the legacy 3DES or RC2 algorithms are
// supported.
func LoadPKCS12(path, password string) (tls.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tls.Certificate{}, err
	}
	return DecodePKCS12(data, password)
}

// DecodePKCS12 converts PKCS#12 data to a tls.Certificate. Every certificate
// in the bundle is kept in the chain.
func DecodePKCS12(data []byte, password string) (tls.Certificate, error) {
	blocks, err := pkcs12.ToPEM(data, password)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("decode PKCS#12: %w", err)
	}

	var buf []byte
	for _, b := range blocks {
		// Bag attributes become PEM headers; tls does not need them.
		buf = append(buf, pem.EncodeToMemory(&pem.Block{Type: b.Type, Bytes: b.Bytes})...)
	}

	pair, err := tls.X509KeyPair(buf, buf)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("decode PKCS#12: %w", err)
	}
	return pair, nil
}

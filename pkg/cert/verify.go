package cert

import (
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// RenewalWindow is how long before expiry a certificate is reported as
// due for renewal.
const RenewalWindow = 30 * 24 * time.Hour

// Verification errors.
var (
	ErrCertExpired     = errors.New("certificate has expired")
	ErrCertNotYetValid = errors.New("certificate is not yet valid")
	ErrInvalidChain    = errors.New("invalid certificate chain")
)

// CheckValidity reports whether cert is inside its validity period at now.
func CheckValidity(cert *x509.Certificate, now time.Time) error {
	if cert == nil {
		return ErrInvalidCert
	}
	if now.Before(cert.NotBefore) {
		return ErrCertNotYetValid
	}
	if now.After(cert.NotAfter) {
		return ErrCertExpired
	}
	return nil
}

// NeedsRenewal reports whether cert expires within RenewalWindow of now.
func NeedsRenewal(cert *x509.Certificate, now time.Time) bool {
	return cert != nil && now.Add(RenewalWindow).After(cert.NotAfter)
}

// VerifyChain checks that cert chains to one of roots for client auth.
func VerifyChain(cert *x509.Certificate, roots *x509.CertPool) error {
	if cert == nil {
		return ErrInvalidCert
	}
	if roots == nil {
		return fmt.Errorf("%w: root pool required", ErrInvalidChain)
	}

	opts := x509.VerifyOptions{
		Roots:     roots,
		KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}
	if _, err := cert.Verify(opts); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidChain, err)
	}
	return nil
}

// CertificateInfo extracts human-readable information from a certificate.
type CertificateInfo struct {
	CommonName   string
	Organization string
	Issuer       string
	Serial       string
	NotBefore    time.Time
	NotAfter     time.Time
	DNSNames     []string
	IsCA         bool
	SKI          []byte
}

// GetCertificateInfo extracts information from a certificate.
func GetCertificateInfo(cert *x509.Certificate) *CertificateInfo {
	if cert == nil {
		return nil
	}

	return &CertificateInfo{
		CommonName:   cert.Subject.CommonName,
		Organization: strings.Join(cert.Subject.Organization, ", "),
		Issuer:       cert.Issuer.CommonName,
		Serial:       cert.SerialNumber.Text(16),
		NotBefore:    cert.NotBefore,
		NotAfter:     cert.NotAfter,
		DNSNames:     cert.DNSNames,
		IsCA:         cert.IsCA,
		SKI:          cert.SubjectKeyId,
	}
}

// String formats the info for terminal output.
func (ci *CertificateInfo) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Subject:  CN=%s", ci.CommonName)
	if ci.Organization != "" {
		fmt.Fprintf(&b, ", O=%s", ci.Organization)
	}
	fmt.Fprintf(&b, "\nIssuer:   CN=%s\n", ci.Issuer)
	fmt.Fprintf(&b, "Serial:   %s\n", ci.Serial)
	fmt.Fprintf(&b, "Valid:    %s .. %s\n", ci.NotBefore.UTC().Format(time.RFC3339), ci.NotAfter.UTC().Format(time.RFC3339))
	if len(ci.DNSNames) > 0 {
		fmt.Fprintf(&b, "DNS:      %s\n", strings.Join(ci.DNSNames, ", "))
	}
	if len(ci.SKI) > 0 {
		fmt.Fprintf(&b, "SKI:      %s\n", hex.EncodeToString(ci.SKI))
	}
	return b.String()
}

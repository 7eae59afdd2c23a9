// Package config loads EPP client settings from YAML and builds the
// matching transport.
//
//	transport: tcp            # tcp (stream) or http
//	host: epp.registry.example
//	port: 700                 # default 700 for tcp, 443 for http
//	scheme: https             # https (TLS) or http (plain)
//	read_timeout: 30s         # or "infinite"
//	tls:
//	  cert_file: client.crt
//	  key_file: client.key
//	  ca_file: registry-ca.pem
//	protocol_log: session.elog
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eppkit/epp-go/pkg/cert"
	"github.com/eppkit/epp-go/pkg/log"
	"github.com/eppkit/epp-go/pkg/transport"
)

// Transport kinds.
const (
	TransportTCP  = "tcp"
	TransportHTTP = "http"
)

// Timeout is a duration that also accepts "infinite" (and "none"), both
// meaning no timeout.
type Timeout time.Duration

// Duration returns the timeout as a time.Duration (0 = none).
func (t Timeout) Duration() time.Duration {
	return time.Duration(t)
}

// String returns the Go duration form, or "infinite".
func (t Timeout) String() string {
	if t <= 0 {
		return "infinite"
	}
	return time.Duration(t).String()
}

// UnmarshalYAML parses a Go duration string or "infinite".
func (t *Timeout) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("line %d: timeout must be a string: %w", node.Line, err)
	}
	v, err := ParseTimeout(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*t = v
	return nil
}

// MarshalYAML writes the String form.
func (t Timeout) MarshalYAML() (any, error) {
	return t.String(), nil
}

// ParseTimeout parses a Go duration or "infinite"/"none".
func ParseTimeout(s string) (Timeout, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "infinite", "none", "0":
		return 0, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid timeout %q: negative", s)
	}
	return Timeout(d), nil
}

// TLS holds client credential and verification settings.
type TLS struct {
	CertFile           string `yaml:"cert_file,omitempty"`
	KeyFile            string `yaml:"key_file,omitempty"`
	PKCS12File         string `yaml:"pkcs12_file,omitempty"`
	PKCS12Password     string `yaml:"pkcs12_password,omitempty"`
	CAFile             string `yaml:"ca_file,omitempty"`
	ServerName         string `yaml:"server_name,omitempty"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify,omitempty"`
	MinVersion         string `yaml:"min_version,omitempty"`
}

// Config is the client configuration.
type Config struct {
	Transport      string  `yaml:"transport"`
	Host           string  `yaml:"host"`
	Port           int     `yaml:"port,omitempty"`
	Scheme         string  `yaml:"scheme,omitempty"`
	ReadTimeout    Timeout `yaml:"read_timeout,omitempty"`
	DialTimeout    Timeout `yaml:"dial_timeout,omitempty"`
	MaxMessageSize uint32  `yaml:"max_message_size,omitempty"`
	UserAgent      string  `yaml:"user_agent,omitempty"`
	TLS            TLS     `yaml:"tls,omitempty"`
	ProtocolLog    string  `yaml:"protocol_log,omitempty"`
}

// Default returns the configuration used for keys a file leaves out.
func Default() Config {
	return Config{
		Transport: TransportTCP,
		Scheme:    "https",
	}
}

// Load reads and validates a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of Default and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("YAML parse error: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Marshal renders cfg as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks field values without touching the filesystem.
func (c *Config) Validate() error {
	var errs []error

	switch c.Transport {
	case TransportTCP, TransportHTTP:
	default:
		errs = append(errs, fmt.Errorf("transport %q: use %q or %q", c.Transport, TransportTCP, TransportHTTP))
	}
	if transport.StripScheme(c.Host) == "" {
		errs = append(errs, errors.New("host is required"))
	}
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if _, err := transport.ParseScheme(c.Scheme); err != nil {
		errs = append(errs, err)
	}
	if _, err := transport.ParseTLSVersion(c.TLS.MinVersion); err != nil {
		errs = append(errs, fmt.Errorf("tls.min_version: %w", err))
	}
	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		errs = append(errs, errors.New("tls.cert_file and tls.key_file must be set together"))
	}
	if c.TLS.CertFile != "" && c.TLS.PKCS12File != "" {
		errs = append(errs, errors.New("tls.cert_file and tls.pkcs12_file are mutually exclusive"))
	}
	if c.MaxMessageSize != 0 && c.MaxMessageSize <= transport.LengthPrefixSize {
		errs = append(errs, fmt.Errorf("max_message_size %d too small", c.MaxMessageSize))
	}

	return errors.Join(errs...)
}

// EffectivePort returns Port, or the default for the transport kind.
func (c *Config) EffectivePort() int {
	if c.Port != 0 {
		return c.Port
	}
	if c.Transport == TransportHTTP {
		return transport.DefaultHTTPSPort
	}
	return transport.DefaultStreamPort
}

// Endpoint builds the registry endpoint.
func (c *Config) Endpoint() (transport.Endpoint, error) {
	scheme, err := transport.ParseScheme(c.Scheme)
	if err != nil {
		return transport.Endpoint{}, err
	}
	return transport.NewEndpoint(c.Host, c.EffectivePort(), scheme, c.ReadTimeout.Duration()), nil
}

// SecurityOptions loads the configured credentials.
func (c *Config) SecurityOptions() (transport.SecurityOptions, error) {
	var opts transport.SecurityOptions

	minVersion, err := transport.ParseTLSVersion(c.TLS.MinVersion)
	if err != nil {
		return opts, err
	}
	opts.MinVersion = minVersion
	opts.ServerName = c.TLS.ServerName
	opts.InsecureSkipVerify = c.TLS.InsecureSkipVerify

	switch {
	case c.TLS.CertFile != "":
		pair, err := cert.LoadKeyPair(c.TLS.CertFile, c.TLS.KeyFile)
		if err != nil {
			return opts, err
		}
		opts.Certificates = append(opts.Certificates, pair)
	case c.TLS.PKCS12File != "":
		pair, err := cert.LoadPKCS12(c.TLS.PKCS12File, c.TLS.PKCS12Password)
		if err != nil {
			return opts, err
		}
		opts.Certificates = append(opts.Certificates, pair)
	}

	if c.TLS.CAFile != "" {
		pool, err := cert.ReadCertPool(c.TLS.CAFile)
		if err != nil {
			return opts, err
		}
		opts.RootCAs = pool
	}

	return opts, nil
}

// NewTransport builds the transport the configuration selects.
func NewTransport(c *Config, logger log.Logger) (transport.Transport, error) {
	endpoint, err := c.Endpoint()
	if err != nil {
		return nil, err
	}

	switch c.Transport {
	case TransportHTTP:
		opts := []transport.HTTPOption{transport.WithLogger(logger)}
		if c.UserAgent != "" {
			opts = append(opts, transport.WithUserAgent(c.UserAgent))
		}
		if c.MaxMessageSize != 0 {
			opts = append(opts, transport.WithResponseLimit(c.MaxMessageSize))
		}
		return transport.NewHTTPTransport(endpoint, opts...), nil
	case TransportTCP:
		opts := []transport.StreamOption{transport.WithStreamLogger(logger)}
		if c.MaxMessageSize != 0 {
			opts = append(opts, transport.WithMaxMessageSize(c.MaxMessageSize))
		}
		if c.DialTimeout > 0 {
			opts = append(opts, transport.WithDialTimeout(c.DialTimeout.Duration()))
		}
		return transport.NewStreamTransport(endpoint, opts...), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", c.Transport)
	}
}

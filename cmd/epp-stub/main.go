// Command epp-stub runs a stub EPP registry for local testing.
//
// It serves canned responses over the TCP stream mapping and, optionally,
// the HTTP mapping. <hello/> returns a greeting, <logout/> ends the
// session, other commands succeed unless listed with -fail.
//
// Usage:
//
//	epp-stub [flags]
//
// Flags:
//
//	-listen string        TCP listen address (default ":7000")
//	-http-listen string   HTTP listen address (empty disables HTTP)
//	-insecure             Serve plain TCP / http:// instead of TLS
//	-cert, -key string    Server certificate and key (default: self-signed)
//	-client-ca string     Require client certificates signed by this CA
//	-delay duration       Delay before every response
//	-fail string          Comma-separated commands answered with 2400
//	-protocol-log string  Write a CBOR protocol capture to this file
//	-trace                Print protocol events to stderr
//
// Examples:
//
//	# TLS stream on :7000 with a throwaway certificate
//	epp-stub
//
//	# Plain TCP and HTTP, slow responses for timeout testing
//	epp-stub -insecure -http-listen :8080 -delay 2s
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/eppkit/epp-go/pkg/cert"
	epplog "github.com/eppkit/epp-go/pkg/log"
	"github.com/eppkit/epp-go/pkg/transport"
)

// Config holds the stub configuration.
type Config struct {
	Listen         string
	HTTPListen     string
	Insecure       bool
	CertFile       string
	KeyFile        string
	ClientCAFile   string
	ServerID       string
	Delay          time.Duration
	Fail           string
	MaxMessageSize uint
	ProtocolLog    string
	Trace          bool
}

var config Config

func init() {
	flag.StringVar(&config.Listen, "listen", ":7000", "TCP listen address")
	flag.StringVar(&config.HTTPListen, "http-listen", "", "HTTP listen address (empty disables HTTP)")
	flag.BoolVar(&config.Insecure, "insecure", false, "Serve plain TCP / http:// instead of TLS")
	flag.StringVar(&config.CertFile, "cert", "", "Server certificate file (PEM)")
	flag.StringVar(&config.KeyFile, "key", "", "Server private key file (PEM)")
	flag.StringVar(&config.ClientCAFile, "client-ca", "", "Require client certificates signed by this CA (PEM)")
	flag.StringVar(&config.ServerID, "server-id", "epp-stub", "Server ID reported in the greeting")
	flag.DurationVar(&config.Delay, "delay", 0, "Delay before every response")
	flag.StringVar(&config.Fail, "fail", "", "Comma-separated commands answered with 2400 (e.g. create,renew)")
	flag.UintVar(&config.MaxMessageSize, "max-message-size", transport.DefaultMaxMessageSize, "Maximum frame size in bytes")
	flag.StringVar(&config.ProtocolLog, "protocol-log", "", "File path for protocol event logging (CBOR format)")
	flag.BoolVar(&config.Trace, "trace", false, "Print protocol events to stderr")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	if err := run(config); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}
}

func run(cfg Config) error {
	logger, closeLog, err := protocolLogger(cfg.ProtocolLog, cfg.Trace)
	if err != nil {
		return err
	}
	defer closeLog()

	tlsConf, err := serverTLSConfig(cfg)
	if err != nil {
		return err
	}

	reg := NewRegistry(RegistryConfig{
		ServerID:     cfg.ServerID,
		Delay:        cfg.Delay,
		FailCommands: splitList(cfg.Fail),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv, err := transport.NewServer(transport.ServerConfig{
		TLSConfig:      tlsConf,
		Address:        cfg.Listen,
		MaxMessageSize: uint32(cfg.MaxMessageSize),
		Logger:         logger,
		Greeting:       reg.Greeting(),
		Handler:        reg.Handle,
		OnError: func(connID string, err error) {
			log.Printf("[%s] %v", shortID(connID), err)
		},
	})
	if err != nil {
		return err
	}
	if err := srv.Start(ctx); err != nil {
		return err
	}
	defer srv.Stop()
	log.Printf("Stream listening on %s (%s)", srv.Addr(), mode(tlsConf))

	var httpSrv *http.Server
	if cfg.HTTPListen != "" {
		httpSrv, err = startHTTP(cfg.HTTPListen, tlsConf, transport.NewHTTPHandler(reg.Handle, logger))
		if err != nil {
			return err
		}
	}

	<-ctx.Done()
	log.Println("Shutting down...")

	if httpSrv != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error stopping HTTP server: %v", err)
		}
	}

	log.Printf("Answered %d commands", reg.Commands())
	return nil
}

// serverTLSConfig loads or generates the server certificate. It returns nil
// for -insecure.
func serverTLSConfig(cfg Config) (*tls.Config, error) {
	if cfg.Insecure {
		return nil, nil
	}

	var serverCert tls.Certificate
	var err error
	if cfg.CertFile != "" {
		serverCert, err = cert.LoadKeyPair(cfg.CertFile, cfg.KeyFile)
	} else {
		serverCert, err = cert.GenerateSelfSigned(cfg.ServerID, []string{"localhost", "127.0.0.1", "::1"}, cert.DefaultSelfSignedValidity)
		if err == nil {
			log.Printf("Using a generated self-signed certificate (clients need -insecure-skip-verify or its CA)")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("server certificate: %w", err)
	}

	var clientCAs *x509.CertPool
	if cfg.ClientCAFile != "" {
		clientCAs, err = cert.ReadCertPool(cfg.ClientCAFile)
		if err != nil {
			return nil, err
		}
	}
	return transport.NewServerTLSConfig(serverCert, clientCAs)
}

func startHTTP(addr string, tlsConf *tls.Config, handler http.Handler) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}

	srv := &http.Server{
		Handler:           handler,
		TLSConfig:         tlsConf,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		var err error
		if tlsConf != nil {
			err = srv.ServeTLS(ln, "", "")
		} else {
			err = srv.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	log.Printf("HTTP listening on %s (%s)", ln.Addr(), mode(tlsConf))
	return srv, nil
}

func protocolLogger(path string, trace bool) (epplog.Logger, func(), error) {
	var loggers []epplog.Logger
	closeFn := func() {}

	if path != "" {
		fl, err := epplog.NewFileLogger(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open protocol log: %w", err)
		}
		log.Printf("Protocol logging to: %s", fl.Path())
		loggers = append(loggers, fl)
		closeFn = func() { fl.Close() }
	}
	if trace {
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
		loggers = append(loggers, epplog.NewSlogAdapter(slog.New(handler)))
	}
	return epplog.NewMultiLogger(loggers...), closeFn, nil
}

func mode(tlsConf *tls.Config) string {
	switch {
	case tlsConf == nil:
		return "plain"
	case tlsConf.ClientAuth == tls.RequireAndVerifyClientCert:
		return "TLS, client certificates required"
	default:
		return "TLS"
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Command epp-client sends EPP documents to a registry over TCP or HTTP.
//
// Usage:
//
//	epp-client [flags] [command.xml ...]
//
// With file arguments each document is sent in order and the responses are
// printed. Without arguments (or with -interactive) a readline shell starts.
//
// Flags:
//
//	-config string        YAML configuration file
//	-transport string     tcp or http (overrides config)
//	-host string          Registry host (overrides config)
//	-port int             Registry port (overrides config)
//	-insecure             Plain TCP / http:// instead of TLS
//	-cert, -key string    Client certificate and key (PEM)
//	-ca string            Registry CA bundle (PEM)
//	-read-timeout string  Read timeout, Go duration or "infinite"
//	-protocol-log string  Write a CBOR protocol capture to this file
//	-log-level string     Log level: debug, info, warn, error (default "info")
//	-trace                Print protocol events to stderr
//
// Examples:
//
//	# Log in and out with prepared documents
//	epp-client -host epp.registry.example -cert me.crt -key me.key login.xml logout.xml
//
//	# Interactive shell against a local stub over plain TCP
//	epp-client -host localhost -port 7000 -insecure -interactive
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eppkit/epp-go/cmd/epp-client/interactive"
	"github.com/eppkit/epp-go/pkg/config"
	epplog "github.com/eppkit/epp-go/pkg/log"
	"github.com/eppkit/epp-go/pkg/session"
	"github.com/eppkit/epp-go/pkg/transport"
)

// Flags holds command-line settings. Zero values leave the config file alone.
type Flags struct {
	ConfigFile  string
	Transport   string
	Host        string
	Port        int
	Insecure    bool
	CertFile    string
	KeyFile     string
	CAFile      string
	ReadTimeout string
	ProtocolLog string
	LogLevel    string
	Trace       bool
	Interactive bool
	Timeout     time.Duration
}

var flags Flags

func init() {
	flag.StringVar(&flags.ConfigFile, "config", "", "YAML configuration file")
	flag.StringVar(&flags.Transport, "transport", "", "Transport: tcp or http")
	flag.StringVar(&flags.Host, "host", "", "Registry host")
	flag.IntVar(&flags.Port, "port", 0, "Registry port (default 700 for tcp, 443 for http)")
	flag.BoolVar(&flags.Insecure, "insecure", false, "Use plain TCP / http:// instead of TLS")
	flag.StringVar(&flags.CertFile, "cert", "", "Client certificate file (PEM)")
	flag.StringVar(&flags.KeyFile, "key", "", "Client private key file (PEM)")
	flag.StringVar(&flags.CAFile, "ca", "", "Registry CA bundle (PEM)")
	flag.StringVar(&flags.ReadTimeout, "read-timeout", "", "Read timeout (Go duration or \"infinite\")")
	flag.StringVar(&flags.ProtocolLog, "protocol-log", "", "File path for protocol event logging (CBOR format)")
	flag.StringVar(&flags.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.BoolVar(&flags.Trace, "trace", false, "Print protocol events to stderr")
	flag.BoolVar(&flags.Interactive, "interactive", false, "Start the interactive shell")
	flag.DurationVar(&flags.Timeout, "timeout", 0, "Per-command timeout (0 = none)")
}

func main() {
	flag.Parse()
	setupLogging(flags.LogLevel)

	if err := run(flags, flag.Args()); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}
}

func run(f Flags, files []string) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, closeLog, err := protocolLogger(cfg.ProtocolLog, f.Trace)
	if err != nil {
		return fmt.Errorf("open protocol log: %w", err)
	}
	defer closeLog()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sess, greeting, err := openSession(ctx, cfg, logger, f.Timeout)
	if err != nil {
		return err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.Printf("Error closing session: %v", err)
		}
	}()

	if greeting != nil {
		fmt.Println(string(greeting))
	}

	if len(files) > 0 && !f.Interactive {
		return sendFiles(ctx, sess, files)
	}

	sh, err := interactive.New(sess, cfg)
	if err != nil {
		return fmt.Errorf("create shell: %w", err)
	}
	log.SetOutput(sh.Stderr())
	sh.Run(ctx, cancel)
	return nil
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig(f Flags) (*config.Config, error) {
	cfg := config.Default()
	if f.ConfigFile != "" {
		loaded, err := config.Load(f.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}

	if f.Transport != "" {
		cfg.Transport = f.Transport
	}
	if f.Host != "" {
		cfg.Host = f.Host
	}
	if f.Port != 0 {
		cfg.Port = f.Port
	}
	if f.Insecure {
		cfg.Scheme = transport.SchemeInsecure.String()
	}
	if f.CertFile != "" {
		cfg.TLS.CertFile = f.CertFile
		cfg.TLS.PKCS12File = ""
	}
	if f.KeyFile != "" {
		cfg.TLS.KeyFile = f.KeyFile
	}
	if f.CAFile != "" {
		cfg.TLS.CAFile = f.CAFile
	}
	if f.ReadTimeout != "" {
		t, err := config.ParseTimeout(f.ReadTimeout)
		if err != nil {
			return nil, err
		}
		cfg.ReadTimeout = t
	}
	if f.ProtocolLog != "" {
		cfg.ProtocolLog = f.ProtocolLog
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// protocolLogger combines the capture file and console trace sinks.
func protocolLogger(path string, trace bool) (epplog.Logger, func(), error) {
	var loggers []epplog.Logger
	closeFn := func() {}

	if path != "" {
		fl, err := epplog.NewFileLogger(path)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("Protocol logging to: %s", fl.Path())
		loggers = append(loggers, fl)
		closeFn = func() {
			if dropped := fl.Dropped(); dropped > 0 {
				log.Printf("Protocol log dropped %d events", dropped)
			}
			if err := fl.Close(); err != nil {
				log.Printf("Error closing protocol log: %v", err)
			}
		}
	}
	if trace {
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
		loggers = append(loggers, epplog.NewSlogAdapter(slog.New(handler)).WithLevel(slog.LevelDebug))
	}

	switch len(loggers) {
	case 0:
		return epplog.NoopLogger{}, closeFn, nil
	case 1:
		return loggers[0], closeFn, nil
	default:
		return epplog.NewMultiLogger(loggers...), closeFn, nil
	}
}

// openSession connects and, for stream transports, reads the greeting.
func openSession(ctx context.Context, cfg *config.Config, logger epplog.Logger, timeout time.Duration) (*session.Session, []byte, error) {
	sec, err := cfg.SecurityOptions()
	if err != nil {
		return nil, nil, err
	}
	tr, err := config.NewTransport(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	sess := session.New(tr, session.WithCommandTimeout(timeout))
	if err := sess.Open(ctx, sec); err != nil {
		return nil, nil, err
	}
	log.Printf("Connected to %s (%s)", transport.StripScheme(cfg.Host), cfg.Transport)

	if cfg.Transport != config.TransportTCP {
		return sess, nil, nil
	}
	greeting, err := sess.ReadGreeting(ctx)
	if err != nil {
		sess.Close()
		return nil, nil, err
	}
	return sess, greeting, nil
}

// sendFiles sends each file as one command and prints the responses.
func sendFiles(ctx context.Context, sess *session.Session, paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		doc, err := transport.ParseDocument(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		resp, err := sess.Execute(ctx, doc)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Println(string(resp))
	}
	return nil
}

func setupLogging(level string) {
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	switch level {
	case "debug":
		log.SetFlags(log.Ltime | log.Lmicroseconds | log.Lshortfile)
	case "warn", "error":
		log.SetFlags(log.Ltime)
	}
}

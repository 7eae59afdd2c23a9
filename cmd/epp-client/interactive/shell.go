// Package interactive provides the readline shell for epp-client.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/eppkit/epp-go/pkg/cert"
	"github.com/eppkit/epp-go/pkg/config"
	"github.com/eppkit/epp-go/pkg/session"
	"github.com/eppkit/epp-go/pkg/transport"
)

// Shell runs commands against an open session.
type Shell struct {
	sess *session.Session
	cfg  *config.Config
	rl   *readline.Instance
	out  io.Writer
	err  io.Writer

	last []byte
}

// New creates a shell with a readline prompt on the terminal.
func New(sess *session.Session, cfg *config.Config) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "epp> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	sh := newShell(sess, cfg, rl.Stdout())
	sh.err = rl.Stderr()
	sh.rl = rl
	return sh, nil
}

func newShell(sess *session.Session, cfg *config.Config, out io.Writer) *Shell {
	return &Shell{sess: sess, cfg: cfg, out: out, err: out}
}

func completer() *readline.PrefixCompleter {
	files := readline.PcItemDynamic(listXMLFiles)
	return readline.NewPrefixCompleter(
		readline.PcItem("send", files),
		readline.PcItem("hello"),
		readline.PcItem("read"),
		readline.PcItem("save"),
		readline.PcItem("certinfo"),
		readline.PcItem("status"),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)
}

// listXMLFiles completes *.xml names in the working directory.
func listXMLFiles(string) []string {
	matches, _ := filepath.Glob("*.xml")
	return matches
}

// Stdout returns a writer that coordinates with the readline prompt.
func (s *Shell) Stdout() io.Writer {
	return s.out
}

// Stderr returns a writer that coordinates with the readline prompt.
// Use this for log output so it does not garble the input line.
func (s *Shell) Stderr() io.Writer {
	return s.err
}

// Run reads commands until quit, EOF or ctx cancellation.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.out, "Exiting...")
			cancel()
			return
		}

		if !s.Exec(ctx, line) {
			cancel()
			return
		}
	}
}

// Exec runs one command line. It returns false when the shell should exit.
func (s *Shell) Exec(ctx context.Context, line string) bool {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return true
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		s.printHelp()

	case "send", "s":
		s.cmdSend(ctx, args)

	case "hello":
		s.cmdHello(ctx)

	case "read", "r":
		s.cmdRead(ctx)

	case "save":
		s.cmdSave(args)

	case "certinfo", "cert":
		s.cmdCertInfo(args)

	case "status":
		s.cmdStatus()

	case "quit", "exit", "q":
		fmt.Fprintln(s.out, "Exiting...")
		return false

	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return true
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.out, `
EPP Client Commands:
  Commands:
    send <file> [file...]  - Send XML documents and print the responses
    hello                  - Send <hello/> and print the greeting
    read                   - Read one more response from the transport

  Inspection:
    save <file>            - Write the last response to a file
    certinfo [file]        - Show the client certificate (default from config)
    status                 - Show session status

  General:
    help                   - Show this help
    quit                   - Exit`)
}

func (s *Shell) cmdSend(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(s.out, "Usage: send <file> [file...]")
		return
	}

	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
			return
		}
		doc, err := transport.ParseDocument(data)
		if err != nil {
			fmt.Fprintf(s.out, "Error: %s: %v\n", path, err)
			return
		}

		start := time.Now()
		resp, err := s.sess.Execute(ctx, doc)
		if err != nil {
			s.printError(err)
			return
		}
		s.printResponse(resp, time.Since(start))
	}
}

func (s *Shell) cmdHello(ctx context.Context) {
	start := time.Now()
	resp, err := s.sess.Hello(ctx)
	if err != nil {
		s.printError(err)
		return
	}
	s.printResponse(resp, time.Since(start))
}

func (s *Shell) cmdRead(ctx context.Context) {
	start := time.Now()
	resp, err := s.sess.Transport().Read(ctx)
	if err != nil {
		if errors.Is(err, transport.ErrNoPendingResponse) {
			fmt.Fprintln(s.out, "No response pending")
			return
		}
		s.printError(err)
		return
	}
	s.printResponse(resp, time.Since(start))
}

func (s *Shell) cmdSave(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "Usage: save <file>")
		return
	}
	if s.last == nil {
		fmt.Fprintln(s.out, "No response to save")
		return
	}
	if err := os.WriteFile(args[0], s.last, 0644); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Saved %d bytes to %s\n", len(s.last), args[0])
}

func (s *Shell) cmdCertInfo(args []string) {
	path := s.cfg.TLS.CertFile
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		fmt.Fprintln(s.out, "No certificate configured (usage: certinfo <file>)")
		return
	}

	c, err := cert.ReadCertFile(path)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}

	fmt.Fprint(s.out, cert.GetCertificateInfo(c).String())

	now := time.Now()
	validityErr := cert.CheckValidity(c, now)
	switch {
	case validityErr != nil:
		fmt.Fprintf(s.out, "Status:   %v\n", validityErr)
	case cert.NeedsRenewal(c, now):
		fmt.Fprintf(s.out, "Status:   expires in %s, renew soon\n", c.NotAfter.Sub(now).Round(time.Hour))
	default:
		fmt.Fprintln(s.out, "Status:   valid")
	}
}

func (s *Shell) cmdStatus() {
	fmt.Fprintln(s.out, "Session Status:")
	fmt.Fprintf(s.out, "  Transport:    %s\n", s.cfg.Transport)
	if ep, err := s.cfg.Endpoint(); err == nil {
		fmt.Fprintf(s.out, "  Endpoint:     %s\n", ep)
		fmt.Fprintf(s.out, "  Read timeout: %s\n", s.cfg.ReadTimeout)
	}

	tr := s.sess.Transport()
	if st, ok := tr.(interface{ State() transport.State }); ok {
		fmt.Fprintf(s.out, "  State:        %s\n", st.State())
	}
	if id, ok := tr.(interface{ ConnectionID() string }); ok && id.ConnectionID() != "" {
		fmt.Fprintf(s.out, "  Connection:   %s\n", id.ConnectionID())
	}
	fmt.Fprintf(s.out, "  Commands:     %d\n", s.sess.Commands())
}

func (s *Shell) printResponse(resp []byte, elapsed time.Duration) {
	s.last = resp
	fmt.Fprintln(s.out, string(resp))
	fmt.Fprintf(s.out, "(%d bytes, %s)\n", len(resp), elapsed.Round(time.Millisecond))
}

func (s *Shell) printError(err error) {
	switch {
	case transport.IsTimeout(err):
		fmt.Fprintf(s.out, "Timeout: %v\n", err)
	case transport.StatusCode(err) != 0:
		fmt.Fprintf(s.out, "HTTP %d: %v\n", transport.StatusCode(err), err)
	default:
		fmt.Fprintf(s.out, "Error: %v\n", err)
	}
}

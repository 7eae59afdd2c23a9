// Command epp-log views and analyzes EPP protocol capture files.
//
// Capture files are written by epp-client and epp-stub with the
// -protocol-log flag.
//
// Usage:
//
//	epp-log <command> [flags] <file.elog>
//
// Commands:
//
//	view     View capture in human-readable format
//	export   Export capture to JSON lines or CSV
//	filter   Filter capture and write to a new file
//	stats    Show statistics about the capture
//
// Examples:
//
//	# View all events with document bodies
//	epp-log view -bodies session.elog
//
//	# View only errors from HTTP exchanges
//	epp-log view -category error -transport http session.elog
//
//	# Export to JSONL
//	epp-log export -format jsonl session.elog
//
//	# Filter by connection and save to new file
//	epp-log filter -conn-id 3f2a9c1e-... -o one.elog session.elog
//
//	# Show statistics
//	epp-log stats session.elog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/eppkit/epp-go/cmd/epp-log/commands"
	"github.com/eppkit/epp-go/pkg/log"
)

const usage = `epp-log - EPP Protocol Capture Analyzer

Usage:
  epp-log <command> [flags] <file.elog>

Commands:
  view     View capture in human-readable format
  export   Export capture to JSON lines or CSV
  filter   Filter capture and write to a new file
  stats    Show statistics about the capture

Use "epp-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

// newFlagSet creates a subcommand flag set with the shared filter flags.
func newFlagSet(name, synopsis string) (*flag.FlagSet, *commands.FilterOptions) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "epp-log %s - %s\n\nUsage:\n  epp-log %s [flags] <file.elog>\n\nFlags:\n", name, synopsis, name)
		fs.PrintDefaults()
	}

	var opts commands.FilterOptions
	fs.StringVar(&opts.ConnID, "conn-id", "", "Filter by connection ID")
	fs.StringVar(&opts.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
	fs.StringVar(&opts.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")
	fs.StringVar(&opts.Layer, "layer", "", "Filter by layer (transport, session)")
	fs.StringVar(&opts.Direction, "direction", "", "Filter by direction (in, out)")
	fs.StringVar(&opts.Category, "category", "", "Filter by category (message, state, error)")
	fs.StringVar(&opts.Transport, "transport", "", "Filter by transport (stream, http)")
	return fs, &opts
}

// parseArgs parses args and returns the capture path and filter.
func parseArgs(fs *flag.FlagSet, opts *commands.FilterOptions, args []string) (string, log.Filter) {
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}

	filter, err := commands.BuildFilter(*opts)
	if err != nil {
		fail(err)
	}
	return fs.Arg(0), filter
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func runView(args []string) {
	fs, opts := newFlagSet("view", "View capture in human-readable format")
	var view commands.ViewOptions
	fs.BoolVar(&view.Bodies, "bodies", false, "Print document bodies")

	path, filter := parseArgs(fs, opts, args)
	if err := commands.RunView(path, filter, view, os.Stdout); err != nil {
		fail(err)
	}
}

func runExport(args []string) {
	fs, opts := newFlagSet("export", "Export capture to JSON lines or CSV")
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")

	path, filter := parseArgs(fs, opts, args)
	if err := commands.RunExport(path, *format, *output, filter); err != nil {
		fail(err)
	}
}

func runFilter(args []string) {
	fs, opts := newFlagSet("filter", "Filter capture and write to a new file")
	output := fs.String("o", "", "Output file (required)")

	path, filter := parseArgs(fs, opts, args)
	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}
	if err := commands.RunFilter(path, *output, filter, os.Stdout); err != nil {
		fail(err)
	}
}

func runStats(args []string) {
	fs, opts := newFlagSet("stats", "Show statistics about the capture")

	path, filter := parseArgs(fs, opts, args)
	if err := commands.RunStats(path, filter, os.Stdout); err != nil {
		fail(err)
	}
}

package commands

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/eppkit/epp-go/pkg/log"
)

// FilterOptions holds the flag values shared by view, filter and export.
// Empty fields match every event.
type FilterOptions struct {
	ConnID    string
	TimeStart string
	TimeEnd   string
	Layer     string
	Direction string
	Category  string
	Transport string
}

var (
	layerNames = map[string]log.Layer{
		"transport": log.LayerTransport,
		"session":   log.LayerSession,
	}
	directionNames = map[string]log.Direction{
		"in":  log.DirectionIn,
		"out": log.DirectionOut,
	}
	categoryNames = map[string]log.Category{
		"message": log.CategoryMessage,
		"state":   log.CategoryState,
		"error":   log.CategoryError,
	}
	transportNames = map[string]log.TransportKind{
		"stream": log.TransportStream,
		"tcp":    log.TransportStream,
		"http":   log.TransportHTTP,
		"https":  log.TransportHTTP,
	}
)

// lookup resolves a case-insensitive flag value. Empty input yields nil.
func lookup[T any](flagName, value string, names map[string]T) (*T, error) {
	if value == "" {
		return nil, nil
	}
	v, ok := names[strings.ToLower(value)]
	if !ok {
		valid := make([]string, 0, len(names))
		for name := range names {
			valid = append(valid, name)
		}
		slices.Sort(valid)
		return nil, fmt.Errorf("invalid %s: %s (must be one of %s)", flagName, value, strings.Join(valid, ", "))
	}
	return &v, nil
}

func parseTime(flagName, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s format: %w", flagName, err)
	}
	return &t, nil
}

// BuildFilter parses opts into a log.Filter.
func BuildFilter(opts FilterOptions) (log.Filter, error) {
	filter := log.Filter{ConnectionID: opts.ConnID}
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	var err error
	filter.TimeStart, err = parseTime("time-start", opts.TimeStart)
	collect(err)
	filter.TimeEnd, err = parseTime("time-end", opts.TimeEnd)
	collect(err)
	filter.Layer, err = lookup("layer", opts.Layer, layerNames)
	collect(err)
	filter.Direction, err = lookup("direction", opts.Direction, directionNames)
	collect(err)
	filter.Category, err = lookup("category", opts.Category, categoryNames)
	collect(err)
	filter.Transport, err = lookup("transport", opts.Transport, transportNames)
	collect(err)

	return filter, errors.Join(errs...)
}

// RunFilter copies the events matching filter into a new capture file and
// reports the count on w.
func RunFilter(path, output string, filter log.Filter, w io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	logger, err := log.NewFileLogger(output)
	if err != nil {
		return fmt.Errorf("failed to create output logger: %w", err)
	}
	defer logger.Close()

	count := 0
	err = reader.Each(func(event log.Event) error {
		logger.Log(event)
		count++
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to read event: %w", err)
	}
	if dropped := logger.Dropped(); dropped > 0 {
		return fmt.Errorf("failed to write %d of %d events", dropped, count)
	}

	fmt.Fprintf(w, "Filtered %d events to %s\n", count, output)
	return nil
}

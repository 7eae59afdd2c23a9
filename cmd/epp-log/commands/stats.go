package commands

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/eppkit/epp-go/pkg/log"
)

// Stats holds aggregate statistics about a capture file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	EventsByTransport map[log.TransportKind]int
	Messages          map[log.MessageType]int
	StatusCodes       map[int]int
	BytesOut          int
	BytesIn           int
	Connections       map[string]*ConnectionStats
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// ConnectionStats holds statistics for a single connection.
type ConnectionStats struct {
	FirstSeen  time.Time
	LastSeen   time.Time
	Events     int
	Remote     string
	Transport  log.TransportKind
	Commands   int
	Responses  int
	TotalRTT   time.Duration
	TimedPairs int
	Errors     int
}

// AverageRTT returns the mean recorded response time, or 0.
func (c *ConnectionStats) AverageRTT() time.Duration {
	if c.TimedPairs == 0 {
		return 0
	}
	return c.TotalRTT / time.Duration(c.TimedPairs)
}

func newStats() *Stats {
	return &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		EventsByTransport: make(map[log.TransportKind]int),
		Messages:          make(map[log.MessageType]int),
		StatusCodes:       make(map[int]int),
		Connections:       make(map[string]*ConnectionStats),
	}
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++
	s.EventsByTransport[event.Transport]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	conn, ok := s.Connections[event.ConnectionID]
	if !ok {
		conn = &ConnectionStats{
			FirstSeen: event.Timestamp,
			LastSeen:  event.Timestamp,
			Remote:    event.RemoteAddr,
			Transport: event.Transport,
		}
		s.Connections[event.ConnectionID] = conn
	}
	conn.Events++
	if event.Timestamp.After(conn.LastSeen) {
		conn.LastSeen = event.Timestamp
	}

	if msg := event.Message; msg != nil {
		s.Messages[msg.Type]++
		if event.Direction == log.DirectionOut {
			s.BytesOut += msg.Size
		} else {
			s.BytesIn += msg.Size
		}
		switch msg.Type {
		case log.MessageTypeCommand:
			conn.Commands++
		case log.MessageTypeResponse:
			conn.Responses++
		}
		if msg.StatusCode != nil {
			s.StatusCodes[*msg.StatusCode]++
		}
		if msg.Elapsed != nil {
			conn.TotalRTT += *msg.Elapsed
			conn.TimedPairs++
		}
	}

	if event.Error != nil {
		s.Errors++
		conn.Errors++
		if event.Error.Code != nil {
			s.StatusCodes[*event.Error.Code]++
		}
	}
}

// CollectStats reads every event in the capture file matching filter.
func CollectStats(path string, filter log.Filter) (*Stats, error) {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := newStats()
	err = reader.Each(func(event log.Event) error {
		stats.add(event)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read event: %w", err)
	}
	return stats, nil
}

// RunStats analyzes the capture file and prints statistics.
func RunStats(path string, filter log.Filter, w io.Writer) error {
	stats, err := CollectStats(path, filter)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

// printCounts writes one "NAME: count" line per non-zero key, in order.
func printCounts[K interface {
	comparable
	fmt.Stringer
}](w io.Writer, title string, order []K, counts map[K]int) {
	fmt.Fprintln(w, title)
	for _, k := range order {
		if n := counts[k]; n > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", k.String()+":", n)
		}
	}
	fmt.Fprintln(w)
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== EPP Protocol Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		start, end := stats.TimeRange.Start, stats.TimeRange.End
		fmt.Fprintf(w, "Time Range: %s to %s\n", start.Format(time.RFC3339), end.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n\n", end.Sub(start).Round(time.Second))
	}

	fmt.Fprintf(w, "Total Events: %d\n\n", stats.TotalEvents)

	printCounts(w, "Events by Transport:",
		[]log.TransportKind{log.TransportStream, log.TransportHTTP, log.TransportUnknown}, stats.EventsByTransport)
	printCounts(w, "Events by Layer:",
		[]log.Layer{log.LayerTransport, log.LayerSession}, stats.EventsByLayer)
	printCounts(w, "Events by Category:",
		[]log.Category{log.CategoryMessage, log.CategoryState, log.CategoryError}, stats.EventsByCategory)
	printCounts(w, "Events by Direction:",
		[]log.Direction{log.DirectionIn, log.DirectionOut}, stats.EventsByDirection)

	if len(stats.Messages) > 0 {
		fmt.Fprintln(w, "Documents:")
		for _, typ := range []log.MessageType{log.MessageTypeGreeting, log.MessageTypeCommand, log.MessageTypeResponse} {
			if n := stats.Messages[typ]; n > 0 {
				fmt.Fprintf(w, "  %-12s %d\n", typ.String()+":", n)
			}
		}
		fmt.Fprintf(w, "  Bytes out:   %d\n  Bytes in:    %d\n\n", stats.BytesOut, stats.BytesIn)
	}

	if len(stats.StatusCodes) > 0 {
		fmt.Fprintln(w, "HTTP Status Codes:")
		for _, code := range slices.Sorted(maps.Keys(stats.StatusCodes)) {
			fmt.Fprintf(w, "  %-12d %d\n", code, stats.StatusCodes[code])
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Connections: %d\n", len(stats.Connections))
	ids := slices.SortedFunc(maps.Keys(stats.Connections), func(a, b string) int {
		return stats.Connections[a].FirstSeen.Compare(stats.Connections[b].FirstSeen)
	})
	if len(ids) > 0 {
		fmt.Fprintln(w)
	}
	for _, id := range ids {
		printConnection(w, id, stats.Connections[id])
	}

	if stats.Errors > 0 {
		fmt.Fprintf(w, "\nErrors: %d\n", stats.Errors)
	}
}

func printConnection(w io.Writer, id string, cs *ConnectionStats) {
	const indent = "           "
	fmt.Fprintf(w, "  [%s] %s %d events, duration %s\n",
		shortenConnID(id), cs.Transport, cs.Events, cs.LastSeen.Sub(cs.FirstSeen).Round(time.Millisecond))
	if cs.Remote != "" {
		fmt.Fprintf(w, "%sRemote: %s\n", indent, cs.Remote)
	}
	if cs.Commands > 0 || cs.Responses > 0 {
		fmt.Fprintf(w, "%sCommands: %d, Responses: %d\n", indent, cs.Commands, cs.Responses)
	}
	if rtt := cs.AverageRTT(); rtt > 0 {
		fmt.Fprintf(w, "%sAvg RTT: %s\n", indent, formatDuration(rtt))
	}
	if cs.Errors > 0 {
		fmt.Fprintf(w, "%sErrors: %d\n", indent, cs.Errors)
	}
}

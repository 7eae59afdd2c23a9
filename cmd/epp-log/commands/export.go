package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/eppkit/epp-go/pkg/log"
)

// record is the flattened export form of an event. Bodies are kept as text
// so XML stays readable in JSON.
type record struct {
	Timestamp    time.Time `json:"timestamp"`
	ConnectionID string    `json:"connection_id"`
	Transport    string    `json:"transport"`
	Remote       string    `json:"remote,omitempty"`
	Direction    string    `json:"direction"`
	Layer        string    `json:"layer"`
	Category     string    `json:"category"`
	Type         string    `json:"type"`
	Size         int       `json:"size,omitempty"`
	Status       *int      `json:"status,omitempty"`
	ElapsedMS    *float64  `json:"elapsed_ms,omitempty"`
	Body         string    `json:"body,omitempty"`
	Truncated    bool      `json:"truncated,omitempty"`
	OldState     string    `json:"old_state,omitempty"`
	NewState     string    `json:"new_state,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	Error        string    `json:"error,omitempty"`
}

func newRecord(event log.Event) record {
	r := record{
		Timestamp:    event.Timestamp.UTC(),
		ConnectionID: event.ConnectionID,
		Transport:    event.Transport.String(),
		Remote:       event.RemoteAddr,
		Direction:    event.Direction.String(),
		Layer:        event.Layer.String(),
		Category:     event.Category.String(),
		Type:         eventType(event),
	}

	switch {
	case event.Frame != nil:
		r.Size = event.Frame.Size
		r.Body = printable(event.Frame.Data)
		r.Truncated = event.Frame.Truncated
	case event.Message != nil:
		r.Size = event.Message.Size
		r.Status = event.Message.StatusCode
		if event.Message.Elapsed != nil {
			ms := float64(*event.Message.Elapsed) / float64(time.Millisecond)
			r.ElapsedMS = &ms
		}
		r.Body = printable(event.Message.Body)
		r.Truncated = event.Message.Truncated
	case event.StateChange != nil:
		r.OldState = event.StateChange.OldState
		r.NewState = event.StateChange.NewState
		r.Reason = event.StateChange.Reason
	case event.Error != nil:
		r.Status = event.Error.Code
		r.Error = event.Error.Message
		r.Reason = event.Error.Context
	}
	return r
}

// RunExport exports the events matching filter in the given format.
// An empty output writes to stdout.
func RunExport(path, format, output string, filter log.Filter) error {
	var export func(*log.Reader, io.Writer) error
	switch format {
	case "jsonl":
		export = exportJSONL
	case "csv":
		export = exportCSV
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}

	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	return export(reader, w)
}

func exportJSONL(reader *log.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	return reader.Each(func(event log.Event) error {
		if err := encoder.Encode(newRecord(event)); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
		return nil
	})
}

func exportCSV(reader *log.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)

	header := []string{"timestamp", "connection_id", "transport", "remote", "direction", "layer", "category", "type", "size", "status", "elapsed_ms"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	err := reader.Each(func(event log.Event) error {
		r := newRecord(event)
		row := []string{
			r.Timestamp.Format("2006-01-02T15:04:05.000000Z"),
			r.ConnectionID,
			r.Transport,
			r.Remote,
			r.Direction,
			r.Layer,
			r.Category,
			r.Type,
			"",
			"",
			"",
		}
		if r.Size > 0 {
			row[8] = strconv.Itoa(r.Size)
		}
		if r.Status != nil {
			row[9] = strconv.Itoa(*r.Status)
		}
		if r.ElapsedMS != nil {
			row[10] = strconv.FormatFloat(*r.ElapsedMS, 'f', 3, 64)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}

package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/eppkit/epp-go/pkg/log"
)

func TestFormatFrameEvent(t *testing.T) {
	event := sessionEvents()[2]

	var buf bytes.Buffer
	formatEvent(&buf, event, ViewOptions{Bodies: true})
	output := buf.String()

	for _, want := range []string{
		"2026-01-28T10:15:32.143456Z",
		"[conn:abc12345]",
		"OUT",
		"STREAM",
		"TRANSPORT",
		"Frame",
		"Size: 25 bytes",
		"<epp><hello/></epp>",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got:\n%s", want, output)
		}
	}
}

func TestFormatMessageBodies(t *testing.T) {
	event := sessionEvents()[4]

	var buf bytes.Buffer
	formatEvent(&buf, event, ViewOptions{})
	output := buf.String()

	if !strings.Contains(output, "RESPONSE") {
		t.Errorf("expected RESPONSE label, got: %s", output)
	}
	if !strings.Contains(output, "Status: 200") {
		t.Errorf("expected HTTP status, got: %s", output)
	}
	if !strings.Contains(output, "Duration: 42.000ms") {
		t.Errorf("expected duration, got: %s", output)
	}
	if strings.Contains(output, "<epp>ok</epp>") {
		t.Errorf("body printed without -bodies: %s", output)
	}

	buf.Reset()
	formatEvent(&buf, event, ViewOptions{Bodies: true})
	if !strings.Contains(buf.String(), "    <epp>ok</epp>") {
		t.Errorf("expected indented body, got: %s", buf.String())
	}
}

func TestFormatStateAndError(t *testing.T) {
	events := sessionEvents()

	var buf bytes.Buffer
	formatEvent(&buf, events[0], ViewOptions{})
	if !strings.Contains(buf.String(), "UNINITIALIZED -> CONNECTED") {
		t.Errorf("expected state transition, got: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "Remote: epp.registry.example:700") {
		t.Errorf("expected remote address, got: %s", buf.String())
	}

	buf.Reset()
	formatEvent(&buf, events[5], ViewOptions{})
	for _, want := range []string{"Error", "Code: 503", "Context: write"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("expected %q, got: %s", want, buf.String())
		}
	}
}

func TestPrintable(t *testing.T) {
	if got := printable([]byte("<epp/>")); got != "<epp/>" {
		t.Errorf("printable(text) = %q", got)
	}
	// "é" cut after its first byte, as a truncated capture would be.
	if got := printable([]byte("caf\xc3")); got != "caf" {
		t.Errorf("printable(cut) = %q", got)
	}
	if got := printable([]byte{0xff, 0xfe, 0xfd, 0xfc, 0xfb}); got != "fffefdfcfb" {
		t.Errorf("printable(binary) = %q", got)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Microsecond, "500.000us"},
		{42 * time.Millisecond, "42.000ms"},
		{1500 * time.Millisecond, "1.500s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%s) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestRunViewFiltered(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())

	httpKind := log.TransportHTTP
	var buf bytes.Buffer
	if err := RunView(path, log.Filter{Transport: &httpKind}, ViewOptions{}, &buf); err != nil {
		t.Fatalf("RunView: %v", err)
	}

	output := buf.String()
	if strings.Contains(output, "[conn:abc12345]") {
		t.Errorf("stream events should be filtered out: %s", output)
	}
	if got := strings.Count(output, "[conn:def67890]"); got != 3 {
		t.Errorf("expected 3 HTTP events, got %d:\n%s", got, output)
	}
}

func TestRunViewMissingFile(t *testing.T) {
	var buf bytes.Buffer
	if err := RunView("/nonexistent/x.elog", log.Filter{}, ViewOptions{}, &buf); err == nil {
		t.Error("expected error for missing file")
	}
}

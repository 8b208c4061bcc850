package logx

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestWriterEmitsStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "debug")

	log.Info("capture complete",
		String("mode", "m1"),
		Int("hour", 10),
		Float64("wait_s", 300),
		Duration("took", 1500*time.Millisecond),
	)

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if m["message"] != "capture complete" {
		t.Fatalf("message = %v", m["message"])
	}
	if m["mode"] != "m1" {
		t.Fatalf("mode = %v", m["mode"])
	}
	if m["hour"] != float64(10) {
		t.Fatalf("hour = %v", m["hour"])
	}
}

func TestWriterLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "warn")

	log.Debug("hidden")
	log.Info("hidden too")
	log.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("below-threshold events leaked: %s", out)
	}
	if !strings.Contains(out, "visible") {
		t.Fatalf("warn event missing: %s", out)
	}
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "info").With(String("svc", "camera"))

	log.Info("ready")
	if !strings.Contains(buf.String(), `"svc":"camera"`) {
		t.Fatalf("fixed field missing: %s", buf.String())
	}
}

func TestNopAndZeroLoggersAreSafe(t *testing.T) {
	var zero Logger
	zero.Info("no panic")
	if !zero.IsZero() {
		t.Fatal("zero value should report IsZero")
	}
	n := Nop()
	n.Error("still no panic", Err(nil))
	if n.IsZero() {
		t.Fatal("Nop is a real (discarding) logger, not a zero value")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{" INFO ", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"ERROR", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in, zerolog.InfoLevel); got != tt.want {
			t.Fatalf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFormatTelegramJSON(t *testing.T) {
	line := `{"level":"warn","time":"2024-06-15T10:00:00Z","message":"stop marker present; standing by","mode":"m1"}`
	got := formatTelegramJSON([]byte(line))
	if !strings.HasPrefix(got, "[WARN] stop marker present; standing by") {
		t.Fatalf("got %q", got)
	}
	if !strings.Contains(got, "mode=m1") {
		t.Fatalf("field missing: %q", got)
	}

	// Non-JSON input passes through trimmed.
	if got := formatTelegramJSON([]byte("  raw text\n")); got != "raw text" {
		t.Fatalf("raw passthrough = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdef", 0); got != "abcdef" {
		t.Fatalf("no limit: %q", got)
	}
	if got := truncate("abcdef", 3); got != "abc" {
		t.Fatalf("tiny limit: %q", got)
	}
	long := strings.Repeat("x", 100)
	got := truncate(long, 20)
	if len(got) != 20 || !strings.HasSuffix(got, "...") {
		t.Fatalf("truncated = %q", got)
	}
}

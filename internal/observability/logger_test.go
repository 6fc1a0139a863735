package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
)

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf, FormatJSON)
	l.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

	l.Error("user_failed", map[string]any{"user": "id:1", "error": errors.New("boom")})

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}

	want := map[string]any{
		"timestamp": "2025-06-01T12:00:00Z",
		"level":     "error",
		"message":   "user_failed",
		"user":      "id:1",
		"error":     "boom",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}
}

func TestTextLogger(t *testing.T) {
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	var buf bytes.Buffer
	l := NewLoggerTo(&buf, FormatText)
	l.now = func() time.Time { return time.Date(2025, 6, 1, 9, 5, 7, 0, time.UTC) }

	l.Warn("listing_truncated", map[string]any{"user": "id:7", "fetched": 3})

	got := strings.TrimSpace(buf.String())
	want := "[09:05:07] WARN  listing_truncated fetched=3 user=id:7"
	if got != want {
		t.Errorf("text line = %q, want %q", got, want)
	}
}

func TestUnknownFormatFallsBackToJSON(t *testing.T) {
	var buf bytes.Buffer
	NewLoggerTo(&buf, "yaml").Info("hello", nil)

	if !json.Valid(bytes.TrimSpace(buf.Bytes())) {
		t.Errorf("expected JSON output, got %q", buf.String())
	}
}

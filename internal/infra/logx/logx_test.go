package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestRedactionInStdlogWriter(t *testing.T) {
	var buf bytes.Buffer
	w := StdlogWriter(LevelDebug, &buf)
	SetMinLevel(LevelDebug)
	SetVerbose(false)
	RegisterSecret("secret123")

	_, err := w.Write([]byte("this contains secret123 and should be redacted\n"))
	if err != nil {
		t.Fatalf("write error: %v", err)
	}
	got := buf.String()
	if strings.Contains(got, "secret123") {
		t.Fatalf("expected secret to be redacted, got: %s", got)
	}
	if !strings.Contains(got, "[REDACTED]") {
		t.Fatalf("expected [REDACTED] marker, got: %s", got)
	}
}

func TestTruncationWhenNotVerbose(t *testing.T) {
	var buf bytes.Buffer
	w := StdlogWriter(LevelDebug, &buf)
	SetMinLevel(LevelDebug)
	SetVerbose(false)

	long := strings.Repeat("a", 6000)
	if _, err := w.Write([]byte(long + "\n")); err != nil {
		t.Fatalf("write error: %v", err)
	}
	if !strings.Contains(buf.String(), "truncated") {
		t.Fatalf("expected truncation indicator, got: %s", buf.String())
	}
}

func TestNoTruncationWhenVerbose(t *testing.T) {
	var buf bytes.Buffer
	w := StdlogWriter(LevelDebug, &buf)
	SetMinLevel(LevelDebug)
	SetVerbose(true)
	defer SetVerbose(false)

	long := strings.Repeat("b", 4000)
	if _, err := w.Write([]byte(long + "\n")); err != nil {
		t.Fatalf("write error: %v", err)
	}
	if strings.Contains(buf.String(), "truncated") {
		t.Fatalf("did not expect truncation, got: %s", buf.String())
	}
}

func TestEventFieldsAndLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(nil)
	SetMinLevel(LevelWarn)
	RegisterSecret("tok-abc")

	Event(LevelInfo, "dropped", nil)
	Event(LevelWarn, "page skipped", Fields{"page": "Home", "error": errors.New("bad tok-abc"), "index": 2})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected exactly one line, got %d: %q", len(lines), buf.String())
	}
	var e struct {
		Level  string         `json:"level"`
		Msg    string         `json:"msg"`
		Fields map[string]any `json:"fields"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &e); err != nil {
		t.Fatalf("invalid json line: %v", err)
	}
	if e.Level != "warn" || e.Msg != "page skipped" {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if e.Fields["page"] != "Home" || e.Fields["error"] != "bad [REDACTED]" {
		t.Fatalf("unexpected fields: %v", e.Fields)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{"debug": LevelDebug, "INFO": LevelInfo, " error ": LevelError, "": LevelWarn, "bogus": LevelWarn}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func newBufLogger(t *testing.T, level, format string) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l, err := New(Options{Level: level, Format: format, Output: &buf})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	return l, &buf
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"":      LevelInfo,
		"debug": LevelDebug,
		"INFO":  LevelInfo,
		"warn":  LevelWarn,
		"error": LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil {
			t.Errorf("ParseLevel(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestParseFormat(t *testing.T) {
	for _, f := range []string{"", "text", "json", "logfmt", "JSON"} {
		if _, err := ParseFormat(f); err != nil {
			t.Errorf("ParseFormat(%q): %v", f, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestLogger_JSON(t *testing.T) {
	l, buf := newBufLogger(t, "debug", "json")

	l.Debug("environment created", "environment", "work")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("output is not JSON: %v: %s", err, buf.String())
	}
	if entry["level"] != "debug" {
		t.Errorf("expected debug level, got %v", entry["level"])
	}
	if entry["msg"] != "environment created" {
		t.Errorf("unexpected message %v", entry["msg"])
	}
	if entry["environment"] != "work" {
		t.Errorf("expected field, got %v", entry["environment"])
	}
}

func TestLogger_DebugFiltered(t *testing.T) {
	l, buf := newBufLogger(t, "info", "text")

	l.Debug("hidden")

	if buf.Len() > 0 {
		t.Errorf("expected no output for debug when level is info, got: %s", buf.String())
	}
}

func TestLogger_Warn(t *testing.T) {
	l, buf := newBufLogger(t, "info", "logfmt")

	l.Warn("metadata unreadable", "environment", "work")

	out := buf.String()
	if !strings.Contains(out, "level=warn") {
		t.Errorf("expected warn level, got: %s", out)
	}
	if !strings.Contains(out, "environment=work") {
		t.Errorf("expected field, got: %s", out)
	}
}

func TestWithFields(t *testing.T) {
	l, buf := newBufLogger(t, "info", "logfmt")

	WithFields(l, map[string]any{"b": 2, "a": 1}).Info("x")

	out := buf.String()
	if strings.Index(out, "a=1") > strings.Index(out, "b=2") {
		t.Errorf("fields should be sorted: %s", out)
	}
}

func TestGlobal(t *testing.T) {
	old := Global()
	defer SetGlobal(old)

	l, buf := newBufLogger(t, "debug", "logfmt")
	SetGlobal(l)

	Debug("d")
	Info("i")
	Warn("w")
	Error("e")

	out := buf.String()
	for _, want := range []string{"msg=d", "msg=i", "msg=w", "msg=e"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s in %s", want, out)
		}
	}
}

func TestDiscard(t *testing.T) {
	Discard().Error("nothing")
}

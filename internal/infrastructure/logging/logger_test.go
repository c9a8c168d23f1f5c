package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/nerrad567/vicare-bridge/internal/infrastructure/config"
)

func decodeRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not a JSON record: %v (%q)", err, buf.String())
	}
	return rec
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewWithWriter_JSONRecord(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, "1.2.3", &buf)
	log.Info("poll cycle complete", "devices", 2)

	rec := decodeRecord(t, &buf)
	checks := map[string]any{
		"msg":     "poll cycle complete",
		"service": serviceName,
		"version": "1.2.3",
		"devices": float64(2),
	}
	for k, want := range checks {
		if rec[k] != want {
			t.Errorf("%s = %v, want %v", k, rec[k], want)
		}
	}
}

func TestNewWithWriter_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(config.LoggingConfig{Level: "info", Format: "TEXT"}, "v", &buf)
	log.Info("hello")

	out := buf.String()
	if !strings.Contains(out, "msg=hello") || !strings.Contains(out, "service="+serviceName) {
		t.Errorf("unexpected text output: %q", out)
	}
}

func TestNewWithWriter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(config.LoggingConfig{Level: "warn"}, "v", &buf)
	log.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info record written at warn level: %q", buf.String())
	}
	log.Warn("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Error("warn record missing")
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	parent := NewWithWriter(config.LoggingConfig{}, "v", &buf)
	child := parent.With("device_id", "inst/gw/0")
	if child == parent {
		t.Fatal("With returned the parent logger")
	}

	child.Info("probe")
	if rec := decodeRecord(t, &buf); rec["device_id"] != "inst/gw/0" {
		t.Errorf("device_id = %v", rec["device_id"])
	}
}

func TestLogger_DebugEnabled(t *testing.T) {
	var buf bytes.Buffer
	if NewWithWriter(config.LoggingConfig{Level: "info"}, "v", &buf).DebugEnabled() {
		t.Error("info logger reports debug enabled")
	}
	if !NewWithWriter(config.LoggingConfig{Level: "debug"}, "v", &buf).DebugEnabled() {
		t.Error("debug logger reports debug disabled")
	}
}

func TestDestination(t *testing.T) {
	for _, out := range []string{"stdout", "stderr", "discard", ""} {
		if destination(out) == nil {
			t.Errorf("destination(%q) = nil", out)
		}
	}
	if Default() == nil || Discard() == nil {
		t.Fatal("constructor returned nil")
	}
}

package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoggerFromContextAddsSessionID(t *testing.T) {
	prev := logger
	defer func() { logger = prev; slog.SetDefault(prev) }()

	var buf bytes.Buffer
	Init(&buf, slog.LevelDebug)

	ctx := WithSessionID(context.Background(), "s-123")
	LoggerFromContext(ctx).Info("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if line["session_id"] != "s-123" || line["msg"] != "hello" {
		t.Errorf("unexpected log line %v", line)
	}
}

func TestLoggerFromContextWithoutSessionID(t *testing.T) {
	if LoggerFromContext(context.Background()) != logger {
		t.Error("expected process logger when no session id is set")
	}
	if SessionID(context.Background()) != "" {
		t.Error("expected empty session id")
	}
}

func TestInitRespectsLevel(t *testing.T) {
	prev := logger
	defer func() { logger = prev; slog.SetDefault(prev) }()

	var buf bytes.Buffer
	Init(&buf, slog.LevelWarn)
	WithFields("k", "v").Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info should be filtered at warn level, got %q", buf.String())
	}
	WithFields("k", "v").Warn("kept")
	if !bytes.Contains(buf.Bytes(), []byte(`"k":"v"`)) {
		t.Errorf("expected field in output, got %q", buf.String())
	}
}

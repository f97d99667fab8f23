// Package observability holds the process logger and helpers for scoping it
// to a request or session.
package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

type ctxKey string

const ctxKeySessionID ctxKey = "session_id"

var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// Logger returns the process logger.
func Logger() *slog.Logger {
	return logger
}

// Init replaces the process logger with a JSON logger writing to w at level.
// It also becomes the slog default.
func Init(w io.Writer, level slog.Level) *slog.Logger {
	logger = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps debug, info, warn and error to a slog level. The empty
// string is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// WithFields returns a logger with additional fields.
func WithFields(kv ...any) *slog.Logger {
	return logger.With(kv...)
}

// WithSessionID stores a session_id in the context.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeySessionID, id)
}

// SessionID returns the session_id stored in ctx, if any.
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeySessionID).(string)
	return id
}

// LoggerFromContext adds session_id if present.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	id := SessionID(ctx)
	if id == "" {
		return logger
	}
	return logger.With("session_id", id)
}

// Discard is a logger that drops everything. Tests use it to keep output quiet.
var Discard = slog.New(slog.NewTextHandler(io.Discard, nil))

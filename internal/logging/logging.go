// Package logging configures slog for the server and worker.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New builds a text or JSON logger writing to w at the given level.
// Unknown formats fall back to text and unknown levels to info.
func New(w io.Writer, format, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Setup installs the process-wide default logger on stdout.
func Setup(format, level string) *slog.Logger {
	logger := New(os.Stdout, format, level)
	slog.SetDefault(logger)
	return logger
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

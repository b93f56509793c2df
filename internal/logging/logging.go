// Package logging configures the process-wide slog logger. Subsystems derive
// their own child via logger.With("component", ...), so the root carries only
// the service name.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Setup creates the root *slog.Logger for splitnest, sets it as the default,
// and returns it. The level parameter accepts "debug", "info", "warn" or
// "error" (case-insensitive) and falls back to info when unrecognized.
func Setup(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: lvl,
	})
	logger := slog.New(handler).With("service", "splitnest")
	slog.SetDefault(logger)
	return logger
}

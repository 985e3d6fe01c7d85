// Package obslog constructs the single process-wide logger a CLI's main
// threads explicitly into the components that need to log. Library code
// (canon, receipt, merkle, pack) never logs; only engine and CLI layers do.
package obslog

import (
	"log/slog"
	"os"
	"strings"
)

// New builds a structured JSON logger at the given level name ("DEBUG",
// "INFO", "WARN", "ERROR"; case-insensitive, defaults to INFO on empty or
// unrecognized input).
func New(levelName string) *slog.Logger {
	level := parseLevel(levelName)
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

func parseLevel(name string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

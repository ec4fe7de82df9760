// Package logging configures colored structured logging with tint.
//
// Usage:
//
//	logging.Setup("")                      // level from LOG_LEVEL, default info
//	logging.SetupWithLevel(slog.LevelDebug)
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Setup installs the default logger at the named level ("debug", "info",
// "warn", "error"). An empty name falls back to LOG_LEVEL.
func Setup(level string) *slog.Logger {
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	return SetupWithLevel(ParseLevel(level))
}

// SetupWithLevel installs the default logger at level.
func SetupWithLevel(level slog.Level) *slog.Logger {
	l := New(os.Stderr, level)
	slog.SetDefault(l)
	return l
}

// New builds a tint logger writing to w.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		AddSource:  level == slog.LevelDebug,
	}))
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

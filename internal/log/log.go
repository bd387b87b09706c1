// Package log sets up the kiosk's process-wide slog logger. Components
// carry *slog.Logger values tagged through For; the package-level
// helpers exist for the thin startup and shutdown paths that have no
// component of their own.
package log

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	logger *slog.Logger
	once   sync.Once
)

// Init builds the process logger at the given level and installs it as
// the slog default. Repeat calls are no-ops. JSON output is keyed off
// GO_ENV=production so tablet consoles stay readable in development.
func Init(level string) {
	once.Do(func() {
		opts := &slog.HandlerOptions{Level: parseLevel(level)}
		if os.Getenv("GO_ENV") == "production" {
			logger = slog.New(slog.NewJSONHandler(os.Stdout, opts))
		} else {
			logger = slog.New(slog.NewTextHandler(os.Stdout, opts))
		}
		slog.SetDefault(logger)
	})
}

// parseLevel maps a config string to a slog level. Unknown values mean
// info rather than an error: a misspelled LOG_LEVEL must not take the
// kiosk down.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// L returns the process logger, initializing it at info level if Init
// was never called.
func L() *slog.Logger {
	if logger == nil {
		Init("info")
	}
	return logger
}

// For returns the process logger tagged for one kiosk component, e.g.
// "orchestrator" or "speech.channel".
func For(component string) *slog.Logger {
	return L().With("component", component)
}

// Warn logs on the process logger.
func Warn(msg string, args ...any) {
	L().Warn(msg, args...)
}

package logging

import (
	"log/slog"
	"os"
	"strings"
)

var Logger *slog.Logger

func init() {
	Logger = New(os.Getenv("LOG_LEVEL"))
}

// New builds a JSON logger at the given level ("debug", "info", "warn",
// "error"). An empty or unknown level falls back to info.
func New(level string) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	})
	return slog.New(handler)
}

// SetLevel replaces the process logger with one at the given level.
func SetLevel(level string) {
	Logger = New(level)
}

func WithComponent(component string) *slog.Logger {
	return Logger.With("component", component)
}

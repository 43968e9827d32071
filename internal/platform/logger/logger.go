package logger

import (
	"log/slog"
	"os"
)

// New returns the root structured logger. JSON on stdout so log shippers can
// ingest it without a parsing config.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

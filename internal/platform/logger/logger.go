package logger

import (
	"log/slog"
	"os"
)

// New returns a JSON slog logger at the given level. Services receive the
// logger via injection so tests can pass a discard handler.
func New(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

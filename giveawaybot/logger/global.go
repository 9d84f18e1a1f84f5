package logger

import (
	"log/slog"
	"time"
)

// LogTick logs one scheduler pass
func LogTick(due int, duration time.Duration) {
	slog.Info("Scheduler tick completed",
		slog.String("type", "tick"),
		slog.Int("due", due),
		slog.Duration("took", duration))
}

// LogError logs error events
func LogError(msg string, err error, attrs ...any) {
	baseAttrs := []any{
		slog.String("type", "error"),
		slog.Any("error", err),
	}
	slog.Error(msg, append(baseAttrs, attrs...)...)
}

// Package logging настраивает slog и пишет итоги шагов обработки.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// New создаёт логгер в stdout. level: debug, info, warn, error;
// format: json или text.
func New(level string, format string) *slog.Logger {
	return NewWithWriter(os.Stdout, level, format)
}

// NewWithWriter то же, что New, но пишет в w.
func NewWithWriter(w io.Writer, level string, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
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

// LogStepComplete пишет завершённый шаг: detect, match, estimate или compose.
func LogStepComplete(logger *slog.Logger, session, step string, duration time.Duration, attrs ...any) {
	args := append([]any{
		"session", session,
		"step", step,
		"duration_ms", duration.Milliseconds(),
	}, attrs...)
	logger.Info("step completed", args...)
}

// LogStepError пишет неудачный шаг. Прогон продолжается без его результата.
func LogStepError(logger *slog.Logger, session, step string, duration time.Duration, err error, attrs ...any) {
	args := append([]any{
		"session", session,
		"step", step,
		"duration_ms", duration.Milliseconds(),
		"error", err.Error(),
	}, attrs...)
	logger.Warn("step failed", args...)
}

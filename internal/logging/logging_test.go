package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		require.Equal(t, want, parseLevel(in), in)
	}
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info", "json")

	logger.Debug("hidden")
	LogStepComplete(logger, "s1", "match", 1500*time.Millisecond, "pair", "0-1")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "step completed", rec["msg"])
	require.Equal(t, "s1", rec["session"])
	require.Equal(t, "match", rec["step"])
	require.Equal(t, float64(1500), rec["duration_ms"])
	require.Equal(t, "0-1", rec["pair"])
}

func TestNewWithWriter_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "debug", "text")

	LogStepError(logger, "s2", "estimate", time.Millisecond, errors.New("degenerate fit"), "threshold", 5.0)
	out := buf.String()
	require.Contains(t, out, "level=WARN")
	require.Contains(t, out, `msg="step failed"`)
	require.Contains(t, out, `error="degenerate fit"`)
	require.Contains(t, out, "threshold=5")
}

package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"ERROR":     slog.LevelError,
		"error":     slog.LevelError,
		"WARNING":   slog.LevelWarn,
		"WARN":      slog.LevelWarn,
		"INFO":      slog.LevelInfo,
		"DEBUG":     slog.LevelDebug,
		"  DEBUG  ": slog.LevelDebug,
		"INVALID":   slog.LevelInfo,
		"":          slog.LevelInfo,
	}
	for input, want := range cases {
		assert.Equal(t, want, parseLogLevel(input), "level %q", input)
	}
}

func TestNewLoggerToFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "WARNING")

	logger.Info("quiet", "key", "value")
	logger.Warn("loud", "product_no", "P-1")

	out := buf.String()
	assert.NotContains(t, out, "quiet")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "product_no=P-1")
}

func TestNewFileLoggerTeesToFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "integration.log")

	logger, closer, err := NewFileLogger(logFile, "INFO")
	require.NoError(t, err)
	logger.Info("sync run starting", "run_id", "abc123")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "run_id=abc123")
}

// Package logging sets up structured logging with log/slog.
//
// Runs log as logfmt key=value lines to stdout, optionally teed to a
// log file, with a run_id attribute attached by the caller so the
// lines of one run can be correlated.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// NewLogger creates a logger writing to stdout at the given level.
// Supported levels (case-insensitive): ERROR, WARNING, INFO, DEBUG.
// Invalid or empty levels default to INFO.
func NewLogger(level string) *slog.Logger {
	return NewLoggerTo(os.Stdout, level)
}

// NewLoggerTo creates a logger writing logfmt lines to w.
func NewLoggerTo(w io.Writer, level string) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: parseLogLevel(level),
	})
	return slog.New(handler)
}

// NewFileLogger creates a logger that writes both to stdout and to
// logFile, creating parent directories as needed. The returned closer
// releases the file handle.
func NewFileLogger(logFile, level string) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return NewLoggerTo(io.MultiWriter(os.Stdout, f), level), f, nil
}

// parseLogLevel converts a string log level to slog.Level. Returns
// slog.LevelInfo for invalid or empty levels.
func parseLogLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "ERROR":
		return slog.LevelError
	case "WARNING", "WARN":
		return slog.LevelWarn
	case "INFO":
		return slog.LevelInfo
	case "DEBUG":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

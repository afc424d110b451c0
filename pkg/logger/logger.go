// Package logger provides structured logging for the insights pipeline.
//
// Diagnostics go to a rotated log file under ~/.insights/logs so they
// never interleave with the progress output printed to stdout. Setting
// LOG_LEVEL=debug raises verbosity; INSIGHTS_LOG_STDERR=1 mirrors log
// lines to stderr.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	logDirName  = ".insights/logs"
	logFileName = "insights.log"
	maxSizeMB   = 5
	maxAgeDays  = 14
	maxBackups  = 10
)

var (
	log  *slog.Logger
	once sync.Once
)

// Init sets up the log file and handler. Safe to call more than once;
// only the first call has any effect.
func Init() error {
	var initErr error
	once.Do(func() {
		home, err := os.UserHomeDir()
		if err != nil {
			initErr = fmt.Errorf("failed to get home directory: %w", err)
			return
		}

		logDir := filepath.Join(home, logDirName)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			initErr = fmt.Errorf("failed to create log directory: %w", err)
			return
		}

		rotator := &lumberjack.Logger{
			Filename:   filepath.Join(logDir, logFileName),
			MaxSize:    maxSizeMB,
			MaxAge:     maxAgeDays,
			MaxBackups: maxBackups,
			Compress:   true,
			LocalTime:  true,
		}

		var out io.Writer = rotator
		if os.Getenv("INSIGHTS_LOG_STDERR") == "1" {
			out = io.MultiWriter(rotator, os.Stderr)
		}

		handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level: levelFromEnv(),
		})
		log = slog.New(handler)
		slog.SetDefault(log)
	})
	return initErr
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
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

// get returns the active logger, falling back to slog's default when
// Init was never called (e.g. in tests).
func get() *slog.Logger {
	if log != nil {
		return log
	}
	return slog.Default()
}

// Debug logs a debug message with structured fields
func Debug(msg string, args ...any) {
	get().Debug(msg, args...)
}

// Info logs an informational message with structured fields
func Info(msg string, args ...any) {
	get().Info(msg, args...)
}

// Warn logs a warning message with structured fields
func Warn(msg string, args ...any) {
	get().Warn(msg, args...)
}

// Error logs an error message with structured fields
func Error(msg string, args ...any) {
	get().Error(msg, args...)
}

// Fatal logs an error message and exits with status 1
func Fatal(msg string, args ...any) {
	get().Error(msg, args...)
	os.Exit(1)
}

// SetOutputForTest redirects log output to a custom writer for testing.
// Returns a cleanup function that restores the previous logger.
func SetOutputForTest(w io.Writer) func() {
	prev := log
	log = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return func() { log = prev }
}

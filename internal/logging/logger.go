// Package logging provides centralized logging functionality for the application.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug for detailed troubleshooting information.
	LevelDebug LogLevel = "debug"
	// LevelInfo for general operational information.
	LevelInfo LogLevel = "info"
	// LevelWarn for potentially harmful situations.
	LevelWarn LogLevel = "warn"
	// LevelError for error events that might still allow the application to continue.
	LevelError LogLevel = "error"
)

// LogFormat selects the slog handler.
type LogFormat string

const (
	// FormatText writes logfmt-style key=value lines.
	FormatText LogFormat = "text"
	// FormatJSON writes one JSON object per line.
	FormatJSON LogFormat = "json"
)

var defaultLogger *slog.Logger

func init() {
	level := LogLevel(strings.ToLower(os.Getenv("LOG_LEVEL")))
	format := LogFormat(strings.ToLower(os.Getenv("LOG_FORMAT")))

	// stdout carries chat replies in watch mode, so logs go to stderr
	SetupLogger(os.Stderr, level, format)
}

// ParseLevel maps a LogLevel to its slog level. Unknown values map to info.
func ParseLevel(level LogLevel) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger configures the logger with the specified output, level and format.
func SetupLogger(w io.Writer, level LogLevel, format LogFormat) {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}

	var handler slog.Handler
	if format == FormatJSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

// Debug logs a message at debug level.
func Debug(msg string, args ...any) {
	defaultLogger.Debug(msg, args...)
}

// Info logs a message at info level.
func Info(msg string, args ...any) {
	defaultLogger.Info(msg, args...)
}

// Warn logs a message at warn level.
func Warn(msg string, args ...any) {
	defaultLogger.Warn(msg, args...)
}

// Error logs a message at error level.
func Error(msg string, args ...any) {
	defaultLogger.Error(msg, args...)
}

// GetLogger returns the default logger.
func GetLogger() *slog.Logger {
	return defaultLogger
}

// With returns a logger that adds the given attributes to every record,
// e.g. logging.With("channel", ch).
func With(args ...any) *slog.Logger {
	return defaultLogger.With(args...)
}

// MaskSensitive hides a secret such as the tracker API key. Only whether it
// is set is shown.
func MaskSensitive(value string) string {
	if value == "" {
		return "<not set>"
	}
	return "<set>"
}

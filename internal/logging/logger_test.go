package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		name     string
		level    LogLevel
		expected slog.Level
	}{
		{name: "Debug level", level: LevelDebug, expected: slog.LevelDebug},
		{name: "Info level", level: LevelInfo, expected: slog.LevelInfo},
		{name: "Warn level", level: LevelWarn, expected: slog.LevelWarn},
		{name: "Error level", level: LevelError, expected: slog.LevelError},
		{name: "Empty defaults to Info", level: "", expected: slog.LevelInfo},
		{name: "Invalid level defaults to Info", level: LogLevel("invalid"), expected: slog.LevelInfo},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParseLevel(tc.level))
		})
	}
}

func TestMaskSensitive(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "Empty string", input: "", expected: "<not set>"},
		{name: "Short string", input: "abc", expected: "<set>"},
		{name: "Exactly 4 characters", input: "abcd", expected: "<set>"},
		{name: "Redmine API key", input: "0123456789abcdef0123456789abcdef01234567", expected: "<set>"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, MaskSensitive(tc.input))
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	originalLogger := defaultLogger
	defer func() {
		defaultLogger = originalLogger
		slog.SetDefault(originalLogger)
	}()

	var buf bytes.Buffer
	SetupLogger(&buf, LevelWarn, FormatText)

	Debug("snarfed ids", "ids", "1 2")
	Info("announced issue", "issue_id", "42")
	assert.Empty(t, buf.String())

	Warn("unexpected status", "status", 500)
	Error("unable to parse tracker data", "issue_id", "42")

	output := buf.String()
	assert.Contains(t, output, "level=WARN")
	assert.Contains(t, output, "level=ERROR")
	assert.Contains(t, output, "issue_id=42")
}

func TestJSONFormat(t *testing.T) {
	originalLogger := defaultLogger
	defer func() {
		defaultLogger = originalLogger
		slog.SetDefault(originalLogger)
	}()

	var buf bytes.Buffer
	SetupLogger(&buf, LevelDebug, FormatJSON)

	With("channel", "#pulp").Info("announced issue", "issue_id", "42")

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &record))
	assert.Equal(t, "INFO", record["level"])
	assert.Equal(t, "announced issue", record["msg"])
	assert.Equal(t, "#pulp", record["channel"])
	assert.Equal(t, "42", record["issue_id"])
}

func TestGetLogger(t *testing.T) {
	require.NotNil(t, GetLogger())
}

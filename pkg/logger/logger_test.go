package logger

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNew_AllLogLevels(t *testing.T) {
	testCases := []struct {
		level         string
		expectedLevel zerolog.Level
		name          string
	}{
		{"debug", zerolog.DebugLevel, "debug"},
		{"info", zerolog.InfoLevel, "info"},
		{"warn", zerolog.WarnLevel, "warn"},
		{"error", zerolog.ErrorLevel, "error"},
		{"", zerolog.InfoLevel, "empty defaults to info"},
		{"unknown", zerolog.InfoLevel, "unknown defaults to info"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			_ = NewWithWriter(Config{Level: tc.level}, &buf)
			assert.Equal(t, tc.expectedLevel, zerolog.GlobalLevel())
		})
	}
}

func TestNewWithWriter_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(Config{Level: "info"}, &buf)

	log.Info().Str("component", "engine").Msg("generation finished")

	out := buf.String()
	assert.Contains(t, out, `"message":"generation finished"`)
	assert.Contains(t, out, `"component":"engine"`)
	assert.Contains(t, out, `"caller"`)
	assert.Equal(t, time.RFC3339, zerolog.TimeFieldFormat)
}

func TestNewWithWriter_Pretty(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(Config{Level: "info", Pretty: true}, &buf)

	log.Info().Msg("pretty message")

	out := buf.String()
	assert.Contains(t, out, "pretty message")
	assert.False(t, strings.HasPrefix(out, "{"), "console writer should not emit JSON")
}

func TestNewWithWriter_ErrorLevelFiltersLower(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(Config{Level: "error"}, &buf)

	log.Info().Msg("should not appear")
	assert.NotContains(t, buf.String(), "should not appear")

	log.Error().Msg("should appear")
	assert.Contains(t, buf.String(), "should appear")

	// Restore the default level for other tests in the binary
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

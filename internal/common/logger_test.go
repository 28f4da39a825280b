package common

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetupLoggerRejectsUnknownFormat(t *testing.T) {
	err := SetupLogger(slog.LevelInfo, "yaml")
	assert.ErrorIs(t, err, ErrInvalidConfig)

	assert.NoError(t, SetupLogger(slog.LevelInfo, "console"))
	assert.NoError(t, SetupLogger(slog.LevelInfo, "json"))
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLogLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLogLevel("info"))
	assert.Equal(t, slog.LevelInfo, ParseLogLevel("verbose"))
}

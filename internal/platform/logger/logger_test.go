package logger

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FORMAT", "")

	cfg := FromEnv()
	assert.Equal(t, slog.LevelInfo, cfg.Level)
	assert.Equal(t, "json", cfg.Format)
}

func TestFromEnv_ParsesLevelAndFormat(t *testing.T) {
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_FORMAT", "text")

	cfg := FromEnv()
	assert.Equal(t, slog.LevelDebug, cfg.Level)
	assert.Equal(t, "text", cfg.Format)
}

func TestFromEnv_IgnoresUnknownValues(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose")
	t.Setenv("LOG_FORMAT", "xml")

	cfg := FromEnv()
	assert.Equal(t, slog.LevelInfo, cfg.Level)
	assert.Equal(t, "json", cfg.Format)
}

package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// TestParseLevel accepts zap level names and defaults empty input to info.
func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"":       zapcore.InfoLevel,
		"debug":  zapcore.DebugLevel,
		" WARN ": zapcore.WarnLevel,
		"error":  zapcore.ErrorLevel,
	}
	for input, want := range cases {
		got, err := ParseLevel(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseLevel("chatty")
	assert.Error(t, err)
}

// TestNewRejectsUnknownLevel fails before any sink is opened.
func TestNewRejectsUnknownLevel(t *testing.T) {
	logger, err := New(Options{Level: "loud"})
	assert.Error(t, err)
	assert.Nil(t, logger)
}

// TestNewWritesToFile tees entries at or above the level into the log file.
func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "whisper-stream.log")
	logger, err := New(Options{Level: "warn", File: path})
	require.NoError(t, err)

	logger.Info("dropped entry")
	logger.Warn("kept entry")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "kept entry")
	assert.NotContains(t, string(data), "dropped entry")
}

// TestNewRotatorDefaults fills rotation limits left at zero.
func TestNewRotatorDefaults(t *testing.T) {
	r := newRotator(Options{File: "x.log", MaxBackups: 7})
	assert.Equal(t, 10, r.MaxSize)
	assert.Equal(t, 7, r.MaxBackups)
	assert.Equal(t, 28, r.MaxAge)
}

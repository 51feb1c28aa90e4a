package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreGlobal(t *testing.T) {
	t.Helper()
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
}

func TestNew(t *testing.T) {
	restoreGlobal(t)

	t.Run("create logger with console output", func(t *testing.T) {
		logger, err := New(Config{Level: "info", Console: true})
		require.NoError(t, err)
		assert.NotNil(t, logger)
		assert.NoError(t, logger.Close())
	})

	t.Run("create logger with file output", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "test.log")

		logger, err := New(Config{Level: "debug", File: logFile})
		require.NoError(t, err)

		logger.Info().Str("tool", "ffmpeg.execute").Msg("test message")
		require.NoError(t, logger.Close())

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(content), `"tool":"ffmpeg.execute"`)
		assert.Contains(t, string(content), "test message")
	})

	t.Run("file output rotates when max size is set", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "test.log")

		logger, err := New(Config{Level: "info", File: logFile, MaxSize: 1})
		require.NoError(t, err)
		defer logger.Close()

		_, ok := logger.closer.(*RotatingWriter)
		assert.True(t, ok)
	})

	t.Run("redaction applies to file output", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "test.log")

		logger, err := New(Config{Level: "info", File: logFile, Redaction: true})
		require.NoError(t, err)
		assert.NotNil(t, logger.redactor)

		logger.Info().Strs("args", []string{"-i", "rtmp://u:p@host/app"}).Msg("Process started")
		require.NoError(t, logger.Close())

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(content), "rtmp://[REDACTED]@host/app")
		assert.NotContains(t, string(content), "u:p@")
	})

	t.Run("sets global logger", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "global.log")

		logger, err := New(Config{Level: "warn", File: logFile})
		require.NoError(t, err)

		log.Info().Msg("filtered")
		log.Warn().Msg("kept")
		require.NoError(t, logger.Close())

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.NotContains(t, string(content), "filtered")
		assert.Contains(t, string(content), "kept")
	})

	t.Run("unwritable directory fails", func(t *testing.T) {
		dir := t.TempDir()
		blocker := filepath.Join(dir, "file")
		require.NoError(t, os.WriteFile(blocker, nil, 0644))

		_, err := New(Config{File: filepath.Join(blocker, "x.log")})
		assert.Error(t, err)
	})
}

func TestLoggerMethods(t *testing.T) {
	restoreGlobal(t)

	logger, err := New(Config{Level: "debug", File: filepath.Join(t.TempDir(), "test.log")})
	require.NoError(t, err)
	defer logger.Close()

	for name, event := range map[string]*zerolog.Event{
		"debug": logger.Debug(),
		"info":  logger.Info(),
		"warn":  logger.Warn(),
		"error": logger.Error(),
	} {
		t.Run(name, func(t *testing.T) {
			require.NotNil(t, event)
			event.Msg(name + " message")
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.True(t, cfg.Console)
	assert.False(t, cfg.Pretty)
	assert.True(t, cfg.Redaction)
	assert.Equal(t, 100, cfg.MaxSize)
	assert.Equal(t, 7, cfg.MaxAge)
	assert.True(t, cfg.Compress)
}

func TestLevelParsing(t *testing.T) {
	restoreGlobal(t)

	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, err := New(Config{Level: tt.level})
			require.NoError(t, err)
			defer logger.Close()

			assert.Equal(t, tt.want, logger.GetZerolog().GetLevel())

			child := logger.With().Str("component", "test").Logger()
			assert.Equal(t, tt.want, child.GetLevel())
		})
	}
}

package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "0.0.0.0:8765", cfg.Server.ListenAddr)
	assert.Equal(t, int64(1<<20), cfg.Server.MaxBodyBytes)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "ffmpeg", cfg.FFmpeg.BinaryPath)
	assert.Empty(t, cfg.FFmpeg.MinVersion)
	assert.Equal(t, 120*time.Second, cfg.Policy.DefaultTimeout)
	assert.Equal(t, 600*time.Second, cfg.Policy.MaxTimeout)
	assert.Equal(t, []string{"file", "pipe"}, cfg.Policy.AllowedProtocols)
	assert.Contains(t, cfg.Policy.DeniedFilters, "movie")
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Observability.Metrics)
	assert.Empty(t, cfg.Observability.AuditFile)

	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.FFmpeg.MinVersion = ">= 6.0"
		cfg.Policy.AllowedFlags = []string{"-i", "-c:v"}

		assert.NoError(t, cfg.Validate())
	})

	t.Run("reports every invalid field", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Server.ListenAddr = "no-port"
		cfg.FFmpeg.BinaryPath = " "
		cfg.FFmpeg.MinVersion = "not a constraint"
		cfg.Policy.DefaultTimeout = time.Hour
		cfg.Policy.MaxOutputBytes = 0
		cfg.Logging.Level = "loud"

		err := cfg.Validate()
		require.Error(t, err)

		msg := err.Error()
		assert.Contains(t, msg, "server.listen_addr")
		assert.Contains(t, msg, "ffmpeg.binary_path")
		assert.Contains(t, msg, "ffmpeg.min_version")
		assert.Contains(t, msg, "policy.default_timeout")
		assert.Contains(t, msg, "policy.max_output_bytes")
		assert.Contains(t, msg, "invalid log level")
		assert.Len(t, strings.Split(msg, "\n"), 6)
	})

	t.Run("invalid limits", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(*Config)
			field  string
		}{
			{"body limit", func(c *Config) { c.Server.MaxBodyBytes = 0 }, "server.max_body_bytes"},
			{"websocket rate", func(c *Config) { c.Server.WebSocket.RequestsPerMinute = -1 }, "server.websocket.requests_per_minute"},
			{"websocket idle", func(c *Config) { c.Server.WebSocket.IdleTimeout = -time.Second }, "server.websocket.idle_timeout"},
			{"workdir root", func(c *Config) { c.Policy.WorkDirRoot = "" }, "policy.workdir_root"},
			{"max timeout", func(c *Config) { c.Policy.MaxTimeout = 0 }, "policy.max_timeout"},
			{"kill grace", func(c *Config) { c.Policy.KillGrace = -time.Second }, "policy.kill_grace"},
			{"concurrency", func(c *Config) { c.Policy.MaxConcurrent = 0 }, "policy.max_concurrent"},
			{"arg count", func(c *Config) { c.Policy.MaxArgs = 0 }, "policy.max_args"},
			{"arg bytes", func(c *Config) { c.Policy.MaxArgBytes = -1 }, "policy.max_arg_bytes"},
			{"denied flag spelling", func(c *Config) { c.Policy.DeniedFlags = []string{"safe"} }, "policy.denied_flags"},
			{"protocol name", func(c *Config) { c.Policy.AllowedProtocols = []string{"file", "bad scheme"} }, "policy.allowed_protocols"},
			{"log size", func(c *Config) { c.Logging.MaxSize = -1 }, "logging.max_size_mb"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				cfg := DefaultConfig()
				tt.mutate(cfg)

				err := cfg.Validate()
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.field)
			})
		}
	})
}

func TestToPolicyConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FFmpeg.BinaryPath = "/opt/ffmpeg/bin/ffmpeg"
	cfg.FFmpeg.EnvPassthrough = []string{"LD_LIBRARY_PATH"}
	cfg.Policy.WorkDirRoot = "/srv/media"
	cfg.Policy.KillGrace = 5 * time.Second

	pc := cfg.ToPolicyConfig()

	assert.Equal(t, "/opt/ffmpeg/bin/ffmpeg", pc.BinaryPath)
	assert.Equal(t, "/srv/media", pc.WorkDirRoot)
	assert.Equal(t, 5*time.Second, pc.KillGrace)
	assert.Equal(t, cfg.Policy.MaxOutputBytes, pc.MaxOutputBytes)
	assert.Equal(t, []string{"LD_LIBRARY_PATH"}, pc.EnvPassthrough)
	assert.Equal(t, cfg.Policy.DeniedFilters, pc.DeniedFilters)

	// the policy copy does not alias the config slices
	pc.DeniedFilters[0] = "changed"
	assert.NotEqual(t, "changed", cfg.Policy.DeniedFilters[0])
}

func TestConfigString(t *testing.T) {
	cfg := DefaultConfig()
	str := cfg.String()

	assert.Contains(t, str, `"listen_addr": "0.0.0.0:8765"`)
	assert.Contains(t, str, `"workdir_root"`)
}

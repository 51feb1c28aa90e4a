package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. FFMPEG_MCP_SERVER_LISTEN_ADDR
const EnvPrefix = "FFMPEG_MCP"

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// DefaultPath returns $HOME/.ffmpeg-mcp/config.json
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ffmpeg-mcp", "config.json")
}

// Load reads the config file when present, applies environment overrides
// and falls back to defaults for everything else
func (l *Loader) Load() (*Config, error) {
	configPath := l.GetConfigPath()

	v := l.newViper(configPath)

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// Save writes cfg to the config path in the format implied by its extension
func (l *Loader) Save(cfg *Config) error {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return fmt.Errorf("failed to get home directory")
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Round-trip through YAML so durations are written as "30s" rather than nanoseconds
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	var settings map[string]interface{}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	v := viper.New()
	v.SetConfigType(configType(configPath))
	for key, value := range settings {
		v.Set(key, value)
	}

	if err := v.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}
	return DefaultPath()
}

func (l *Loader) newViper(configPath string) *viper.Viper {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType(configType(configPath))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about
	setDefaults(v, DefaultConfig())

	return v
}

func configType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	default:
		return "json"
	}
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("server.listen_addr", cfg.Server.ListenAddr)
	v.SetDefault("server.max_body_bytes", cfg.Server.MaxBodyBytes)
	v.SetDefault("server.read_timeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.shutdown_timeout", cfg.Server.ShutdownTimeout)
	v.SetDefault("server.websocket.requests_per_minute", cfg.Server.WebSocket.RequestsPerMinute)
	v.SetDefault("server.websocket.max_concurrent", cfg.Server.WebSocket.MaxConcurrent)
	v.SetDefault("server.websocket.idle_timeout", cfg.Server.WebSocket.IdleTimeout)

	v.SetDefault("ffmpeg.binary_path", cfg.FFmpeg.BinaryPath)
	v.SetDefault("ffmpeg.min_version", cfg.FFmpeg.MinVersion)
	v.SetDefault("ffmpeg.env_passthrough", cfg.FFmpeg.EnvPassthrough)

	v.SetDefault("policy.workdir_root", cfg.Policy.WorkDirRoot)
	v.SetDefault("policy.default_timeout", cfg.Policy.DefaultTimeout)
	v.SetDefault("policy.max_timeout", cfg.Policy.MaxTimeout)
	v.SetDefault("policy.kill_grace", cfg.Policy.KillGrace)
	v.SetDefault("policy.max_output_bytes", cfg.Policy.MaxOutputBytes)
	v.SetDefault("policy.max_concurrent", cfg.Policy.MaxConcurrent)
	v.SetDefault("policy.max_args", cfg.Policy.MaxArgs)
	v.SetDefault("policy.max_arg_bytes", cfg.Policy.MaxArgBytes)
	v.SetDefault("policy.allowed_flags", cfg.Policy.AllowedFlags)
	v.SetDefault("policy.denied_flags", cfg.Policy.DeniedFlags)
	v.SetDefault("policy.allowed_protocols", cfg.Policy.AllowedProtocols)
	v.SetDefault("policy.denied_filters", cfg.Policy.DeniedFilters)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.console", cfg.Logging.Console)
	v.SetDefault("logging.pretty", cfg.Logging.Pretty)
	v.SetDefault("logging.redaction", cfg.Logging.Redaction)
	v.SetDefault("logging.max_size_mb", cfg.Logging.MaxSize)
	v.SetDefault("logging.max_age_days", cfg.Logging.MaxAge)
	v.SetDefault("logging.compress", cfg.Logging.Compress)

	v.SetDefault("observability.metrics", cfg.Observability.Metrics)
	v.SetDefault("observability.audit_file", cfg.Observability.AuditFile)
	v.SetDefault("observability.tracing", cfg.Observability.Tracing)
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	loader := NewLoader(configPath)
	return loader.Load()
}

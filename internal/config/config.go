package config

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/harun/ffmpeg-mcp/internal/logger"
	"github.com/harun/ffmpeg-mcp/pkg/policy"
)

// Config represents the main ffmpeg-mcp configuration
type Config struct {
	// Server transport settings
	Server ServerConfig `json:"server" mapstructure:"server" yaml:"server"`

	// External binary settings
	FFmpeg FFmpegConfig `json:"ffmpeg" mapstructure:"ffmpeg" yaml:"ffmpeg"`

	// Execution policy
	Policy PolicyConfig `json:"policy" mapstructure:"policy" yaml:"policy"`

	// Logging
	Logging logger.Config `json:"logging" mapstructure:"logging" yaml:"logging"`

	// Metrics, audit trail and tracing
	Observability ObservabilityConfig `json:"observability" mapstructure:"observability" yaml:"observability"`
}

// ServerConfig holds the HTTP and WebSocket listener configuration
type ServerConfig struct {
	ListenAddr      string          `json:"listen_addr" mapstructure:"listen_addr" yaml:"listen_addr"`
	MaxBodyBytes    int64           `json:"max_body_bytes" mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	ReadTimeout     time.Duration   `json:"read_timeout" mapstructure:"read_timeout" yaml:"read_timeout"`
	ShutdownTimeout time.Duration   `json:"shutdown_timeout" mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	WebSocket       WebSocketConfig `json:"websocket" mapstructure:"websocket" yaml:"websocket"`
}

// WebSocketConfig holds per-connection limits
type WebSocketConfig struct {
	RequestsPerMinute int `json:"requests_per_minute" mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	MaxConcurrent     int `json:"max_concurrent" mapstructure:"max_concurrent" yaml:"max_concurrent"`

	// IdleTimeout disconnects clients silent for longer; zero keeps them
	IdleTimeout time.Duration `json:"idle_timeout" mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

// FFmpegConfig describes the binary the server runs
type FFmpegConfig struct {
	BinaryPath string `json:"binary_path" mapstructure:"binary_path" yaml:"binary_path"`

	// MinVersion is an optional semver constraint checked at startup, e.g. ">= 6.0"
	MinVersion string `json:"min_version" mapstructure:"min_version" yaml:"min_version"`

	EnvPassthrough []string `json:"env_passthrough" mapstructure:"env_passthrough" yaml:"env_passthrough"`
}

// PolicyConfig holds the execution limits and the argument allow/deny lists
type PolicyConfig struct {
	WorkDirRoot      string        `json:"workdir_root" mapstructure:"workdir_root" yaml:"workdir_root"`
	DefaultTimeout   time.Duration `json:"default_timeout" mapstructure:"default_timeout" yaml:"default_timeout"`
	MaxTimeout       time.Duration `json:"max_timeout" mapstructure:"max_timeout" yaml:"max_timeout"`
	KillGrace        time.Duration `json:"kill_grace" mapstructure:"kill_grace" yaml:"kill_grace"`
	MaxOutputBytes   int           `json:"max_output_bytes" mapstructure:"max_output_bytes" yaml:"max_output_bytes"`
	MaxConcurrent    int           `json:"max_concurrent" mapstructure:"max_concurrent" yaml:"max_concurrent"`
	MaxArgs          int           `json:"max_args" mapstructure:"max_args" yaml:"max_args"`
	MaxArgBytes      int           `json:"max_arg_bytes" mapstructure:"max_arg_bytes" yaml:"max_arg_bytes"`
	AllowedFlags     []string      `json:"allowed_flags" mapstructure:"allowed_flags" yaml:"allowed_flags"`
	DeniedFlags      []string      `json:"denied_flags" mapstructure:"denied_flags" yaml:"denied_flags"`
	AllowedProtocols []string      `json:"allowed_protocols" mapstructure:"allowed_protocols" yaml:"allowed_protocols"`
	DeniedFilters    []string      `json:"denied_filters" mapstructure:"denied_filters" yaml:"denied_filters"`
}

// ObservabilityConfig toggles the optional observability outputs
type ObservabilityConfig struct {
	Metrics   bool   `json:"metrics" mapstructure:"metrics" yaml:"metrics"`
	AuditFile string `json:"audit_file" mapstructure:"audit_file" yaml:"audit_file"` // empty disables the audit trail
	Tracing   bool   `json:"tracing" mapstructure:"tracing" yaml:"tracing"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	p := policy.DefaultConfig()

	return &Config{
		Server: ServerConfig{
			ListenAddr:      "0.0.0.0:8765",
			MaxBodyBytes:    1 << 20,
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			WebSocket: WebSocketConfig{
				RequestsPerMinute: 120,
				MaxConcurrent:     4,
				IdleTimeout:       10 * time.Minute,
			},
		},
		FFmpeg: FFmpegConfig{
			BinaryPath:     p.BinaryPath,
			EnvPassthrough: []string{},
		},
		Policy: PolicyConfig{
			WorkDirRoot:      p.WorkDirRoot,
			DefaultTimeout:   p.DefaultTimeout,
			MaxTimeout:       p.MaxTimeout,
			KillGrace:        p.KillGrace,
			MaxOutputBytes:   p.MaxOutputBytes,
			MaxConcurrent:    p.MaxConcurrent,
			MaxArgs:          p.MaxArgs,
			MaxArgBytes:      p.MaxArgBytes,
			AllowedFlags:     []string{},
			DeniedFlags:      p.DeniedFlags,
			AllowedProtocols: p.AllowedProtocols,
			DeniedFilters:    p.DeniedFilters,
		},
		Logging: logger.DefaultConfig(),
		Observability: ObservabilityConfig{
			Metrics: true,
		},
	}
}

// ToPolicyConfig merges the ffmpeg and policy sections into a policy.Config
func (c *Config) ToPolicyConfig() policy.Config {
	return policy.Config{
		BinaryPath:       c.FFmpeg.BinaryPath,
		WorkDirRoot:      c.Policy.WorkDirRoot,
		DefaultTimeout:   c.Policy.DefaultTimeout,
		MaxTimeout:       c.Policy.MaxTimeout,
		KillGrace:        c.Policy.KillGrace,
		MaxOutputBytes:   c.Policy.MaxOutputBytes,
		MaxConcurrent:    c.Policy.MaxConcurrent,
		MaxArgs:          c.Policy.MaxArgs,
		MaxArgBytes:      c.Policy.MaxArgBytes,
		AllowedFlags:     append([]string(nil), c.Policy.AllowedFlags...),
		DeniedFlags:      append([]string(nil), c.Policy.DeniedFlags...),
		AllowedProtocols: append([]string(nil), c.Policy.AllowedProtocols...),
		DeniedFilters:    append([]string(nil), c.Policy.DeniedFilters...),
		EnvPassthrough:   append([]string(nil), c.FFmpeg.EnvPassthrough...),
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks the whole configuration and reports every invalid field
func (c *Config) Validate() error {
	return errors.Join(NewValidator().ValidateConfig(c)...)
}

package config

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

var schemePattern = regexp.MustCompile(`^[a-z][a-z0-9+.\-]*$`)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateListenAddr validates a host:port listen address
func (v *Validator) ValidateListenAddr(addr string) error {
	if addr == "" {
		return fmt.Errorf("listen address cannot be empty")
	}

	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}

	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("invalid listen port %q", port)
	}

	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	if level == "" {
		return nil // Use default
	}

	validLevels := []string{"trace", "debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateMinVersion validates an optional semver constraint
func (v *Validator) ValidateMinVersion(constraint string) error {
	if strings.TrimSpace(constraint) == "" {
		return nil
	}

	if _, err := semver.NewConstraint(constraint); err != nil {
		return fmt.Errorf("invalid ffmpeg.min_version %q: %w", constraint, err)
	}
	return nil
}

// ValidateProtocols validates URL scheme names
func (v *Validator) ValidateProtocols(protocols []string) error {
	for _, p := range protocols {
		if !schemePattern.MatchString(strings.ToLower(p)) {
			return fmt.Errorf("invalid protocol name: %q", p)
		}
	}
	return nil
}

// ValidateFlags validates that every entry is spelled as a flag
func (v *Validator) ValidateFlags(field string, flags []string) error {
	for _, f := range flags {
		if len(f) < 2 || f[0] != '-' {
			return fmt.Errorf("%s: %q is not a flag (must start with -)", field, f)
		}
	}
	return nil
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	// Server
	if err := v.ValidateListenAddr(cfg.Server.ListenAddr); err != nil {
		errors = append(errors, fmt.Errorf("server.listen_addr: %w", err))
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		errors = append(errors, fmt.Errorf("server.max_body_bytes must be > 0"))
	}
	if cfg.Server.ReadTimeout < 0 {
		errors = append(errors, fmt.Errorf("server.read_timeout must be >= 0"))
	}
	if cfg.Server.ShutdownTimeout < 0 {
		errors = append(errors, fmt.Errorf("server.shutdown_timeout must be >= 0"))
	}
	if cfg.Server.WebSocket.RequestsPerMinute < 0 {
		errors = append(errors, fmt.Errorf("server.websocket.requests_per_minute must be >= 0"))
	}
	if cfg.Server.WebSocket.MaxConcurrent < 0 {
		errors = append(errors, fmt.Errorf("server.websocket.max_concurrent must be >= 0"))
	}
	if cfg.Server.WebSocket.IdleTimeout < 0 {
		errors = append(errors, fmt.Errorf("server.websocket.idle_timeout must be >= 0"))
	}

	// FFmpeg
	if strings.TrimSpace(cfg.FFmpeg.BinaryPath) == "" {
		errors = append(errors, fmt.Errorf("ffmpeg.binary_path is required"))
	}
	if err := v.ValidateMinVersion(cfg.FFmpeg.MinVersion); err != nil {
		errors = append(errors, err)
	}

	// Policy
	p := cfg.Policy
	if strings.TrimSpace(p.WorkDirRoot) == "" {
		errors = append(errors, fmt.Errorf("policy.workdir_root is required"))
	}
	if p.DefaultTimeout <= 0 {
		errors = append(errors, fmt.Errorf("policy.default_timeout must be > 0"))
	}
	if p.MaxTimeout <= 0 {
		errors = append(errors, fmt.Errorf("policy.max_timeout must be > 0"))
	}
	if p.DefaultTimeout > 0 && p.MaxTimeout > 0 && p.DefaultTimeout > p.MaxTimeout {
		errors = append(errors, fmt.Errorf("policy.default_timeout (%s) exceeds policy.max_timeout (%s)", p.DefaultTimeout, p.MaxTimeout))
	}
	if p.KillGrace < 0 {
		errors = append(errors, fmt.Errorf("policy.kill_grace must be >= 0"))
	}
	if p.MaxOutputBytes <= 0 {
		errors = append(errors, fmt.Errorf("policy.max_output_bytes must be > 0"))
	}
	if p.MaxConcurrent <= 0 {
		errors = append(errors, fmt.Errorf("policy.max_concurrent must be > 0"))
	}
	if p.MaxArgs <= 0 {
		errors = append(errors, fmt.Errorf("policy.max_args must be > 0"))
	}
	if p.MaxArgBytes <= 0 {
		errors = append(errors, fmt.Errorf("policy.max_arg_bytes must be > 0"))
	}
	if err := v.ValidateFlags("policy.allowed_flags", p.AllowedFlags); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateFlags("policy.denied_flags", p.DeniedFlags); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateProtocols(p.AllowedProtocols); err != nil {
		errors = append(errors, fmt.Errorf("policy.allowed_protocols: %w", err))
	}

	// Logging
	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}
	if cfg.Logging.MaxSize < 0 {
		errors = append(errors, fmt.Errorf("logging.max_size_mb must be >= 0"))
	}
	if cfg.Logging.MaxAge < 0 {
		errors = append(errors, fmt.Errorf("logging.max_age_days must be >= 0"))
	}

	return errors
}

// Package policy holds the immutable execution policy shared by the command
// validator and the process executor.
//
// A Policy is built once at startup from a Config and never mutated; every
// accessor returns a copy or a scalar so concurrent requests can read it
// without locking.
package policy

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Config is the plain, serializable form of the execution policy
type Config struct {
	// BinaryPath is the external binary to run (absolute path or PATH lookup)
	BinaryPath string `json:"binary_path" mapstructure:"binary_path"`

	// WorkDirRoot is the only directory tree processes may read or write
	WorkDirRoot string `json:"workdir_root" mapstructure:"workdir_root"`

	// DefaultTimeout applies when a request does not ask for one
	DefaultTimeout time.Duration `json:"default_timeout" mapstructure:"default_timeout"`

	// MaxTimeout caps any requested timeout
	MaxTimeout time.Duration `json:"max_timeout" mapstructure:"max_timeout"`

	// KillGrace is the wait between SIGTERM and SIGKILL
	KillGrace time.Duration `json:"kill_grace" mapstructure:"kill_grace"`

	// MaxOutputBytes caps captured bytes per stream
	MaxOutputBytes int `json:"max_output_bytes" mapstructure:"max_output_bytes"`

	// MaxConcurrent caps simultaneously running processes
	MaxConcurrent int `json:"max_concurrent" mapstructure:"max_concurrent"`

	// MaxArgs caps the argument count
	MaxArgs int `json:"max_args" mapstructure:"max_args"`

	// MaxArgBytes caps the summed byte length of all arguments
	MaxArgBytes int `json:"max_arg_bytes" mapstructure:"max_arg_bytes"`

	// AllowedFlags, when non-empty, is the exhaustive list of accepted flags
	AllowedFlags []string `json:"allowed_flags" mapstructure:"allowed_flags"`

	// DeniedFlags are always rejected (overrides AllowedFlags)
	DeniedFlags []string `json:"denied_flags" mapstructure:"denied_flags"`

	// AllowedProtocols lists URL schemes accepted for inputs and outputs
	AllowedProtocols []string `json:"allowed_protocols" mapstructure:"allowed_protocols"`

	// DeniedFilters lists filter names rejected inside filtergraphs
	DeniedFilters []string `json:"denied_filters" mapstructure:"denied_filters"`

	// EnvPassthrough lists parent environment variables handed to the process
	EnvPassthrough []string `json:"env_passthrough" mapstructure:"env_passthrough"`
}

// DefaultConfig returns the default policy configuration
func DefaultConfig() Config {
	return Config{
		BinaryPath:     "ffmpeg",
		WorkDirRoot:    ".",
		DefaultTimeout: 120 * time.Second,
		MaxTimeout:     600 * time.Second,
		KillGrace:      2 * time.Second,
		MaxOutputBytes: 1 << 20,
		MaxConcurrent:  4,
		MaxArgs:        256,
		MaxArgBytes:    64 << 10,
		DeniedFlags: []string{
			"-filter_script",
			"-filter_complex_script",
			"-protocol_whitelist",
			"-protocol_blacklist",
			"-safe",
			"-dump_attachment",
		},
		AllowedProtocols: []string{"file", "pipe"},
		DeniedFilters: []string{
			"movie",
			"amovie",
			"sendcmd",
			"asendcmd",
			"zmq",
			"azmq",
			"ladspa",
			"lv2",
			"frei0r",
			"frei0r_src",
		},
	}
}

// ValidateConfig validates a policy configuration without touching the filesystem
func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.BinaryPath) == "" {
		return ErrInvalidBinary
	}

	if strings.TrimSpace(cfg.WorkDirRoot) == "" {
		return ErrInvalidRoot
	}

	if cfg.DefaultTimeout <= 0 || cfg.MaxTimeout <= 0 || cfg.DefaultTimeout > cfg.MaxTimeout {
		return ErrInvalidTimeout
	}

	if cfg.KillGrace < 0 {
		return ErrInvalidKillGrace
	}

	if cfg.MaxOutputBytes <= 0 {
		return ErrInvalidOutputLimit
	}

	if cfg.MaxConcurrent <= 0 {
		return ErrInvalidConcurrency
	}

	if cfg.MaxArgs <= 0 || cfg.MaxArgBytes <= 0 {
		return ErrInvalidArgLimit
	}

	return nil
}

// Policy is the validated, immutable execution policy
type Policy struct {
	cfg        Config
	binaryPath string
	root       string
	allowed    map[string]struct{}
	denied     map[string]struct{}
	protocols  map[string]struct{}
	filters    map[string]struct{}
}

// New validates cfg, resolves the binary and the root directory, and returns
// the immutable policy. Any error here is fatal for the server.
func New(cfg Config) (*Policy, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}

	binary, err := exec.LookPath(cfg.BinaryPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBinaryNotFound, cfg.BinaryPath, err)
	}
	if abs, err := filepath.Abs(binary); err == nil {
		binary = abs
	}

	root, err := resolveRoot(cfg.WorkDirRoot)
	if err != nil {
		return nil, err
	}

	p := &Policy{
		cfg:        cloneConfig(cfg),
		binaryPath: binary,
		root:       root,
		allowed:    flagSet(cfg.AllowedFlags),
		denied:     flagSet(cfg.DeniedFlags),
		protocols:  lowerSet(cfg.AllowedProtocols),
		filters:    lowerSet(cfg.DeniedFilters),
	}
	p.cfg.WorkDirRoot = root

	return p, nil
}

func resolveRoot(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}

	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidRoot, dir, err)
	}

	info, err := os.Stat(real)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidRoot, dir, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrInvalidRoot, dir)
	}

	return real, nil
}

// BinaryPath returns the resolved absolute path of the external binary
func (p *Policy) BinaryPath() string { return p.binaryPath }

// Root returns the resolved working-directory root
func (p *Policy) Root() string { return p.root }

// DefaultTimeout returns the timeout used when a request omits one
func (p *Policy) DefaultTimeout() time.Duration { return p.cfg.DefaultTimeout }

// MaxTimeout returns the timeout ceiling
func (p *Policy) MaxTimeout() time.Duration { return p.cfg.MaxTimeout }

// KillGrace returns the SIGTERM to SIGKILL delay
func (p *Policy) KillGrace() time.Duration { return p.cfg.KillGrace }

// MaxOutputBytes returns the capture cap per stream
func (p *Policy) MaxOutputBytes() int { return p.cfg.MaxOutputBytes }

// MaxConcurrent returns the admission cap
func (p *Policy) MaxConcurrent() int { return p.cfg.MaxConcurrent }

// MaxArgs returns the argument count cap
func (p *Policy) MaxArgs() int { return p.cfg.MaxArgs }

// MaxArgBytes returns the total argument size cap
func (p *Policy) MaxArgBytes() int { return p.cfg.MaxArgBytes }

// EnvPassthrough returns the environment variable names handed to the process
func (p *Policy) EnvPassthrough() []string {
	return append([]string(nil), p.cfg.EnvPassthrough...)
}

// Config returns a copy of the configuration the policy was built from,
// with the root replaced by its resolved form.
func (p *Policy) Config() Config {
	return cloneConfig(p.cfg)
}

// FlagPermitted reports whether a flag (stream specifiers ignored) may be used.
// The deny list wins over the allow list; an empty allow list permits every
// flag that is not denied.
func (p *Policy) FlagPermitted(flag string) bool {
	name := NormalizeFlag(flag)

	if _, denied := p.denied[name]; denied {
		return false
	}

	if len(p.allowed) == 0 {
		return true
	}

	_, ok := p.allowed[name]
	return ok
}

// ProtocolAllowed reports whether a URL scheme may be used for inputs or outputs
func (p *Policy) ProtocolAllowed(scheme string) bool {
	_, ok := p.protocols[strings.ToLower(scheme)]
	return ok
}

// FilterDenied reports whether a filter name is rejected inside filtergraphs
func (p *Policy) FilterDenied(name string) bool {
	_, ok := p.filters[strings.ToLower(name)]
	return ok
}

// NormalizeFlag strips stream specifiers and ensures a single leading dash:
// "-c:v" and "c:v" both become "-c".
func NormalizeFlag(flag string) string {
	name := strings.TrimSpace(flag)
	if idx := strings.IndexByte(name, ':'); idx >= 0 {
		name = name[:idx]
	}
	return "-" + strings.TrimLeft(name, "-")
}

func flagSet(flags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(flags))
	for _, f := range flags {
		if strings.TrimSpace(f) == "" {
			continue
		}
		set[NormalizeFlag(f)] = struct{}{}
	}
	return set
}

func lowerSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		set[v] = struct{}{}
	}
	return set
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.AllowedFlags = append([]string(nil), cfg.AllowedFlags...)
	out.DeniedFlags = append([]string(nil), cfg.DeniedFlags...)
	out.AllowedProtocols = append([]string(nil), cfg.AllowedProtocols...)
	out.DeniedFilters = append([]string(nil), cfg.DeniedFilters...)
	out.EnvPassthrough = append([]string(nil), cfg.EnvPassthrough...)
	return out
}

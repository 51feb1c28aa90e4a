// Package validator turns untrusted tool-call arguments into a SafeArgs value
// the executor can run.
//
// Checks run in a fixed order and the first failure wins:
//
//  1. argument count and total size
//  2. element hygiene (empty, shell-only, control characters)
//  3. working directory, paths and option values stay inside the root
//  4. flags, URL schemes and filtergraphs that read content by reference
//  5. timeout defaulting and clamping
package validator

import (
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/harun/ffmpeg-mcp/pkg/policy"
)

// Request is the raw input of one execution
type Request struct {
	// Args is the argument vector after the binary name
	Args []string

	// WorkingDir is the process cwd; empty means the policy root
	WorkingDir string

	// Timeout is the requested wall-clock limit; zero means the default
	Timeout time.Duration
}

// SafeArgs is an argument vector that passed every policy check. The zero
// value is not runnable; only Validate produces usable values.
type SafeArgs struct {
	argv      []string
	dir       string
	timeout   time.Duration
	requested time.Duration
	clamped   bool
	checked   bool
}

// Argv returns a copy of the literal argument vector
func (s SafeArgs) Argv() []string { return append([]string(nil), s.argv...) }

// Dir returns the resolved working directory
func (s SafeArgs) Dir() string { return s.dir }

// Timeout returns the effective timeout
func (s SafeArgs) Timeout() time.Duration { return s.timeout }

// Requested returns the timeout the caller asked for (zero if none)
func (s SafeArgs) Requested() time.Duration { return s.requested }

// Clamped reports whether the requested timeout was capped
func (s SafeArgs) Clamped() bool { return s.clamped }

// Checked reports whether the value was produced by Validate
func (s SafeArgs) Checked() bool { return s.checked }

// Validator applies a policy to execution requests
type Validator struct {
	policy *policy.Policy
}

// New creates a validator bound to an immutable policy
func New(p *policy.Policy) *Validator {
	return &Validator{policy: p}
}

// Policy returns the policy the validator enforces
func (v *Validator) Policy() *policy.Policy {
	return v.policy
}

var embeddedURL = regexp.MustCompile(`([A-Za-z][A-Za-z0-9+.\-]+)://`)

// Validate checks req and returns the safe vector, or a *ValidationError
// describing the first violation.
func (v *Validator) Validate(req Request) (SafeArgs, error) {
	if err := v.checkSize(req.Args); err != nil {
		return SafeArgs{}, err
	}

	if err := checkHygiene(req.Args); err != nil {
		return SafeArgs{}, err
	}

	tokens := tokenize(req.Args)

	dir, err := v.checkWorkingDir(req.WorkingDir)
	if err != nil {
		return SafeArgs{}, err
	}

	if err := v.checkPaths(tokens, dir); err != nil {
		return SafeArgs{}, err
	}

	if err := v.checkReferences(tokens); err != nil {
		return SafeArgs{}, err
	}

	timeout, clamped := v.effectiveTimeout(req.Timeout)

	return SafeArgs{
		argv:      append([]string(nil), req.Args...),
		dir:       dir,
		timeout:   timeout,
		requested: req.Timeout,
		clamped:   clamped,
		checked:   true,
	}, nil
}

func (v *Validator) checkSize(args []string) error {
	if len(args) == 0 {
		return reject(ReasonSizeLimit, -1, "", "at least one argument is required")
	}
	if len(args) > v.policy.MaxArgs() {
		return reject(ReasonSizeLimit, -1, "", "%d arguments exceed the limit of %d", len(args), v.policy.MaxArgs())
	}

	total := 0
	for _, a := range args {
		total += len(a)
	}
	if total > v.policy.MaxArgBytes() {
		return reject(ReasonSizeLimit, -1, "", "%d argument bytes exceed the limit of %d", total, v.policy.MaxArgBytes())
	}

	return nil
}

func checkHygiene(args []string) error {
	for i, a := range args {
		if strings.TrimSpace(a) == "" {
			return reject(ReasonEmptyArgument, i, a, "argument is empty")
		}
		if shellOnly(a) {
			return reject(ReasonShellOperator, i, a, "argument is a shell operator")
		}
		if strings.ContainsAny(a, "\x00\r\n") {
			return reject(ReasonInvalidCharacter, i, a, "argument contains a control character")
		}
	}
	return nil
}

func (v *Validator) checkWorkingDir(dir string) (string, error) {
	root := v.policy.Root()
	if strings.TrimSpace(dir) == "" {
		return root, nil
	}

	resolved, ok := resolveWithin(root, root, dir)
	if !ok {
		return "", reject(ReasonPathEscape, -1, dir, "working directory %q is outside the allowed root", dir)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", reject(ReasonInvalidWorkingDir, -1, dir, "working directory %q does not exist", dir)
	}
	if !info.IsDir() {
		return "", reject(ReasonInvalidWorkingDir, -1, dir, "working directory %q is not a directory", dir)
	}

	return resolved, nil
}

// checkPaths confines every string ffmpeg could open. Values of options the
// tokenizer does not know as paths are confined too, so an unknown option
// cannot smuggle an outside path in.
func (v *Validator) checkPaths(tokens []token, dir string) error {
	root := v.policy.Root()

	for _, t := range tokens {
		for _, tg := range t.targets() {
			p, ok := tg.localPath()
			if !ok || p == "" || p == "-" {
				continue
			}
			if _, ok := resolveWithin(root, dir, p); !ok {
				return reject(ReasonPathEscape, t.index, t.raw, "path resolves outside the allowed root")
			}
		}
	}

	return nil
}

func (v *Validator) checkReferences(tokens []token) error {
	for _, t := range tokens {
		if t.kind == kindFlag {
			if strings.HasPrefix(strings.TrimLeft(t.raw, "-"), "/") {
				return reject(ReasonDisallowedFlag, t.index, t.raw, "file-loaded option values are not allowed")
			}
			if !v.policy.FlagPermitted(t.flag) {
				return reject(ReasonDisallowedFlag, t.index, t.raw, "option %s is not allowed", t.flag)
			}
			continue
		}

		for _, tg := range t.targets() {
			if !tg.strict {
				continue
			}
			if scheme, _, ok := splitScheme(tg.value); ok && !v.policy.ProtocolAllowed(scheme) {
				return reject(ReasonDisallowedProtocol, t.index, t.raw, "protocol %q is not allowed", scheme)
			}
		}
		for _, m := range embeddedURL.FindAllStringSubmatch(t.raw, -1) {
			if !v.policy.ProtocolAllowed(m[1]) {
				return reject(ReasonDisallowedProtocol, t.index, t.raw, "protocol %q is not allowed", strings.ToLower(m[1]))
			}
		}

		if t.filterBearing() {
			for _, name := range filterNames(t.raw) {
				if v.policy.FilterDenied(name) {
					return reject(ReasonDisallowedFilter, t.index, t.raw, "filter %q is not allowed", name)
				}
			}
		}
	}

	return nil
}

func (v *Validator) effectiveTimeout(requested time.Duration) (time.Duration, bool) {
	if requested <= 0 {
		return v.policy.DefaultTimeout(), false
	}
	if requested > v.policy.MaxTimeout() {
		return v.policy.MaxTimeout(), true
	}
	return requested, false
}

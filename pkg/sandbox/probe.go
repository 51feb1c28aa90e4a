package sandbox

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/harun/ffmpeg-mcp/pkg/validator"
)

const probeTimeout = 10 * time.Second

var versionPattern = regexp.MustCompile(`version\s+n?(\d+(?:\.\d+){0,2})`)

// ProbeVersion runs "<binary> -version" through the regular validation and
// execution path and returns the reported version. When constraint is not
// empty the version must satisfy it (e.g. ">= 4.4").
func ProbeVersion(ctx context.Context, v *validator.Validator, r Runner, constraint string) (string, error) {
	args, err := v.Validate(validator.Request{Args: []string{"-version"}, Timeout: probeTimeout})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}

	res, err := r.Run(ctx, args)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}
	if res.Failed() {
		if res.Err != nil {
			return "", fmt.Errorf("%w: %v", ErrProbeFailed, res.Err)
		}
		return "", fmt.Errorf("%w: cause %s: %s", ErrProbeFailed, res.Cause, strings.TrimSpace(res.Stderr.String()))
	}

	version, err := ParseVersion(res.Stdout.String())
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(constraint) == "" {
		return version, nil
	}

	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return "", fmt.Errorf("invalid version constraint %q: %w", constraint, err)
	}
	sv, err := semver.NewVersion(version)
	if err != nil {
		return "", fmt.Errorf("%w: %q is not a semantic version", ErrVersionUnsupported, version)
	}
	if !c.Check(sv) {
		return "", fmt.Errorf("%w: %s does not satisfy %s", ErrVersionUnsupported, version, constraint)
	}

	return version, nil
}

// ParseVersion extracts the numeric version from "-version" output.
// Git builds ("version N-12345-g...") have no release number and fail.
func ParseVersion(output string) (string, error) {
	m := versionPattern.FindStringSubmatch(output)
	if m == nil {
		return "", fmt.Errorf("%w: no version in output", ErrProbeFailed)
	}
	return m[1], nil
}

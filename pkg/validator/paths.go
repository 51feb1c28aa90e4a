package validator

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var errDangling = errors.New("dangling symlink")

// resolveWithin resolves p against base and reports the real location it
// refers to. ok is false when the path leaves root either lexically or through
// a symlink somewhere along its existing prefix.
func resolveWithin(root, base, p string) (string, bool) {
	if !filepath.IsAbs(p) {
		p = filepath.Join(base, p)
	}
	p = filepath.Clean(p)

	if !within(root, p) {
		return p, false
	}

	real, err := evalExistingPrefix(p)
	if err != nil {
		return p, false
	}

	return real, within(root, real)
}

// evalExistingPrefix evaluates symlinks for the longest existing prefix of p
// and appends the remaining, not yet created, components unchanged.
func evalExistingPrefix(p string) (string, error) {
	var missing []string
	cur := p

	for {
		real, err := filepath.EvalSymlinks(cur)
		if err == nil {
			for i := len(missing) - 1; i >= 0; i-- {
				real = filepath.Join(real, missing[i])
			}
			return real, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}

		// the entry itself exists but points nowhere
		if info, lerr := os.Lstat(cur); lerr == nil && info.Mode()&os.ModeSymlink != 0 {
			return "", errDangling
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return "", err
		}
		missing = append(missing, filepath.Base(cur))
		cur = parent
	}
}

// within reports whether p equals root or lies beneath it
func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// Package fakeffmpeg writes a small shell script that stands in for the
// ffmpeg binary in tests.
//
// The script understands "-version" plus a handful of "-fake_*" options, each
// taking one value so they tokenize like regular ffmpeg options:
//
//	-fake_sleep SECONDS   sleep in the foreground
//	-fake_trap  ANY       ignore SIGTERM from here on
//	-fake_exit  CODE      exit with CODE once all options ran
//	-fake_flood BYTES     write BYTES bytes of "x" to stdout
//	-fake_stderr TEXT     write TEXT to stderr
//	-fake_pwd   ANY       print the working directory
//	-fake_env   ANY       print the environment
//	-fake_orphan SECONDS  leave a background child holding stdout that
//	                      creates "orphan-survived" in the cwd after SECONDS
//
// Every other argument is ignored.
package fakeffmpeg

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
)

// DefaultVersion is the version the script reports by default
const DefaultVersion = "6.1.1"

const script = `#!/bin/sh
code=0
while [ $# -gt 0 ]; do
  case "$1" in
    -version)
      echo "ffmpeg version %s Copyright (c) 2000-2023 the FFmpeg developers"
      echo "configuration: --enable-fake"
      exit 0
      ;;
    -fake_trap) trap '' TERM; shift ;;
    -fake_sleep) shift; sleep "$1" ;;
    -fake_exit) shift; code="$1" ;;
    -fake_flood) shift; head -c "$1" /dev/zero | tr '\0' 'x' ;;
    -fake_stderr) shift; echo "$1" >&2 ;;
    -fake_pwd) shift; pwd ;;
    -fake_env) shift; env ;;
    -fake_orphan) shift; (sleep "$1"; : > orphan-survived) & ;;
  esac
  [ $# -gt 0 ] && shift
done
exit "$code"
`

// Write creates the script in a test temp dir and returns its absolute path
func Write(t *testing.T) string {
	t.Helper()
	return WriteVersion(t, DefaultVersion)
}

// WriteVersion is Write with a custom "-version" banner
func WriteVersion(t *testing.T, version string) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("fake ffmpeg needs a POSIX shell")
	}

	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte(fmt.Sprintf(script, version)), 0755); err != nil {
		t.Fatalf("write fake ffmpeg: %v", err)
	}
	return path
}

// Real returns the path of an installed ffmpeg, skipping the test when none
// is available.
func Real(t *testing.T) string {
	t.Helper()

	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		t.Skip("ffmpeg not installed")
	}
	return path
}

package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/harun/ffmpeg-mcp/internal/testutil/fakeffmpeg"
	"github.com/harun/ffmpeg-mcp/pkg/toolexecutor"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns what it wrote to stdout
// and stderr. Package flag variables are reset first because cobra keeps them
// between runs.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })

	cfgFile = ""
	logLevel = ""
	serveListen = ""
	callTool = toolexecutor.FFmpegToolName
	configInitForce = false

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	cmd := GetRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	t.Cleanup(func() {
		cmd.SetOut(nil)
		cmd.SetErr(nil)
	})

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// writeConfig writes a config file around the fake ffmpeg script and returns
// its path; overrides are merged into the top-level sections
func writeConfig(t *testing.T, overrides map[string]map[string]interface{}) string {
	t.Helper()

	dir := t.TempDir()
	root := filepath.Join(dir, "media")
	require.NoError(t, os.MkdirAll(root, 0755))

	cfg := map[string]map[string]interface{}{
		"server":        {"listen_addr": "127.0.0.1:0"},
		"ffmpeg":        {"binary_path": fakeffmpeg.Write(t)},
		"policy":        {"workdir_root": root, "kill_grace": "200ms"},
		"logging":       {"console": false},
		"observability": {"metrics": false},
	}
	for section, values := range overrides {
		if cfg[section] == nil {
			cfg[section] = map[string]interface{}{}
		}
		for k, v := range values {
			cfg[section][k] = v
		}
	}

	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

package daemon

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/harun/ffmpeg-mcp/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLifecycle(t *testing.T, pidFile string) *LifecycleManager {
	t.Helper()

	l, err := logger.New(logger.Config{Level: "error", File: filepath.Join(t.TempDir(), "test.log")})
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	return NewLifecycleManager(&Daemon{logger: l}, pidFile)
}

func TestLifecycleManagerStartStop(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "run", "ffmpeg-mcp.pid")
	lm := newTestLifecycle(t, pidFile)

	require.NoError(t, lm.Start())

	pid, err := lm.GetPID()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, lm.Stop())
	_, err = os.Stat(pidFile)
	assert.True(t, os.IsNotExist(err))

	// removing an absent file is not an error
	assert.NoError(t, lm.Stop())
}

func TestLifecycleManagerDisabled(t *testing.T) {
	lm := newTestLifecycle(t, "")

	assert.NoError(t, lm.Start())
	assert.NoError(t, lm.Stop())
}

func TestLifecycleManagerRefusesLiveOwner(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "ffmpeg-mcp.pid")
	require.NoError(t, os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getppid())), 0644))

	lm := newTestLifecycle(t, pidFile)

	err := lm.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "another instance is running")
}

func TestLifecycleManagerReplacesStalePID(t *testing.T) {
	cmd := exec.Command("true")
	require.NoError(t, cmd.Run())
	stale := cmd.ProcessState.Pid()

	pidFile := filepath.Join(t.TempDir(), "ffmpeg-mcp.pid")
	require.NoError(t, os.WriteFile(pidFile, []byte(strconv.Itoa(stale)), 0644))

	lm := newTestLifecycle(t, pidFile)
	require.NoError(t, lm.Start())
	defer lm.Stop()

	pid, err := lm.GetPID()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestReadPID(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		want    int
		wantErr bool
	}{
		{"plain", "1234", 1234, false},
		{"trailing newline", "1234\n", 1234, false},
		{"garbage", "invalid", 0, true},
		{"zero", "0", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".pid")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			pid, err := ReadPID(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, pid)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := ReadPID(filepath.Join(dir, "absent.pid"))
		assert.True(t, os.IsNotExist(err))
	})
}

func TestProcessAlive(t *testing.T) {
	assert.True(t, ProcessAlive(os.Getpid()))
}

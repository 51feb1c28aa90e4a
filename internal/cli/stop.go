package cli

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/harun/ffmpeg-mcp/internal/daemon"
	"github.com/spf13/cobra"
)

var (
	stopTimeout int
	stopPIDFile string
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running server",
	Long: `Stop a server started with "serve" gracefully.
Sends SIGTERM and waits for it to shut down, then falls back to SIGKILL.`,
	Args: cobra.NoArgs,
	RunE: runStop,
}

func init() {
	stopCmd.Flags().IntVar(&stopTimeout, "timeout", 30, "timeout in seconds to wait for the server to stop")
	stopCmd.Flags().StringVar(&stopPIDFile, "pid-file", defaultPIDFile(), "PID file path")
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	pid, err := daemon.ReadPID(stopPIDFile)
	if err != nil {
		return fmt.Errorf("server is not running: %w", err)
	}
	if !daemon.ProcessAlive(pid) {
		os.Remove(stopPIDFile)
		return fmt.Errorf("server is not running (stale PID %d)", pid)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to send SIGTERM: %w", err)
	}

	deadline := time.Now().Add(time.Duration(stopTimeout) * time.Second)
	for time.Now().Before(deadline) {
		if !daemon.ProcessAlive(pid) {
			os.Remove(stopPIDFile)
			fmt.Fprintln(out, "Server stopped successfully")
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	fmt.Fprintln(out, "Timeout reached, sending SIGKILL...")

	if err := process.Signal(syscall.SIGKILL); err != nil {
		return fmt.Errorf("failed to send SIGKILL: %w", err)
	}

	os.Remove(stopPIDFile)
	fmt.Fprintln(out, "Server killed")
	return nil
}

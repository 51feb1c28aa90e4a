package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/harun/ffmpeg-mcp/internal/config"
	"github.com/harun/ffmpeg-mcp/internal/daemon"
	"github.com/harun/ffmpeg-mcp/internal/logger"
	"github.com/spf13/cobra"
)

var (
	serveListen  string
	servePIDFile string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server",
	Long: `Run the MCP server in the foreground.

The ffmpeg binary is resolved and probed before the listener is bound. The
server runs until SIGINT or SIGTERM and then drains in-flight requests.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address override (host:port)")
	serveCmd.Flags().StringVar(&servePIDFile, "pid-file", defaultPIDFile(), "PID file path, empty to disable")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if serveListen != "" {
		cfg.Server.ListenAddr = serveListen
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Close()

	configPath := cfgFile
	if configPath == "" {
		configPath = config.DefaultPath()
	}

	d, err := daemon.New(cfg, log, daemon.Options{
		Version:    version,
		Serve:      true,
		PIDFile:    servePIDFile,
		ConfigPath: configPath,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if err := d.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return d.Wait()
}

// defaultPIDFile returns $HOME/.ffmpeg-mcp/ffmpeg-mcp.pid
func defaultPIDFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ffmpeg-mcp", "ffmpeg-mcp.pid")
}

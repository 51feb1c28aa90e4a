package cli

import (
	"encoding/json"
	"fmt"

	"github.com/harun/ffmpeg-mcp/pkg/policy"
	"github.com/harun/ffmpeg-mcp/pkg/toolexecutor"
	"github.com/harun/ffmpeg-mcp/pkg/validator"
	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Print the tools/list payload",
	Long: `Print the tool catalog exactly as a client receives it from tools/list.
No ffmpeg process is started.`,
	Args: cobra.NoArgs,
	RunE: runTools,
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}

func runTools(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	p, err := policy.New(cfg.ToPolicyConfig())
	if err != nil {
		return err
	}

	// Listing never runs the tool, so no runner is needed
	registry, err := toolexecutor.NewRegistry(toolexecutor.NewFFmpegTool(validator.New(p), nil))
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(map[string]interface{}{"tools": registry.List()}, "", "  ")
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

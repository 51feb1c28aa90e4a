package cli

import (
	"fmt"
	"runtime"

	"github.com/harun/ffmpeg-mcp/pkg/gateway"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "ffmpeg-mcp version %s\n", version)
		fmt.Fprintf(out, "MCP protocol: %s\n", gateway.ProtocolVersion)
		fmt.Fprintf(out, "Go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

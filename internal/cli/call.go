package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/harun/ffmpeg-mcp/internal/daemon"
	"github.com/harun/ffmpeg-mcp/internal/logger"
	"github.com/harun/ffmpeg-mcp/pkg/gateway"
	"github.com/harun/ffmpeg-mcp/pkg/toolexecutor"
	"github.com/spf13/cobra"
)

var callTool string

var callCmd = &cobra.Command{
	Use:   "call <json-args>",
	Short: "Run one tools/call in-process",
	Long: `Run a single tools/call without binding a listener and print the
JSON-RPC response envelope. The arguments go through the same validation
and sandbox as requests from a client.

Example:
  ffmpeg-mcp call '{"args": ["-i", "in.mp4", "-t", "5", "out.webm"]}'`,
	Args: cobra.ExactArgs(1),
	RunE: runCall,
}

func init() {
	callCmd.Flags().StringVar(&callTool, "tool", toolexecutor.FFmpegToolName, "tool name")
	rootCmd.AddCommand(callCmd)
}

func runCall(cmd *cobra.Command, args []string) error {
	var arguments map[string]interface{}
	if err := json.Unmarshal([]byte(args[0]), &arguments); err != nil {
		return fmt.Errorf("arguments must be a JSON object: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Close()

	d, err := daemon.New(cfg, log, daemon.Options{Version: version})
	if err != nil {
		return err
	}

	if err := d.Start(); err != nil {
		return err
	}

	envelope, err := json.Marshal(map[string]interface{}{
		"jsonrpc": gateway.JSONRPCVersion,
		"id":      1,
		"method":  "tools/call",
		"params": gateway.CallToolParams{
			Name:      callTool,
			Arguments: arguments,
		},
	})
	if err != nil {
		d.Stop()
		return err
	}

	resp := d.Dispatch(cmd.Context(), envelope)

	if err := d.Stop(); err != nil {
		log.Warn().Err(err).Msg("Shutdown reported errors")
	}

	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))

	return callError(resp)
}

// callError turns a protocol error or a failed execution into a non-zero exit
func callError(resp *gateway.RPCResponse) error {
	if resp == nil {
		return errors.New("no response")
	}
	if resp.Error != nil {
		return resp.Error
	}
	if result, ok := resp.Result.(*gateway.CallToolResult); ok && result.IsError {
		return errors.New("tool execution failed")
	}
	return nil
}

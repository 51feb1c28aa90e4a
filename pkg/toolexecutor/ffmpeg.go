package toolexecutor

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/harun/ffmpeg-mcp/pkg/sandbox"
	"github.com/harun/ffmpeg-mcp/pkg/validator"
)

// FFmpegToolName is the name under which the ffmpeg tool is listed
const FFmpegToolName = "ffmpeg.execute"

// FFmpegTool validates an argument vector and runs ffmpeg with it
type FFmpegTool struct {
	validator *validator.Validator
	runner    sandbox.Runner
}

// NewFFmpegTool creates the ffmpeg tool
func NewFFmpegTool(v *validator.Validator, r sandbox.Runner) *FFmpegTool {
	return &FFmpegTool{validator: v, runner: r}
}

// Name returns the tool name
func (t *FFmpegTool) Name() string { return FFmpegToolName }

// Definition describes the tool's arguments
func (t *FFmpegTool) Definition() ToolDefinition {
	minTimeout := 1.0
	p := t.validator.Policy()

	return ToolDefinition{
		Name: FFmpegToolName,
		Description: "Run ffmpeg with a literal argument vector (no shell). " +
			"Paths must stay inside the configured working directory root; " +
			"network protocols and file-reading filters are rejected.",
		Parameters: []ToolParameter{
			{
				Name:        "args",
				Type:        "array",
				Items:       "string",
				Description: `Arguments passed to ffmpeg after the binary name, e.g. ["-i", "in.mp4", "out.webm"]`,
				Required:    true,
			},
			{
				Name: "timeout_ms",
				Type: "integer",
				Description: fmt.Sprintf("Wall-clock limit in milliseconds; values above %d are capped",
					p.MaxTimeout().Milliseconds()),
				Minimum: &minTimeout,
				Default: p.DefaultTimeout().Milliseconds(),
			},
			{
				Name:        "working_dir",
				Type:        "string",
				Description: "Working directory relative to the allowed root; relative paths in args resolve against it",
			},
		},
	}
}

// Invoke validates the arguments and runs the process
func (t *FFmpegTool) Invoke(ctx context.Context, args map[string]interface{}) (sandbox.Result, error) {
	req, err := decodeFFmpegArgs(args)
	if err != nil {
		return sandbox.Result{}, err
	}

	safe, err := t.validator.Validate(req)
	if err != nil {
		return sandbox.Result{}, err
	}

	return t.runner.Run(ctx, safe)
}

func decodeFFmpegArgs(args map[string]interface{}) (validator.Request, error) {
	var req validator.Request

	raw, ok := args["args"].([]interface{})
	if !ok {
		if typed, isStrings := args["args"].([]string); isStrings {
			req.Args = append([]string(nil), typed...)
		} else {
			return req, fmt.Errorf("%w: args must be an array of strings", ErrInvalidArguments)
		}
	}
	for i, v := range raw {
		s, ok := v.(string)
		if !ok {
			return req, fmt.Errorf("%w: args[%d] must be a string", ErrInvalidArguments, i)
		}
		req.Args = append(req.Args, s)
	}

	if v, ok := args["timeout_ms"]; ok && v != nil {
		ms, err := toMillis(v)
		if err != nil {
			return req, err
		}
		req.Timeout = time.Duration(ms) * time.Millisecond
	}

	if v, ok := args["working_dir"]; ok && v != nil {
		dir, ok := v.(string)
		if !ok {
			return req, fmt.Errorf("%w: working_dir must be a string", ErrInvalidArguments)
		}
		req.WorkingDir = dir
	}

	return req, nil
}

// maxMillis keeps the Duration conversion from overflowing
const maxMillis = math.MaxInt64 / int64(time.Millisecond)

func toMillis(v interface{}) (int64, error) {
	var ms float64
	switch n := v.(type) {
	case float64:
		ms = n
	case int:
		ms = float64(n)
	case int64:
		ms = float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: timeout_ms: %v", ErrInvalidArguments, err)
		}
		ms = f
	default:
		return 0, fmt.Errorf("%w: timeout_ms must be an integer", ErrInvalidArguments)
	}

	if ms < 1 || ms != math.Trunc(ms) {
		return 0, fmt.Errorf("%w: timeout_ms must be a positive integer", ErrInvalidArguments)
	}
	if ms > float64(maxMillis) {
		return maxMillis, nil
	}
	return int64(ms), nil
}

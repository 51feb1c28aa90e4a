package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/harun/ffmpeg-mcp/pkg/sandbox"
	"github.com/harun/ffmpeg-mcp/pkg/toolexecutor"
	"github.com/harun/ffmpeg-mcp/pkg/validator"
)

// FormatResult turns an execution result into a tools/call result. A non-zero
// exit or an abnormal cause is reported with isError, not as an RPC error.
func FormatResult(res sandbox.Result) *CallToolResult {
	failed := res.Failed()

	var summary strings.Builder
	if failed {
		summary.WriteString("FFmpeg execution failed\n")
	} else {
		summary.WriteString("FFmpeg execution succeeded\n")
	}
	if res.ExitCode != nil {
		fmt.Fprintf(&summary, "Exit Code: %d\n", *res.ExitCode)
	} else {
		summary.WriteString("Exit Code: none (terminated by signal)\n")
	}
	fmt.Fprintf(&summary, "Cause: %s\n", res.Cause)
	fmt.Fprintf(&summary, "Duration: %dms", res.Duration.Milliseconds())
	if res.Cause == sandbox.CauseTimedOut {
		fmt.Fprintf(&summary, "\nTimeout: %dms exceeded", res.Timeout.Milliseconds())
	}
	if res.TimeoutClamped {
		fmt.Fprintf(&summary, "\nTimeout clamped to %dms", res.Timeout.Milliseconds())
	}

	content := []ContentBlock{{Type: "text", Text: summary.String()}}
	if block, ok := streamBlock("Stdout", res.Stdout); ok {
		content = append(content, block)
	}
	if block, ok := streamBlock("Stderr", res.Stderr); ok {
		content = append(content, block)
	}

	return &CallToolResult{
		Content:           content,
		IsError:           failed,
		StructuredContent: summarize(res),
	}
}

func streamBlock(label string, out sandbox.Output) (ContentBlock, bool) {
	if len(out.Data) == 0 && !out.Truncated {
		return ContentBlock{}, false
	}

	text := label + ":\n" + strings.ToValidUTF8(string(out.Data), "�")
	if out.Truncated {
		text += fmt.Sprintf("\n[%s truncated: %d bytes dropped]", strings.ToLower(label), out.Dropped)
	}
	return ContentBlock{Type: "text", Text: text}, true
}

func summarize(res sandbox.Result) *ExecutionSummary {
	return &ExecutionSummary{
		ExecID:          res.ExecID,
		ExitCode:        res.ExitCode,
		Cause:           string(res.Cause),
		DurationMs:      res.Duration.Milliseconds(),
		TimeoutMs:       res.Timeout.Milliseconds(),
		TimeoutClamped:  res.TimeoutClamped,
		StdoutTruncated: res.Stdout.Truncated,
		StdoutDropped:   res.Stdout.Dropped,
		StderrTruncated: res.Stderr.Truncated,
		StderrDropped:   res.Stderr.Dropped,
	}
}

// FormatSpawnFailure reports a process that could not be started
func FormatSpawnFailure(res sandbox.Result) *RPCError {
	detail := ""
	if res.Err != nil {
		detail = res.Err.Error()
	}
	return NewRPCError(SpawnFailed, "Failed to start ffmpeg", map[string]interface{}{
		"execId": res.ExecID,
		"detail": detail,
	})
}

// FormatError maps a failure that happened before a process ran to an RPC
// error object.
func FormatError(err error) *RPCError {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr
	}

	var vErr *validator.ValidationError
	if errors.As(err, &vErr) {
		data := map[string]interface{}{
			"reason": string(vErr.Reason),
			"index":  vErr.Index,
		}
		if vErr.Index >= 0 {
			data["arg"] = vErr.Arg
		}
		return NewRPCError(ValidationFailed, "Argument validation failed: "+vErr.Message, data)
	}

	switch {
	case errors.Is(err, toolexecutor.ErrToolNotFound):
		return NewRPCError(InvalidParams, err.Error(), nil)
	case errors.Is(err, toolexecutor.ErrInvalidArguments):
		return NewRPCError(InvalidParams, "Invalid arguments", err.Error())
	case errors.Is(err, sandbox.ErrAdmissionRejected):
		return NewRPCError(AdmissionRejected, "Too many concurrent executions, retry later", map[string]interface{}{
			"retryable": true,
		})
	case errors.Is(err, sandbox.ErrSandboxNotRunning):
		return NewRPCError(ServiceUnavailable, "Server is shutting down", map[string]interface{}{
			"retryable": false,
		})
	case errors.Is(err, sandbox.ErrSpawnFailed):
		return NewRPCError(SpawnFailed, "Failed to start ffmpeg", map[string]interface{}{
			"detail": err.Error(),
		})
	}

	return NewRPCError(InternalError, "Internal error", err.Error())
}

// HTTPStatus maps an error code to the status used by the REST endpoints
func HTTPStatus(code int) int {
	switch code {
	case ParseError, InvalidRequest, InvalidParams, ValidationFailed:
		return http.StatusBadRequest
	case MethodNotFound:
		return http.StatusNotFound
	case RateLimitExceeded, AdmissionRejected:
		return http.StatusTooManyRequests
	case ServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

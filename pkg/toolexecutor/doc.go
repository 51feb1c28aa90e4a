// Package toolexecutor holds the static tool catalog served by tools/list
// and resolves tools/call requests to a tool implementation.
//
// Invariants:
// - Tool names are unique and the catalog never changes after construction.
// - Arguments are checked against the generated JSON schema before Invoke.
// - Every tool runs through the sandbox executor and returns a sandbox.Result.
//
// Usage:
//
//	reg, err := toolexecutor.NewRegistry(toolexecutor.NewFFmpegTool(v, executor))
//	res, err := reg.Call(ctx, toolexecutor.FFmpegToolName, map[string]interface{}{
//		"args": []interface{}{"-i", "in.mp4", "out.webm"},
//	})
package toolexecutor

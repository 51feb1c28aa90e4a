package toolexecutor

import (
	"context"

	"github.com/harun/ffmpeg-mcp/pkg/sandbox"
)

// ToolParameter defines a parameter for a tool
type ToolParameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`

	// Items is the element type of an array parameter
	Items string `json:"items,omitempty"`

	// Minimum bounds numeric parameters from below
	Minimum *float64 `json:"minimum,omitempty"`
}

// ToolDefinition describes a tool's name and input
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters"`
}

// Tool is one invocable capability. Every tool in this server drives the
// process executor, so invocations produce a sandbox.Result.
type Tool interface {
	// Name returns the unique tool name
	Name() string

	// Definition returns the static description used for listing and schema checks
	Definition() ToolDefinition

	// Invoke runs the tool with arguments that already passed the input schema
	Invoke(ctx context.Context, args map[string]interface{}) (sandbox.Result, error)
}

package gateway

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	// JSONRPCVersion is the only accepted envelope version
	JSONRPCVersion = "2.0"

	// ProtocolVersion is the MCP revision the server speaks
	ProtocolVersion = "2024-11-05"

	// ServerName is reported in initialize and server metadata
	ServerName = "ffmpeg-mcp-server"
)

// RPCRequest is an inbound JSON-RPC 2.0 envelope. ID is kept raw so it can be
// echoed byte-for-byte; a nil ID marks a notification.
type RPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request carries no id
func (r *RPCRequest) IsNotification() bool {
	return len(r.ID) == 0
}

// RPCResponse is an outbound JSON-RPC 2.0 envelope. ID is always present and
// marshals as null when unknown.
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC error object
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Error implements the error interface
func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// JSON-RPC error codes
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603

	// Server-defined codes
	RateLimitExceeded  = -32005
	AdmissionRejected  = -32006
	ServiceUnavailable = -32007
	ValidationFailed   = -32010
	SpawnFailed        = -32020
)

// NewRPCError builds an error object
func NewRPCError(code int, message string, data interface{}) *RPCError {
	return &RPCError{Code: code, Message: message, Data: data}
}

// InitializeResult answers initialize
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      ServerInfo         `json:"serverInfo"`
}

// ServerCapabilities advertises what the server implements
type ServerCapabilities struct {
	Tools ToolsCapability `json:"tools"`
}

// ToolsCapability is empty: the tool list never changes at runtime
type ToolsCapability struct{}

// ServerInfo names the implementation
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// CallToolParams are the params of tools/call
type CallToolParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

// ContentBlock is one MCP content item
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallToolResult answers tools/call once a process ran
type CallToolResult struct {
	Content           []ContentBlock    `json:"content"`
	IsError           bool              `json:"isError"`
	StructuredContent *ExecutionSummary `json:"structuredContent,omitempty"`
}

// ExecutionSummary is the machine-readable part of a tool result
type ExecutionSummary struct {
	ExecID          string `json:"execId"`
	ExitCode        *int   `json:"exitCode"`
	Cause           string `json:"cause"`
	DurationMs      int64  `json:"durationMs"`
	TimeoutMs       int64  `json:"timeoutMs"`
	TimeoutClamped  bool   `json:"timeoutClamped"`
	StdoutTruncated bool   `json:"stdoutTruncated"`
	StdoutDropped   int64  `json:"stdoutDroppedBytes"`
	StderrTruncated bool   `json:"stderrTruncated"`
	StderrDropped   int64  `json:"stderrDroppedBytes"`
}

// ServerMetadata is served on GET /mcp
type ServerMetadata struct {
	Name            string   `json:"name"`
	Version         string   `json:"version"`
	ProtocolVersion string   `json:"protocolVersion"`
	Transports      []string `json:"transports"`
	Tools           []string `json:"tools"`
}

// ClientInfo describes a connected WebSocket client
type ClientInfo struct {
	ID           string    `json:"id"`
	ConnectedAt  time.Time `json:"connectedAt"`
	LastActivity time.Time `json:"lastActivity"`
	IPAddress    string    `json:"ipAddress"`
	Idle         bool      `json:"idle"`
	Requests     int       `json:"requestsLastMinute"`
	InFlight     int       `json:"inFlight"`
}

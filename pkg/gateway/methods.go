package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/harun/ffmpeg-mcp/internal/tracing"
	"github.com/harun/ffmpeg-mcp/pkg/sandbox"
)

// registerBuiltinMethods registers the MCP methods
func (s *Server) registerBuiltinMethods() {
	_ = s.router.RegisterMethod("initialize", s.handleInitialize)
	_ = s.router.RegisterMethod("ping", s.handlePing)
	_ = s.router.RegisterMethod("tools/list", s.handleToolsList)
	_ = s.router.RegisterMethod("tools/call", s.handleToolsCall)
	_ = s.router.RegisterMethod("notifications/initialized", s.handleNotification)
	_ = s.router.RegisterMethod("notifications/cancelled", s.handleNotification)
}

func (s *Server) handleInitialize(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var req struct {
		ProtocolVersion string `json:"protocolVersion"`
		ClientInfo      struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"clientInfo"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, NewRPCError(InvalidParams, "Invalid params", err.Error())
		}
	}

	logger := tracing.LoggerFromContext(ctx, s.logger)
	logger.Info().
		Str("client", req.ClientInfo.Name).
		Str("client_version", req.ClientInfo.Version).
		Str("requested_protocol", req.ProtocolVersion).
		Msg("Client initialized")

	return InitializeResult{
		ProtocolVersion: ProtocolVersion,
		ServerInfo: ServerInfo{
			Name:    ServerName,
			Version: s.cfg.Version,
		},
	}, nil
}

func (s *Server) handlePing(_ context.Context, _ json.RawMessage) (interface{}, error) {
	return struct{}{}, nil
}

// handleToolsList returns the listing encoded once at construction so every
// call is byte-identical
func (s *Server) handleToolsList(_ context.Context, _ json.RawMessage) (interface{}, error) {
	return s.toolsList, nil
}

func (s *Server) handleToolsCall(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if len(bytes.TrimSpace(params)) == 0 {
		return nil, NewRPCError(InvalidParams, "Invalid params: name is required", nil)
	}

	var p CallToolParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, NewRPCError(InvalidParams, "Invalid params", err.Error())
	}
	if p.Name == "" {
		return nil, NewRPCError(InvalidParams, "Invalid params: name is required", nil)
	}

	result, rpcErr := s.callTool(ctx, p.Name, p.Arguments)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return result, nil
}

func (s *Server) handleNotification(ctx context.Context, _ json.RawMessage) (interface{}, error) {
	logger := tracing.LoggerFromContext(ctx, s.logger)
	logger.Debug().Msg("Notification received")
	return struct{}{}, nil
}

// callTool runs the registry pipeline shared by tools/call and the REST
// invoke endpoint
func (s *Server) callTool(ctx context.Context, name string, args map[string]interface{}) (*CallToolResult, *RPCError) {
	ctx, span := tracing.StartSpan(ctx, "tool.call", attribute.String("tool", name))
	defer span.End()

	logger := tracing.LoggerFromContext(ctx, s.logger).With().Str("tool", name).Logger()

	start := time.Now()
	res, err := s.registry.Call(ctx, name, args)

	if s.cfg.Audit != nil {
		s.cfg.Audit.RecordExecution(ctx, name, args, res, err)
	}

	if err != nil {
		rpcErr := FormatError(err)
		logger.Info().
			Err(err).
			Int("code", rpcErr.Code).
			Dur("duration", time.Since(start)).
			Msg("Tool call rejected")
		return nil, rpcErr
	}

	if res.Cause == sandbox.CauseSpawnFailed {
		logger.Error().Err(res.Err).Str("exec_id", res.ExecID).Msg("Tool call failed to spawn")
		return nil, FormatSpawnFailure(res)
	}

	return FormatResult(res), nil
}

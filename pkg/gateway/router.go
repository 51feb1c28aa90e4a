package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/harun/ffmpeg-mcp/internal/tracing"
)

// RequestHandler handles one method. Returning an *RPCError controls the
// error object sent back; any other error becomes an Internal Error.
type RequestHandler func(ctx context.Context, params json.RawMessage) (interface{}, error)

// RequestObserver is told about every routed request
type RequestObserver interface {
	RequestHandled(method string, code int, duration time.Duration)
}

// unknownMethodLabel replaces unregistered method names in observer calls
const unknownMethodLabel = "unknown"

// RPCRouter handles RPC method registration and request routing
type RPCRouter struct {
	mu       sync.RWMutex
	methods  map[string]RequestHandler
	observer RequestObserver
	logger   zerolog.Logger
}

// NewRPCRouter creates a new RPC router
func NewRPCRouter() *RPCRouter {
	return &RPCRouter{
		methods: make(map[string]RequestHandler),
		logger:  log.With().Str("component", "router").Logger(),
	}
}

// SetObserver installs the request observer
func (r *RPCRouter) SetObserver(observer RequestObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.observer = observer
}

// RegisterMethod registers an RPC method handler
func (r *RPCRouter) RegisterMethod(name string, handler RequestHandler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}
	if name == "" {
		return fmt.Errorf("method name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.methods[name] = handler
	return nil
}

// UnregisterMethod removes an RPC method handler
func (r *RPCRouter) UnregisterMethod(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.methods, name)
}

// HasMethod checks if a method is registered
func (r *RPCRouter) HasMethod(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.methods[name]
	return exists
}

// GetMethods returns all registered method names, sorted
func (r *RPCRouter) GetMethods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	methods := make([]string, 0, len(r.methods))
	for name := range r.methods {
		methods = append(methods, name)
	}
	sort.Strings(methods)
	return methods
}

// ParseRequest decodes one envelope. When it fails, the returned request (if
// any) still carries the id so the error can echo it.
func (r *RPCRouter) ParseRequest(data []byte) (*RPCRequest, *RPCError) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return nil, NewRPCError(ParseError, "Parse error", nil)
	}

	switch trimmed[0] {
	case '{':
	case '[':
		return nil, NewRPCError(InvalidRequest, "Invalid request: batch requests are not supported", nil)
	default:
		return nil, NewRPCError(InvalidRequest, "Invalid request: envelope must be an object", nil)
	}

	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	_ = json.Unmarshal(trimmed, &probe)

	req := &RPCRequest{}
	if !validID(probe.ID) {
		return nil, NewRPCError(InvalidRequest, "Invalid request: id must be a string, number or null", nil)
	}
	req.ID = probe.ID

	if err := json.Unmarshal(trimmed, req); err != nil {
		req.ID = probe.ID
		return req, NewRPCError(InvalidRequest, "Invalid request", err.Error())
	}

	if req.JSONRPC != "" && req.JSONRPC != JSONRPCVersion {
		return req, NewRPCError(InvalidRequest, fmt.Sprintf("Invalid request: unsupported jsonrpc version %q", req.JSONRPC), nil)
	}
	if req.Method == "" {
		return req, NewRPCError(InvalidRequest, "Invalid request: missing method field", nil)
	}

	req.JSONRPC = JSONRPCVersion
	return req, nil
}

// validID accepts an absent id or a string, number or null literal
func validID(id json.RawMessage) bool {
	if len(id) == 0 {
		return true
	}
	switch id[0] {
	case '"', 'n', '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return true
	}
	return false
}

// Dispatch parses and routes one envelope. It returns nil when the envelope
// is a notification and no response must be written.
func (r *RPCRouter) Dispatch(ctx context.Context, data []byte) *RPCResponse {
	req, rpcErr := r.ParseRequest(data)
	if rpcErr != nil {
		var id json.RawMessage
		if req != nil {
			id = req.ID
		}
		r.observe(unknownMethodLabel, rpcErr.Code, 0)
		r.logger.Debug().Int("code", rpcErr.Code).Str("message", rpcErr.Message).Msg("Rejected envelope")
		return errorResponse(id, rpcErr)
	}

	return r.RouteRequest(ctx, req)
}

// RouteRequest routes a request to its handler. Notifications are handled
// but produce no response.
func (r *RPCRouter) RouteRequest(ctx context.Context, req *RPCRequest) *RPCResponse {
	if req == nil {
		return errorResponse(nil, NewRPCError(InvalidRequest, "Invalid request", nil))
	}

	r.mu.RLock()
	handler, exists := r.methods[req.Method]
	r.mu.RUnlock()

	logger := tracing.LoggerFromContext(ctx, r.logger).With().Str("method", req.Method).Logger()

	if !exists {
		r.observe(unknownMethodLabel, MethodNotFound, 0)
		if req.IsNotification() {
			logger.Debug().Msg("Ignoring unknown notification")
			return nil
		}
		logger.Debug().Msg("Method not found")
		return errorResponse(req.ID, NewRPCError(MethodNotFound, fmt.Sprintf("Method not found: %s", req.Method), nil))
	}

	ctx, span := tracing.StartSpan(ctx, "rpc."+req.Method,
		attribute.String("rpc.system", "jsonrpc"),
		attribute.String("rpc.method", req.Method),
	)
	defer span.End()

	start := time.Now()
	result, err := r.invoke(ctx, handler, req.Params)
	duration := time.Since(start)

	var rpcErr *RPCError
	if err != nil {
		if !errors.As(err, &rpcErr) {
			rpcErr = NewRPCError(InternalError, "Internal error", err.Error())
		}
		span.SetStatus(codes.Error, rpcErr.Message)
		span.SetAttributes(attribute.Int("rpc.jsonrpc.error_code", rpcErr.Code))
	}

	code := 0
	if rpcErr != nil {
		code = rpcErr.Code
	}
	r.observe(req.Method, code, duration)

	event := logger.Debug()
	if code == InternalError {
		event = logger.Error()
	}
	event.Int("code", code).Dur("duration", duration).Bool("notification", req.IsNotification()).Msg("Request handled")

	if req.IsNotification() {
		return nil
	}
	if rpcErr != nil {
		return errorResponse(req.ID, rpcErr)
	}
	return &RPCResponse{JSONRPC: JSONRPCVersion, ID: req.ID, Result: result}
}

// invoke runs a handler and turns a panic into an Internal Error
func (r *RPCRouter) invoke(ctx context.Context, handler RequestHandler, params json.RawMessage) (result interface{}, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("Handler panicked")
			result = nil
			err = NewRPCError(InternalError, "Internal error", fmt.Sprintf("handler panic: %v", rec))
		}
	}()

	return handler(ctx, params)
}

func (r *RPCRouter) observe(method string, code int, d time.Duration) {
	r.mu.RLock()
	observer := r.observer
	r.mu.RUnlock()

	if observer != nil {
		observer.RequestHandled(method, code, d)
	}
}

func errorResponse(id json.RawMessage, err *RPCError) *RPCResponse {
	return &RPCResponse{JSONRPC: JSONRPCVersion, ID: id, Error: err}
}

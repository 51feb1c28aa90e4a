// Package gateway is the MCP protocol front end: a JSON-RPC 2.0 dispatcher
// served over HTTP POST and WebSocket, plus a few REST helpers that run the
// same tool pipeline.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/harun/ffmpeg-mcp/internal/tracing"
	"github.com/harun/ffmpeg-mcp/pkg/sandbox"
	"github.com/harun/ffmpeg-mcp/pkg/toolexecutor"
)

const (
	defaultListenAddr      = "127.0.0.1:8765"
	defaultMaxBodyBytes    = 1 << 20
	defaultReadTimeout     = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultWriteWait       = 10 * time.Second

	// TraceHeader carries the caller's trace id in and out
	TraceHeader = "X-Trace-Id"
)

// AuditRecorder receives one record per tool invocation
type AuditRecorder interface {
	RecordExecution(ctx context.Context, tool string, args map[string]interface{}, res sandbox.Result, err error)
}

// Config holds server configuration
type Config struct {
	ListenAddr      string
	MaxBodyBytes    int64
	ReadTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Per WebSocket client limits (zero disables)
	RequestsPerMinute int
	MaxConcurrent     int

	Version        string
	Registry       *toolexecutor.Registry
	MetricsHandler http.Handler
	Observer       RequestObserver
	Audit          AuditRecorder
	Logger         *zerolog.Logger
}

// Server is the MCP gateway
type Server struct {
	cfg       Config
	registry  *toolexecutor.Registry
	router    *RPCRouter
	clients   *ClientRegistry
	upgrader  websocket.Upgrader
	logger    zerolog.Logger
	toolsList json.RawMessage

	baseCtx context.Context
	cancel  context.CancelFunc

	httpServer *http.Server
	listener   net.Listener

	shutdownMu     sync.RWMutex
	isShuttingDown bool
	inFlightReqs   sync.WaitGroup
}

// NewServer creates a new gateway server
func NewServer(cfg Config) (*Server, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("tool registry is required")
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	logger := log.With().Str("component", "gateway").Logger()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "gateway").Logger()
	}

	toolsList, err := json.Marshal(map[string]interface{}{"tools": cfg.Registry.List()})
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool list: %w", err)
	}

	baseCtx, cancel := context.WithCancel(context.Background())

	s := &Server{
		cfg:       cfg,
		registry:  cfg.Registry,
		router:    NewRPCRouter(),
		clients:   NewClientRegistry(),
		logger:    logger,
		toolsList: toolsList,
		baseCtx:   baseCtx,
		cancel:    cancel,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	if cfg.Observer != nil {
		s.router.SetObserver(cfg.Observer)
	}

	s.registerBuiltinMethods()

	return s, nil
}

// Handler returns the HTTP handler with every route mounted
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /{$}", s.handleRPC)
	mux.HandleFunc("POST /rpc", s.handleRPC)
	mux.HandleFunc("POST /mcp", s.handleRPC)
	mux.HandleFunc("GET /mcp", s.handleMetadata)
	mux.HandleFunc("GET /mcp/tools", s.handleListTools)
	mux.HandleFunc("POST /mcp/tools/{name}/invoke", s.handleInvokeTool)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.cfg.MetricsHandler != nil {
		mux.Handle("GET /metrics", s.cfg.MetricsHandler)
	}
	return mux
}

// Start binds the listener and serves in the background. A bind failure is
// returned to the caller.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.cfg.ListenAddr, err)
	}

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		BaseContext: func(net.Listener) context.Context {
			return s.baseCtx
		},
	}

	s.logger.Info().Str("addr", listener.Addr().String()).Msg("Starting gateway server")

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Gateway server error")
		}
	}()

	return nil
}

// Addr returns the bound address, or nil before Start
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop refuses new requests, waits for in-flight ones, then closes the
// listener and every WebSocket client.
func (s *Server) Stop(ctx context.Context) error {
	s.shutdownMu.Lock()
	if s.isShuttingDown {
		s.shutdownMu.Unlock()
		return nil
	}
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down gateway server")

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("All in-flight requests completed")
	case <-ctx.Done():
		s.logger.Warn().Msg("Shutdown timeout reached, cancelling requests")
	}

	// running executions observe this and get terminated
	s.cancel()
	s.clients.CloseAll()

	if s.httpServer == nil {
		return nil
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info().Msg("Gateway server stopped")
	return nil
}

// Dispatch handles one raw envelope in-process. It returns nil for
// notifications.
func (s *Server) Dispatch(ctx context.Context, data []byte) *RPCResponse {
	return s.router.Dispatch(ctx, data)
}

// RegisterMethod registers an RPC method handler
func (s *Server) RegisterMethod(name string, handler RequestHandler) error {
	return s.router.RegisterMethod(name, handler)
}

// Methods returns the registered method names
func (s *Server) Methods() []string {
	return s.router.GetMethods()
}

// GetConnectedClients returns information about all connected clients
func (s *Server) GetConnectedClients() []ClientInfo {
	return s.clients.GetConnectedClients()
}

// CloseIdleClients disconnects WebSocket clients silent for longer than
// maxIdle. Clients waiting on a call are kept.
func (s *Server) CloseIdleClients(maxIdle time.Duration) int {
	return s.clients.CloseIdle(time.Now().Add(-maxIdle))
}

// beginRequest registers an in-flight request unless the server is stopping
func (s *Server) beginRequest() bool {
	s.shutdownMu.RLock()
	defer s.shutdownMu.RUnlock()

	if s.isShuttingDown {
		return false
	}
	s.inFlightReqs.Add(1)
	return true
}

// requestContext detaches the request from client disconnects so a running
// process is only stopped by its timeout or by shutdown. Trace values are
// carried over.
func (s *Server) requestContext(w http.ResponseWriter, r *http.Request) context.Context {
	traceID := r.Header.Get(TraceHeader)
	if traceID == "" {
		traceID = tracing.NewTraceID()
	}
	w.Header().Set(TraceHeader, traceID)

	ctx := tracing.Detach(s.baseCtx, r.Context())
	ctx = tracing.WithTraceID(ctx, traceID)
	return tracing.WithRequestID(ctx, tracing.NewTraceID())
}

// handleRPC handles single-shot HTTP JSON-RPC requests
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if !s.beginRequest() {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse(nil, FormatError(sandbox.ErrSandboxNotRunning)))
		return
	}
	defer s.inFlightReqs.Done()

	ctx := s.requestContext(w, r)
	logger := tracing.LoggerFromContext(ctx, s.logger)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse(nil,
				NewRPCError(InvalidRequest, "Invalid request: body too large", map[string]interface{}{"limit": tooLarge.Limit})))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse(nil, NewRPCError(ParseError, "Parse error", err.Error())))
		return
	}

	logger.Debug().Int("bytes", len(body)).Msg("Gateway received HTTP RPC request")

	resp := s.router.Dispatch(ctx, body)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleMetadata serves GET /mcp
func (s *Server) handleMetadata(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ServerMetadata{
		Name:            ServerName,
		Version:         s.cfg.Version,
		ProtocolVersion: ProtocolVersion,
		Transports:      []string{"http", "websocket"},
		Tools:           s.registry.Names(),
	})
}

// handleListTools serves GET /mcp/tools with the tools/list payload
func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(s.toolsList)
}

// handleInvokeTool serves POST /mcp/tools/{name}/invoke. The body is the
// tool's argument object; errors map to HTTP status codes.
func (s *Server) handleInvokeTool(w http.ResponseWriter, r *http.Request) {
	if !s.beginRequest() {
		writeRESTError(w, FormatError(sandbox.ErrSandboxNotRunning))
		return
	}
	defer s.inFlightReqs.Done()

	ctx := s.requestContext(w, r)
	name := r.PathValue("name")

	if _, err := s.registry.Resolve(name); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"error": NewRPCError(InvalidParams, err.Error(), map[string]interface{}{"tool": name}),
		})
		return
	}

	var args map[string]interface{}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err := dec.Decode(&args); err != nil && !errors.Is(err, io.EOF) {
		writeRESTError(w, NewRPCError(InvalidParams, "Invalid arguments", err.Error()))
		return
	}

	result, rpcErr := s.callTool(ctx, name, args)
	if rpcErr != nil {
		writeRESTError(w, rpcErr)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.shutdownMu.RLock()
	stopping := s.isShuttingDown
	s.shutdownMu.RUnlock()

	if stopping {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "shutting_down"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleWebSocket upgrades the connection and serves JSON-RPC over it
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.shutdownMu.RLock()
	stopping := s.isShuttingDown
	s.shutdownMu.RUnlock()
	if stopping {
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}
	conn.SetReadLimit(s.cfg.MaxBodyBytes)
	// the hijacked conn keeps the server's read deadline
	_ = conn.SetReadDeadline(time.Time{})

	clientID, err := gonanoid.New()
	if err != nil {
		clientID = fmt.Sprintf("client-%d", time.Now().UnixNano())
	}
	client := &Client{
		ID:          clientID,
		Conn:        conn,
		ConnectedAt: time.Now(),
		IPAddress:   r.RemoteAddr,
		RateLimiter: NewClientRateLimiter(s.cfg.RequestsPerMinute, s.cfg.MaxConcurrent),
	}
	client.Touch()

	s.clients.Add(client)

	s.logger.Info().
		Str("client_id", clientID).
		Str("ip", r.RemoteAddr).
		Msg("Client connected")

	go s.handleClient(client)
}

// handleClient reads messages until the connection closes
func (s *Server) handleClient(client *Client) {
	defer func() {
		_ = client.Conn.Close()
		s.clients.Remove(client.ID)
		s.logger.Info().Str("client_id", client.ID).Msg("Client disconnected")
	}()

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Str("client_id", client.ID).Msg("WebSocket error")
			}
			return
		}

		client.Touch()
		s.handleMessage(client, message)
	}
}

// handleMessage routes one WebSocket message on its own goroutine
func (s *Server) handleMessage(client *Client, message []byte) {
	if err := client.RateLimiter.Acquire(); err != nil {
		var id json.RawMessage
		if req, parseErr := s.router.ParseRequest(message); parseErr == nil {
			if req.IsNotification() {
				return
			}
			id = req.ID
		}
		s.send(client, errorResponse(id, rateLimitError(err)))
		return
	}

	if !s.beginRequest() {
		client.RateLimiter.Release()
		return
	}

	ctx := tracing.WithClientID(s.baseCtx, client.ID)
	ctx = tracing.WithTraceID(ctx, tracing.NewTraceID())

	go func() {
		defer s.inFlightReqs.Done()
		defer client.RateLimiter.Release()

		if resp := s.router.Dispatch(ctx, message); resp != nil {
			s.send(client, resp)
		}
	}()
}

func (s *Server) send(client *Client, resp *RPCResponse) {
	if err := client.WriteJSON(resp, defaultWriteWait); err != nil {
		s.logger.Error().
			Err(err).
			Str("client_id", client.ID).
			RawJSON("id", rawID(resp.ID)).
			Msg("Failed to send response")
	}
}

func rawID(id json.RawMessage) []byte {
	if len(id) == 0 {
		return []byte("null")
	}
	return id
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeRESTError(w http.ResponseWriter, rpcErr *RPCError) {
	writeJSON(w, HTTPStatus(rpcErr.Code), map[string]interface{}{"error": rpcErr})
}

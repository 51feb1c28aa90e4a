// Package daemon wires the configuration into a running server: policy,
// validator, executor, tool registry, gateway and the optional metrics,
// audit and tracing outputs.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/harun/ffmpeg-mcp/internal/config"
	"github.com/harun/ffmpeg-mcp/internal/logger"
	"github.com/harun/ffmpeg-mcp/internal/metrics"
	"github.com/harun/ffmpeg-mcp/internal/observability"
	"github.com/harun/ffmpeg-mcp/internal/tracing"
	"github.com/harun/ffmpeg-mcp/pkg/gateway"
	"github.com/harun/ffmpeg-mcp/pkg/policy"
	"github.com/harun/ffmpeg-mcp/pkg/sandbox"
	"github.com/harun/ffmpeg-mcp/pkg/toolexecutor"
	"github.com/harun/ffmpeg-mcp/pkg/validator"
)

// Options controls what Start brings up
type Options struct {
	// Version is reported in serverInfo and the metadata endpoint
	Version string

	// Serve binds the listener; one-shot in-process calls leave it false
	Serve bool

	// PIDFile is written while serving when set
	PIDFile string

	// ConfigPath is watched for changes while serving when set
	ConfigPath string
}

// Status is a point-in-time view of the daemon
type Status struct {
	Running       bool          `json:"running"`
	StartTime     time.Time     `json:"start_time,omitempty"`
	Uptime        time.Duration `json:"uptime"`
	FFmpegVersion string        `json:"ffmpeg_version,omitempty"`
	Addr          string        `json:"addr,omitempty"`
	InFlight      int           `json:"in_flight"`
	Clients       int           `json:"clients"`
}

// Daemon represents the ffmpeg-mcp service
type Daemon struct {
	config *config.Config
	logger *logger.Logger
	opts   Options

	policy    *policy.Policy
	validator *validator.Validator
	executor  *sandbox.Executor
	registry  *toolexecutor.Registry
	gateway   *gateway.Server
	metrics   *metrics.Metrics
	audit     *observability.AuditLogger

	eventLoop *EventLoop
	lifecycle *LifecycleManager

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startTime     time.Time
	ffmpegVersion string
	running       bool
	mu            sync.RWMutex

	tracingEnabled bool
}

// New validates cfg and builds every component without starting any of
// them. Policy errors (missing binary, missing root) are returned here.
func New(cfg *config.Config, log *logger.Logger, opts Options) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Daemon{
		config: cfg,
		logger: log,
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
	}

	if cfg.Observability.Tracing {
		if err := tracing.InitOpenTelemetry(gateway.ServerName, opts.Version); err != nil {
			log.Warn().Err(err).Msg("Failed to initialize tracing, continuing without spans")
		} else {
			d.tracingEnabled = true
			log.Info().Msg("Tracing initialized")
		}
	}

	if err := d.initializeCoreModules(); err != nil {
		d.abort()
		return nil, fmt.Errorf("failed to initialize core modules: %w", err)
	}

	if err := d.initializeServices(); err != nil {
		d.abort()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	d.eventLoop = NewEventLoop(d)
	d.lifecycle = NewLifecycleManager(d, opts.PIDFile)

	return d, nil
}

// initializeCoreModules builds the policy, validator, executor and registry
func (d *Daemon) initializeCoreModules() error {
	p, err := policy.New(d.config.ToPolicyConfig())
	if err != nil {
		return err
	}
	d.policy = p
	d.logger.Info().
		Str("binary", p.BinaryPath()).
		Str("root", p.Root()).
		Msg("Policy loaded")

	d.validator = validator.New(p)

	if d.config.Observability.Metrics {
		d.metrics = metrics.NewMetrics()
	}

	execCfg := sandbox.ExecutorConfig{Policy: p}
	if d.metrics != nil {
		execCfg.Observer = d.metrics
	}
	executor, err := sandbox.NewExecutor(execCfg)
	if err != nil {
		return fmt.Errorf("failed to create executor: %w", err)
	}
	d.executor = executor

	registry, err := toolexecutor.NewRegistry(toolexecutor.NewFFmpegTool(d.validator, d.executor))
	if err != nil {
		return fmt.Errorf("failed to create tool registry: %w", err)
	}
	d.registry = registry
	d.logger.Info().Strs("tools", registry.Names()).Msg("Tool registry initialized")

	return nil
}

// initializeServices builds the audit trail and the gateway
func (d *Daemon) initializeServices() error {
	if path := d.config.Observability.AuditFile; path != "" {
		audit, err := observability.NewAuditLogger(path)
		if err != nil {
			return fmt.Errorf("failed to open audit log: %w", err)
		}
		d.audit = audit
		d.logger.Info().Str("path", path).Msg("Audit logger initialized")
	}

	srv := d.config.Server
	zl := d.logger.GetZerolog()
	gwCfg := gateway.Config{
		ListenAddr:        srv.ListenAddr,
		MaxBodyBytes:      srv.MaxBodyBytes,
		ReadTimeout:       srv.ReadTimeout,
		ShutdownTimeout:   srv.ShutdownTimeout,
		RequestsPerMinute: srv.WebSocket.RequestsPerMinute,
		MaxConcurrent:     srv.WebSocket.MaxConcurrent,
		Version:           d.opts.Version,
		Registry:          d.registry,
		Logger:            &zl,
	}
	if d.metrics != nil {
		gwCfg.MetricsHandler = d.metrics.Handler()
		gwCfg.Observer = d.metrics
	}
	if d.audit != nil {
		gwCfg.Audit = d.audit
	}

	gw, err := gateway.NewServer(gwCfg)
	if err != nil {
		return fmt.Errorf("failed to create gateway server: %w", err)
	}
	d.gateway = gw

	return nil
}

// Start starts the executor, probes the binary and, when serving, binds the
// listener. Any failure here is fatal and leaves nothing running.
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	d.mu.Unlock()

	traceID := tracing.NewTraceID()
	logger := d.logger.GetZerolog().With().Str("trace_id", traceID).Logger()
	logger.Info().Bool("serve", d.opts.Serve).Msg("Starting ffmpeg-mcp")

	if err := d.executor.Start(d.ctx); err != nil {
		return fmt.Errorf("failed to start executor: %w", err)
	}

	probeCtx := tracing.WithTraceID(d.ctx, traceID)
	version, err := sandbox.ProbeVersion(probeCtx, d.validator, d.executor, d.config.FFmpeg.MinVersion)
	if err != nil {
		_ = d.executor.Stop(context.Background())
		return fmt.Errorf("ffmpeg probe: %w", err)
	}
	logger.Info().Str("version", version).Msg("FFmpeg binary verified")

	if d.opts.Serve {
		if err := d.lifecycle.Start(); err != nil {
			_ = d.executor.Stop(context.Background())
			return fmt.Errorf("failed to start lifecycle manager: %w", err)
		}

		if err := d.gateway.Start(); err != nil {
			_ = d.lifecycle.Stop()
			_ = d.executor.Stop(context.Background())
			return err
		}
		logger.Info().Str("addr", d.gateway.Addr().String()).Msg("Gateway server started")

		if d.opts.ConfigPath != "" {
			if _, err := os.Stat(d.opts.ConfigPath); err == nil {
				if err := config.Watch(d.ctx, d.opts.ConfigPath, nil); err != nil {
					logger.Warn().Err(err).Msg("Failed to watch config file")
				}
			}
		}

		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.eventLoop.Run(d.ctx)
		}()
	}

	d.mu.Lock()
	d.running = true
	d.startTime = time.Now()
	d.ffmpegVersion = version
	d.mu.Unlock()

	if d.audit != nil {
		md := map[string]interface{}{"version": d.opts.Version, "ffmpeg_version": version}
		if addr := d.gateway.Addr(); addr != nil {
			md["addr"] = addr.String()
		}
		d.audit.RecordLifecycle(probeCtx, "server_started", md)
	}

	logger.Info().Msg("ffmpeg-mcp started")
	return nil
}

// Stop shuts the gateway down (terminating running processes once the
// shutdown timeout expires), stops the executor and releases resources
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is not running")
	}
	d.running = false
	d.mu.Unlock()

	logger := d.logger.GetZerolog()
	logger.Info().Msg("Stopping ffmpeg-mcp")

	var errs []error

	if err := d.gateway.Stop(context.Background()); err != nil {
		errs = append(errs, err)
	}

	d.cancel()
	d.wg.Wait()

	stopCtx, cancel := context.WithTimeout(context.Background(), d.config.Policy.KillGrace+5*time.Second)
	defer cancel()
	if err := d.executor.Stop(stopCtx); err != nil && !errors.Is(err, sandbox.ErrSandboxNotRunning) {
		errs = append(errs, err)
	}

	if d.opts.Serve {
		if err := d.lifecycle.Stop(); err != nil {
			errs = append(errs, err)
		}
	}

	if d.audit != nil {
		d.audit.RecordLifecycle(context.Background(), "server_stopped", nil)
		if err := d.audit.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	d.shutdownTracing()

	if err := errors.Join(errs...); err != nil {
		logger.Error().Err(err).Msg("ffmpeg-mcp stopped with errors")
		return err
	}

	logger.Info().Msg("ffmpeg-mcp stopped")
	return nil
}

// Status returns the daemon status
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := Status{
		Running:  d.running,
		InFlight: d.executor.InFlight(),
		Clients:  len(d.gateway.GetConnectedClients()),
	}

	if d.running {
		status.Uptime = time.Since(d.startTime)
		status.StartTime = d.startTime
		status.FFmpegVersion = d.ffmpegVersion
		if addr := d.gateway.Addr(); addr != nil {
			status.Addr = addr.String()
		}
	}

	return status
}

// Wait blocks until SIGINT or SIGTERM, then stops the daemon
func (d *Daemon) Wait() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	d.logger.Info().Msg("Received shutdown signal")

	return d.Stop()
}

// Dispatch handles one JSON-RPC envelope in-process
func (d *Daemon) Dispatch(ctx context.Context, data []byte) *gateway.RPCResponse {
	return d.gateway.Dispatch(tracing.NewRequestContext(ctx), data)
}

// GetConfig returns the daemon configuration
func (d *Daemon) GetConfig() *config.Config {
	return d.config
}

// GetLogger returns the daemon logger
func (d *Daemon) GetLogger() *logger.Logger {
	return d.logger
}

// GetRegistry returns the tool registry
func (d *Daemon) GetRegistry() *toolexecutor.Registry {
	return d.registry
}

// GetGatewayServer returns the gateway server
func (d *Daemon) GetGatewayServer() *gateway.Server {
	return d.gateway
}

// GetExecutor returns the process executor
func (d *Daemon) GetExecutor() *sandbox.Executor {
	return d.executor
}

// abort releases what New managed to set up before failing
func (d *Daemon) abort() {
	d.cancel()
	if d.audit != nil {
		_ = d.audit.Close()
	}
	d.shutdownTracing()
}

func (d *Daemon) shutdownTracing() {
	if !d.tracingEnabled {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tracing.ShutdownOpenTelemetry(ctx); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to shut down tracing")
	}
	d.tracingEnabled = false
}

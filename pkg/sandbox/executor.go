package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/semaphore"

	"github.com/harun/ffmpeg-mcp/internal/tracing"
	"github.com/harun/ffmpeg-mcp/pkg/policy"
	"github.com/harun/ffmpeg-mcp/pkg/validator"
)

const (
	defaultPath = "/usr/local/bin:/usr/bin:/bin"

	// minWaitDelay bounds how long Wait keeps reading pipes held open by
	// descendants after the child itself exited.
	minWaitDelay = 500 * time.Millisecond
)

// ExecutorConfig configures an Executor
type ExecutorConfig struct {
	// Policy supplies the binary, limits and environment passthrough
	Policy *policy.Policy

	// Observer receives lifecycle events (optional)
	Observer Observer
}

// Executor spawns the policy binary for validated argument vectors
type Executor struct {
	policy   *policy.Policy
	observer Observer
	logger   zerolog.Logger
	env      []string

	sem      *semaphore.Weighted
	inFlight atomic.Int64
	wg       sync.WaitGroup

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
}

// NewExecutor creates a stopped executor
func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	if cfg.Policy == nil {
		return nil, fmt.Errorf("invalid config: policy is required")
	}

	observer := cfg.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	return &Executor{
		policy:   cfg.Policy,
		observer: observer,
		logger:   log.With().Str("component", "sandbox").Logger(),
		env:      buildEnvironment(cfg.Policy),
		sem:      semaphore.NewWeighted(int64(cfg.Policy.MaxConcurrent())),
	}, nil
}

// Start makes the executor accept work
func (e *Executor) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return ErrSandboxAlreadyRunning
	}

	e.logger.Info().
		Str("binary", e.policy.BinaryPath()).
		Str("root", e.policy.Root()).
		Int("max_concurrent", e.policy.MaxConcurrent()).
		Msg("Starting executor")

	e.running = true
	e.stopCh = make(chan struct{})
	return nil
}

// Stop refuses new work, terminates running processes and waits until they
// are reaped or ctx expires.
func (e *Executor) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return ErrSandboxNotRunning
	}
	e.running = false
	close(e.stopCh)
	e.mu.Unlock()

	e.logger.Info().Int("in_flight", e.InFlight()).Msg("Stopping executor")

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for executions: %w", ctx.Err())
	}
}

// IsRunning returns whether the executor accepts work
func (e *Executor) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// InFlight returns the number of admitted executions
func (e *Executor) InFlight() int {
	return int(e.inFlight.Load())
}

// Policy returns the policy the executor enforces
func (e *Executor) Policy() *policy.Policy {
	return e.policy
}

// Run executes a validated argument vector. Once admitted it always returns
// a Result whose trace ends in StateReaped, and no process it started is
// left running. The only errors are ErrUnvalidated, ErrSandboxNotRunning and
// ErrAdmissionRejected, all returned before anything is spawned.
func (e *Executor) Run(ctx context.Context, args validator.SafeArgs) (Result, error) {
	if !args.Checked() {
		return Result{}, ErrUnvalidated
	}

	e.mu.RLock()
	if !e.running {
		e.mu.RUnlock()
		return Result{}, ErrSandboxNotRunning
	}
	if !e.sem.TryAcquire(1) {
		e.mu.RUnlock()
		e.observer.ExecutionRejected()
		e.logger.Warn().
			Int("max_concurrent", e.policy.MaxConcurrent()).
			Msg("Execution rejected at admission")
		return Result{}, ErrAdmissionRejected
	}
	e.wg.Add(1)
	stopCh := e.stopCh
	e.mu.RUnlock()

	admitted := e.inFlight.Add(1)
	e.observer.ExecutionAdmitted(int(admitted))

	var res Result
	defer func() {
		remaining := e.inFlight.Add(-1)
		e.sem.Release(1)
		e.observer.ExecutionFinished(res, int(remaining))
		e.wg.Done()
	}()

	res = e.run(ctx, stopCh, args)
	return res, nil
}

func (e *Executor) run(ctx context.Context, stopCh <-chan struct{}, args validator.SafeArgs) Result {
	execID, err := gonanoid.New()
	if err != nil {
		execID = fmt.Sprintf("exec-%d", time.Now().UnixNano())
	}
	ctx = tracing.WithExecID(ctx, execID)
	ctx, span := tracing.StartSpan(ctx, "sandbox.run",
		attribute.String("exec_id", execID),
		attribute.Int64("timeout_ms", args.Timeout().Milliseconds()),
	)
	defer span.End()

	logger := tracing.LoggerFromContext(ctx, e.logger)
	lc := newLifecycle()

	res := Result{
		ExecID:         execID,
		Timeout:        args.Timeout(),
		TimeoutClamped: args.Clamped(),
	}

	stdout := newBoundedBuffer(e.policy.MaxOutputBytes())
	stderr := newBoundedBuffer(e.policy.MaxOutputBytes())

	cmd := exec.Command(e.policy.BinaryPath(), args.Argv()...)
	cmd.Dir = args.Dir()
	cmd.Env = e.env
	cmd.Stdin = nil
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = e.policy.KillGrace()
	if cmd.WaitDelay < minWaitDelay {
		cmd.WaitDelay = minWaitDelay
	}
	isolate(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		lc.to(StateSpawnFailed)
		lc.to(StateReaped)

		res.Cause = CauseSpawnFailed
		res.Err = fmt.Errorf("%w: %v", ErrSpawnFailed, err)
		res.Duration = time.Since(start)
		res.States = lc.states()

		span.SetStatus(codes.Error, res.Err.Error())
		logger.Error().Err(err).Str("binary", e.policy.BinaryPath()).Msg("Failed to spawn process")
		return res
	}

	lc.to(StateSpawned)
	res.PID = cmd.Process.Pid
	lc.to(StateRunning)

	logger.Debug().
		Int("pid", res.PID).
		Strs("args", args.Argv()).
		Str("dir", args.Dir()).
		Dur("timeout", args.Timeout()).
		Msg("Process started")

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(args.Timeout())
	defer timer.Stop()

	var waitErr error
	select {
	case waitErr = <-done:
		if exitedBySignal(cmd.ProcessState) {
			lc.to(StateKilled)
			res.Cause = CauseKilled
		} else {
			lc.to(StateCompleted)
			res.Cause = CauseNormal
		}

	case <-timer.C:
		lc.to(StateTimedOut)
		res.Cause = CauseTimedOut
		logger.Warn().Int("pid", res.PID).Dur("timeout", args.Timeout()).Msg("Process timed out, terminating")
		waitErr = e.terminate(res.PID, done, logger)
		lc.to(StateKilled)

	case <-ctx.Done():
		lc.to(StateKilled)
		res.Cause = CauseKilled
		logger.Warn().Int("pid", res.PID).Msg("Execution cancelled, terminating")
		waitErr = e.terminate(res.PID, done, logger)

	case <-stopCh:
		lc.to(StateKilled)
		res.Cause = CauseKilled
		logger.Warn().Int("pid", res.PID).Msg("Executor stopping, terminating")
		waitErr = e.terminate(res.PID, done, logger)
	}

	if sweepNeeded(res.Cause, waitErr) {
		if err := killGroup(res.PID); err != nil {
			logger.Debug().Err(err).Int("pid", res.PID).Msg("Process group sweep failed")
		}
	}
	lc.to(StateReaped)

	res.Duration = time.Since(start)
	res.Stdout = stdout.output()
	res.Stderr = stderr.output()
	res.States = lc.states()
	if cmd.ProcessState != nil {
		if code := cmd.ProcessState.ExitCode(); code >= 0 {
			res.ExitCode = &code
		}
	}

	if waitErr != nil {
		logger.Debug().Err(waitErr).Msg("Wait returned")
	}

	span.SetAttributes(
		attribute.String("cause", string(res.Cause)),
		attribute.Bool("stdout_truncated", res.Stdout.Truncated),
		attribute.Bool("stderr_truncated", res.Stderr.Truncated),
	)
	if res.Failed() {
		span.SetStatus(codes.Error, string(res.Cause))
	}

	event := logger.Info()
	if res.Cause != CauseNormal {
		event = logger.Warn()
	}
	if res.ExitCode != nil {
		event = event.Int("exit_code", *res.ExitCode)
	}
	event.
		Int("pid", res.PID).
		Str("cause", string(res.Cause)).
		Dur("duration", res.Duration).
		Bool("stdout_truncated", res.Stdout.Truncated).
		Bool("stderr_truncated", res.Stderr.Truncated).
		Msg("Process reaped")

	return res
}

// terminate sends SIGTERM to the group, waits the grace period, then sends
// SIGKILL. It returns once Wait has returned.
func (e *Executor) terminate(pid int, done <-chan error, logger zerolog.Logger) error {
	if err := terminateGroup(pid); err != nil {
		logger.Debug().Err(err).Int("pid", pid).Msg("SIGTERM failed")
	}

	grace := time.NewTimer(e.policy.KillGrace())
	defer grace.Stop()

	select {
	case err := <-done:
		return err
	case <-grace.C:
	}

	logger.Warn().Int("pid", pid).Dur("grace", e.policy.KillGrace()).Msg("Process ignored SIGTERM, killing")
	if err := killGroup(pid); err != nil {
		logger.Error().Err(err).Int("pid", pid).Msg("SIGKILL failed")
	}

	return <-done
}

// sweepNeeded reports whether group members may have outlived the reaped
// leader. A group whose members are all gone frees its PGID for reuse, so it
// is only signalled when Wait gave up on held pipes or the run was cut short.
func sweepNeeded(cause Cause, waitErr error) bool {
	if errors.Is(waitErr, exec.ErrWaitDelay) {
		return true
	}
	return cause == CauseTimedOut || cause == CauseKilled
}

func exitedBySignal(ps *os.ProcessState) bool {
	return ps != nil && ps.ExitCode() < 0
}

// buildEnvironment returns the minimal environment handed to the child
func buildEnvironment(p *policy.Policy) []string {
	path := os.Getenv("PATH")
	if path == "" {
		path = defaultPath
	}

	env := []string{
		"PATH=" + path,
		"HOME=" + p.Root(),
		"AV_LOG_FORCE_NOCOLOR=1",
	}

	for _, key := range p.EnvPassthrough() {
		if key == "PATH" || key == "HOME" {
			continue
		}
		if value, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+value)
		}
	}

	return env
}

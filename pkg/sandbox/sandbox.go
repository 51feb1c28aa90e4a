// Package sandbox runs validated argument vectors as supervised child
// processes: admission against a global cap, bounded output capture, a
// countdown with graceful then forced termination, and unconditional reaping.
package sandbox

import (
	"context"
	"time"

	"github.com/harun/ffmpeg-mcp/pkg/validator"
)

// Cause describes how an execution ended
type Cause string

const (
	// CauseNormal means the process exited on its own
	CauseNormal Cause = "normal"
	// CauseTimedOut means the countdown elapsed and the process was terminated
	CauseTimedOut Cause = "timed-out"
	// CauseKilled means the process died from a signal it was not sent for a timeout
	CauseKilled Cause = "killed"
	// CauseSpawnFailed means no process was ever started
	CauseSpawnFailed Cause = "spawn-failed"
)

// Output is one captured stream
type Output struct {
	// Data holds at most the policy's MaxOutputBytes
	Data []byte `json:"data"`

	// Truncated is set when bytes were discarded
	Truncated bool `json:"truncated"`

	// Dropped counts the discarded bytes
	Dropped int64 `json:"dropped"`
}

// String returns the captured bytes as text
func (o Output) String() string { return string(o.Data) }

// Result represents one finished execution
type Result struct {
	// ExecID identifies the execution in logs, metrics and audit records
	ExecID string `json:"exec_id"`

	// PID of the child, zero when spawning failed
	PID int `json:"pid,omitempty"`

	// ExitCode is nil when the process was terminated by a signal or never ran
	ExitCode *int `json:"exit_code"`

	// Stdout is the captured standard output
	Stdout Output `json:"stdout"`

	// Stderr is the captured standard error
	Stderr Output `json:"stderr"`

	// Duration is the wall-clock time from spawn attempt to reap
	Duration time.Duration `json:"duration"`

	// Cause is the termination cause
	Cause Cause `json:"cause"`

	// Timeout is the effective timeout that applied
	Timeout time.Duration `json:"timeout"`

	// TimeoutClamped is set when the requested timeout was capped by policy
	TimeoutClamped bool `json:"timeout_clamped"`

	// States is the lifecycle trace, always ending in StateReaped
	States []State `json:"states"`

	// Err carries the spawn error for CauseSpawnFailed
	Err error `json:"-"`
}

// Failed reports whether the result should be presented as an error:
// anything but a normal exit with code zero.
func (r Result) Failed() bool {
	return r.Cause != CauseNormal || r.ExitCode == nil || *r.ExitCode != 0
}

// Observer receives execution lifecycle events. Implementations must be safe
// for concurrent use.
type Observer interface {
	ExecutionAdmitted(inFlight int)
	ExecutionRejected()
	ExecutionFinished(res Result, inFlight int)
}

// Runner runs validated argument vectors
type Runner interface {
	// Run executes args and always returns a Result once admitted
	Run(ctx context.Context, args validator.SafeArgs) (Result, error)

	// InFlight returns the number of admitted executions
	InFlight() int
}

type nopObserver struct{}

func (nopObserver) ExecutionAdmitted(int)         {}
func (nopObserver) ExecutionRejected()            {}
func (nopObserver) ExecutionFinished(Result, int) {}

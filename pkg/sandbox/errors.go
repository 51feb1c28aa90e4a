package sandbox

import "errors"

var (
	// ErrAdmissionRejected is returned when the concurrency cap is reached
	ErrAdmissionRejected = errors.New("too many concurrent executions")

	// ErrUnvalidated is returned when Run receives arguments Validate did not produce
	ErrUnvalidated = errors.New("argument vector was not validated")

	// ErrSandboxNotRunning is returned when the executor is not started or already stopped
	ErrSandboxNotRunning = errors.New("executor is not running")

	// ErrSandboxAlreadyRunning is returned when Start is called twice
	ErrSandboxAlreadyRunning = errors.New("executor is already running")

	// ErrSpawnFailed wraps the reason a process could not be started
	ErrSpawnFailed = errors.New("spawn failed")

	// ErrProbeFailed is returned when the version probe does not exit cleanly
	ErrProbeFailed = errors.New("version probe failed")

	// ErrVersionUnsupported is returned when the binary does not satisfy the version constraint
	ErrVersionUnsupported = errors.New("unsupported binary version")
)

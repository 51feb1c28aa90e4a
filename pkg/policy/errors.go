package policy

import "errors"

var (
	// ErrInvalidBinary is returned when the binary path is empty
	ErrInvalidBinary = errors.New("invalid binary path")

	// ErrBinaryNotFound is returned when the binary cannot be resolved on this host
	ErrBinaryNotFound = errors.New("binary not found")

	// ErrInvalidRoot is returned when the working-directory root is missing or not a directory
	ErrInvalidRoot = errors.New("invalid working directory root")

	// ErrInvalidTimeout is returned when a timeout limit is invalid
	ErrInvalidTimeout = errors.New("invalid timeout (must be > 0 and default <= max)")

	// ErrInvalidKillGrace is returned when the kill grace period is negative
	ErrInvalidKillGrace = errors.New("invalid kill grace (must be >= 0)")

	// ErrInvalidOutputLimit is returned when the per-stream output cap is invalid
	ErrInvalidOutputLimit = errors.New("invalid output limit (must be > 0)")

	// ErrInvalidConcurrency is returned when the concurrency cap is invalid
	ErrInvalidConcurrency = errors.New("invalid concurrency limit (must be > 0)")

	// ErrInvalidArgLimit is returned when the argument count or size limit is invalid
	ErrInvalidArgLimit = errors.New("invalid argument limit (must be > 0)")
)

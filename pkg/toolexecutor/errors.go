package toolexecutor

import "errors"

var (
	// ErrToolNotFound is returned when a tool name is not registered
	ErrToolNotFound = errors.New("tool not found")

	// ErrInvalidArguments is returned when tool arguments fail the input schema
	ErrInvalidArguments = errors.New("invalid tool arguments")

	// ErrDuplicateTool is returned when two tools share a name
	ErrDuplicateTool = errors.New("duplicate tool name")

	// ErrInvalidDefinition is returned when a tool definition is incomplete
	ErrInvalidDefinition = errors.New("invalid tool definition")
)

package validator

import "fmt"

// Reason classifies why an argument vector was rejected
type Reason string

const (
	ReasonSizeLimit          Reason = "size-limit"
	ReasonEmptyArgument      Reason = "empty-argument"
	ReasonShellOperator      Reason = "shell-operator"
	ReasonInvalidCharacter   Reason = "invalid-character"
	ReasonInvalidWorkingDir  Reason = "invalid-working-dir"
	ReasonPathEscape         Reason = "path-escape"
	ReasonDisallowedFlag     Reason = "disallowed-flag"
	ReasonDisallowedProtocol Reason = "disallowed-protocol"
	ReasonDisallowedFilter   Reason = "disallowed-filter"
)

// ValidationError reports the first policy check an argument vector failed.
// Index is the offending argument position, or -1 when the failure is not
// tied to a single argument.
type ValidationError struct {
	Reason  Reason
	Index   int
	Arg     string
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%s: argument %d (%q): %s", e.Reason, e.Index, e.Arg, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

func reject(reason Reason, index int, arg string, format string, a ...interface{}) *ValidationError {
	return &ValidationError{
		Reason:  reason,
		Index:   index,
		Arg:     arg,
		Message: fmt.Sprintf(format, a...),
	}
}

package chatmodel

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrProviderUnavailable is returned when the tool provider session
	// is not established, or was lost.
	ErrProviderUnavailable = errors.New("tool provider unavailable")
	// ErrInputValidation is returned for malformed input, such as an empty query
	// or an unsupported server script.
	ErrInputValidation = errors.New("invalid input")
)

// ToolExecutionError is returned when a tool invocation fails,
// either at protocol level or because the tool reported an error result.
type ToolExecutionError struct {
	Name  string
	Cause error
}

// NewToolExecutionError returns a new ToolExecutionError
func NewToolExecutionError(name string, cause error) *ToolExecutionError {
	return &ToolExecutionError{Name: name, Cause: cause}
}

func (e *ToolExecutionError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("tool %q failed", e.Name)
	}
	return fmt.Sprintf("tool %q failed: %s", e.Name, e.Cause.Error())
}

func (e *ToolExecutionError) Unwrap() error {
	return e.Cause
}

// CompletionError is returned when the LLM completion call fails
type CompletionError struct {
	Cause error
}

// NewCompletionError returns a new CompletionError
func NewCompletionError(cause error) *CompletionError {
	return &CompletionError{Cause: cause}
}

func (e *CompletionError) Error() string {
	if e.Cause == nil {
		return "completion failed"
	}
	return "completion failed: " + e.Cause.Error()
}

func (e *CompletionError) Unwrap() error {
	return e.Cause
}

// ErrorKind is the category of a failure reported to the user
type ErrorKind string

const (
	KindNone                ErrorKind = ""
	KindProviderUnavailable ErrorKind = "provider_unavailable"
	KindToolExecution       ErrorKind = "tool_execution"
	KindCompletion          ErrorKind = "completion"
	KindInputValidation     ErrorKind = "input_validation"
	KindCanceled            ErrorKind = "canceled"
	KindUnknown             ErrorKind = "unknown"
)

// Kind returns the category of the error
func Kind(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	var toolErr *ToolExecutionError
	var complErr *CompletionError
	switch {
	case errors.Is(err, ErrInputValidation):
		return KindInputValidation
	case errors.As(err, &toolErr):
		return KindToolExecution
	case errors.Is(err, ErrProviderUnavailable):
		return KindProviderUnavailable
	case errors.As(err, &complErr):
		return KindCompletion
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	}
	return KindUnknown
}

// Describe returns a single-line diagnostic suitable to show to the user
// in place of an answer.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var toolErr *ToolExecutionError
	var complErr *CompletionError
	switch Kind(err) {
	case KindInputValidation:
		return "Error: " + err.Error()
	case KindToolExecution:
		errors.As(err, &toolErr)
		return "Error: " + toolErr.Error()
	case KindProviderUnavailable:
		return "Error: " + err.Error()
	case KindCompletion:
		errors.As(err, &complErr)
		return "Error: " + complErr.Error()
	case KindCanceled:
		return "Error: query canceled"
	}
	return "Error: " + err.Error()
}

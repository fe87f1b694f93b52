// Package tool implements the function calling subsystem that lets agents
// invoke structured capabilities (APIs, computations, side effects) with
// schema validated arguments and consistent error handling.
package tool

import (
	"errors"
	"fmt"

	"github.com/hupe1980/agentloop/internal/util"
)

// Tool defines the interface for extending agent capabilities with external functions.
//
// Tools are registered on agent definitions and become callable by the model
// during a run. Implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define a proper JSON schema for parameters
//   - Be safe for concurrent use (calls within one model turn run in parallel)
type Tool interface {
	// Name returns the unique identifier for this tool (snake_case recommended).
	Name() string

	// Description returns a human-readable description provided to the model
	// so it understands when and how to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	Parameters() map[string]any

	// Call executes the tool with parsed arguments and the per-call Context.
	// Arguments have been parsed from JSON; FunctionTool additionally
	// validates them against the tool's schema before invocation.
	Call(toolCtx *Context, args map[string]any) (any, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// Error codes attached to ToolError values.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeExecutionError  = "EXECUTION_ERROR"
	CodeUnknownTool     = "UNKNOWN_TOOL"
)

// ToolError represents errors that occur during tool resolution or execution.
// A ToolError is recoverable by default: the runner records it as an error
// result fed back to the model instead of aborting the run.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// FatalError marks a tool failure as non-recoverable. The runner aborts the
// whole run instead of feeding the error back to the model.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return fmt.Sprintf("fatal tool error: %v", e.Err) }

// Unwrap exposes the wrapped error for errors.Is / errors.As.
func (e *FatalError) Unwrap() error { return e.Err }

// Fatal wraps err so the runner treats the failure as non-recoverable.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal reports whether err is (or wraps) a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

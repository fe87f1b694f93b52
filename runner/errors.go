package runner

import (
	"fmt"

	"github.com/hupe1980/agentloop/core"
)

// Fatal run errors carry the partial RunState so history up to the failure
// point is not discarded. Inspect them with errors.As.

// MaxTurnsExceededError reports that the loop exhausted its turn budget
// without producing a final output. It is never retried.
type MaxTurnsExceededError struct {
	MaxTurns int
	State    *core.RunState
}

func (e *MaxTurnsExceededError) Error() string {
	return fmt.Sprintf("max turns (%d) exceeded without final output", e.MaxTurns)
}

// ModelBehaviorError reports that the provider returned a response the loop
// cannot interpret. It indicates a contract violation, not a transient
// failure, and is therefore not retried.
type ModelBehaviorError struct {
	Reason string
	State  *core.RunState
}

func (e *ModelBehaviorError) Error() string {
	return fmt.Sprintf("model behavior error: %s", e.Reason)
}

// HandoffNotFoundError reports a hand-off request naming a target that is not
// in the active agent's permitted hand-off set. Fatal: it indicates a
// misconfigured agent graph.
type HandoffNotFoundError struct {
	Agent  string // The agent that requested the hand-off
	Target string // The unknown target
	State  *core.RunState
}

func (e *HandoffNotFoundError) Error() string {
	return fmt.Sprintf("agent %q requested hand-off to unknown target %q", e.Agent, e.Target)
}

// FatalToolError reports a tool failure explicitly marked non-recoverable.
// Recoverable tool failures never surface here; they are fed back to the
// model as error results instead.
type FatalToolError struct {
	Tool  string
	Err   error
	State *core.RunState
}

func (e *FatalToolError) Error() string {
	return fmt.Sprintf("tool %q failed fatally: %v", e.Tool, e.Err)
}

// Unwrap exposes the underlying tool error.
func (e *FatalToolError) Unwrap() error { return e.Err }

// RunCancelledError is the terminal state of an externally cancelled run,
// distinct from both success and failure. In-flight tool calls were allowed
// to finish best effort; no further model calls were issued.
type RunCancelledError struct {
	Err   error // The context error that triggered cancellation
	State *core.RunState
}

func (e *RunCancelledError) Error() string {
	return fmt.Sprintf("run cancelled: %v", e.Err)
}

// Unwrap exposes the context error for errors.Is(err, context.Canceled).
func (e *RunCancelledError) Unwrap() error { return e.Err }

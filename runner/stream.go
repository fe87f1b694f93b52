package runner

import (
	"time"

	"github.com/hupe1980/agentloop/core"
)

// StreamEventKind enumerates the incremental events a streamed run produces.
type StreamEventKind string

const (
	// EventResponsePartialText carries an incremental chunk of assistant text.
	EventResponsePartialText StreamEventKind = "response.partial_text"
	// EventToolCallStarted signals that a requested tool call began executing.
	EventToolCallStarted StreamEventKind = "tool_call.started"
	// EventToolCallFinished signals that a tool call resolved (result or error).
	EventToolCallFinished StreamEventKind = "tool_call.finished"
	// EventHandoffOccurred signals that control transferred to another agent.
	EventHandoffOccurred StreamEventKind = "handoff.occurred"
	// EventGuardrailTripped signals that a guardrail aborted the run.
	EventGuardrailTripped StreamEventKind = "guardrail.tripped"
	// EventRunCompleted signals successful termination with a final output.
	EventRunCompleted StreamEventKind = "run.completed"
	// EventRunFailed signals terminal failure or cancellation.
	EventRunFailed StreamEventKind = "run.failed"
)

// StreamEvent is one element of the lazy, finite, forward-only event sequence
// a streamed run produces. Consuming events is read-only observation; it does
// not alter loop state. Each event carries enough payload to reconstruct the
// corresponding run state transition.
type StreamEvent struct {
	Kind      StreamEventKind        `json:"kind"`
	RunID     string                 `json:"run_id"`
	Agent     string                 `json:"agent,omitempty"` // Active agent when the event fired
	Timestamp time.Time              `json:"timestamp"`
	TextDelta string                 `json:"text_delta,omitempty"` // response.partial_text
	ToolCall  *core.FunctionCall     `json:"tool_call,omitempty"`  // tool_call.started / finished
	ToolResult *core.FunctionResponse `json:"tool_result,omitempty"` // tool_call.finished
	HandoffFrom string               `json:"handoff_from,omitempty"` // handoff.occurred
	HandoffTo   string               `json:"handoff_to,omitempty"`   // handoff.occurred
	Guardrail   string               `json:"guardrail,omitempty"`    // guardrail.tripped
	Reason      string               `json:"reason,omitempty"`       // guardrail.tripped
	Result      *RunResult           `json:"result,omitempty"`       // run.completed
	Err         error                `json:"-"`                      // run.failed
}

// emitFunc delivers a stream event to the consumer. nil means the run is not
// streamed and events are dropped at the source.
type emitFunc func(StreamEvent)

func (r *Runner) newEvent(kind StreamEventKind, runID, agent string) StreamEvent {
	return StreamEvent{Kind: kind, RunID: runID, Agent: agent, Timestamp: time.Now().UTC()}
}

// Package trace defines the telemetry sink the runner reports structured run
// events to. Recording is strictly best-effort and fire-and-forget: a failing
// or panicking sink must never fail the run, so the runner routes every call
// through Record which recovers internally.
package trace

import (
	"sync"
	"time"

	"github.com/hupe1980/agentloop/logging"
)

// EventKind enumerates the lifecycle points the runner reports.
type EventKind string

const (
	// KindRunStarted is recorded once when a run begins.
	KindRunStarted EventKind = "run.started"
	// KindModelCallStarted is recorded before each model provider call.
	KindModelCallStarted EventKind = "model_call.started"
	// KindModelCallFinished is recorded after each model provider call.
	KindModelCallFinished EventKind = "model_call.finished"
	// KindToolCallStarted is recorded before each tool execution.
	KindToolCallStarted EventKind = "tool_call.started"
	// KindToolCallFinished is recorded after each tool execution.
	KindToolCallFinished EventKind = "tool_call.finished"
	// KindHandoff is recorded when control transfers between agents.
	KindHandoff EventKind = "handoff"
	// KindGuardrailTripped is recorded when a guardrail aborts the run.
	KindGuardrailTripped EventKind = "guardrail.tripped"
	// KindRunFinished is recorded once when a run terminates (any outcome).
	KindRunFinished EventKind = "run.finished"
)

// Event is one structured telemetry record.
type Event struct {
	Kind      EventKind      `json:"kind"`
	RunID     string         `json:"run_id"`
	Agent     string         `json:"agent,omitempty"`
	Tool      string         `json:"tool,omitempty"`
	Target    string         `json:"target,omitempty"` // Hand-off target agent
	Error     string         `json:"error,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Tracer accepts structured events. Implementations must be safe for
// concurrent use; they should not block.
type Tracer interface {
	Record(ev Event)
}

// Record forwards ev to t, stamping the timestamp if unset and swallowing
// panics so telemetry can never take down a run. A nil tracer is a no-op.
func Record(t Tracer, ev Event) {
	if t == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	defer func() { _ = recover() }()
	t.Record(ev)
}

// NoopTracer discards all events.
type NoopTracer struct{}

// Record implements Tracer.
func (NoopTracer) Record(Event) {}

// SlogTracer writes events to a structured logger at info level.
type SlogTracer struct {
	logger logging.Logger
}

// NewSlogTracer constructs a Tracer backed by the given logger.
func NewSlogTracer(logger logging.Logger) *SlogTracer {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &SlogTracer{logger: logger}
}

// Record implements Tracer.
func (t *SlogTracer) Record(ev Event) {
	args := []any{"run_id", ev.RunID}
	if ev.Agent != "" {
		args = append(args, "agent", ev.Agent)
	}
	if ev.Tool != "" {
		args = append(args, "tool", ev.Tool)
	}
	if ev.Target != "" {
		args = append(args, "target", ev.Target)
	}
	if ev.Error != "" {
		args = append(args, "error", ev.Error)
	}
	for k, v := range ev.Detail {
		args = append(args, k, v)
	}
	t.logger.Info("trace."+string(ev.Kind), args...)
}

// Recorder collects events in memory for assertions in tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder constructs an empty Recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// Record implements Tracer.
func (r *Recorder) Record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of all recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds returns the ordered sequence of recorded event kinds.
func (r *Recorder) Kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

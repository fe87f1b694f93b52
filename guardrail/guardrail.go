// Package guardrail implements input/output validation checks that can abort
// a run. Guardrails are independent, side-effect-free pass/fail checks; the
// engine runs all guardrails of the relevant kind in configuration order and
// trips on the first failure, short-circuiting the remainder.
package guardrail

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/logging"
)

// Kind distinguishes input guardrails (run against user input before the
// model is called) from output guardrails (run against the candidate final
// output before the run terminates).
type Kind string

const (
	// KindInput marks guardrails evaluated against run input.
	KindInput Kind = "input"
	// KindOutput marks guardrails evaluated against the final output.
	KindOutput Kind = "output"
)

// Payload is the material a guardrail inspects: the content under check and
// a read-only view of the run state at evaluation time.
type Payload struct {
	Kind    Kind
	Content string
	State   *core.RunState
}

// Result is the outcome of a single guardrail check.
type Result struct {
	Tripped bool   // True aborts the run
	Reason  string // Human-readable explanation, reported on trip
}

// Guardrail is a single pass/fail safety check. Implementations must be
// side-effect free and safe for reuse across runs.
type Guardrail interface {
	Name() string
	Check(ctx context.Context, payload Payload) (Result, error)
}

// Func adapts an ordinary function into a named Guardrail.
type Func struct {
	name string
	fn   func(ctx context.Context, payload Payload) (Result, error)
}

// NewFunc constructs a Guardrail from a function.
func NewFunc(name string, fn func(ctx context.Context, payload Payload) (Result, error)) Func {
	return Func{name: name, fn: fn}
}

// Name returns the guardrail's identifier used in trip reports.
func (f Func) Name() string { return f.name }

// Check implements Guardrail.
func (f Func) Check(ctx context.Context, payload Payload) (Result, error) { return f.fn(ctx, payload) }

// TripwireError is returned when a guardrail trips. It always aborts the run
// and is never retried automatically.
type TripwireError struct {
	Guardrail string // Name of the first failing guardrail
	Kind      Kind
	Reason    string
	Content   string         // The payload that triggered the trip
	State     *core.RunState // Partial run state at trip time
}

func (e *TripwireError) Error() string {
	return fmt.Sprintf("%s guardrail %q tripped: %s", e.Kind, e.Guardrail, e.Reason)
}

// Engine evaluates a configured set of guardrails. The zero value is usable
// and passes everything.
type Engine struct {
	input  []Guardrail
	output []Guardrail
	logger logging.Logger
}

// NewEngine constructs an Engine with the given guardrail sets. Evaluation
// order follows configuration order.
func NewEngine(input, output []Guardrail, logger logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Engine{input: input, output: output, logger: logger}
}

// EvaluateInput runs all input guardrails against the given content.
// It returns a *TripwireError on the first tripped guardrail.
func (e *Engine) EvaluateInput(ctx context.Context, state *core.RunState, content string) error {
	return e.evaluate(ctx, e.input, Payload{Kind: KindInput, Content: content, State: state})
}

// EvaluateOutput runs all output guardrails against the candidate final output.
func (e *Engine) EvaluateOutput(ctx context.Context, state *core.RunState, content string) error {
	return e.evaluate(ctx, e.output, Payload{Kind: KindOutput, Content: content, State: state})
}

func (e *Engine) evaluate(ctx context.Context, checks []Guardrail, payload Payload) error {
	for _, g := range checks {
		res, err := g.Check(ctx, payload)
		if err != nil {
			return fmt.Errorf("guardrail %q failed to evaluate: %w", g.Name(), err)
		}
		if res.Tripped {
			e.logger.Warn("guardrail.tripped", "guardrail", g.Name(), "kind", string(payload.Kind), "reason", res.Reason)
			return &TripwireError{
				Guardrail: g.Name(),
				Kind:      payload.Kind,
				Reason:    res.Reason,
				Content:   payload.Content,
				State:     payload.State,
			}
		}
		e.logger.Debug("guardrail.passed", "guardrail", g.Name(), "kind", string(payload.Kind))
	}
	return nil
}

// Package runner implements the turn-based orchestration loop: it drives the
// active agent's model, executes requested tool calls, performs hand-offs
// between agents and terminates on a matching final output, an error, turn
// exhaustion or cancellation.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/agentloop/agent"
	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/guardrail"
	"github.com/hupe1980/agentloop/logging"
	"github.com/hupe1980/agentloop/model"
	"github.com/hupe1980/agentloop/trace"
)

// Options configures a Runner.
type Options struct {
	// MaxTurns bounds the number of model calls per run. Exceeding it is a
	// MaxTurnsExceededError, never a silent truncation.
	MaxTurns int

	// MaxParallelTools bounds concurrent tool executions within one turn.
	MaxParallelTools int

	// EventBufferSize sizes the stream event channel of RunStreamed.
	EventBufferSize int

	// InputGuardrails run against the user input before the first model call
	// (or every turn, see GuardrailsEveryTurn).
	InputGuardrails []guardrail.Guardrail

	// OutputGuardrails run against the candidate final output before the run
	// terminates successfully.
	OutputGuardrails []guardrail.Guardrail

	// GuardrailsEveryTurn re-evaluates input guardrails each turn instead of
	// only once at run start.
	GuardrailsEveryTurn bool

	// Logger receives structured diagnostics. Defaults to a slog text logger.
	Logger logging.Logger

	// Tracer receives lifecycle telemetry. Defaults to no tracing.
	Tracer trace.Tracer
}

// Runner drives agents to completion. A Runner is stateless between runs and
// safe for concurrent use; per-run state lives in core.RunState.
type Runner struct {
	opts     Options
	guards   *guardrail.Engine
	executor *toolExecutor
	logger   logging.Logger
	tracer   trace.Tracer
}

// New creates a Runner with the given options.
func New(optFns ...func(o *Options)) *Runner {
	opts := Options{
		MaxTurns:         10,
		MaxParallelTools: 4,
		EventBufferSize:  100,
		Logger:           logging.NewDefaultSlogLogger(),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Runner{
		opts:     opts,
		guards:   guardrail.NewEngine(opts.InputGuardrails, opts.OutputGuardrails, opts.Logger),
		executor: newToolExecutor(opts.MaxParallelTools, opts.Logger, opts.Tracer),
		logger:   opts.Logger,
		tracer:   opts.Tracer,
	}
}

// RunResult is the outcome of a successfully terminated run.
type RunResult struct {
	RunID         string         `json:"run_id"`
	FinalOutput   string         `json:"final_output"`
	OutputPayload map[string]any `json:"output_payload,omitempty"` // Parsed structured output, if the agent declared an OutputType
	LastAgent     string         `json:"last_agent"`               // Agent that produced the final output
	Usage         core.Usage     `json:"usage"`
	State         *core.RunState `json:"-"` // Full post-run state including history
}

// FinalOutputAs decodes the structured output payload of a run into T.
func FinalOutputAs[T any](res *RunResult) (T, error) {
	var out T
	if res == nil {
		return out, errors.New("nil run result")
	}

	raw := []byte(res.FinalOutput)
	if res.OutputPayload != nil {
		b, err := json.Marshal(res.OutputPayload)
		if err != nil {
			return out, fmt.Errorf("failed to re-encode output payload: %w", err)
		}
		raw = b
	}

	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("failed to decode final output: %w", err)
	}
	return out, nil
}

// Run executes the loop to completion without streaming.
func (r *Runner) Run(ctx context.Context, ag *agent.Agent, input string) (*RunResult, error) {
	return r.run(ctx, ag, input, nil)
}

// run is the shared core of Run and RunStreamed. When emit is non-nil every
// state transition additionally produces a stream event, including the
// terminal run.completed / run.failed pair.
func (r *Runner) run(ctx context.Context, ag *agent.Agent, input string, emit emitFunc) (*RunResult, error) {
	if ag == nil {
		return nil, errors.New("nil agent")
	}

	runID := core.NewID()
	state := core.NewRunState(runID, ag.Name())
	state.AppendItem(core.NewUserItem(input))

	logger := logging.WithRun(r.logger, runID)
	logger.Info("run.start", "agent", ag.Name(), "max_turns", r.opts.MaxTurns)
	trace.Record(r.tracer, trace.Event{Kind: trace.KindRunStarted, RunID: runID, Agent: ag.Name()})

	result, err := r.loop(ctx, ag, state, input, logger, emit)

	finished := trace.Event{Kind: trace.KindRunFinished, RunID: runID, Agent: state.ActiveAgent(), Detail: map[string]any{"turns": state.Turns()}}
	if err != nil {
		finished.Error = err.Error()
		logger.Error("run.failed", "agent", state.ActiveAgent(), "turns", state.Turns(), "error", err)
		if emit != nil {
			ev := r.newEvent(EventRunFailed, runID, state.ActiveAgent())
			ev.Err = err
			ev.Reason = err.Error()
			emit(ev)
		}
	} else {
		logger.Info("run.completed", "agent", result.LastAgent, "turns", state.Turns(), "total_tokens", result.Usage.TotalTokens)
		if emit != nil {
			ev := r.newEvent(EventRunCompleted, runID, result.LastAgent)
			ev.Result = result
			emit(ev)
		}
	}
	trace.Record(r.tracer, finished)

	return result, err
}

// loop runs the turn loop until a terminal condition. The turn budget is
// checked before each model call, so MaxTurns is exactly the maximum number
// of model calls.
func (r *Runner) loop(
	ctx context.Context,
	ag *agent.Agent,
	state *core.RunState,
	input string,
	logger logging.Logger,
	emit emitFunc,
) (*RunResult, error) {
	active := ag

	for {
		if err := ctx.Err(); err != nil {
			return nil, &RunCancelledError{Err: err, State: state}
		}

		if state.Turns() >= r.opts.MaxTurns {
			return nil, &MaxTurnsExceededError{MaxTurns: r.opts.MaxTurns, State: state}
		}

		if state.Turns() == 0 || r.opts.GuardrailsEveryTurn {
			if err := r.guards.EvaluateInput(ctx, state, input); err != nil {
				return nil, r.reportTrip(err, state, emit)
			}
		}

		resp, err := r.callModel(ctx, active, state, logger, emit)
		if err != nil {
			return nil, err
		}

		state.IncrementTurn()
		if resp.Usage != nil {
			state.AddUsage(*resp.Usage)
		}

		parsed, err := parseResponse(resp.Content)
		if err != nil {
			return nil, &ModelBehaviorError{Reason: err.Error(), State: state}
		}

		// Hand-off wins over tool calls: a response that both requests tools
		// and hands off transfers control immediately, and the stale tool
		// calls are never executed.
		if parsed.handoff != nil {
			target, err := resolveHandoff(active, *parsed.handoff, state)
			if err != nil {
				return nil, err
			}

			if parsed.text != "" {
				state.AppendItem(core.NewAssistantItem(active.Name(), []core.Part{core.TextPart{Text: parsed.text}}))
			}
			state.AppendItem(core.NewHandoffItem(active.Name(), target.Name()))
			state.SetActiveAgent(target.Name())

			logger.Info("run.handoff", "from", active.Name(), "to", target.Name(), "turn", state.Turns(), "skipped_tool_calls", len(parsed.toolCalls))
			trace.Record(r.tracer, trace.Event{Kind: trace.KindHandoff, RunID: state.RunID(), Agent: active.Name(), Target: target.Name()})
			if emit != nil {
				ev := r.newEvent(EventHandoffOccurred, state.RunID(), active.Name())
				ev.HandoffFrom = active.Name()
				ev.HandoffTo = target.Name()
				emit(ev)
			}

			active = target
			continue
		}

		if len(parsed.toolCalls) > 0 {
			state.AppendItem(r.normalizeAssistantItem(active, parsed.item))

			responses, err := r.executor.execute(ctx, active, state, parsed.toolCalls, emit)
			for _, fr := range responses {
				state.AppendItem(core.NewToolResultItem(active.Name(), fr))
			}
			if err != nil {
				return nil, err
			}
			continue
		}

		text, payload, ok := matchOutput(active, parsed)
		if !ok {
			// Structured output expected but not delivered: keep the response
			// in history and let the model retry on the next turn.
			state.AppendItem(r.normalizeAssistantItem(active, parsed.item))
			logger.Debug("run.output.rejected", "agent", active.Name(), "turn", state.Turns())
			continue
		}

		if err := r.guards.EvaluateOutput(ctx, state, text); err != nil {
			return nil, r.reportTrip(err, state, emit)
		}

		state.AppendItem(r.normalizeAssistantItem(active, parsed.item))

		return &RunResult{
			RunID:         state.RunID(),
			FinalOutput:   text,
			OutputPayload: payload,
			LastAgent:     active.Name(),
			Usage:         state.Usage(),
			State:         state,
		}, nil
	}
}

// callModel issues one provider call, forwarding partial text to the stream
// and returning the single terminal response. Exactly one non-partial
// response is the provider contract; anything else is a ModelBehaviorError.
func (r *Runner) callModel(
	ctx context.Context,
	active *agent.Agent,
	state *core.RunState,
	logger logging.Logger,
	emit emitFunc,
) (model.Response, error) {
	req, err := r.buildRequest(active, state, emit != nil)
	if err != nil {
		return model.Response{}, err
	}

	trace.Record(r.tracer, trace.Event{Kind: trace.KindModelCallStarted, RunID: state.RunID(), Agent: active.Name(), Detail: map[string]any{"turn": state.Turns()}})
	start := time.Now()

	respCh, errCh := active.Model().Generate(ctx, req)

	var (
		final      *model.Response
		extraFinal bool
		genErr     error
		respOpen   = true
		errOpen    = true
	)

	for respOpen || errOpen {
		select {
		case resp, ok := <-respCh:
			if !ok {
				respOpen = false
				continue
			}
			if resp.Partial {
				if emit != nil {
					ev := r.newEvent(EventResponsePartialText, state.RunID(), active.Name())
					ev.TextDelta = resp.Content.Text()
					emit(ev)
				}
				continue
			}
			if final != nil {
				extraFinal = true
				continue
			}
			respCopy := resp
			final = &respCopy
		case err, ok := <-errCh:
			if !ok {
				errOpen = false
				continue
			}
			if err != nil && genErr == nil {
				genErr = err
			}
		}
	}

	dur := time.Since(start)
	traceEv := trace.Event{Kind: trace.KindModelCallFinished, RunID: state.RunID(), Agent: active.Name(), Detail: map[string]any{"duration_ms": dur.Milliseconds()}}
	if genErr != nil {
		traceEv.Error = genErr.Error()
	}
	trace.Record(r.tracer, traceEv)

	if genErr != nil {
		return model.Response{}, fmt.Errorf("model call failed for agent %q: %w", active.Name(), genErr)
	}
	if final == nil {
		return model.Response{}, &ModelBehaviorError{Reason: "provider closed the stream without a final response", State: state}
	}
	if extraFinal {
		return model.Response{}, &ModelBehaviorError{Reason: "provider sent more than one final response", State: state}
	}

	logger.Debug("run.model.called", "agent", active.Name(), "turn", state.Turns(), "duration_ms", dur.Milliseconds(), "finish_reason", final.FinishReason)

	return *final, nil
}

// buildRequest assembles the normalized provider request for the active
// agent: resolved instructions, full history, declared tools plus the
// synthetic hand-off tool, and the output schema if one is declared.
func (r *Runner) buildRequest(active *agent.Agent, state *core.RunState, stream bool) (model.Request, error) {
	instructions, err := active.Instructions(state)
	if err != nil {
		return model.Request{}, fmt.Errorf("failed to resolve instructions for agent %q: %w", active.Name(), err)
	}

	tools := active.ToolDefinitions()
	if len(active.Handoffs()) > 0 {
		tools = append(tools, handoffToolDefinition(active))
	}

	req := model.Request{
		Instructions: instructions,
		History:      state.History(),
		Tools:        tools,
		Settings:     active.Settings(),
		Stream:       stream,
	}
	if ot := active.OutputType(); ot != nil {
		req.OutputSchema = ot.Schema()
	}

	return req, nil
}

// normalizeAssistantItem stamps run-level identity on a provider-produced
// item before it enters history.
func (r *Runner) normalizeAssistantItem(active *agent.Agent, item core.Item) core.Item {
	if item.ID == "" {
		item.ID = core.NewID()
	}
	item.Role = core.RoleAssistant
	item.Agent = active.Name()
	return item
}

// reportTrip emits the guardrail stream/trace events for a tripwire error.
// Non-tripwire guardrail evaluation failures pass through unchanged.
func (r *Runner) reportTrip(err error, state *core.RunState, emit emitFunc) error {
	var tw *guardrail.TripwireError
	if !errors.As(err, &tw) {
		return err
	}

	trace.Record(r.tracer, trace.Event{Kind: trace.KindGuardrailTripped, RunID: state.RunID(), Agent: state.ActiveAgent(), Error: tw.Reason, Detail: map[string]any{"guardrail": tw.Guardrail, "kind": string(tw.Kind)}})
	if emit != nil {
		ev := r.newEvent(EventGuardrailTripped, state.RunID(), state.ActiveAgent())
		ev.Guardrail = tw.Guardrail
		ev.Reason = tw.Reason
		emit(ev)
	}
	return err
}

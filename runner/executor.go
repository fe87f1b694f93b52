package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hupe1980/agentloop/agent"
	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/logging"
	"github.com/hupe1980/agentloop/tool"
	"github.com/hupe1980/agentloop/trace"
)

// toolExecutor runs a batch of tool calls from one model response. Calls
// execute concurrently, bounded by maxParallel, but results are always
// collected in the order the model requested them so history stays
// deterministic regardless of completion order.
//
// Invariants:
//   - Exactly one FunctionResponse per incoming FunctionCall
//   - Never panics (tool panics are recovered into error results)
//   - A per-call failure becomes an error result fed back to the model;
//     only tool.FatalError aborts the batch
type toolExecutor struct {
	maxParallel int
	logger      logging.Logger
	tracer      trace.Tracer
}

func newToolExecutor(maxParallel int, logger logging.Logger, tracer trace.Tracer) *toolExecutor {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &toolExecutor{maxParallel: maxParallel, logger: logger, tracer: tracer}
}

// execute resolves and runs all calls under the active agent's authority.
// The returned responses are ordered by request order. The error is non-nil
// only for fatal tool failures; ordinary failures are embedded in responses.
func (e *toolExecutor) execute(
	ctx context.Context,
	active *agent.Agent,
	state *core.RunState,
	calls []core.FunctionCall,
	emit emitFunc,
) ([]core.FunctionResponse, error) {
	n := len(calls)
	if n == 0 {
		return nil, nil
	}

	responses := make([]core.FunctionResponse, n)
	fatalErrs := make([]error, n)

	// Fast path: single call, execute inline.
	if n == 1 {
		responses[0], fatalErrs[0] = e.executeOne(ctx, active, state, calls[0], emit)
		return responses, e.firstFatal(calls, fatalErrs, state)
	}

	maxPar := e.maxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxPar)

	batchStart := time.Now()
	for i := range calls {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, fc core.FunctionCall) {
			defer wg.Done()
			defer func() { <-sem }()
			responses[idx], fatalErrs[idx] = e.executeOne(ctx, active, state, fc, emit)
		}(i, calls[i])
	}

	wg.Wait()

	e.logger.Debug(
		"runner.tools.batch.complete",
		"agent", active.Name(),
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	return responses, e.firstFatal(calls, fatalErrs, state)
}

// firstFatal surfaces the first fatal failure in request order.
func (e *toolExecutor) firstFatal(calls []core.FunctionCall, fatalErrs []error, state *core.RunState) error {
	for i, err := range fatalErrs {
		if err != nil {
			return &FatalToolError{Tool: calls[i].Name, Err: err, State: state}
		}
	}
	return nil
}

// executeOne resolves and runs a single call with panic safety. The returned
// error is non-nil only when the failure is marked fatal; all other failures
// are folded into the FunctionResponse.Error field.
func (e *toolExecutor) executeOne(
	ctx context.Context,
	active *agent.Agent,
	state *core.RunState,
	fc core.FunctionCall,
	emit emitFunc,
) (core.FunctionResponse, error) {
	if emit != nil {
		ev := StreamEvent{Kind: EventToolCallStarted, RunID: state.RunID(), Agent: active.Name(), Timestamp: time.Now().UTC()}
		fcCopy := fc
		ev.ToolCall = &fcCopy
		emit(ev)
	}
	trace.Record(e.tracer, trace.Event{Kind: trace.KindToolCallStarted, RunID: state.RunID(), Agent: active.Name(), Tool: fc.Name})

	start := time.Now()
	var (
		result any
		err    error
	)

	if ctxErr := ctx.Err(); ctxErr != nil {
		// Cancellation between batch start and this call: produce an error
		// result instead of invoking the tool.
		err = fmt.Errorf("run cancelled before tool execution: %w", ctxErr)
	} else {
		func() { // panic safety
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("tool %s panicked: %v", fc.Name, r)
					e.logger.Error("runner.tool.panic", "agent", active.Name(), "tool", fc.Name, "recover", r, "stack", string(debug.Stack()))
				}
			}()
			result, err = e.callTool(ctx, active, state, fc)
		}()
	}

	dur := time.Since(start)
	e.logger.Info(
		"runner.tool.executed",
		"agent", active.Name(),
		"tool", fc.Name,
		"duration_ms", dur.Milliseconds(),
		"error", err != nil,
	)

	resp := core.FunctionResponse{ID: fc.ID, Name: fc.Name, Response: result}
	var fatal error
	if err != nil {
		resp.Error = err.Error()
		if tool.IsFatal(err) {
			fatal = err
		}
	}

	if emit != nil {
		ev := StreamEvent{Kind: EventToolCallFinished, RunID: state.RunID(), Agent: active.Name(), Timestamp: time.Now().UTC()}
		fcCopy := fc
		respCopy := resp
		ev.ToolCall = &fcCopy
		ev.ToolResult = &respCopy
		emit(ev)
	}
	traceEv := trace.Event{Kind: trace.KindToolCallFinished, RunID: state.RunID(), Agent: active.Name(), Tool: fc.Name, Detail: map[string]any{"duration_ms": dur.Milliseconds()}}
	if err != nil {
		traceEv.Error = err.Error()
	}
	trace.Record(e.tracer, traceEv)

	return resp, fatal
}

// callTool centralizes tool lookup, argument parsing and invocation.
func (e *toolExecutor) callTool(ctx context.Context, active *agent.Agent, state *core.RunState, fc core.FunctionCall) (any, error) {
	impl, ok := active.Tool(fc.Name)
	if !ok {
		return nil, tool.NewToolError(fc.Name, "tool not found", tool.CodeUnknownTool)
	}

	var argMap map[string]any
	if fc.Arguments == "" {
		argMap = map[string]any{}
	} else if err := json.Unmarshal([]byte(fc.Arguments), &argMap); err != nil {
		return nil, tool.NewToolError(fc.Name, fmt.Sprintf("failed to unmarshal arguments: %v", err), tool.CodeValidationError)
	}

	toolCtx := tool.NewContext(ctx, state.RunID(), active.Name(), fc.ID, e.logger)

	return impl.Call(toolCtx, argMap)
}

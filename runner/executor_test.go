package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hupe1980/agentloop/agent"
	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/logging"
	"github.com/hupe1980/agentloop/model"
	"github.com/hupe1980/agentloop/tool"
)

type exMockTool struct {
	name     string
	delay    time.Duration
	result   any
	err      error
	panicMsg any
}

func (mt *exMockTool) Name() string               { return mt.name }
func (mt *exMockTool) Description() string        { return "mock tool" }
func (mt *exMockTool) Parameters() map[string]any { return map[string]any{} }
func (mt *exMockTool) Call(tc *tool.Context, _ map[string]any) (any, error) {
	if mt.delay > 0 {
		select {
		case <-time.After(mt.delay):
		case <-tc.Done():
			return nil, tc.Err()
		}
	}
	if mt.panicMsg != nil {
		panic(mt.panicMsg)
	}
	return mt.result, mt.err
}

func newExecAgent(tools ...tool.Tool) *agent.Agent {
	return agent.New("A", model.NewMockModel(), func(o *agent.Options) {
		o.Tools = tools
	})
}

func newExec(maxParallel int) *toolExecutor {
	return newToolExecutor(maxParallel, logging.NoOpLogger{}, nil)
}

func TestToolExecutor_Single(t *testing.T) {
	ag := newExecAgent(&exMockTool{name: "one", result: 42})
	state := core.NewRunState("run", "A")

	responses, err := newExec(4).execute(context.Background(), ag, state, []core.FunctionCall{
		{ID: "1", Name: "one", Arguments: "{}"},
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(responses) != 1 {
		t.Fatalf("expected 1 response got %d", len(responses))
	}
	if responses[0].Response != 42 {
		t.Fatalf("unexpected result: %v", responses[0].Response)
	}
}

func TestToolExecutor_ParallelSpeedupAndOrder(t *testing.T) {
	ag := newExecAgent(
		&exMockTool{name: "slow", delay: 60 * time.Millisecond, result: "s"},
		&exMockTool{name: "fast", delay: 5 * time.Millisecond, result: "f"},
	)
	state := core.NewRunState("run", "A")

	start := time.Now()
	responses, err := newExec(2).execute(context.Background(), ag, state, []core.FunctionCall{
		{ID: "1", Name: "slow", Arguments: "{}"},
		{ID: "2", Name: "fast", Arguments: "{}"},
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 90*time.Millisecond {
		t.Fatalf("expected parallel speedup, elapsed=%v", elapsed)
	}
	// Request order, not completion order.
	if responses[0].Name != "slow" || responses[1].Name != "fast" {
		t.Fatalf("order not preserved: %s, %s", responses[0].Name, responses[1].Name)
	}
}

func TestToolExecutor_ErrorIsolation(t *testing.T) {
	ag := newExecAgent(
		&exMockTool{name: "ok", result: "fine"},
		&exMockTool{name: "bad", err: errors.New("boom")},
	)
	state := core.NewRunState("run", "A")

	responses, err := newExec(2).execute(context.Background(), ag, state, []core.FunctionCall{
		{ID: "1", Name: "ok", Arguments: "{}"},
		{ID: "2", Name: "bad", Arguments: "{}"},
	}, nil)
	if err != nil {
		t.Fatalf("recoverable failure must not abort the batch: %v", err)
	}
	if responses[0].Error != "" {
		t.Fatalf("ok tool unexpectedly failed: %s", responses[0].Error)
	}
	if responses[1].Error == "" {
		t.Fatal("expected error result for bad tool")
	}
}

func TestToolExecutor_PanicRecovery(t *testing.T) {
	ag := newExecAgent(&exMockTool{name: "panic", panicMsg: "boom"})
	state := core.NewRunState("run", "A")

	responses, err := newExec(1).execute(context.Background(), ag, state, []core.FunctionCall{
		{ID: "1", Name: "panic", Arguments: "{}"},
	}, nil)
	if err != nil {
		t.Fatalf("panic must not abort the batch: %v", err)
	}
	if responses[0].Error == "" {
		t.Fatal("expected panic converted to error result")
	}
}

func TestToolExecutor_UnknownTool(t *testing.T) {
	ag := newExecAgent()
	state := core.NewRunState("run", "A")

	responses, err := newExec(1).execute(context.Background(), ag, state, []core.FunctionCall{
		{ID: "1", Name: "ghost", Arguments: "{}"},
	}, nil)
	if err != nil {
		t.Fatalf("unknown tool must be recoverable: %v", err)
	}
	if responses[0].Error == "" {
		t.Fatal("expected error result for unknown tool")
	}
}

func TestToolExecutor_MalformedArguments(t *testing.T) {
	ag := newExecAgent(&exMockTool{name: "one", result: 1})
	state := core.NewRunState("run", "A")

	responses, err := newExec(1).execute(context.Background(), ag, state, []core.FunctionCall{
		{ID: "1", Name: "one", Arguments: `{"broken`},
	}, nil)
	if err != nil {
		t.Fatalf("argument parse failure must be recoverable: %v", err)
	}
	if responses[0].Error == "" {
		t.Fatal("expected error result for malformed arguments")
	}
}

func TestToolExecutor_FatalAbortsBatch(t *testing.T) {
	ag := newExecAgent(&exMockTool{name: "fatal", err: tool.Fatal(errors.New("no disk"))})
	state := core.NewRunState("run", "A")

	responses, err := newExec(1).execute(context.Background(), ag, state, []core.FunctionCall{
		{ID: "1", Name: "fatal", Arguments: "{}"},
	}, nil)

	var fatal *FatalToolError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected FatalToolError, got %v", err)
	}
	if fatal.Tool != "fatal" {
		t.Fatalf("wrong tool in fatal error: %s", fatal.Tool)
	}
	// The response slice is still complete for history purposes.
	if len(responses) != 1 || responses[0].Error == "" {
		t.Fatalf("expected error response alongside fatal error, got %+v", responses)
	}
}

func TestToolExecutor_EmitsLifecycleEvents(t *testing.T) {
	ag := newExecAgent(&exMockTool{name: "one", result: "ok"})
	state := core.NewRunState("run", "A")

	var kinds []StreamEventKind
	emit := func(ev StreamEvent) { kinds = append(kinds, ev.Kind) }

	_, err := newExec(1).execute(context.Background(), ag, state, []core.FunctionCall{
		{ID: "1", Name: "one", Arguments: "{}"},
	}, emit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(kinds) != 2 || kinds[0] != EventToolCallStarted || kinds[1] != EventToolCallFinished {
		t.Fatalf("unexpected event sequence: %v", kinds)
	}
}

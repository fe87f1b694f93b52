package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentloop/agent"
	"github.com/hupe1980/agentloop/model"
	"github.com/hupe1980/agentloop/tool"
)

func TestRunStreamed_EventSequence(t *testing.T) {
	m := model.NewMockModel().
		EnqueueToolCall("c1", "noop", "{}").
		EnqueueText("done")
	ag := agent.New("Streamer", m, func(o *agent.Options) {
		o.Tools = []tool.Tool{echoTool("noop", nil)}
	})

	run := newTestRunner().RunStreamed(context.Background(), ag, "go")

	var kinds []StreamEventKind
	var text string
	for ev := range run.Events() {
		kinds = append(kinds, ev.Kind)
		if ev.Kind == EventResponsePartialText {
			text += ev.TextDelta
		}
	}

	result, err := run.Wait()
	require.NoError(t, err)
	assert.Equal(t, "done", result.FinalOutput)

	// Mock streams the final text per rune, so partials reassemble it.
	assert.Equal(t, "done", text)

	require.NotEmpty(t, kinds)
	assert.Equal(t, EventRunCompleted, kinds[len(kinds)-1])
	assert.Contains(t, kinds, EventToolCallStarted)
	assert.Contains(t, kinds, EventToolCallFinished)

	// tool_call.started precedes tool_call.finished.
	started, finished := -1, -1
	for i, k := range kinds {
		if k == EventToolCallStarted && started == -1 {
			started = i
		}
		if k == EventToolCallFinished && finished == -1 {
			finished = i
		}
	}
	assert.Less(t, started, finished)
}

func TestRunStreamed_HandoffEvent(t *testing.T) {
	m := model.NewMockModel().
		EnqueueToolCall("h1", HandoffToolName, `{"agent": "Specialist"}`).
		EnqueueText("done")
	specialist := agent.New("Specialist", m)
	router := agent.New("Router", m, func(o *agent.Options) {
		o.Handoffs = []*agent.Agent{specialist}
	})

	run := newTestRunner().RunStreamed(context.Background(), router, "go")

	var handoff *StreamEvent
	for ev := range run.Events() {
		if ev.Kind == EventHandoffOccurred {
			evCopy := ev
			handoff = &evCopy
		}
	}

	_, err := run.Wait()
	require.NoError(t, err)
	require.NotNil(t, handoff)
	assert.Equal(t, "Router", handoff.HandoffFrom)
	assert.Equal(t, "Specialist", handoff.HandoffTo)
}

func TestRunStreamed_FailureEndsWithRunFailed(t *testing.T) {
	m := model.NewMockModel().
		EnqueueToolCall("c1", "noop", "{}").
		EnqueueToolCall("c2", "noop", "{}")
	ag := agent.New("Streamer", m, func(o *agent.Options) {
		o.Tools = []tool.Tool{echoTool("noop", nil)}
	})

	run := newTestRunner(func(o *Options) { o.MaxTurns = 1 }).RunStreamed(context.Background(), ag, "go")

	var kinds []StreamEventKind
	for ev := range run.Events() {
		kinds = append(kinds, ev.Kind)
	}

	_, err := run.Wait()
	var maxErr *MaxTurnsExceededError
	require.ErrorAs(t, err, &maxErr)

	require.NotEmpty(t, kinds)
	assert.Equal(t, EventRunFailed, kinds[len(kinds)-1])
}

func TestRunStreamed_Cancel(t *testing.T) {
	slow := tool.NewFunctionTool("slow", "slow tool", map[string]any{"type": "object", "properties": map[string]any{}},
		func(tc *tool.Context, args map[string]any) (any, error) {
			select {
			case <-time.After(5 * time.Second):
				return "late", nil
			case <-tc.Done():
				return nil, tc.Err()
			}
		})

	m := model.NewMockModel().
		EnqueueToolCall("c1", "slow", "{}").
		EnqueueText("never")
	ag := agent.New("Cancellable", m, func(o *agent.Options) {
		o.Tools = []tool.Tool{slow}
	})

	run := newTestRunner().RunStreamed(context.Background(), ag, "go")

	go func() {
		time.Sleep(50 * time.Millisecond)
		run.Cancel()
	}()

	for range run.Events() {
		// drain
	}

	_, err := run.Wait()
	var rc *RunCancelledError
	require.ErrorAs(t, err, &rc)
	assert.ErrorIs(t, err, context.Canceled)
}

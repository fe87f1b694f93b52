package runner

import (
	"context"

	"github.com/hupe1980/agentloop/agent"
)

// StreamedRun is the handle of an in-flight streamed run. Events() yields the
// finite, forward-only event sequence; Wait() blocks for the terminal result.
// The run itself progresses independently of event consumption, but the
// consumer must drain Events() (or call Cancel) to avoid blocking the loop
// once the buffer fills.
type StreamedRun struct {
	events chan StreamEvent
	cancel context.CancelFunc
	done   chan struct{}

	result *RunResult
	err    error
}

// RunStreamed starts the loop in a background goroutine and returns
// immediately. The final run.completed or run.failed event mirrors the
// result returned by Wait.
func (r *Runner) RunStreamed(ctx context.Context, ag *agent.Agent, input string) *StreamedRun {
	runCtx, cancel := context.WithCancel(ctx)

	sr := &StreamedRun{
		events: make(chan StreamEvent, r.opts.EventBufferSize),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	emit := func(ev StreamEvent) {
		select {
		case sr.events <- ev:
		case <-runCtx.Done():
			// Consumer gave up; drop events instead of blocking the loop.
		}
	}

	go func() {
		defer close(sr.done)
		defer close(sr.events)
		defer cancel()

		sr.result, sr.err = r.run(runCtx, ag, input, emit)
	}()

	return sr
}

// Events returns the stream of run events. The channel closes after the
// terminal event has been delivered.
func (sr *StreamedRun) Events() <-chan StreamEvent { return sr.events }

// Cancel requests cooperative cancellation. The run settles into the
// cancelled terminal state after in-flight tool calls finish; Wait reports
// a RunCancelledError.
func (sr *StreamedRun) Cancel() { sr.cancel() }

// Wait blocks until the run terminates and returns its outcome.
func (sr *StreamedRun) Wait() (*RunResult, error) {
	<-sr.done
	return sr.result, sr.err
}

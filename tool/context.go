package tool

import (
	"context"

	"github.com/hupe1980/agentloop/logging"
)

// Context carries per-call execution scope into a tool implementation:
// the ambient cancellation context, correlation identifiers (run, agent,
// function call) and a logger. Tools must respect cancellation for long
// running work.
type Context struct {
	ctx    context.Context
	runID  string
	agent  string
	callID string
	logger logging.Logger
}

// NewContext constructs a tool Context. The runner creates one per tool call.
func NewContext(ctx context.Context, runID, agent, callID string, logger logging.Logger) *Context {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Context{ctx: ctx, runID: runID, agent: agent, callID: callID, logger: logger}
}

// Context returns the ambient cancellation context.
func (c *Context) Context() context.Context { return c.ctx }

// Done returns a channel closed when the underlying context is cancelled.
func (c *Context) Done() <-chan struct{} { return c.ctx.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (c *Context) Err() error { return c.ctx.Err() }

// RunID returns the identifier of the enclosing run.
func (c *Context) RunID() string { return c.runID }

// AgentName returns the name of the agent under whose authority the call executes.
func (c *Context) AgentName() string { return c.agent }

// CallID returns the function call identifier correlating request and result.
func (c *Context) CallID() string { return c.callID }

// Logger returns the logger scoped to this call.
func (c *Context) Logger() logging.Logger { return c.logger }

// Package agentloop provides a high-level façade over the runner package for
// driving agents to completion. Most applications interact with this package
// by:
//  1. Defining one or more agents via agent.New (tools, hand-off targets,
//     output type, instructions)
//  2. Executing a run via Run (blocking) or RunStreamed (incremental events)
//
// The façade delegates orchestration to runner.Runner while keeping setup and
// usage ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply a structured logger, a
// tracer and guardrails via runner options.
package agentloop

import (
	"context"

	"github.com/hupe1980/agentloop/agent"
	"github.com/hupe1980/agentloop/runner"
)

// Run drives ag to completion on input with a default-configured runner.
// It is shorthand for runner.New(optFns...).Run(ctx, ag, input).
func Run(ctx context.Context, ag *agent.Agent, input string, optFns ...func(o *runner.Options)) (*runner.RunResult, error) {
	return runner.New(optFns...).Run(ctx, ag, input)
}

// RunStreamed starts ag on input with a default-configured runner and returns
// the streamed run handle immediately.
func RunStreamed(ctx context.Context, ag *agent.Agent, input string, optFns ...func(o *runner.Options)) *runner.StreamedRun {
	return runner.New(optFns...).RunStreamed(ctx, ag, input)
}

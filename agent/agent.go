// Package agent defines the immutable agent description used by the runner:
// a name, instructions (static or dynamically computed), a tool set, the set
// of permitted hand-off targets and an optional structured output contract.
package agent

import (
	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/model"
	"github.com/hupe1980/agentloop/tool"
)

// Options configures an Agent at construction time.
// Use functional options with New to override defaults.
type Options struct {
	// Description is a short human-readable summary shown to sibling agents
	// when they decide whether to hand off.
	Description string
	// Instruction is the model's system directive, static or dynamic.
	Instruction Instruction
	// Tools the model may request to invoke.
	Tools []tool.Tool
	// Handoffs lists the agents this agent is permitted to transfer control
	// to. References are weak; the loop does not own agent lifetime.
	Handoffs []*Agent
	// OutputType, when set, makes the final output a structured payload that
	// must validate against the type's schema. Absent means plain text.
	OutputType *OutputType
	// Settings carries per-agent sampling parameters.
	Settings model.Settings
}

// Agent is an immutable description of one agent variant. It is safe to share
// a single Agent across concurrent runs; all mutable per-run state lives in
// core.RunState.
type Agent struct {
	name        string
	description string
	instruction Instruction
	m           model.Model
	tools       map[string]tool.Tool
	toolOrder   []string
	handoffs    []*Agent
	outputType  *OutputType
	settings    model.Settings
}

// New constructs an Agent bound to the given model. The name must be unique
// within a run; it identifies the agent in history items, hand-off requests
// and trace events.
func New(name string, m model.Model, optFns ...func(o *Options)) *Agent {
	opts := Options{
		Instruction: NewInstructionFromText("You are " + name + ", a helpful AI assistant."),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	tools := make(map[string]tool.Tool, len(opts.Tools))
	order := make([]string, 0, len(opts.Tools))
	for _, t := range opts.Tools {
		if _, exists := tools[t.Name()]; !exists {
			order = append(order, t.Name())
		}
		tools[t.Name()] = t
	}

	return &Agent{
		name:        name,
		description: opts.Description,
		instruction: opts.Instruction,
		m:           m,
		tools:       tools,
		toolOrder:   order,
		handoffs:    append([]*Agent(nil), opts.Handoffs...),
		outputType:  opts.OutputType,
		settings:    opts.Settings,
	}
}

// Name returns the agent's unique identifier.
func (a *Agent) Name() string { return a.name }

// Description returns the short hand-off facing summary.
func (a *Agent) Description() string { return a.description }

// Model returns the language model this agent generates with.
func (a *Agent) Model() model.Model { return a.m }

// Settings returns the per-agent sampling parameters.
func (a *Agent) Settings() model.Settings { return a.settings }

// Instructions resolves the system directive for the current run state.
func (a *Agent) Instructions(state *core.RunState) (string, error) {
	return a.instruction.Resolve(state)
}

// Tool returns the named tool, if registered.
func (a *Agent) Tool(name string) (tool.Tool, bool) {
	t, ok := a.tools[name]
	return t, ok
}

// Tools returns the agent's tools in registration order.
func (a *Agent) Tools() []tool.Tool {
	out := make([]tool.Tool, 0, len(a.toolOrder))
	for _, name := range a.toolOrder {
		out = append(out, a.tools[name])
	}
	return out
}

// Handoffs returns a copy of the permitted hand-off targets.
func (a *Agent) Handoffs() []*Agent {
	return append([]*Agent(nil), a.handoffs...)
}

// HandoffTarget returns the permitted hand-off target with the given name.
func (a *Agent) HandoffTarget(name string) (*Agent, bool) {
	for _, h := range a.handoffs {
		if h.Name() == name {
			return h, true
		}
	}
	return nil, false
}

// OutputType returns the structured output contract, or nil for plain text.
func (a *Agent) OutputType() *OutputType { return a.outputType }

// ToolDefinitions builds the declarative tool list sent to the model.
func (a *Agent) ToolDefinitions() []model.ToolDefinition {
	defs := make([]model.ToolDefinition, 0, len(a.toolOrder))
	for _, name := range a.toolOrder {
		t := a.tools[name]
		defs = append(defs, model.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}

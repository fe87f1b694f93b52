package runner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/agentloop/agent"
	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/model"
)

// HandoffToolName is the synthetic function the runner exposes to the model
// when the active agent has permitted hand-off targets. A call to it is a
// hand-off request, never a tool execution.
const HandoffToolName = "transfer_to_agent"

// HandoffRequest names a target agent the model wants to transfer control to.
type HandoffRequest struct {
	Target string // Requested agent name
}

// handoffToolDefinition builds the transfer_to_agent declaration for the
// active agent, constraining the target to the permitted hand-off set.
func handoffToolDefinition(a *agent.Agent) model.ToolDefinition {
	targets := a.Handoffs()
	names := make([]string, 0, len(targets))
	var desc strings.Builder
	desc.WriteString("Transfer the conversation to another agent by name. Use when another agent is better suited. Available agents:")
	for _, t := range targets {
		names = append(names, t.Name())
		desc.WriteString("\n- " + t.Name())
		if t.Description() != "" {
			desc.WriteString(": " + t.Description())
		}
	}

	return model.ToolDefinition{
		Name:        HandoffToolName,
		Description: desc.String(),
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"agent": map[string]any{
					"type":        "string",
					"description": "Target agent name",
					"enum":        names,
				},
			},
			"required": []string{"agent"},
		},
	}
}

// parseHandoff interprets a transfer_to_agent function call. Malformed
// arguments are a provider contract violation.
func parseHandoff(fc core.FunctionCall) (HandoffRequest, error) {
	var args struct {
		Agent string `json:"agent"`
	}
	if fc.Arguments != "" {
		if err := json.Unmarshal([]byte(fc.Arguments), &args); err != nil {
			return HandoffRequest{}, fmt.Errorf("invalid %s arguments: %w", HandoffToolName, err)
		}
	}
	if args.Agent == "" {
		return HandoffRequest{}, fmt.Errorf("%s call missing required field 'agent'", HandoffToolName)
	}
	return HandoffRequest{Target: args.Agent}, nil
}

// resolveHandoff validates the requested target against the active agent's
// permitted hand-off set and returns the target definition. No cycle
// detection is performed; repeated hand-offs are legal and bounded only by
// the turn limit.
func resolveHandoff(active *agent.Agent, req HandoffRequest, state *core.RunState) (*agent.Agent, error) {
	target, ok := active.HandoffTarget(req.Target)
	if !ok {
		return nil, &HandoffNotFoundError{Agent: active.Name(), Target: req.Target, State: state}
	}
	return target, nil
}

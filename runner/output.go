package runner

import (
	"github.com/hupe1980/agentloop/agent"
	"github.com/hupe1980/agentloop/core"
)

// parsedResponse is the tagged decomposition of one model response into the
// signals the loop dispatches on: assistant text, tool-call requests and an
// optional hand-off request.
type parsedResponse struct {
	item      core.Item // The full assistant item as returned by the model
	text      string
	toolCalls []core.FunctionCall
	handoff   *HandoffRequest
}

// parseResponse splits a final model response item. A call to the hand-off
// tool becomes the hand-off request; remaining function calls are tool calls.
// Only the first hand-off call is honored; duplicates are ignored.
func parseResponse(item core.Item) (parsedResponse, error) {
	parsed := parsedResponse{item: item, text: item.Text()}

	for _, fc := range item.FunctionCalls() {
		if fc.Name == HandoffToolName {
			if parsed.handoff != nil {
				continue
			}
			req, err := parseHandoff(fc)
			if err != nil {
				return parsedResponse{}, err
			}
			parsed.handoff = &req
			continue
		}
		parsed.toolCalls = append(parsed.toolCalls, fc)
	}

	return parsed, nil
}

// matchOutput decides whether a parsed response constitutes the final output
// of the active agent. With no OutputType, any assistant response carrying no
// tool calls and no hand-off request is a match. With an OutputType, the text
// payload must additionally validate against the schema; a non-validating
// response is not a match and the loop continues (the model is expected to
// retry, since the schema is part of its instructions).
func matchOutput(active *agent.Agent, parsed parsedResponse) (string, map[string]any, bool) {
	if parsed.handoff != nil || len(parsed.toolCalls) > 0 {
		return "", nil, false
	}

	ot := active.OutputType()
	if ot == nil {
		return parsed.text, nil, true
	}

	payload, err := ot.Validate(parsed.text)
	if err != nil {
		return "", nil, false
	}
	return parsed.text, payload, true
}

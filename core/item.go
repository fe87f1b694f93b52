package core

import (
	"strings"

	"github.com/google/uuid"
)

// Conversation roles used in history items.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
	RoleHandoff   = "handoff"
)

// Item is a single turn's content in the conversation history. The ordered
// sequence of items is what gets sent back to the model on the next turn, so
// order is semantically significant. Items are immutable after creation.
type Item struct {
	ID    string `json:"id"`
	Role  string `json:"role"`
	Agent string `json:"agent,omitempty"` // Authoring agent; empty for user input
	Parts []Part `json:"parts"`
}

// NewID generates a unique identifier for items and runs.
func NewID() string { return uuid.NewString() }

// NewUserItem creates a user-authored text item.
func NewUserItem(text string) Item {
	return Item{ID: NewID(), Role: RoleUser, Parts: []Part{TextPart{Text: text}}}
}

// NewAssistantItem creates an assistant item authored by the named agent.
func NewAssistantItem(agent string, parts []Part) Item {
	return Item{ID: NewID(), Role: RoleAssistant, Agent: agent, Parts: parts}
}

// NewToolResultItem records the resolved outcome of a single tool call.
func NewToolResultItem(agent string, fr FunctionResponse) Item {
	return Item{ID: NewID(), Role: RoleTool, Agent: agent, Parts: []Part{FunctionResponsePart{FunctionResponse: fr}}}
}

// NewHandoffItem marks a transfer of control between two agents.
func NewHandoffItem(from, to string) Item {
	return Item{ID: NewID(), Role: RoleHandoff, Agent: from, Parts: []Part{HandoffPart{From: from, To: to}}}
}

// FunctionCalls returns the FunctionCall parts of the item preserving order.
func (it Item) FunctionCalls() []FunctionCall {
	var calls []FunctionCall
	for _, p := range it.Parts {
		if fc, ok := p.(FunctionCallPart); ok {
			calls = append(calls, fc.FunctionCall)
		}
	}
	return calls
}

// FunctionResponses returns the FunctionResponse parts of the item preserving order.
func (it Item) FunctionResponses() []FunctionResponse {
	var responses []FunctionResponse
	for _, p := range it.Parts {
		if fr, ok := p.(FunctionResponsePart); ok {
			responses = append(responses, fr.FunctionResponse)
		}
	}
	return responses
}

// Handoff returns the hand-off marker of the item, if any.
func (it Item) Handoff() (HandoffPart, bool) {
	for _, p := range it.Parts {
		if h, ok := p.(HandoffPart); ok {
			return h, true
		}
	}
	return HandoffPart{}, false
}

// Text concatenates all text parts of the item.
func (it Item) Text() string {
	var b strings.Builder
	for _, p := range it.Parts {
		if tp, ok := p.(TextPart); ok {
			b.WriteString(tp.Text)
		}
	}
	return b.String()
}

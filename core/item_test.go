package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemConstructors(t *testing.T) {
	user := NewUserItem("hello")
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, RoleUser, user.Role)
	assert.Empty(t, user.Agent)
	assert.Equal(t, "hello", user.Text())

	asst := NewAssistantItem("Agent", []Part{TextPart{Text: "hi"}})
	assert.Equal(t, RoleAssistant, asst.Role)
	assert.Equal(t, "Agent", asst.Agent)

	toolItem := NewToolResultItem("Agent", FunctionResponse{ID: "c1", Name: "lookup", Response: "ok"})
	assert.Equal(t, RoleTool, toolItem.Role)
	responses := toolItem.FunctionResponses()
	require.Len(t, responses, 1)
	assert.Equal(t, "c1", responses[0].ID)

	handoff := NewHandoffItem("A", "B")
	assert.Equal(t, RoleHandoff, handoff.Role)
	h, ok := handoff.Handoff()
	require.True(t, ok)
	assert.Equal(t, "A", h.From)
	assert.Equal(t, "B", h.To)
}

func TestItemPartAccessors(t *testing.T) {
	it := Item{
		ID:   NewID(),
		Role: RoleAssistant,
		Parts: []Part{
			TextPart{Text: "before "},
			FunctionCallPart{FunctionCall: FunctionCall{ID: "1", Name: "a"}},
			TextPart{Text: "after"},
			FunctionCallPart{FunctionCall: FunctionCall{ID: "2", Name: "b"}},
		},
	}

	assert.Equal(t, "before after", it.Text())

	calls := it.FunctionCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "a", calls[0].Name)
	assert.Equal(t, "b", calls[1].Name)

	assert.Empty(t, it.FunctionResponses())
	_, ok := it.Handoff()
	assert.False(t, ok)
}

func TestNewIDUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewID()
		assert.False(t, seen[id])
		seen[id] = true
	}
}

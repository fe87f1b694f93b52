package openai

import (
	"fmt"
	"strings"
	"testing"

	openaisdk "github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/model"
)

func TestEmitFinalChunk_ToolCallsInStreamIndexOrder(t *testing.T) {
	m := &Model{}

	toolAgg := map[int64]*aggCall{}
	for i := int64(0); i < 10; i++ {
		toolAgg[i] = &aggCall{
			id:   fmt.Sprintf("call-%d", i),
			name: fmt.Sprintf("tool_%d", i),
			args: "{}",
		}
	}

	out := make(chan model.Response, 1)
	var builder strings.Builder
	m.emitFinalChunk(openaisdk.ChatCompletionChunkChoice{FinishReason: "tool_calls"}, &builder, toolAgg, nil, out)

	resp := <-out
	calls := resp.Content.FunctionCalls()
	require.Len(t, calls, 10)
	for i, fc := range calls {
		assert.Equal(t, fmt.Sprintf("call-%d", i), fc.ID)
		assert.Equal(t, fmt.Sprintf("tool_%d", i), fc.Name)
	}
}

func TestEmitFinalChunk_TextPrecedesToolCalls(t *testing.T) {
	m := &Model{}

	toolAgg := map[int64]*aggCall{
		0: {id: "c1", name: "lookup", args: "{}"},
	}

	out := make(chan model.Response, 1)
	var builder strings.Builder
	builder.WriteString("working on it")
	m.emitFinalChunk(openaisdk.ChatCompletionChunkChoice{FinishReason: "tool_calls"}, &builder, toolAgg, nil, out)

	resp := <-out
	require.Len(t, resp.Content.Parts, 2)
	_, ok := resp.Content.Parts[0].(core.TextPart)
	assert.True(t, ok)
	assert.Equal(t, "working on it", resp.Content.Text())
	require.Len(t, resp.Content.FunctionCalls(), 1)
}

func TestSystemPrompt_FoldsOutputSchema(t *testing.T) {
	req := model.Request{
		Instructions: "You are a weather reporter.",
		OutputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"city": map[string]any{"type": "string"},
			},
		},
	}

	prompt := systemPrompt(req)
	assert.Contains(t, prompt, "You are a weather reporter.")
	assert.Contains(t, prompt, `"city"`)

	plain := systemPrompt(model.Request{Instructions: "plain"})
	assert.Equal(t, "plain", plain)
}

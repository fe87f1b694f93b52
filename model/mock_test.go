package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentloop/core"
)

func drain(t *testing.T, m *MockModel, req Request) []Response {
	t.Helper()
	respCh, errCh := m.Generate(context.Background(), req)
	var responses []Response
	for resp := range respCh {
		responses = append(responses, resp)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("unexpected generate error: %v", err)
	}
	return responses
}

func TestMockModel_ScriptFIFO(t *testing.T) {
	m := NewMockModel().
		EnqueueText("first").
		EnqueueText("second")

	req := Request{History: []core.Item{core.NewUserItem("hi")}}

	responses := drain(t, m, req)
	require.Len(t, responses, 1)
	assert.Equal(t, "first", responses[0].Content.Text())
	assert.Equal(t, "stop", responses[0].FinishReason)

	responses = drain(t, m, req)
	assert.Equal(t, "second", responses[0].Content.Text())

	assert.Equal(t, 2, m.Calls())
	assert.Len(t, m.Requests(), 2)
}

func TestMockModel_ToolCallFinishReason(t *testing.T) {
	m := NewMockModel().EnqueueToolCall("c1", "lookup", `{"q": "x"}`)

	responses := drain(t, m, Request{})
	require.Len(t, responses, 1)
	assert.Equal(t, "tool_calls", responses[0].FinishReason)

	calls := responses[0].Content.FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "lookup", calls[0].Name)
}

func TestMockModel_StreamEmitsPartials(t *testing.T) {
	m := NewMockModel().EnqueueText("abc")

	responses := drain(t, m, Request{Stream: true})

	var partials string
	var finals int
	for _, resp := range responses {
		if resp.Partial {
			partials += resp.Content.Text()
			continue
		}
		finals++
		assert.Equal(t, "abc", resp.Content.Text())
	}
	assert.Equal(t, "abc", partials)
	assert.Equal(t, 1, finals)
}

func TestMockModel_EchoFallback(t *testing.T) {
	m := NewMockModel()

	req := Request{History: []core.Item{core.NewUserItem("ping")}}
	responses := drain(t, m, req)
	require.Len(t, responses, 1)
	assert.Contains(t, responses[0].Content.Text(), "ping")
}

func TestMockModel_ReportsUsage(t *testing.T) {
	m := NewMockModel().EnqueueText("ok")

	responses := drain(t, m, Request{})
	require.Len(t, responses, 1)
	require.NotNil(t, responses[0].Usage)
	assert.Equal(t, 1, responses[0].Usage.ModelCalls)
}

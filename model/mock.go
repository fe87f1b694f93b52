package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/agentloop/core"
)

// MockModel is a scriptable in-memory Model useful for tests and examples.
// Scripted turns are consumed in FIFO order; once the script is exhausted the
// mock echoes the last user input. It is safe for concurrent use.
type MockModel struct {
	mu     sync.Mutex
	info   Info
	script [][]core.Part
	calls  int
	// Requests records every request received, for assertions on history
	// content and ordering.
	requests []Request
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel() *MockModel {
	return &MockModel{
		info: Info{Name: "mock", Provider: "mock", SupportsTools: true},
	}
}

// EnqueueText scripts a plain assistant text turn.
func (m *MockModel) EnqueueText(text string) *MockModel {
	return m.Enqueue(core.TextPart{Text: text})
}

// EnqueueToolCall scripts a turn requesting a single tool call.
func (m *MockModel) EnqueueToolCall(id, name, args string) *MockModel {
	return m.Enqueue(core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: id, Name: name, Arguments: args}})
}

// Enqueue scripts a turn with arbitrary parts (text, tool calls, or both).
func (m *MockModel) Enqueue(parts ...core.Part) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, parts)
	return m
}

// Calls returns the number of Generate invocations made so far.
func (m *MockModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Requests returns a copy of all requests received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Generate implements Model. When streaming is requested, scripted text parts
// are first emitted as per-rune partial chunks followed by the final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.calls++
	m.requests = append(m.requests, req)
	var parts []core.Part
	if len(m.script) > 0 {
		parts = m.script[0]
		m.script = m.script[1:]
	} else {
		parts = []core.Part{core.TextPart{Text: fmt.Sprintf("Mock response to: %s", lastUserText(req.History))}}
	}
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)

		if req.Stream {
			for _, p := range parts {
				tp, ok := p.(core.TextPart)
				if !ok {
					continue
				}
				for _, r := range tp.Text {
					select {
					case <-ctx.Done():
						errCh <- ctx.Err()
						return
					case respCh <- Response{
						Partial: true,
						Content: core.Item{Role: core.RoleAssistant, Parts: []core.Part{core.TextPart{Text: string(r)}}},
					}:
					}
				}
			}
		}

		finish := "stop"
		for _, p := range parts {
			if _, ok := p.(core.FunctionCallPart); ok {
				finish = "tool_calls"
				break
			}
		}

		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- Response{
			Partial:      false,
			Content:      core.Item{Role: core.RoleAssistant, Parts: parts},
			FinishReason: finish,
			Usage:        &core.Usage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2, ModelCalls: 1},
		}:
		}
	}()

	return respCh, errCh
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }

func lastUserText(history []core.Item) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == core.RoleUser {
			return history[i].Text()
		}
	}
	return ""
}

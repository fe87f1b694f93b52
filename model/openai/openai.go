// Package openai implements model.Model on top of the OpenAI Chat Completions
// API, including streaming and function/tool calling. It translates the
// normalized Request/Response structures into the SDK's message format and
// back so the orchestration loop stays provider agnostic.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/openai/openai-go"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/model"
)

// aggCall aggregates partial tool call streaming deltas (id, name, arguments)
// so complete function call parts can be reconstructed when the finish reason
// arrives.
type aggCall struct{ id, name, args string }

// Options configure the OpenAI model adapter. Per-agent Settings on the
// request override these defaults call by call.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Model wraps the OpenAI Chat Completions API behind the generic model.Model interface.
type Model struct {
	client *openai.Client
	opts   Options
}

// NewModel creates a new OpenAI model using the official client
func NewModel(optFns ...func(o *Options)) *Model {
	client := openai.NewClient()
	return NewModelFromClient(&client, optFns...)
}

// NewModelFromClient creates a new OpenAI model from an existing client
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Generate implements unified streaming / non-streaming generation.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		messages := buildMessages(req)
		params := m.buildParams(req, messages)
		if req.Stream {
			m.handleStreaming(ctx, params, out, errCh)
			return
		}
		m.handleNonStreaming(ctx, params, out, errCh)
	}()
	return out, errCh
}

// systemPrompt combines the resolved instructions with the output schema
// contract, if any. The schema travels as part of the instructions so the
// model knows a bare text reply will not terminate the run.
func systemPrompt(req model.Request) string {
	if len(req.OutputSchema) == 0 {
		return req.Instructions
	}
	var b strings.Builder
	b.WriteString(req.Instructions)
	b.WriteString("\n\nRespond with a single JSON object matching this JSON schema, with no surrounding prose:\n")
	b.WriteString(schemaJSON(req.OutputSchema))
	return b.String()
}

func schemaJSON(schema map[string]any) string {
	raw, err := json.Marshal(schema)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

// buildMessages converts normalized history items into OpenAI chat messages.
// Tool result items become tool messages keyed by call id; hand-off items
// become system notes so the successor agent sees the transfer.
func buildMessages(req model.Request) []openai.ChatCompletionMessageParamUnion {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt(req)),
	}

	for _, it := range req.History {
		switch it.Role {
		case core.RoleUser:
			messages = append(messages, openai.UserMessage(it.Text()))
		case core.RoleAssistant:
			toolCalls := extractToolCalls(it)
			if len(toolCalls) == 0 {
				messages = append(messages, openai.AssistantMessage(it.Text()))
				continue
			}
			messages = append(
				messages,
				openai.ChatCompletionMessageParamUnion{OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Role:      "assistant",
					ToolCalls: toolCalls,
				}},
			)
		case core.RoleTool:
			for _, fr := range it.FunctionResponses() {
				messages = append(messages, openai.ToolMessage(renderToolResult(fr), fr.ID))
			}
		case core.RoleHandoff:
			if h, ok := it.Handoff(); ok {
				messages = append(messages, openai.SystemMessage(
					fmt.Sprintf("Conversation transferred from agent %q to agent %q.", h.From, h.To),
				))
			}
		default:
			if text := it.Text(); text != "" {
				messages = append(messages, openai.UserMessage(text))
			}
		}
	}

	return messages
}

// renderToolResult flattens a function response (or its error) into the text
// payload of a tool message.
func renderToolResult(fr core.FunctionResponse) string {
	if fr.Error != "" {
		return "Error: " + fr.Error
	}
	if s, ok := fr.Response.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", fr.Response)
}

// extractToolCalls converts an item's tool call parts into OpenAI formatted tool calls.
func extractToolCalls(it core.Item) []openai.ChatCompletionMessageToolCallParam {
	var toolCalls []openai.ChatCompletionMessageToolCallParam
	for _, fc := range it.FunctionCalls() {
		toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
			ID:   fc.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      fc.Name,
				Arguments: fc.Arguments,
			},
		})
	}
	return toolCalls
}

// buildParams assembles the OpenAI request parameters including tool definitions.
func (m *Model) buildParams(
	req model.Request,
	messages []openai.ChatCompletionMessageParamUnion,
) openai.ChatCompletionNewParams {
	modelID := m.opts.Model
	if req.Settings.Model != "" {
		modelID = req.Settings.Model
	}
	temperature := m.opts.Temperature
	if req.Settings.Temperature != 0 {
		temperature = req.Settings.Temperature
	}
	maxTokens := m.opts.MaxCompletionTokens
	if req.Settings.MaxTokens != 0 {
		maxTokens = req.Settings.MaxTokens
	}

	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               modelID,
		Temperature:         openai.Float(temperature),
		MaxCompletionTokens: openai.Int(maxTokens),
	}
	if len(req.Tools) == 0 {
		return params
	}
	tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
	for i, tdef := range req.Tools {
		tools[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        tdef.Name,
				Description: openai.String(tdef.Description),
				Parameters:  tdef.Parameters,
			},
		}
	}
	params.Tools = tools
	return params
}

// handleStreaming processes streaming responses and forwards partial / final events.
func (m *Model) handleStreaming(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	stream := m.client.Chat.Completions.NewStreaming(ctx, params)
	var textBuilder strings.Builder
	toolAgg := map[int64]*aggCall{}
	var usage *core.Usage
	for stream.Next() {
		ck := stream.Current()
		if ck.Usage.TotalTokens > 0 {
			usage = &core.Usage{
				PromptTokens:     int(ck.Usage.PromptTokens),
				CompletionTokens: int(ck.Usage.CompletionTokens),
				TotalTokens:      int(ck.Usage.TotalTokens),
				ModelCalls:       1,
			}
		}
		for _, ch := range ck.Choices {
			m.emitTextDelta(ch, &textBuilder, out)
			m.collectToolCallDeltas(ch, toolAgg)
			if ch.FinishReason != "" {
				m.emitFinalChunk(ch, &textBuilder, toolAgg, usage, out)
			}
		}
	}
	if err := stream.Err(); err != nil {
		errCh <- fmt.Errorf("openai streaming error: %w", err)
	}
}

func (m *Model) emitTextDelta(
	ch openai.ChatCompletionChunkChoice,
	builder *strings.Builder,
	out chan<- model.Response,
) {
	if ch.Delta.Content == "" {
		return
	}
	builder.WriteString(ch.Delta.Content)
	out <- model.Response{
		Partial: true,
		Content: core.Item{
			Role:  core.RoleAssistant,
			Parts: []core.Part{core.TextPart{Text: ch.Delta.Content}},
		},
	}
}

func (m *Model) collectToolCallDeltas(ch openai.ChatCompletionChunkChoice, agg map[int64]*aggCall) {
	for _, tc := range ch.Delta.ToolCalls {
		ac, ok := agg[tc.Index]
		if !ok {
			ac = &aggCall{}
			agg[tc.Index] = ac
		}
		if tc.ID != "" {
			ac.id = tc.ID
		}
		if tc.Function.Name != "" {
			ac.name = tc.Function.Name
		}
		if tc.Function.Arguments != "" {
			ac.args += tc.Function.Arguments
		}
	}
}

func (m *Model) emitFinalChunk(
	ch openai.ChatCompletionChunkChoice,
	builder *strings.Builder,
	toolAgg map[int64]*aggCall,
	usage *core.Usage,
	out chan<- model.Response,
) {
	finalParts := make([]core.Part, 0, len(toolAgg)+1)
	if builder.Len() > 0 {
		finalParts = append(finalParts, core.TextPart{Text: builder.String()})
	}
	// Reassemble calls in stream-index order; map iteration order would
	// scramble them and downstream history ordering depends on it.
	indices := make([]int64, 0, len(toolAgg))
	for idx := range toolAgg {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	for _, idx := range indices {
		ac := toolAgg[idx]
		finalParts = append(finalParts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
			ID:        ac.id,
			Name:      ac.name,
			Arguments: ac.args,
		}})
	}
	out <- model.Response{
		Partial:      false,
		Content:      core.Item{Role: core.RoleAssistant, Parts: finalParts},
		FinishReason: ch.FinishReason,
		Usage:        usage,
	}
}

// handleNonStreaming processes a normal (non-streaming) completion.
func (m *Model) handleNonStreaming(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		errCh <- fmt.Errorf("openai api error: %w", err)
		return
	}
	if len(resp.Choices) == 0 {
		errCh <- fmt.Errorf("no choices returned")
		return
	}
	ch0 := resp.Choices[0]
	parts := make([]core.Part, 0, len(ch0.Message.ToolCalls)+1)
	if ch0.Message.Content != "" {
		parts = append(parts, core.TextPart{Text: ch0.Message.Content})
	}
	for _, tc := range ch0.Message.ToolCalls {
		parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		}})
	}
	out <- model.Response{
		Partial:      false,
		Content:      core.Item{Role: core.RoleAssistant, Parts: parts},
		FinishReason: ch0.FinishReason,
		Usage: &core.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
			ModelCalls:       1,
		},
	}
}

// Info returns metadata describing this OpenAI model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "openai",
		SupportsTools: true,
	}
}

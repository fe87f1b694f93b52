// Package anthropic implements model.Model on top of the Anthropic Messages
// API with function/tool calling. It translates the normalized
// Request/Response structures into the SDK's block format and back.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/model"
)

// Options configures the Anthropic model adapter (model id, temperature,
// max tokens, API key). Per-agent Settings on the request override these
// defaults call by call.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Model wraps the Anthropic Messages API behind the generic model.Model interface.
type Model struct {
	client *anthropic.Client
	opts   Options
}

// NewModel creates a new Anthropic model using the official client
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions(optFns)

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a new Anthropic model from an existing client
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	return &Model{client: client, opts: defaultOptions(optFns)}
}

func defaultOptions(optFns []func(o *Options)) Options {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts
}

// Generate implements model.Model. Streaming requests fall back to a single
// final response; the loop tolerates providers that never emit partials.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := m.buildParams(req)

		resp, err := m.client.Messages.New(ctx, params)
		if err != nil {
			errCh <- fmt.Errorf("anthropic api error: %w", err)
			return
		}

		var parts []core.Part
		for _, block := range resp.Content {
			switch block.Type {
			case "text":
				textBlock := block.AsText()
				if textBlock.Text != "" {
					parts = append(parts, core.TextPart{Text: textBlock.Text})
				}
			case "tool_use":
				toolBlock := block.AsToolUse()
				args := ""
				if toolBlock.Input != nil {
					if argsBytes, err := json.Marshal(toolBlock.Input); err == nil {
						args = string(argsBytes)
					}
				}
				parts = append(parts, core.FunctionCallPart{
					FunctionCall: core.FunctionCall{
						ID:        toolBlock.ID,
						Name:      toolBlock.Name,
						Arguments: args,
					},
				})
			}
		}

		finishReason := "stop"
		if resp.StopReason != "" {
			finishReason = string(resp.StopReason)
		}

		out <- model.Response{
			Partial:      false,
			Content:      core.Item{Role: core.RoleAssistant, Parts: parts},
			FinishReason: finishReason,
			Usage: &core.Usage{
				PromptTokens:     int(resp.Usage.InputTokens),
				CompletionTokens: int(resp.Usage.OutputTokens),
				TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
				ModelCalls:       1,
			},
		}
	}()

	return out, errCh
}

// buildParams assembles the Messages API request: system prompt from the
// resolved instructions (plus output schema contract), history converted to
// message blocks, tools converted to tool declarations.
func (m *Model) buildParams(req model.Request) anthropic.MessageNewParams {
	modelID := m.opts.Model
	if req.Settings.Model != "" {
		modelID = anthropic.Model(req.Settings.Model)
	}
	temperature := m.opts.Temperature
	if req.Settings.Temperature != 0 {
		temperature = req.Settings.Temperature
	}
	maxTokens := m.opts.MaxTokens
	if req.Settings.MaxTokens != 0 {
		maxTokens = req.Settings.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:       modelID,
		Messages:    buildMessages(req.History),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(temperature),
	}

	if prompt := systemPrompt(req); prompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: prompt}}
	}

	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}

	return params
}

// systemPrompt combines the resolved instructions with the output schema
// contract, if any.
func systemPrompt(req model.Request) string {
	if len(req.OutputSchema) == 0 {
		return req.Instructions
	}
	raw, err := json.Marshal(req.OutputSchema)
	if err != nil {
		return req.Instructions
	}
	var b strings.Builder
	b.WriteString(req.Instructions)
	b.WriteString("\n\nRespond with a single JSON object matching this JSON schema, with no surrounding prose:\n")
	b.Write(raw)
	return b.String()
}

// buildMessages converts normalized history items into Anthropic messages.
// Tool results attach as tool_result blocks in a user message following the
// assistant's tool_use turn, per the Messages API contract. Hand-off markers
// become user-visible transfer notes.
func buildMessages(history []core.Item) []anthropic.MessageParam {
	var messages []anthropic.MessageParam

	for _, it := range history {
		switch it.Role {
		case core.RoleUser:
			if content := textBlocks(it); len(content) > 0 {
				messages = append(messages, anthropic.NewUserMessage(content...))
			}
		case core.RoleAssistant:
			if content := assistantBlocks(it); len(content) > 0 {
				messages = append(messages, anthropic.NewAssistantMessage(content...))
			}
		case core.RoleTool:
			var content []anthropic.ContentBlockParamUnion
			for _, fr := range it.FunctionResponses() {
				content = append(content, anthropic.NewToolResultBlock(fr.ID, renderToolResult(fr), fr.Error != ""))
			}
			if len(content) > 0 {
				messages = append(messages, anthropic.NewUserMessage(content...))
			}
		case core.RoleHandoff:
			if h, ok := it.Handoff(); ok {
				note := fmt.Sprintf("[Conversation transferred from agent %q to agent %q.]", h.From, h.To)
				messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(note)))
			}
		default:
			if content := textBlocks(it); len(content) > 0 {
				messages = append(messages, anthropic.NewUserMessage(content...))
			}
		}
	}

	return mergeAdjacent(messages)
}

// mergeAdjacent folds consecutive same-role messages into one, since the
// Messages API requires strictly alternating roles.
func mergeAdjacent(messages []anthropic.MessageParam) []anthropic.MessageParam {
	var merged []anthropic.MessageParam
	for _, msg := range messages {
		if n := len(merged); n > 0 && merged[n-1].Role == msg.Role {
			merged[n-1].Content = append(merged[n-1].Content, msg.Content...)
			continue
		}
		merged = append(merged, msg)
	}
	return merged
}

func textBlocks(it core.Item) []anthropic.ContentBlockParamUnion {
	var content []anthropic.ContentBlockParamUnion
	if text := it.Text(); text != "" {
		content = append(content, anthropic.NewTextBlock(text))
	}
	return content
}

func assistantBlocks(it core.Item) []anthropic.ContentBlockParamUnion {
	var content []anthropic.ContentBlockParamUnion

	if text := it.Text(); text != "" {
		content = append(content, anthropic.NewTextBlock(text))
	}

	for _, fc := range it.FunctionCalls() {
		var input any
		if fc.Arguments != "" {
			if err := json.Unmarshal([]byte(fc.Arguments), &input); err != nil {
				input = fc.Arguments
			}
		}
		content = append(content, anthropic.NewToolUseBlock(fc.ID, input, fc.Name))
	}

	return content
}

func renderToolResult(fr core.FunctionResponse) string {
	if fr.Error != "" {
		return "Error: " + fr.Error
	}
	if s, ok := fr.Response.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", fr.Response)
}

// buildTools converts normalized tool definitions into the Anthropic format.
func buildTools(tools []model.ToolDefinition) []anthropic.ToolUnionParam {
	anthropicTools := make([]anthropic.ToolUnionParam, len(tools))

	for i, tdef := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}

		if tdef.Parameters != nil {
			if properties, exists := tdef.Parameters["properties"]; exists {
				inputSchema.Properties = properties
			}
			if required, exists := tdef.Parameters["required"]; exists {
				switch req := required.(type) {
				case []string:
					inputSchema.Required = req
				case []any:
					var reqStrings []string
					for _, r := range req {
						if s, ok := r.(string); ok {
							reqStrings = append(reqStrings, s)
						}
					}
					inputSchema.Required = reqStrings
				}
			}
		}

		anthropicTools[i] = anthropic.ToolUnionParamOfTool(inputSchema, tdef.Name)
	}

	return anthropicTools
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          string(m.opts.Model),
		Provider:      "anthropic",
		SupportsTools: true,
	}
}

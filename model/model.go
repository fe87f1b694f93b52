// Package model defines the normalized request/response contract between the
// orchestration loop and language-model providers. Provider adapters (see the
// openai and anthropic subpackages) translate these structures into vendor
// specific API calls so downstream logic needs no per-provider branching.
package model

import (
	"context"

	"github.com/hupe1980/agentloop/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// Settings carries per-agent sampling parameters forwarded to the provider.
// Zero values mean "use the adapter's default".
type Settings struct {
	Model       string  `json:"model,omitempty"` // Provider model identifier override
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int64   `json:"max_tokens,omitempty"`
}

// Request captures the normalized model input produced by the runner:
// the active agent's instructions, the full ordered history, the exposed
// tool definitions and an optional output schema.
type Request struct {
	Instructions string           `json:"instructions"`
	History      []core.Item      `json:"history"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	OutputSchema map[string]any   `json:"output_schema,omitempty"`
	Settings     Settings         `json:"settings"`
	Stream       bool             `json:"stream,omitempty"`
}

// Response is a (partial or final) chunk emitted by a model.
// Partial responses carry incremental content; exactly one non-partial
// response terminates each Generate call.
type Response struct {
	Partial      bool        `json:"partial"`
	Content      core.Item   `json:"content"`
	FinishReason string      `json:"finish_reason,omitempty"` // "stop", "length", "tool_calls", etc.
	Usage        *core.Usage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by the runner to drive generation.
// Implementations must close both channels when generation finishes and send
// at most one terminal error. Transient provider failures (timeouts, rate
// limits) are expected to be retried inside the adapter, not by the runner.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

package runner

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

// Config carries the environment-tunable runner knobs. Process-level defaults
// only; per-runner overrides still go through functional options.
type Config struct {
	// MaxTurns bounds the number of model calls per run.
	MaxTurns int `env:"AGENTLOOP_MAX_TURNS, default=10"`

	// MaxParallelTools bounds concurrent tool executions within one turn.
	MaxParallelTools int `env:"AGENTLOOP_MAX_PARALLEL_TOOLS, default=4"`

	// EventBufferSize sizes the stream event channel of streamed runs.
	EventBufferSize int `env:"AGENTLOOP_EVENT_BUFFER, default=100"`

	// GuardrailsEveryTurn re-evaluates input guardrails on every turn instead
	// of only before the first model call.
	GuardrailsEveryTurn bool `env:"AGENTLOOP_GUARDRAILS_EVERY_TURN, default=false"`
}

// LoadConfig reads runner configuration from the environment.
func LoadConfig(ctx context.Context) (Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to process runner config: %w", err)
	}
	return cfg, nil
}

// WithConfig applies environment-derived settings to runner options.
func WithConfig(cfg Config) func(o *Options) {
	return func(o *Options) {
		if cfg.MaxTurns > 0 {
			o.MaxTurns = cfg.MaxTurns
		}
		if cfg.MaxParallelTools > 0 {
			o.MaxParallelTools = cfg.MaxParallelTools
		}
		if cfg.EventBufferSize > 0 {
			o.EventBufferSize = cfg.EventBufferSize
		}
		o.GuardrailsEveryTurn = cfg.GuardrailsEveryTurn
	}
}

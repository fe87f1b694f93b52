package runner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.MaxTurns)
	assert.Equal(t, 4, cfg.MaxParallelTools)
	assert.Equal(t, 100, cfg.EventBufferSize)
	assert.False(t, cfg.GuardrailsEveryTurn)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("AGENTLOOP_MAX_TURNS", "3")
	t.Setenv("AGENTLOOP_MAX_PARALLEL_TOOLS", "8")
	t.Setenv("AGENTLOOP_EVENT_BUFFER", "16")
	t.Setenv("AGENTLOOP_GUARDRAILS_EVERY_TURN", "true")

	cfg, err := LoadConfig(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.MaxTurns)
	assert.Equal(t, 8, cfg.MaxParallelTools)
	assert.Equal(t, 16, cfg.EventBufferSize)
	assert.True(t, cfg.GuardrailsEveryTurn)
}

func TestWithConfig_AppliesToOptions(t *testing.T) {
	cfg := Config{MaxTurns: 5, MaxParallelTools: 2, EventBufferSize: 32, GuardrailsEveryTurn: true}

	var opts Options
	WithConfig(cfg)(&opts)

	assert.Equal(t, 5, opts.MaxTurns)
	assert.Equal(t, 2, opts.MaxParallelTools)
	assert.Equal(t, 32, opts.EventBufferSize)
	assert.True(t, opts.GuardrailsEveryTurn)
}

package research

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelCall_PassesSamplingOptions(t *testing.T) {
	model := &MockLLM{}
	cfg := testConfig()
	cfg.Temperature = 0.4
	cfg.MaxTokens = 4999

	_, err := newModelCall("planner", model, cfg).generate(context.Background(), "You are a research planner", "q")
	require.NoError(t, err)

	opts := model.LastOptions()
	assert.InDelta(t, 0.4, opts.Temperature, 1e-9)
	assert.Equal(t, 4999, opts.MaxTokens)
}

func TestModelCall_ZeroMaxTokensLeavesProviderDefault(t *testing.T) {
	model := &MockLLM{}
	cfg := testConfig()
	cfg.MaxTokens = 0

	_, err := newModelCall("summarizer", model, cfg).generate(context.Background(), "You merge", "q")
	require.NoError(t, err)
	assert.Zero(t, model.LastOptions().MaxTokens)
}

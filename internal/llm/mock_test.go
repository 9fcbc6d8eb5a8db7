package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMock_Generate_Deterministic(t *testing.T) {
	adapter := NewMockAdapter()
	req := Request{
		ProviderType: "MOCK",
		ProviderName: "Staging",
		ModelName:    "echo-1",
		Prompt:       "hello world",
	}

	first, err := adapter.Generate(context.Background(), req)
	require.NoError(t, err)
	second, err := adapter.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Contains(t, first.Content, "Mock response from Staging / echo-1")
	assert.Contains(t, first.Content, "(default config)")
	assert.Contains(t, first.Content, "You said: hello world")

	require.NotNil(t, first.PromptTokens)
	require.NotNil(t, first.CompletionTokens)
	require.NotNil(t, first.TotalTokens)
	assert.Equal(t, *first.PromptTokens+*first.CompletionTokens, *first.TotalTokens)
}

func TestMock_Generate_ConfigHint(t *testing.T) {
	adapter := NewMockAdapter()
	res, err := adapter.Generate(context.Background(), Request{
		ProviderType: "MOCK",
		Prompt:       "hi",
		ConfigJSON:   `{"contextLength": 4096}`,
	})
	require.NoError(t, err)
	assert.Contains(t, res.Content, "(using model config)")
	assert.Contains(t, res.Content, "Mock response from Provider / Model")
}

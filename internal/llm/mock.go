package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/apexplatform/inference-gateway/internal/tokens"
)

// MockAdapter is an offline adapter for deterministic testing. It performs
// no I/O, always succeeds, echoes the prompt, and derives usage purely from
// the token estimator.
type MockAdapter struct {
	estimator tokens.Estimator
}

// NewMockAdapter creates the mock adapter.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{estimator: tokens.Heuristic{}}
}

// Name returns "mock".
func (a *MockAdapter) Name() string {
	return "mock"
}

// Supports matches only the exact label "MOCK" (trimmed, case-insensitive).
// Substring matching is deliberately avoided here so free-text provider
// labels can never route to the mock by accident.
func (a *MockAdapter) Supports(providerType string) bool {
	return strings.EqualFold(strings.TrimSpace(providerType), "MOCK")
}

// Generate builds a deterministic echo response.
func (a *MockAdapter) Generate(_ context.Context, req Request) (*Result, error) {
	configHint := "(default config)"
	if strings.TrimSpace(req.ConfigJSON) != "" {
		configHint = "(using model config)"
	}
	providerName := req.ProviderName
	if providerName == "" {
		providerName = "Provider"
	}
	modelName := req.ModelName
	if modelName == "" {
		modelName = "Model"
	}

	content := fmt.Sprintf("Mock response from %s / %s %s\n\nYou said: %s",
		providerName, modelName, configHint, req.Prompt)

	promptTokens := a.estimator.Estimate(req.Prompt)
	completionTokens := a.estimator.Estimate(content)
	totalTokens := promptTokens + completionTokens

	return &Result{
		Content:          content,
		PromptTokens:     &promptTokens,
		CompletionTokens: &completionTokens,
		TotalTokens:      &totalTokens,
	}, nil
}

var _ Adapter = (*MockAdapter)(nil)

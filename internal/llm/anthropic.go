package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"

	// The Messages API requires max_tokens; this is the fallback when the
	// model configuration does not set maxOutputTokens.
	defaultAnthropicMaxTokens = 1024
)

// AnthropicAdapter handles the Anthropic Messages API.
//
// Wire shape: POST {base}/v1/messages with x-api-key and anthropic-version
// headers, content concatenated from content[*].text, usage from
// usage.{input_tokens,output_tokens}. Anthropic reports no total; the
// computed total downstream covers it.
type AnthropicAdapter struct {
	baseAdapter
	client *http.Client
}

// NewAnthropicAdapter creates the Anthropic family adapter.
func NewAnthropicAdapter(client *http.Client) *AnthropicAdapter {
	return &AnthropicAdapter{
		baseAdapter: baseAdapter{
			name:     "anthropic",
			keywords: []string{"ANTHROPIC", "CLAUDE"},
		},
		client: client,
	}
}

// Generate issues one Messages call. The model field falls back from
// modelKey to modelName like the OpenAI-compatible family.
func (a *AnthropicAdapter) Generate(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.ProviderAPIKey) == "" {
		return nil, requestErrorf("provider API key not configured")
	}
	model := strings.TrimSpace(req.ModelKey)
	if model == "" {
		model = strings.TrimSpace(req.ModelName)
	}
	if model == "" {
		return nil, requestErrorf("model key/name not configured")
	}

	maxTokens := defaultAnthropicMaxTokens
	if cfg := IntField(req.ConfigJSON, "maxOutputTokens"); cfg != nil {
		maxTokens = *cfg
	}

	payload := map[string]any{
		"model":      model,
		"max_tokens": maxTokens,
		"messages": []map[string]string{
			{"role": "user", "content": req.Prompt},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal messages payload: %w", err)
	}

	header := http.Header{}
	header.Set("x-api-key", req.ProviderAPIKey)
	header.Set("anthropic-version", anthropicVersion)

	raw, err := postJSON(ctx, a.client, messagesURL(req.ProviderBaseURL), header, body)
	if err != nil {
		return nil, err
	}

	return &Result{
		Content:          extractAnthropicText(raw),
		PromptTokens:     usageInt(raw, "usage.input_tokens"),
		CompletionTokens: usageInt(raw, "usage.output_tokens"),
	}, nil
}

// messagesURL resolves the Messages endpoint with the same idempotent
// normalization as the other families: strip trailing slashes, append /v1
// only when absent, append /messages only when absent.
func messagesURL(baseURL string) string {
	base := strings.TrimSpace(baseURL)
	if base == "" {
		base = defaultAnthropicBaseURL
	}
	base = strings.TrimRight(base, "/")
	if strings.HasSuffix(base, "/v1/messages") {
		return base
	}
	if !strings.HasSuffix(base, "/v1") && !strings.Contains(base, "/v1/") {
		base += "/v1"
	}
	return base + "/messages"
}

// extractAnthropicText concatenates text content blocks, falling back to the
// raw body when none are found.
func extractAnthropicText(raw []byte) string {
	blocks := gjson.GetBytes(raw, "content")
	if blocks.IsArray() {
		var b strings.Builder
		for _, block := range blocks.Array() {
			text := block.Get("text")
			if text.Type != gjson.String || text.String() == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(text.String())
		}
		if b.Len() > 0 {
			return b.String()
		}
	}
	return string(raw)
}

var _ Adapter = (*AnthropicAdapter)(nil)

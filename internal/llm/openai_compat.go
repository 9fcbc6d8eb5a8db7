package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	defaultOpenAIBaseURL   = "https://api.openai.com/v1"
	defaultDeepSeekBaseURL = "https://api.deepseek.com/v1"
)

// OpenAICompatAdapter handles providers exposing an OpenAI-style Chat
// Completions API: OpenAI itself, DeepSeek, Groq, and anything labelled as
// compatible.
//
// Wire shape: POST {base}/v1/chat/completions with a bearer key, response
// content read from choices[0].message.content (choices[0].text fallback),
// usage from usage.{prompt_tokens,completion_tokens,total_tokens}.
type OpenAICompatAdapter struct {
	baseAdapter
	client *http.Client
}

// NewOpenAICompatAdapter creates the OpenAI-compatible family adapter.
func NewOpenAICompatAdapter(client *http.Client) *OpenAICompatAdapter {
	return &OpenAICompatAdapter{
		baseAdapter: baseAdapter{
			name:     "openai-compat",
			keywords: []string{"OPENAI", "DEEPSEEK", "GROQ", "COMPAT"},
		},
		client: client,
	}
}

// Generate issues one Chat Completions call. The model field falls back
// from modelKey to modelName; this family tolerates either.
func (a *OpenAICompatAdapter) Generate(ctx context.Context, req Request) (*Result, error) {
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

	url := chatCompletionsURL(req.ProviderType, req.ProviderBaseURL)

	payload := map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "user", "content": req.Prompt},
		},
		"stream": false,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal chat payload: %w", err)
	}
	if maxTokens := IntField(req.ConfigJSON, "maxOutputTokens"); maxTokens != nil {
		if body, err = sjson.SetBytes(body, "max_tokens", *maxTokens); err != nil {
			return nil, fmt.Errorf("set max_tokens: %w", err)
		}
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+req.ProviderAPIKey)

	raw, err := postJSON(ctx, a.client, url, header, body)
	if err != nil {
		return nil, err
	}

	return &Result{
		Content:          extractChatContent(raw),
		PromptTokens:     usageInt(raw, "usage.prompt_tokens"),
		CompletionTokens: usageInt(raw, "usage.completion_tokens"),
		TotalTokens:      usageInt(raw, "usage.total_tokens"),
	}, nil
}

// chatCompletionsURL resolves the Chat Completions endpoint from an optional
// stored base URL. Normalization is idempotent: bases stored with or without
// the /v1 segment, with trailing slashes, or as the full endpoint all
// resolve to the same URL.
func chatCompletionsURL(providerType, baseURL string) string {
	label := strings.ToUpper(strings.TrimSpace(providerType))
	base := strings.TrimSpace(baseURL)
	if base == "" {
		if label == "DEEPSEEK" {
			base = defaultDeepSeekBaseURL
		} else {
			base = defaultOpenAIBaseURL
		}
	}
	base = strings.TrimRight(base, "/")
	if strings.HasSuffix(base, "/chat/completions") {
		return base
	}
	if !strings.HasSuffix(base, "/v1") && !strings.Contains(base, "/v1/") {
		base += "/v1"
	}
	return base + "/chat/completions"
}

// extractChatContent pulls the assistant text out of an OpenAI-style
// response body. If extraction fails entirely, the raw body is returned so
// the caller always gets something displayable.
func extractChatContent(raw []byte) string {
	if msg := gjson.GetBytes(raw, "choices.0.message.content"); msg.Type == gjson.String {
		return msg.String()
	}
	if text := gjson.GetBytes(raw, "choices.0.text"); text.Type == gjson.String {
		return text.String()
	}
	log.Warn().Msg("unrecognized chat completion response shape, returning raw body")
	return string(raw)
}

var _ Adapter = (*OpenAICompatAdapter)(nil)

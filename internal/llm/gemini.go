package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiAdapter handles the Google AI Studio generateContent API.
//
// Wire shape: POST {base}/v1beta/models/{modelKey}:generateContent with an
// x-goog-api-key header, response text concatenated from
// candidates[0].content.parts[*].text, usage from
// usageMetadata.{promptTokenCount,candidatesTokenCount,totalTokenCount}.
type GeminiAdapter struct {
	baseAdapter
	client *http.Client
}

// NewGeminiAdapter creates the Gemini family adapter.
func NewGeminiAdapter(client *http.Client) *GeminiAdapter {
	return &GeminiAdapter{
		baseAdapter: baseAdapter{
			name:     "gemini",
			keywords: []string{"GEMINI"},
		},
		client: client,
	}
}

// Generate issues one generateContent call. Gemini puts the model in the URL
// path, so modelKey is required; there is no modelName fallback.
func (a *GeminiAdapter) Generate(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.ProviderAPIKey) == "" {
		return nil, requestErrorf("provider API key not configured")
	}
	if strings.TrimSpace(req.ModelKey) == "" {
		return nil, requestErrorf("model key is required for Gemini")
	}

	endpoint := generateContentURL(req.ProviderBaseURL, req.ModelKey)

	payload := map[string]any{
		"contents": []map[string]any{
			{
				"role":  "user",
				"parts": []map[string]string{{"text": req.Prompt}},
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal generateContent payload: %w", err)
	}
	if maxTokens := IntField(req.ConfigJSON, "maxOutputTokens"); maxTokens != nil {
		if body, err = sjson.SetBytes(body, "generationConfig.maxOutputTokens", *maxTokens); err != nil {
			return nil, fmt.Errorf("set generationConfig.maxOutputTokens: %w", err)
		}
	}

	header := http.Header{}
	header.Set("x-goog-api-key", req.ProviderAPIKey)

	raw, err := postJSON(ctx, a.client, endpoint, header, body)
	if err != nil {
		return nil, err
	}

	// Token counts under usageMetadata are present or absent depending on
	// model and features; absent stays absent.
	return &Result{
		Content:          extractGeminiText(raw),
		PromptTokens:     usageInt(raw, "usageMetadata.promptTokenCount"),
		CompletionTokens: usageInt(raw, "usageMetadata.candidatesTokenCount"),
		TotalTokens:      usageInt(raw, "usageMetadata.totalTokenCount"),
	}, nil
}

// generateContentURL resolves the generateContent endpoint, appending the
// /v1beta segment only when the stored base does not already carry it. The
// model identifier is path-escaped.
func generateContentURL(baseURL, modelKey string) string {
	base := strings.TrimSpace(baseURL)
	if base == "" {
		base = defaultGeminiBaseURL
	}
	base = strings.TrimRight(base, "/")
	if !strings.HasSuffix(base, "/v1beta") && !strings.Contains(base, "/v1beta/") {
		base += "/v1beta"
	}
	return base + "/models/" + url.PathEscape(modelKey) + ":generateContent"
}

// extractGeminiText concatenates the text parts of the first candidate,
// falling back to the raw body when no text part is found.
func extractGeminiText(raw []byte) string {
	parts := gjson.GetBytes(raw, "candidates.0.content.parts")
	if parts.IsArray() {
		var b strings.Builder
		for _, part := range parts.Array() {
			text := part.Get("text")
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

var _ Adapter = (*GeminiAdapter)(nil)

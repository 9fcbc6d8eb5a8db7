package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateContentURL_Idempotent(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"", "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent"},
		{"https://gw.example.com", "https://gw.example.com/v1beta/models/gemini-2.0-flash:generateContent"},
		{"https://gw.example.com/", "https://gw.example.com/v1beta/models/gemini-2.0-flash:generateContent"},
		{"https://gw.example.com/v1beta", "https://gw.example.com/v1beta/models/gemini-2.0-flash:generateContent"},
		{"https://gw.example.com/v1beta/", "https://gw.example.com/v1beta/models/gemini-2.0-flash:generateContent"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, generateContentURL(tc.base, "gemini-2.0-flash"), "base %q", tc.base)
	}
}

func TestGenerateContentURL_EscapesModelKey(t *testing.T) {
	got := generateContentURL("https://gw.example.com", "models/odd key")
	assert.Equal(t, "https://gw.example.com/v1beta/models/models%2Fodd%20key:generateContent", got)
}

func TestGemini_Generate(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &gotBody))
		_, _ = w.Write([]byte(`{
			"candidates": [{"content": {"parts": [{"text": "part one"}, {"text": "part two"}]}}],
			"usageMetadata": {"promptTokenCount": 8, "candidatesTokenCount": 4, "totalTokenCount": 12}
		}`))
	}))
	defer srv.Close()

	adapter := NewGeminiAdapter(srv.Client())
	res, err := adapter.Generate(context.Background(), Request{
		ProviderType:    "GEMINI",
		ProviderBaseURL: srv.URL,
		ProviderAPIKey:  "g-key",
		ModelKey:        "gemini-2.0-flash",
		Prompt:          "hello",
		ConfigJSON:      `{"maxOutputTokens": "16,384 tokens"}`,
	})
	require.NoError(t, err)

	assert.Equal(t, "/v1beta/models/gemini-2.0-flash:generateContent", gotPath)
	assert.Equal(t, "g-key", gotKey)

	contents := gotBody["contents"].([]any)
	require.Len(t, contents, 1)
	first := contents[0].(map[string]any)
	assert.Equal(t, "user", first["role"])
	genCfg := gotBody["generationConfig"].(map[string]any)
	assert.Equal(t, float64(16384), genCfg["maxOutputTokens"])

	assert.Equal(t, "part one\npart two", res.Content)
	require.NotNil(t, res.PromptTokens)
	assert.Equal(t, 8, *res.PromptTokens)
	require.NotNil(t, res.TotalTokens)
	assert.Equal(t, 12, *res.TotalTokens)
}

func TestGemini_Generate_MissingUsageStaysAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"candidates": [{"content": {"parts": [{"text": "ok"}]}}]}`))
	}))
	defer srv.Close()

	adapter := NewGeminiAdapter(srv.Client())
	res, err := adapter.Generate(context.Background(), Request{
		ProviderType:    "GEMINI",
		ProviderBaseURL: srv.URL,
		ProviderAPIKey:  "g-key",
		ModelKey:        "gemini-2.0-flash",
		Prompt:          "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Content)
	assert.Nil(t, res.PromptTokens)
	assert.Nil(t, res.CompletionTokens)
	assert.Nil(t, res.TotalTokens)
}

func TestGemini_Generate_RawBodyFallback(t *testing.T) {
	const body = `{"candidates": [{"content": {"parts": [{"inlineData": {}}]}}]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	adapter := NewGeminiAdapter(srv.Client())
	res, err := adapter.Generate(context.Background(), Request{
		ProviderType:    "GEMINI",
		ProviderBaseURL: srv.URL,
		ProviderAPIKey:  "g-key",
		ModelKey:        "gemini-2.0-flash",
		Prompt:          "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, body, res.Content)
}

func TestGemini_Generate_Preconditions(t *testing.T) {
	adapter := NewGeminiAdapter(&http.Client{})

	var reqErr *RequestError
	_, err := adapter.Generate(context.Background(), Request{
		ProviderType: "GEMINI",
		ModelKey:     "gemini-2.0-flash",
	})
	require.ErrorAs(t, err, &reqErr)
	assert.Contains(t, reqErr.Reason, "API key")

	// Gemini puts the model in the URL, so modelName is not a substitute.
	_, err = adapter.Generate(context.Background(), Request{
		ProviderType:   "GEMINI",
		ProviderAPIKey: "g-key",
		ModelName:      "Gemini Flash",
	})
	require.ErrorAs(t, err, &reqErr)
	assert.Contains(t, reqErr.Reason, "model key")
}

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

// =============================================================================
// URL NORMALIZATION
// =============================================================================

func TestChatCompletionsURL_Idempotent(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"https://api.example.com", "https://api.example.com/v1/chat/completions"},
		{"https://api.example.com/", "https://api.example.com/v1/chat/completions"},
		{"https://api.example.com/v1", "https://api.example.com/v1/chat/completions"},
		{"https://api.example.com/v1/", "https://api.example.com/v1/chat/completions"},
		{"https://api.example.com/v1/chat/completions", "https://api.example.com/v1/chat/completions"},
		{"https://proxy.example.com/openai/v1", "https://proxy.example.com/openai/v1/chat/completions"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, chatCompletionsURL("OPENAI", tc.base), "base %q", tc.base)
	}
}

func TestChatCompletionsURL_VendorDefaults(t *testing.T) {
	assert.Equal(t, "https://api.deepseek.com/v1/chat/completions", chatCompletionsURL("DEEPSEEK", ""))
	assert.Equal(t, "https://api.openai.com/v1/chat/completions", chatCompletionsURL("OPENAI", ""))
	assert.Equal(t, "https://api.openai.com/v1/chat/completions", chatCompletionsURL("GROQ", ""))
}

// =============================================================================
// GENERATE
// =============================================================================

func TestOpenAICompat_Generate(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "hi there"}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 7, "total_tokens": 19}
		}`))
	}))
	defer srv.Close()

	adapter := NewOpenAICompatAdapter(srv.Client())
	res, err := adapter.Generate(context.Background(), Request{
		ProviderType:    "DEEPSEEK",
		ProviderBaseURL: srv.URL,
		ProviderAPIKey:  "sk-test",
		ModelKey:        "deepseek-chat",
		Prompt:          "hello",
		ConfigJSON:      `{"maxOutputTokens": 256}`,
	})
	require.NoError(t, err)

	assert.Equal(t, "/v1/chat/completions", gotPath)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "deepseek-chat", gotBody["model"])
	assert.Equal(t, false, gotBody["stream"])
	assert.Equal(t, float64(256), gotBody["max_tokens"])
	msgs := gotBody["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, map[string]any{"role": "user", "content": "hello"}, msgs[0])

	assert.Equal(t, "hi there", res.Content)
	require.NotNil(t, res.PromptTokens)
	assert.Equal(t, 12, *res.PromptTokens)
	require.NotNil(t, res.CompletionTokens)
	assert.Equal(t, 7, *res.CompletionTokens)
	require.NotNil(t, res.TotalTokens)
	assert.Equal(t, 19, *res.TotalTokens)
}

func TestOpenAICompat_Generate_TextFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices": [{"text": "legacy completion"}]}`))
	}))
	defer srv.Close()

	adapter := NewOpenAICompatAdapter(srv.Client())
	res, err := adapter.Generate(context.Background(), Request{
		ProviderType:    "OPENAI",
		ProviderBaseURL: srv.URL,
		ProviderAPIKey:  "sk-test",
		ModelKey:        "gpt-4o-mini",
		Prompt:          "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "legacy completion", res.Content)
	assert.Nil(t, res.PromptTokens)
	assert.Nil(t, res.CompletionTokens)
	assert.Nil(t, res.TotalTokens)
}

func TestOpenAICompat_Generate_RawBodyFallback(t *testing.T) {
	const body = `{"unexpected": "shape"}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	adapter := NewOpenAICompatAdapter(srv.Client())
	res, err := adapter.Generate(context.Background(), Request{
		ProviderType:    "OPENAI",
		ProviderBaseURL: srv.URL,
		ProviderAPIKey:  "sk-test",
		ModelKey:        "gpt-4o-mini",
		Prompt:          "hello",
	})
	require.NoError(t, err)
	// Content extraction failed entirely, so the raw body comes back.
	assert.Equal(t, body, res.Content)
}

func TestOpenAICompat_Generate_StringUsageCleaned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"content": "ok"}}],
			"usage": {"prompt_tokens": "1,234 tokens", "completion_tokens": "not a number"}
		}`))
	}))
	defer srv.Close()

	adapter := NewOpenAICompatAdapter(srv.Client())
	res, err := adapter.Generate(context.Background(), Request{
		ProviderType:    "OPENAI",
		ProviderBaseURL: srv.URL,
		ProviderAPIKey:  "sk-test",
		ModelKey:        "gpt-4o-mini",
		Prompt:          "hello",
	})
	require.NoError(t, err)
	require.NotNil(t, res.PromptTokens)
	assert.Equal(t, 1234, *res.PromptTokens)
	assert.Nil(t, res.CompletionTokens)
	assert.Nil(t, res.TotalTokens)
}

func TestOpenAICompat_Generate_Preconditions(t *testing.T) {
	adapter := NewOpenAICompatAdapter(&http.Client{})

	var reqErr *RequestError
	_, err := adapter.Generate(context.Background(), Request{
		ProviderType: "OPENAI",
		ModelKey:     "gpt-4o-mini",
	})
	require.ErrorAs(t, err, &reqErr)

	_, err = adapter.Generate(context.Background(), Request{
		ProviderType:   "OPENAI",
		ProviderAPIKey: "sk-test",
	})
	require.ErrorAs(t, err, &reqErr)
}

func TestOpenAICompat_Generate_ModelNameFallback(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)
		gotModel, _ = body["model"].(string)
		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "ok"}}]}`))
	}))
	defer srv.Close()

	adapter := NewOpenAICompatAdapter(srv.Client())
	_, err := adapter.Generate(context.Background(), Request{
		ProviderType:    "OPENAI",
		ProviderBaseURL: srv.URL,
		ProviderAPIKey:  "sk-test",
		ModelName:       "gpt-4o-mini",
		Prompt:          "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", gotModel)
}

func TestOpenAICompat_Generate_UpstreamStatusPreserved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "rate limited"}}`))
	}))
	defer srv.Close()

	adapter := NewOpenAICompatAdapter(srv.Client())
	_, err := adapter.Generate(context.Background(), Request{
		ProviderType:    "OPENAI",
		ProviderBaseURL: srv.URL,
		ProviderAPIKey:  "sk-test",
		ModelKey:        "gpt-4o-mini",
		Prompt:          "hello",
	})

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	assert.Equal(t, "30", statusErr.Headers.Get("Retry-After"))
	assert.Contains(t, string(statusErr.Body), "rate limited")
}

func TestOpenAICompat_Generate_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from here on

	adapter := NewOpenAICompatAdapter(&http.Client{})
	_, err := adapter.Generate(context.Background(), Request{
		ProviderType:    "OPENAI",
		ProviderBaseURL: srv.URL,
		ProviderAPIKey:  "sk-test",
		ModelKey:        "gpt-4o-mini",
		Prompt:          "hello",
	})

	var unreachable *UnreachableError
	require.ErrorAs(t, err, &unreachable)
	assert.Contains(t, unreachable.Error(), "LLM provider unreachable")
}

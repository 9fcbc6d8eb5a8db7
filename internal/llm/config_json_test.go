package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntField(t *testing.T) {
	cases := []struct {
		name  string
		json  string
		field string
		want  *int
	}{
		{"integer", `{"contextLength": 32768}`, "contextLength", intPtr(32768)},
		{"zero is present", `{"maxOutputTokens": 0}`, "maxOutputTokens", intPtr(0)},
		{"numeric string", `{"contextLength": "8192"}`, "contextLength", intPtr(8192)},
		{"string with noise", `{"contextLength": "16,384 tokens"}`, "contextLength", intPtr(16384)},
		{"string without digits", `{"contextLength": "unlimited"}`, "contextLength", nil},
		{"null", `{"contextLength": null}`, "contextLength", nil},
		{"missing", `{"other": 1}`, "contextLength", nil},
		{"wrong type", `{"contextLength": {"nested": 1}}`, "contextLength", nil},
		{"bool", `{"contextLength": true}`, "contextLength", nil},
		{"empty blob", ``, "contextLength", nil},
		{"blank blob", `   `, "contextLength", nil},
		{"invalid json", `{not json`, "contextLength", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := IntField(tc.json, tc.field)
			if tc.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tc.want, *got)
		})
	}
}

func TestUsageInt_AbsentVersusZero(t *testing.T) {
	body := []byte(`{"usage": {"prompt_tokens": 0}}`)

	zero := usageInt(body, "usage.prompt_tokens")
	require.NotNil(t, zero)
	assert.Equal(t, 0, *zero)

	assert.Nil(t, usageInt(body, "usage.completion_tokens"))
	assert.Nil(t, usageInt(nil, "usage.prompt_tokens"))
}

func intPtr(n int) *int { return &n }

// Package usage reconciles token counts reported by providers with
// local estimates. The numbers are advisory and surfaced to users as a
// rough gauge of context consumption, never as billing data.
package usage

import (
	"github.com/apexplatform/inference-gateway/internal/tokens"
)

// Summary is the reconciled usage attached to an assistant message.
type Summary struct {
	PromptTokens        *int     `json:"promptTokens,omitempty"`
	CompletionTokens    *int     `json:"completionTokens,omitempty"`
	TotalTokens         *int     `json:"totalTokens,omitempty"`
	ProviderTotalTokens *int     `json:"providerTotalTokens,omitempty"`
	ContextUsedTokens   int      `json:"contextUsedTokens"`
	ContextLimitTokens  *int     `json:"contextLimitTokens,omitempty"`
	ContextUsedPct      *float64 `json:"contextUsedPct,omitempty"`
}

// Report carries the raw material for reconciliation: whatever the
// provider said plus the texts to estimate from when it said nothing.
type Report struct {
	PromptTokens     *int
	CompletionTokens *int
	ProviderTotal    *int

	Prompt     string
	Completion string

	ContextLimit *int
	Estimator    tokens.Estimator
}

// Reconcile resolves provider counts and local estimates into a
// Summary.
//
// When the provider reports both prompt and completion tokens, their
// sum becomes the displayed total; a disagreeing provider total is
// retained separately rather than discarded. With only a provider
// total, that total is displayed. With nothing reported, the total
// stays absent so metadata never passes an estimate off as a count.
//
// Context utilization uses the computed total when both parts are
// present, and otherwise falls back to estimating both texts.
func Reconcile(r Report) Summary {
	est := r.Estimator
	if est == nil {
		est = tokens.Heuristic{}
	}

	s := Summary{
		PromptTokens:       r.PromptTokens,
		CompletionTokens:   r.CompletionTokens,
		ContextLimitTokens: r.ContextLimit,
	}

	var used int
	if r.PromptTokens != nil && r.CompletionTokens != nil {
		computed := *r.PromptTokens + *r.CompletionTokens
		s.TotalTokens = &computed
		if r.ProviderTotal != nil && *r.ProviderTotal != computed {
			s.ProviderTotalTokens = r.ProviderTotal
		}
		used = computed
	} else {
		s.TotalTokens = r.ProviderTotal
		used = est.Estimate(r.Prompt) + est.Estimate(r.Completion)
	}
	s.ContextUsedTokens = used

	if r.ContextLimit != nil && *r.ContextLimit > 0 {
		pct := float64(used) / float64(*r.ContextLimit) * 100
		if pct < 0 {
			pct = 0
		}
		if pct > 999.9 {
			pct = 999.9
		}
		s.ContextUsedPct = &pct
	}
	return s
}

// Registry holds the ordered set of adapters and dispatches requests.
//
// DESIGN: The adapter list is an explicit priority list: adapters are tried
// in registration order and the FIRST match wins, so exactly one adapter
// handles a given call. NewRegistry documents the default order; callers
// extending the registry state their priority by Register call order.
package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Registry dispatches generation requests to the first matching adapter.
type Registry struct {
	adapters []Adapter
}

// NewRegistry builds a registry with the built-in adapters in their default
// priority order:
//
//  1. OpenAI-compatible (OPENAI, DEEPSEEK, GROQ, COMPAT)
//  2. Gemini (GEMINI)
//  3. Anthropic (ANTHROPIC, CLAUDE)
//  4. Bedrock (BEDROCK, AWS)
//  5. Mock (exact label "MOCK" only)
//
// The keyword sets are disjoint, so today the order only decides ties for
// labels naming several vendors at once; it is still a documented contract
// rather than an accident of construction.
func NewRegistry(client *http.Client) *Registry {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	r := &Registry{}
	r.Register(NewOpenAICompatAdapter(client))
	r.Register(NewGeminiAdapter(client))
	r.Register(NewAnthropicAdapter(client))
	r.Register(NewBedrockAdapter(client, NewSigner()))
	r.Register(NewMockAdapter())
	return r
}

// NewEmptyRegistry builds a registry with no adapters; callers register
// their own in priority order.
func NewEmptyRegistry() *Registry {
	return &Registry{}
}

// Register appends an adapter at the end of the priority list.
func (r *Registry) Register(a Adapter) {
	r.adapters = append(r.adapters, a)
}

// Generate dispatches the request to the first adapter whose Supports
// predicate matches the provider type. Fails with ErrNoAdapter when nothing
// matches.
func (r *Registry) Generate(ctx context.Context, req Request) (*Result, error) {
	for _, a := range r.adapters {
		if !a.Supports(req.ProviderType) {
			continue
		}
		log.Debug().
			Str("adapter", a.Name()).
			Str("provider_type", req.ProviderType).
			Str("model_key", req.ModelKey).
			Msg("dispatching generation request")
		return a.Generate(ctx, req)
	}
	return nil, fmt.Errorf("%w: %q", ErrNoAdapter, req.ProviderType)
}

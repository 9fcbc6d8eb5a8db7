// Package llm routes normalized generation requests to provider adapters.
//
// DESIGN: The gateway talks to heterogeneous vendor APIs (OpenAI-compatible
// Chat Completions, Gemini generateContent, Anthropic Messages, Bedrock
// invoke). Each vendor family is one Adapter that translates a Request into
// the vendor's wire call and the vendor's response back into a Result.
//
// FLOW:
//  1. Caller builds a Request (prompt already assembled, key already decrypted)
//  2. Registry dispatches to the first adapter whose Supports() matches the
//     free-text provider type label
//  3. The adapter issues one synchronous POST and parses the body defensively
//
// Token counts in a Result are optional: a provider may report none, some, or
// all three, and they need not be internally consistent. Nil means "unknown",
// which is distinct from zero, and downstream reconciliation keeps it that way.
package llm

import "github.com/google/uuid"

// Request is the normalized generation request handed to an adapter.
// It is a request-scoped value; adapters never mutate it.
type Request struct {
	ModelID         uuid.UUID
	ModelName       string
	ModelKey        string // vendor-specific model identifier
	ProviderType    string // free-text label, matched case-insensitively
	ProviderName    string
	ProviderBaseURL string // optional override of the vendor default
	ProviderAPIKey  string
	Prompt          string // fully assembled prompt text
	ConfigJSON      string // opaque per-model configuration blob
}

// Result is the normalized generation response.
type Result struct {
	Content          string
	PromptTokens     *int
	CompletionTokens *int
	TotalTokens      *int // provider-reported total, not recomputed
}

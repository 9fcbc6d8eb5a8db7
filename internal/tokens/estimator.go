// Package tokens estimates token counts for prompt budgeting and usage display.
//
// DESIGN: Counts here are best-effort, never billing-grade. The default
// Heuristic divides trimmed character length by four, which is close enough
// for budget decisions and utilization percentages. A tiktoken-backed
// Encoding is available for models with a known BPE encoding; it is opt-in
// because the encoding tables are fetched lazily on first use.
package tokens

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Estimator estimates the token count of a piece of text.
type Estimator interface {
	Estimate(text string) int
}

// Heuristic estimates tokens from character length (~4 chars per token for
// English-ish text). Blank input counts as zero; any non-blank input counts
// as at least one token.
type Heuristic struct{}

// Estimate returns ceil(len(trimmed)/4).
func (Heuristic) Estimate(text string) int {
	t := strings.TrimSpace(text)
	if t == "" {
		return 0
	}
	n := (len(t) + 3) / 4
	if n < 1 {
		n = 1
	}
	return n
}

// Estimate runs the default heuristic.
func Estimate(text string) int {
	return Heuristic{}.Estimate(text)
}

// Encoding estimates tokens with a model's actual BPE encoding.
type Encoding struct {
	enc *tiktoken.Tiktoken
}

// ForModel returns an Encoding for the given vendor model identifier.
// Models without a known encoding return an error; callers should keep
// using the heuristic in that case.
func ForModel(model string) (*Encoding, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, fmt.Errorf("no token encoding for model %q: %w", model, err)
	}
	return &Encoding{enc: enc}, nil
}

// Estimate counts tokens by encoding the text. Blank input counts as zero
// to match the heuristic's contract.
func (e *Encoding) Estimate(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	return len(e.enc.Encode(text, nil, nil))
}

var _ Estimator = Heuristic{}
var _ Estimator = (*Encoding)(nil)

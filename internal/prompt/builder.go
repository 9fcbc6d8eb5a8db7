// Package prompt assembles a single completion prompt from stored
// conversation history under a token budget.
//
// ASSEMBLY
//
//	1. History is considered newest first so recent turns always win.
//	2. Each message is truncated individually before it is costed.
//	3. Messages are added until the budget or the message cap is hit;
//	   the newest message is always included even when over budget.
//	4. The selected window is rendered oldest first with role prefixes,
//	   a fixed preamble, and a trailing "Assistant:" cue.
//
// All costing uses the character heuristic from the tokens package. The
// budget is a soft planning target, not an enforcement boundary.
package prompt

import (
	"sort"
	"strings"
	"time"

	"github.com/apexplatform/inference-gateway/internal/tokens"
)

const (
	// MaxFetch is how many recent messages callers should load from
	// storage before assembly.
	MaxFetch = 60

	// MaxMessages caps how many messages end up in the prompt window.
	MaxMessages = 30

	// MaxMessageTokens caps the estimated size of a single message
	// before truncation kicks in.
	MaxMessageTokens = 1200

	// DefaultBudget applies when the model declares no context length.
	DefaultBudget = 8000

	// OutputReserve is held back from a declared context length so the
	// completion has room to exist.
	OutputReserve = 512

	// MinBudget is the floor for tiny declared context lengths.
	MinBudget = 256

	// separatorCost approximates the per-message overhead of the role
	// prefix and newlines.
	separatorCost = 4
)

const preamble = "You are a helpful AI assistant.\n\nConversation so far:\n"

const truncationMarker = "\n...[truncated]\n"

// Message is one stored conversation turn.
type Message struct {
	Role      string
	Content   string
	CreatedAt time.Time
}

// Budget derives the prompt token budget from an optional declared
// context length.
func Budget(contextLimit *int) int {
	if contextLimit == nil || *contextLimit <= 0 {
		return DefaultBudget
	}
	budget := *contextLimit - OutputReserve
	if budget < MinBudget {
		return MinBudget
	}
	return budget
}

// Build renders the conversation window into a single prompt string.
// Messages may arrive in any order; they are stably sorted by creation
// time first. An empty history still yields the preamble and cue.
func Build(messages []Message, budget int) string {
	ordered := make([]Message, len(messages))
	copy(ordered, messages)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	// Walk newest to oldest, keeping what fits.
	var picked []Message
	used := 0
	for i := len(ordered) - 1; i >= 0; i-- {
		if len(picked) >= MaxMessages {
			break
		}
		msg := ordered[i]
		msg.Content = Truncate(msg.Content, MaxMessageTokens)
		// Cost the line as it will render, prefix included.
		cost := tokens.Estimate(rolePrefix(msg.Role)+" "+msg.Content) + separatorCost
		if used+cost > budget && len(picked) > 0 {
			break
		}
		picked = append(picked, msg)
		used += cost
	}

	// Reverse back to chronological order.
	for i, j := 0, len(picked)-1; i < j; i, j = i+1, j-1 {
		picked[i], picked[j] = picked[j], picked[i]
	}

	var b strings.Builder
	b.WriteString(preamble)
	for _, msg := range picked {
		b.WriteString(rolePrefix(msg.Role))
		b.WriteString(" ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	b.WriteString("\nAssistant:")
	return b.String()
}

// Truncate cuts content down to roughly maxTokens worth of characters,
// appending a marker when anything was removed. Cuts never split a
// UTF-8 rune.
func Truncate(content string, maxTokens int) string {
	maxChars := maxTokens * 4
	if maxChars < 200 {
		maxChars = 200
	}
	if len(content) <= maxChars {
		return content
	}
	cut := maxChars
	for cut > 0 && !isRuneStart(content[cut]) {
		cut--
	}
	return content[:cut] + truncationMarker
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

func rolePrefix(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "assistant":
		return "Assistant:"
	case "system":
		return "System:"
	default:
		return "User:"
	}
}

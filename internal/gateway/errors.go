// Package gateway exposes the chat service over HTTP.
package gateway

import (
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/apexplatform/inference-gateway/internal/llm"
	"github.com/apexplatform/inference-gateway/internal/service"
	"github.com/apexplatform/inference-gateway/internal/store"
)

const maxUpstreamBodyExcerpt = 4000

// Some providers only report the retry delay inside the error body,
// e.g. "retryDelay": "7s".
var retryDelayPattern = regexp.MustCompile(`"retryDelay"\s*:\s*"(\d+)s"`)

// APIError is the JSON error envelope returned to clients.
type APIError struct {
	Timestamp time.Time      `json:"timestamp"`
	Status    int            `json:"status"`
	Error     string         `json:"error"`
	Message   string         `json:"message"`
	Path      string         `json:"path,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// Normalized is an error translated into an HTTP response.
type Normalized struct {
	Status     int
	Message    string
	Details    map[string]any
	RetryAfter *int // seconds, surfaced as a Retry-After header
}

// Normalize maps internal errors onto client-facing HTTP semantics.
//
// Upstream provider failures never pass through verbatim: 429s become
// rate-limit responses with a retry hint when one can be recovered,
// and every other upstream status collapses into a 502 carrying a
// bounded body excerpt.
func Normalize(err error) Normalized {
	var statusErr *llm.StatusError
	if errors.As(err, &statusErr) {
		return normalizeUpstream(statusErr)
	}

	var unreachable *llm.UnreachableError
	if errors.As(err, &unreachable) {
		return Normalized{Status: http.StatusBadRequest, Message: err.Error()}
	}

	var reqErr *llm.RequestError
	if errors.As(err, &reqErr) {
		return Normalized{Status: http.StatusBadRequest, Message: err.Error()}
	}
	if errors.Is(err, llm.ErrNoAdapter) {
		return Normalized{Status: http.StatusBadRequest, Message: err.Error()}
	}
	if errors.Is(err, store.ErrChatNotFound) || errors.Is(err, service.ErrModelNotFound) {
		return Normalized{Status: http.StatusNotFound, Message: err.Error()}
	}

	return Normalized{Status: http.StatusInternalServerError, Message: "Unexpected error"}
}

func normalizeUpstream(statusErr *llm.StatusError) Normalized {
	details := map[string]any{
		"upstreamStatus": statusErr.StatusCode,
		"upstreamBody":   bodyExcerpt(statusErr.Body),
	}

	if statusErr.StatusCode == http.StatusTooManyRequests {
		n := Normalized{
			Status:  http.StatusTooManyRequests,
			Message: "LLM provider quota/rate limit exceeded",
			Details: details,
		}
		if retry := retryAfterSeconds(statusErr); retry != nil {
			n.RetryAfter = retry
			details["retryAfterSeconds"] = *retry
		}
		return n
	}

	return Normalized{
		Status:  http.StatusBadGateway,
		Message: "LLM provider error",
		Details: details,
	}
}

func bodyExcerpt(body []byte) string {
	if len(body) > maxUpstreamBodyExcerpt {
		return string(body[:maxUpstreamBodyExcerpt]) + "...(truncated)"
	}
	return string(body)
}

// retryAfterSeconds recovers a retry delay from the Retry-After header
// first, then from the response body.
func retryAfterSeconds(statusErr *llm.StatusError) *int {
	if statusErr.Headers != nil {
		if raw := statusErr.Headers.Get("Retry-After"); raw != "" {
			if secs, err := strconv.Atoi(raw); err == nil && secs >= 0 {
				return &secs
			}
		}
	}
	if m := retryDelayPattern.FindSubmatch(statusErr.Body); m != nil {
		if secs, err := strconv.Atoi(string(m[1])); err == nil {
			return &secs
		}
	}
	return nil
}

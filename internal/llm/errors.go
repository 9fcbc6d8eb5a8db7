package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNoAdapter indicates no registered adapter matched the provider type.
var ErrNoAdapter = errors.New("no adapter available for provider type")

// RequestError reports a caller or configuration problem (missing credential,
// missing model identifier, empty prompt). It maps to a bad-request failure
// at the HTTP boundary.
type RequestError struct {
	Reason string
}

func (e *RequestError) Error() string {
	return e.Reason
}

func requestErrorf(format string, args ...any) *RequestError {
	return &RequestError{Reason: fmt.Sprintf(format, args...)}
}

// StatusError carries a non-2xx upstream response unchanged so the boundary
// normalizer can inspect status, headers, and body.
type StatusError struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

func (e *StatusError) Error() string {
	status := fmt.Sprintf("%d", e.StatusCode)
	if text := http.StatusText(e.StatusCode); text != "" {
		status = fmt.Sprintf("%d %s", e.StatusCode, text)
	}
	preview := strings.TrimSpace(string(e.Body))
	if len(preview) > 280 {
		preview = preview[:280] + "..."
	}
	if preview == "" {
		return fmt.Sprintf("upstream returned HTTP %s with empty body", status)
	}
	return fmt.Sprintf("upstream returned HTTP %s: %s", status, preview)
}

// UnreachableError reports a network-level failure reaching the provider
// (DNS, refused connection, timeout). The cause is upstream configuration,
// so it normalizes to a bad-request-class failure, not a server fault.
type UnreachableError struct {
	Cause error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("LLM provider unreachable: %v", e.Cause)
}

func (e *UnreachableError) Unwrap() error {
	return e.Cause
}

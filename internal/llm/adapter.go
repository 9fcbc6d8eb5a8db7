package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds a single upstream call when the caller supplies no
// http.Client of its own. There is no retry and no cancellation primitive
// beyond this transport-level timeout.
const DefaultTimeout = 120 * time.Second

// Adapter translates between the normalized request/response shape and one
// vendor family's wire format. Adapters are stateless and safe for
// concurrent use.
type Adapter interface {
	// Name returns the adapter identifier (e.g. "openai-compat", "gemini").
	Name() string

	// Supports reports whether this adapter handles the given provider type
	// label. Matching is pure, case-insensitive, and substring-based:
	// provider metadata is free text and deliberately loosely matched.
	Supports(providerType string) bool

	// Generate issues one synchronous vendor call and returns the
	// normalized result. Non-2xx upstream responses surface as *StatusError,
	// network failures as *UnreachableError, and caller/config problems as
	// *RequestError.
	Generate(ctx context.Context, req Request) (*Result, error)
}

// baseAdapter provides name and keyword matching shared by the HTTP adapters.
type baseAdapter struct {
	name     string
	keywords []string // upper-case vendor keywords matched as substrings
}

func (a baseAdapter) Name() string {
	return a.name
}

func (a baseAdapter) Supports(providerType string) bool {
	label := strings.ToUpper(strings.TrimSpace(providerType))
	if label == "" {
		return false
	}
	for _, kw := range a.keywords {
		if strings.Contains(label, kw) {
			return true
		}
	}
	return false
}

// postJSON issues one POST with a JSON body and returns the raw response
// body. Extra headers are applied on top of Content-Type.
func postJSON(ctx context.Context, client *http.Client, url string, header http.Header, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return doRequest(client, req)
}

// doRequest executes an already-built request, translating transport
// failures to *UnreachableError and non-2xx statuses to *StatusError with
// status, headers, and body preserved.
func doRequest(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, &UnreachableError{Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UnreachableError{Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       raw,
			Headers:    resp.Header.Clone(),
		}
	}
	return raw, nil
}

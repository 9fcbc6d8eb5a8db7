package llm

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/rs/zerolog/log"
)

const (
	bedrockService     = "bedrock"
	bedrockHostPattern = "https://bedrock-runtime.%s.amazonaws.com"

	// Anthropic-on-Bedrock body marker, fixed by the Bedrock runtime API.
	bedrockAnthropicVersion = "bedrock-2023-05-31"
)

// Signer signs Bedrock runtime requests with AWS SigV4, loading credentials
// from the standard AWS chain (env, shared files, IAM roles).
type Signer struct {
	credentials aws.CredentialsProvider
	region      string
	signer      *v4.Signer
	configured  bool
}

// NewSigner loads AWS credentials from the default chain. The returned
// signer is non-nil even without credentials; IsConfigured reports whether
// signing is possible.
func NewSigner() *Signer {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = os.Getenv("AWS_DEFAULT_REGION")
	}
	if region == "" {
		region = "us-east-1"
	}

	s := &Signer{region: region, signer: v4.NewSigner()}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		log.Warn().Err(err).Msg("failed to load AWS config for Bedrock signing")
		return s
	}
	creds, err := cfg.Credentials.Retrieve(context.Background())
	if err != nil || creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
		log.Debug().Msg("no AWS credentials available, Bedrock adapter disabled")
		return s
	}

	s.credentials = cfg.Credentials
	s.configured = true
	log.Info().Str("region", region).Msg("Bedrock signer initialized")
	return s
}

// IsConfigured reports whether AWS credentials are available for signing.
func (s *Signer) IsConfigured() bool {
	return s.configured
}

// Region returns the configured AWS region.
func (s *Signer) Region() string {
	return s.region
}

// Sign signs an HTTP request for the bedrock-runtime service. The body is
// needed separately for the payload hash.
func (s *Signer) Sign(ctx context.Context, req *http.Request, body []byte) error {
	if !s.configured {
		return fmt.Errorf("bedrock signer not configured: no AWS credentials available")
	}
	creds, err := s.credentials.Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("retrieve AWS credentials: %w", err)
	}
	payloadHash := fmt.Sprintf("%x", sha256.Sum256(body))
	if err := s.signer.SignHTTP(ctx, creds, req, payloadHash, bedrockService, s.region, time.Now()); err != nil {
		return fmt.Errorf("sign request: %w", err)
	}
	return nil
}

// BedrockAdapter handles Anthropic models hosted on AWS Bedrock.
//
// The credential for this family is the AWS default chain rather than a
// per-request API key, and the endpoint is the regional Bedrock runtime:
// POST {base}/model/{modelKey}/invoke with a SigV4-signed request and an
// Anthropic Messages body. Responses parse exactly like direct Anthropic.
type BedrockAdapter struct {
	baseAdapter
	client *http.Client
	signer *Signer
}

// NewBedrockAdapter creates the Bedrock family adapter.
func NewBedrockAdapter(client *http.Client, signer *Signer) *BedrockAdapter {
	return &BedrockAdapter{
		baseAdapter: baseAdapter{
			name:     "bedrock",
			keywords: []string{"BEDROCK", "AWS"},
		},
		client: client,
		signer: signer,
	}
}

// Generate issues one signed invoke call. modelKey is required since it is
// part of the URL path (e.g. "anthropic.claude-3-5-sonnet-20241022-v2:0").
func (a *BedrockAdapter) Generate(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.ModelKey) == "" {
		return nil, requestErrorf("model key is required for Bedrock")
	}
	if a.signer == nil || !a.signer.IsConfigured() {
		return nil, requestErrorf("AWS credentials not configured for Bedrock")
	}

	maxTokens := defaultAnthropicMaxTokens
	if cfg := IntField(req.ConfigJSON, "maxOutputTokens"); cfg != nil {
		maxTokens = *cfg
	}

	payload := map[string]any{
		"anthropic_version": bedrockAnthropicVersion,
		"max_tokens":        maxTokens,
		"messages": []map[string]string{
			{"role": "user", "content": req.Prompt},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal invoke payload: %w", err)
	}

	endpoint := a.invokeURL(req.ProviderBaseURL, req.ModelKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if err := a.signer.Sign(ctx, httpReq, body); err != nil {
		return nil, err
	}

	raw, err := doRequest(a.client, httpReq)
	if err != nil {
		return nil, err
	}

	return &Result{
		Content:          extractAnthropicText(raw),
		PromptTokens:     usageInt(raw, "usage.input_tokens"),
		CompletionTokens: usageInt(raw, "usage.output_tokens"),
	}, nil
}

// invokeURL resolves the Bedrock runtime invoke endpoint, leaving bases that
// already carry the full invoke path unchanged.
func (a *BedrockAdapter) invokeURL(baseURL, modelKey string) string {
	base := strings.TrimSpace(baseURL)
	if base == "" {
		base = fmt.Sprintf(bedrockHostPattern, a.signer.Region())
	}
	base = strings.TrimRight(base, "/")
	if strings.Contains(base, "/model/") && strings.HasSuffix(base, "/invoke") {
		return base
	}
	return base + "/model/" + url.PathEscape(modelKey) + "/invoke"
}

var _ Adapter = (*BedrockAdapter)(nil)

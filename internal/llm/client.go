package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spherical/image-analyzer/internal/domain"
	"github.com/spherical/image-analyzer/internal/observability"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-2.5-flash-preview-05-20"

	jsonMimeType        = "application/json"
	maxErrorBodyExcerpt = 512
)

// Client handles communication with the Gemini generateContent endpoint.
// The API key is supplied per call because it belongs to the user's
// configuration, not to the process.
type Client struct {
	baseURL      string
	model        string
	httpClient   *http.Client
	visionPolicy RetryPolicy
	sleep        Sleeper
	logger       *observability.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets a per-request timeout. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithVisionRetryPolicy overrides the retry policy used by Extract.
func WithVisionRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.visionPolicy = p }
}

// WithSleeper replaces the backoff wait, mainly for tests.
func WithSleeper(s Sleeper) Option {
	return func(c *Client) { c.sleep = s }
}

// WithLogger sets the logger.
func WithLogger(l *observability.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a new Gemini client
func NewClient(baseURL, model string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if model == "" {
		model = defaultModel
	}

	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		model:        model,
		httpClient:   &http.Client{},
		visionPolicy: VisionRetryPolicy(),
		sleep:        contextSleep,
		logger:       observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the model the client targets.
func (c *Client) Model() string {
	return c.model
}

// GenerateRequest is the generateContent request body.
type GenerateRequest struct {
	Contents         []Content         `json:"contents"`
	GenerationConfig *GenerationConfig `json:"generationConfig,omitempty"`
}

// Content is one conversation turn.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part is a text or inline-data part of a turn.
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

// InlineData carries base64 encoded bytes.
type InlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// GenerationConfig constrains the response.
type GenerationConfig struct {
	ResponseMimeType string `json:"responseMimeType,omitempty"`
}

// GenerateResponse is the subset of the response envelope we read.
type GenerateResponse struct {
	Candidates []Candidate `json:"candidates"`
}

// Candidate is a single completion candidate.
type Candidate struct {
	Content Content `json:"content"`
}

// FirstText returns candidates[0].content.parts[0].text.
func (r *GenerateResponse) FirstText() (string, bool) {
	if r == nil || len(r.Candidates) == 0 || len(r.Candidates[0].Content.Parts) == 0 {
		return "", false
	}
	return r.Candidates[0].Content.Parts[0].Text, true
}

// userTurn builds a single-turn request.
func userTurn(parts []Part, responseMimeType string) *GenerateRequest {
	req := &GenerateRequest{
		Contents: []Content{{Role: "user", Parts: parts}},
	}
	if responseMimeType != "" {
		req.GenerationConfig = &GenerationConfig{ResponseMimeType: responseMimeType}
	}
	return req
}

// endpoint returns the generateContent URL with the credential as a query parameter.
func (c *Client) endpoint(apiKey string) string {
	return fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, url.PathEscape(c.model), url.QueryEscape(apiKey))
}

// call sends req under the given retry policy and decodes the envelope.
func (c *Client) call(ctx context.Context, apiKey string, req *GenerateRequest, policy RetryPolicy) (*GenerateResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, domain.MalformedError("failed to marshal request", err)
	}

	endpoint := c.endpoint(apiKey)
	resp, err := c.retryWithBackoff(ctx, policy, func() (*http.Response, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", jsonMimeType)
		return c.httpClient.Do(httpReq)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyExcerpt))
		return nil, domain.UpstreamError(
			fmt.Sprintf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(excerpt))),
			resp.StatusCode,
		)
	}

	var out GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, domain.MalformedError("failed to decode response envelope", err)
	}
	return &out, nil
}

// firstText extracts the text payload or reports a malformed envelope.
func firstText(resp *GenerateResponse) (string, error) {
	text, ok := resp.FirstText()
	if !ok {
		return "", domain.MalformedError("API response does not contain the expected format", nil)
	}
	return text, nil
}

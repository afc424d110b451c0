// Package anthropic provides a client for the Anthropic Messages API
// authenticated with Claude Code OAuth tokens.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	apiVersion     = "2023-06-01"

	// oauthBeta enables bearer-token auth on the Messages endpoint.
	oauthBeta = "oauth-2025-04-20"

	// defaultTimeout is generous: facet extraction over long transcripts
	// can take several minutes per call.
	defaultTimeout = 10 * time.Minute

	// defaultMaxRetries is the number of extra attempts for transient
	// failures (network errors, 429, 5xx).
	defaultMaxRetries = 2
)

// TokenSource supplies a currently-valid bearer credential on demand.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource returning a fixed token, useful in tests.
type StaticToken string

// Token implements TokenSource.
func (s StaticToken) Token(context.Context) (string, error) { return string(s), nil }

// Client is an HTTP client for the Anthropic API.
type Client struct {
	tokens     TokenSource
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries uint64
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL (useful for testing).
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithTimeout sets a custom HTTP timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRateLimit caps outgoing requests to rps per second with the given
// burst, across all workers sharing this client.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithMaxRetries overrides the transient-failure retry count.
func WithMaxRetries(n uint64) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// NewClient creates a new Anthropic API client.
func NewClient(tokens TokenSource, opts ...ClientOption) *Client {
	c := &Client{
		tokens:  tokens,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateMessage sends a message to the Anthropic API and returns the
// response. Transient failures are retried with exponential backoff;
// 4xx responses other than 429 are returned immediately as *APIError.
func (c *Client) CreateMessage(ctx context.Context, req *MessagesRequest) (*MessagesResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var resp *MessagesResponse
	operation := func() error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}
		r, err := c.doRequest(ctx, body)
		if err != nil {
			if apiErr, ok := err.(*APIError); ok && !apiErr.Retryable() {
				return backoff.Permanent(err)
			}
			return err
		}
		resp = r
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) doRequest(ctx context.Context, body []byte) (*MessagesResponse, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to get token: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("anthropic-version", apiVersion)
	httpReq.Header.Set("anthropic-beta", oauthBeta)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if httpResp.StatusCode >= 400 {
		var apiErr APIError
		if err := json.Unmarshal(respBody, &apiErr); err != nil {
			apiErr = APIError{}
		}
		apiErr.StatusCode = httpResp.StatusCode
		if apiErr.ErrorDetail.Message == "" {
			apiErr.ErrorDetail.Message = string(respBody)
		}
		return nil, &apiErr
	}

	var messagesResp MessagesResponse
	if err := json.Unmarshal(respBody, &messagesResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &messagesResp, nil
}

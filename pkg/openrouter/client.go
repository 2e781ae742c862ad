package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://openrouter.ai/api/v1"

// Client performs chat completions against an OpenRouter-compatible API.
type Client interface {
	ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// KeyInfoClient additionally exposes the account-usage side channel.
type KeyInfoClient interface {
	Client
	KeyInfo(ctx context.Context) (*KeyInfo, error)
}

// ChatRequest is the request body for POST /chat/completions.
type ChatRequest struct {
	Model       string           `json:"model"`
	Messages    []Message        `json:"messages"`
	Temperature float64          `json:"temperature"`
	MaxTokens   *int             `json:"max_tokens,omitempty"`
	Seed        *int             `json:"seed,omitempty"`
	Reasoning   *ReasoningConfig `json:"reasoning,omitempty"`
}

// Message represents a single message in the conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ReasoningConfig requests provider-side reasoning tokens.
type ReasoningConfig struct {
	Effort    string `json:"effort,omitempty"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

// ChatResponse is the response from POST /chat/completions. OpenRouter may
// return a 200 with an error envelope instead of choices; callers must check
// Error and an empty choice list explicitly.
type ChatResponse struct {
	ID      string    `json:"id"`
	Choices []Choice  `json:"choices"`
	Usage   Usage     `json:"usage"`
	Error   *APIError `json:"error,omitempty"`
}

// Choice is a single completion choice.
type Choice struct {
	Index   int           `json:"index"`
	Message ChoiceMessage `json:"message"`
}

// ChoiceMessage carries the model output, including any reasoning the
// provider discloses.
type ChoiceMessage struct {
	Role             string          `json:"role"`
	Content          string          `json:"content"`
	Reasoning        *string         `json:"reasoning,omitempty"`
	ReasoningDetails json.RawMessage `json:"reasoning_details,omitempty"`
}

// Usage reports token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// APIError is a provider-reported failure, either from a non-2xx status or
// from an error envelope inside a 200 response.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("openrouter: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("openrouter: %s", e.Message)
}

// KeyInfo is the response from GET /auth/key. Usage is the cumulative spend
// in USD for the key.
type KeyInfo struct {
	Data struct {
		Label string   `json:"label"`
		Usage float64  `json:"usage"`
		Limit *float64 `json:"limit"`
	} `json:"data"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit throttles outgoing completions to rps requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates an OpenRouter API client. The transport timeout here is a
// generous floor; the per-call watchdog lives above this client.
func NewClient(apiKey string, opts ...Option) KeyInfoClient {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Minute,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "openrouter: rate limit wait")
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "openrouter: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "openrouter: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "openrouter: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "openrouter: read response")
	}

	if resp.StatusCode != http.StatusOK {
		var envelope struct {
			Error *APIError `json:"error"`
		}
		if jsonErr := json.Unmarshal(respBody, &envelope); jsonErr == nil && envelope.Error != nil {
			envelope.Error.StatusCode = resp.StatusCode
			return nil, envelope.Error
		}
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    truncate(string(respBody), 500),
		}
	}

	var result ChatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrapf(err, "openrouter: decode response (preview: %s)", truncate(string(respBody), 500))
	}

	return &result, nil
}

// KeyInfo fetches cumulative spend for the configured key. Failures here are
// advisory; callers must degrade to "unknown cost", never abort a run.
func (c *httpClient) KeyInfo(ctx context.Context) (*KeyInfo, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/key", nil)
	if err != nil {
		return nil, eris.Wrap(err, "openrouter: create key info request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "openrouter: fetch key info")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("openrouter: key info status %d", resp.StatusCode)
	}

	var info KeyInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, eris.Wrap(err, "openrouter: decode key info")
	}

	return &info, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Package gateway talks to the OpenAI-compatible model gateway that serves
// the clinical and vision models.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds a single completion call when Config.Timeout is
// unset.
const DefaultTimeout = 120 * time.Second

var (
	// ErrNotConfigured is returned when no API key is available.
	ErrNotConfigured = errors.New("gateway: api key not configured")
	// ErrRateLimited maps an upstream 429.
	ErrRateLimited = errors.New("gateway: rate limited")
	// ErrCreditsExhausted maps an upstream 402.
	ErrCreditsExhausted = errors.New("gateway: credits exhausted")
	// ErrEmptyCompletion is returned when the first choice has no content.
	ErrEmptyCompletion = errors.New("gateway: empty completion")
	// ErrUpstream wraps transport failures and undecodable answers.
	ErrUpstream = errors.New("gateway: upstream failure")
)

// StatusError is any other non-200 answer from the gateway.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway: status %d: %s", e.StatusCode, e.Body)
}

// HTTPClient is the subset of *http.Client the gateway needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client issues chat completions. It is safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	http    HTTPClient
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// SetHTTPClient replaces the transport. Used by tests.
func (c *Client) SetHTTPClient(h HTTPClient) {
	c.http = h
}

// Configured reports whether the client has credentials.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// ContentPart is one element of a multi-part user message.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

// Message is a chat message. Content is either a string or []ContentPart.
type Message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

func SystemMessage(text string) Message {
	return Message{Role: "system", Content: text}
}

func UserMessage(text string) Message {
	return Message{Role: "user", Content: text}
}

// UserParts builds a multi-part user message.
func UserParts(parts ...ContentPart) Message {
	return Message{Role: "user", Content: parts}
}

func TextPart(text string) ContentPart {
	return ContentPart{Type: "text", Text: text}
}

// ImagePart embeds data as a data URL. The gateway accepts PDFs this way too.
func ImagePart(mediaType string, base64Data string) ContentPart {
	return ContentPart{
		Type:     "image_url",
		ImageURL: &ImageURL{URL: "data:" + mediaType + ";base64," + base64Data},
	}
}

type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the first choice of a completion.
type Response struct {
	Content      string
	Model        string
	FinishReason string
	Usage        Usage
	Latency      time.Duration
}

type completionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

// maxErrorBody caps how much of an error body is kept on StatusError.
const maxErrorBody = 512

// Complete sends one chat completion. It never retries: 429 and 402 come
// back as ErrRateLimited and ErrCreditsExhausted so callers can surface them.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	start := time.Now()
	resp, err := c.do(ctx, req)
	outcome := outcomeLabel(err)
	requestsTotal.WithLabelValues(req.Model, outcome).Inc()
	requestDuration.WithLabelValues(req.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	if resp.Usage.TotalTokens > 0 {
		tokensTotal.WithLabelValues(req.Model, "prompt").Add(float64(resp.Usage.PromptTokens))
		tokensTotal.WithLabelValues(req.Model, "completion").Add(float64(resp.Usage.CompletionTokens))
	}
	resp.Latency = time.Since(start)
	return resp, nil
}

func (c *Client) do(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer func() {
		_ = httpResp.Body.Close()
	}()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBody))
		return nil, statusError(httpResp.StatusCode, raw)
	}

	var out completionResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode completion response: %w", ErrUpstream, err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return nil, ErrEmptyCompletion
	}

	return &Response{
		Content:      out.Choices[0].Message.Content,
		Model:        out.Model,
		FinishReason: out.Choices[0].FinishReason,
		Usage:        out.Usage,
	}, nil
}

func statusError(code int, body []byte) error {
	switch code {
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusPaymentRequired:
		return ErrCreditsExhausted
	default:
		return &StatusError{StatusCode: code, Body: strings.TrimSpace(string(body))}
	}
}

func outcomeLabel(err error) string {
	var se *StatusError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrCreditsExhausted):
		return "credits_exhausted"
	case errors.Is(err, ErrEmptyCompletion):
		return "empty"
	case errors.As(err, &se):
		return "status_" + fmt.Sprint(se.StatusCode)
	default:
		return "error"
	}
}

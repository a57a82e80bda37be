package advice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/guidepostlabs/guidepost/internal/logging"
)

// Defaults for the upstream chat-completions provider.
const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel   = "mistralai/devstral-small:free"
)

// Advisor is the single dependency the conversation layer takes on this
// package. Advise never returns a Go error: faults are folded into the
// Error outcome so callers have exactly three cases to handle.
type Advisor interface {
	Advise(ctx context.Context, conversation string) Outcome
}

// Client asks an OpenAI-compatible chat-completions endpoint for career
// advice. One synchronous round trip per call; no retries, no streaming.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the provider base URL (no trailing slash).
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithModel overrides the model identifier sent with each request.
func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout caps the round trip. Zero keeps the transport default,
// which is no timeout at all.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithLogger sets the logger for request-level debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client for the given API key.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		model:      DefaultModel,
		httpClient: &http.Client{},
		logger:     logging.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Advise sends the conversation text to the provider and reduces the reply
// to an Outcome. The call blocks until the provider answers or the request
// context ends.
func (c *Client) Advise(ctx context.Context, conversation string) Outcome {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Conversation: " + conversation},
		},
	})
	if err != nil {
		return Error{Message: "Error: " + err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Error{Message: "Error: " + err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("advice request failed", "error", err)
		return Error{Message: "Error: " + err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Error{Message: "Error: " + err.Error()}
	}
	c.logger.Debug("advice request finished",
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Error{Message: fmt.Sprintf("Request failed (%d): %s", resp.StatusCode, raw)}
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return Error{Message: "Error: " + err.Error()}
	}
	if len(out.Choices) == 0 {
		return Error{Message: "Error: response contained no choices"}
	}

	return ParseReply(out.Choices[0].Message.Content)
}

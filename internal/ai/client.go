package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/caseline/messenger-intake/internal/config"
	"github.com/caseline/messenger-intake/internal/observability"
	"github.com/caseline/messenger-intake/pkg/util/errorutil"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"
)

// Asker answers a single prompt with a short completion. Callers treat a
// returned UpstreamUnavailable error as "fall back to local heuristics".
type Asker interface {
	Ask(ctx context.Context, system, user string, maxTokens int) (string, error)
}

// Client calls the Anthropic Messages API with bounded retries.
type Client struct {
	http       *resty.Client
	apiKey     string
	model      string
	maxTokens  int
	maxRetries int
	maxInput   int
	logger     *zap.Logger
	metrics    *observability.Metrics
	sleep      func(time.Duration)
}

type messagesRequest struct {
	Model     string    `json:"model"`
	Messages  []message `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at an alternate API endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.http.SetBaseURL(baseURL)
	}
}

// WithSleep replaces the backoff sleeper.
func WithSleep(sleep func(time.Duration)) Option {
	return func(c *Client) {
		c.sleep = sleep
	}
}

// NewClient builds an Anthropic client from configuration. An empty API key
// yields a client whose Ask always reports the upstream as unavailable, which
// keeps the interpretation layer on its regex fallbacks.
func NewClient(cfg config.AnthropicConfig, logger *zap.Logger, metrics *observability.Metrics, opts ...Option) *Client {
	c := &Client{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		maxTokens:  cfg.MaxTokens,
		maxRetries: cfg.MaxRetries,
		maxInput:   cfg.MaxInputChars,
		logger:     logger,
		metrics:    metrics,
		sleep:      time.Sleep,
	}
	if c.maxRetries <= 0 {
		c.maxRetries = 3
	}
	c.http = resty.New().
		SetBaseURL(defaultAnthropicBaseURL).
		SetTimeout(cfg.Timeout())
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether the client holds an API key.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Ask sends one user prompt with an optional system prompt and returns the
// first text block of the completion. Transient failures are retried with
// exponential backoff and jitter; exhausting retries returns an
// UpstreamUnavailable error.
func (c *Client) Ask(ctx context.Context, system, user string, maxTokens int) (string, error) {
	if c.apiKey == "" {
		return "", errorutil.NewUpstreamUnavailable("anthropic", fmt.Errorf("api key not configured"))
	}
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	if c.maxInput > 0 && len(user) > c.maxInput {
		user = user[:c.maxInput]
	}

	body := messagesRequest{
		Model:     c.model,
		Messages:  []message{{Role: "user", Content: user}},
		MaxTokens: maxTokens,
		System:    system,
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(1<<(attempt-1))*time.Second + time.Duration(rand.Intn(250))*time.Millisecond
			select {
			case <-ctx.Done():
				return "", errorutil.NewUpstreamUnavailable("anthropic", ctx.Err())
			default:
			}
			c.sleep(wait)
		}

		text, retryable, err := c.once(ctx, body)
		if err == nil {
			c.metrics.RecordUpstream("anthropic", "ok")
			return text, nil
		}
		lastErr = err
		if !retryable {
			c.metrics.RecordUpstream("anthropic", "error")
			return "", errorutil.NewUpstreamUnavailable("anthropic", err)
		}
		c.metrics.RecordUpstream("anthropic", "retry")
		c.logger.Warn("anthropic request failed", zap.Int("attempt", attempt+1), zap.Error(err))
	}

	c.metrics.RecordUpstream("anthropic", "error")
	return "", errorutil.NewUpstreamUnavailable("anthropic", lastErr)
}

func (c *Client) once(ctx context.Context, body messagesRequest) (text string, retryable bool, err error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("x-api-key", c.apiKey).
		SetHeader("anthropic-version", anthropicVersion).
		SetBody(body).
		Post("/v1/messages")
	if err != nil {
		return "", true, err
	}

	if !resp.IsSuccess() {
		var parsed messagesResponse
		_ = json.Unmarshal(resp.Body(), &parsed)
		msg := "unexpected status"
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		status := resp.StatusCode()
		// 429 and 5xx are worth retrying; auth and validation errors are not.
		retryable := status == 429 || status >= 500
		return "", retryable, fmt.Errorf("anthropic status %d: %s", status, msg)
	}

	var parsed messagesResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return "", false, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Content) == 0 {
		return "", false, fmt.Errorf("empty completion")
	}
	return strings.TrimSpace(parsed.Content[0].Text), false, nil
}

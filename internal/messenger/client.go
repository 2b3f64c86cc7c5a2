package messenger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/caseline/messenger-intake/internal/config"
	"github.com/caseline/messenger-intake/pkg/util/errorutil"
)

const defaultGraphBaseURL = "https://graph.facebook.com"

// Graph API error code for rate limiting.
const graphErrorRateLimited = 4

// Client sends replies through the Messenger send API.
type Client struct {
	http         *resty.Client
	pageToken    string
	graphVersion string
	maxRetries   int
	logger       *zap.Logger
	sleep        func(time.Duration)
}

type sendRequest struct {
	Recipient     recipient   `json:"recipient"`
	Message       textMessage `json:"message"`
	MessagingType string      `json:"messaging_type"`
}

type recipient struct {
	ID string `json:"id"`
}

type textMessage struct {
	Text string `json:"text"`
}

type graphErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at an alternate Graph endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.http.SetBaseURL(baseURL + "/" + c.graphVersion)
	}
}

// NewClient builds a send-API client from Facebook configuration.
func NewClient(cfg config.FacebookConfig, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		pageToken:    cfg.PageAccessToken,
		graphVersion: cfg.GraphVersion,
		maxRetries:   cfg.SendMaxRetries,
		logger:       logger,
		sleep:        time.Sleep,
	}
	if c.maxRetries <= 0 {
		c.maxRetries = 3
	}
	c.http = resty.New().
		SetBaseURL(defaultGraphBaseURL+"/"+cfg.GraphVersion).
		SetTimeout(cfg.Timeout())
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendText delivers a text reply to a Messenger user. Rate limiting is
// retried with exponential backoff; other Graph errors fail immediately.
func (c *Client) SendText(ctx context.Context, recipientID, text string) error {
	if c.pageToken == "" {
		return errorutil.NewUpstreamUnavailable("messenger", fmt.Errorf("page access token not configured"))
	}

	body := sendRequest{
		Recipient:     recipient{ID: recipientID},
		Message:       textMessage{Text: text},
		MessagingType: "RESPONSE",
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParam("access_token", c.pageToken).
			SetHeader("Content-Type", "application/json").
			SetBody(body).
			Post("/me/messages")
		if err != nil {
			lastErr = err
			c.logger.Warn("messenger send failed", zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}
		if resp.IsSuccess() {
			return nil
		}

		var graphErr graphErrorResponse
		_ = json.Unmarshal(resp.Body(), &graphErr)
		lastErr = fmt.Errorf("graph api status %d code %d: %s", resp.StatusCode(), graphErr.Error.Code, graphErr.Error.Message)

		if graphErr.Error.Code == graphErrorRateLimited {
			wait := time.Duration(1<<attempt) * time.Second
			c.logger.Warn("messenger rate limited", zap.Duration("wait", wait))
			c.sleep(wait)
			continue
		}

		c.logger.Error("messenger send rejected", zap.Int("status", resp.StatusCode()), zap.Int("code", graphErr.Error.Code), zap.String("graph_message", graphErr.Error.Message))
		return errorutil.NewUpstreamUnavailable("messenger", lastErr)
	}

	return errorutil.NewUpstreamUnavailable("messenger", lastErr)
}

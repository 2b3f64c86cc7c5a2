package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/caseline/messenger-intake/internal/config"
	"github.com/caseline/messenger-intake/internal/observability"
	"github.com/caseline/messenger-intake/pkg/util/errorutil"
)

func testAnthropicConfig() config.AnthropicConfig {
	return config.AnthropicConfig{
		APIKey:         "test-key",
		Model:          "claude-3-haiku-20240307",
		MaxTokens:      100,
		TimeoutSeconds: 5,
		MaxRetries:     3,
		MaxInputChars:  500,
	}
}

func newTestAIClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(testAnthropicConfig(), zap.NewNop(), observability.NewMetrics(),
		WithBaseURL(server.URL), WithSleep(func(time.Duration) {}))
}

func TestAskReturnsFirstTextBlock(t *testing.T) {
	var got messagesRequest
	c := newTestAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("x-api-key"))
		require.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"content":[{"type":"text","text":" 5.5 "}]}`))
	})

	text, err := c.Ask(context.Background(), "extract the age", "five and a half", 20)
	require.NoError(t, err)
	assert.Equal(t, "5.5", text)
	assert.Equal(t, "extract the age", got.System)
	assert.Equal(t, 20, got.MaxTokens)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
}

func TestAskRetriesServerErrors(t *testing.T) {
	attempts := 0
	c := newTestAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"content":[{"type":"text","text":"ok"}]}`))
	})

	text, err := c.Ask(context.Background(), "", "hello", 0)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 3, attempts)
}

func TestAskExhaustsRetries(t *testing.T) {
	attempts := 0
	c := newTestAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"type":"rate_limit_error","message":"slow down"}}`))
	})

	_, err := c.Ask(context.Background(), "", "hello", 0)
	require.Error(t, err)
	assert.True(t, errorutil.IsCode(err, errorutil.CodeUpstreamUnavailable))
	assert.Equal(t, 3, attempts)
}

func TestAskDoesNotRetryClientErrors(t *testing.T) {
	attempts := 0
	c := newTestAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"bad prompt"}}`))
	})

	_, err := c.Ask(context.Background(), "", "hello", 0)
	require.Error(t, err)
	assert.True(t, errorutil.IsCode(err, errorutil.CodeUpstreamUnavailable))
	assert.Equal(t, 1, attempts)
}

func TestAskTruncatesOversizedInput(t *testing.T) {
	var got messagesRequest
	c := newTestAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"content":[{"type":"text","text":"ok"}]}`))
	})

	long := make([]byte, 1000)
	for i := range long {
		long[i] = 'a'
	}
	_, err := c.Ask(context.Background(), "", string(long), 0)
	require.NoError(t, err)
	assert.Len(t, got.Messages[0].Content, 500)
}

func TestAskWithoutAPIKey(t *testing.T) {
	cfg := testAnthropicConfig()
	cfg.APIKey = ""
	c := NewClient(cfg, zap.NewNop(), observability.NewMetrics())
	assert.False(t, c.Configured())

	_, err := c.Ask(context.Background(), "", "hello", 0)
	require.Error(t, err)
	assert.True(t, errorutil.IsCode(err, errorutil.CodeUpstreamUnavailable))
}

package messenger

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
	"github.com/caseline/messenger-intake/pkg/util/errorutil"
)

func testFacebookConfig() config.FacebookConfig {
	return config.FacebookConfig{
		PageAccessToken: "page-token",
		GraphVersion:    "v18.0",
		TimeoutSeconds:  5,
		SendMaxRetries:  3,
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c := NewClient(testFacebookConfig(), zap.NewNop(), WithBaseURL(server.URL))
	c.sleep = func(time.Duration) {}
	return c
}

func TestSendText(t *testing.T) {
	var got sendRequest
	var gotToken string

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v18.0/me/messages", r.URL.Path)
		gotToken = r.URL.Query().Get("access_token")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"recipient_id":"user-1","message_id":"mid.1"}`))
	})

	err := c.SendText(context.Background(), "user-1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "page-token", gotToken)
	assert.Equal(t, "user-1", got.Recipient.ID)
	assert.Equal(t, "hello", got.Message.Text)
	assert.Equal(t, "RESPONSE", got.MessagingType)
}

func TestSendTextRetriesOnRateLimit(t *testing.T) {
	attempts := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"code":4,"message":"Application request limit reached"}}`))
			return
		}
		w.Write([]byte(`{"message_id":"mid.1"}`))
	})

	err := c.SendText(context.Background(), "user-1", "hello")
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestSendTextRateLimitExhausted(t *testing.T) {
	attempts := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"code":4,"message":"Application request limit reached"}}`))
	})

	err := c.SendText(context.Background(), "user-1", "hello")
	require.Error(t, err)
	assert.True(t, errorutil.IsCode(err, errorutil.CodeUpstreamUnavailable))
	assert.Equal(t, 3, attempts)
}

func TestSendTextOtherGraphErrorFailsImmediately(t *testing.T) {
	attempts := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":100,"message":"Invalid parameter"}}`))
	})

	err := c.SendText(context.Background(), "user-1", "hello")
	require.Error(t, err)
	assert.True(t, errorutil.IsCode(err, errorutil.CodeUpstreamUnavailable))
	assert.Equal(t, 1, attempts)
}

func TestSendTextWithoutToken(t *testing.T) {
	cfg := testFacebookConfig()
	cfg.PageAccessToken = ""
	c := NewClient(cfg, zap.NewNop())

	err := c.SendText(context.Background(), "user-1", "hello")
	require.Error(t, err)
	assert.True(t, errorutil.IsCode(err, errorutil.CodeUpstreamUnavailable))
}

package handlers_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apihttp "github.com/caseline/messenger-intake/internal/api/http"
	"github.com/caseline/messenger-intake/internal/api/http/handlers"
	"github.com/caseline/messenger-intake/internal/config"
	"github.com/caseline/messenger-intake/internal/eligibility"
	"github.com/caseline/messenger-intake/internal/intake"
	"github.com/caseline/messenger-intake/internal/nlu"
	"github.com/caseline/messenger-intake/internal/observability"
	"github.com/caseline/messenger-intake/internal/repository"
	"github.com/caseline/messenger-intake/internal/service"
	"github.com/caseline/messenger-intake/internal/store"
	"github.com/caseline/messenger-intake/pkg/util/errorutil"
)

type recordingReplier struct {
	sent []string
}

func (r *recordingReplier) SendText(_ context.Context, _, text string) error {
	r.sent = append(r.sent, text)
	return nil
}

// patternAsker keeps interpretation on the regex fallbacks.
type patternAsker struct{}

func (patternAsker) Ask(context.Context, string, string, int) (string, error) {
	return "unknown", nil
}

type appFixture struct {
	app     *fiber.App
	cfg     *config.Config
	replier *recordingReplier
	repo    repository.CaseRepository
}

func newAppFixture(t *testing.T) *appFixture {
	t.Helper()
	logger := zap.NewNop()

	dir := t.TempDir()
	criteriaPath := filepath.Join(dir, "criteria.json")
	require.NoError(t, os.WriteFile(criteriaPath, []byte(`{
      "stateSOL": {"Texas": {"minorSOL": "14th birthday"}},
      "globalExclusions": {"excludedStates": {"list": []}}
    }`), 0o644))

	cfg := &config.Config{}
	cfg.App.Name = "messenger-intake"
	cfg.App.Version = "test"
	cfg.Facebook.VerifyToken = "verify-token"
	cfg.Facebook.AppSecret = "app-secret"
	cfg.Intake.CriteriaFile = criteriaPath
	cfg.Intake.DataDirectory = filepath.Join(dir, "case_data")

	repo, err := repository.NewFileCaseRepository(cfg.Intake.DataDirectory, logger)
	require.NoError(t, err)

	engine := intake.NewEngine(
		nlu.NewProcessor(patternAsker{}, logger),
		eligibility.NewChecker(criteriaPath, logger),
		logger,
	)

	replier := &recordingReplier{}
	svc := service.NewConversationService(service.ConversationDependencies{
		Conversations: store.NewConversationStore(logger),
		Deduper:       store.NewMemoryDeduper(time.Minute),
		Engine:        engine,
		CaseRepo:      repo,
		Replier:       replier,
	}, logger)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	apihttp.RegisterMiddlewares(app, logger, observability.NewMetrics(), 5*time.Second)
	apihttp.RegisterRoutes(app, apihttp.RouteConfig{
		Health:  handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, cfg, svc),
		Webhook: handlers.NewWebhookHandler(cfg.Facebook, svc, logger),
		Cases:   handlers.NewCasesHandler(repo),
	})

	return &appFixture{app: app, cfg: cfg, replier: replier, repo: repo}
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func decodeJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestWebhookVerify(t *testing.T) {
	f := newAppFixture(t)

	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=verify-token&hub.challenge=challenge-123", nil)
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "challenge-123", string(body))
}

func TestWebhookVerifyUnderscoreParams(t *testing.T) {
	f := newAppFixture(t)

	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub_mode=subscribe&hub_verify_token=verify-token&hub_challenge=c42", nil)
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebhookVerifyWrongToken(t *testing.T) {
	f := newAppFixture(t)

	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=c", nil)
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	payload := decodeJSON(t, resp)
	errObj, ok := payload["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, errorutil.CodeAuthenticationFailed, errObj["code"])
}

func pageEventBody(mid, text string) []byte {
	return []byte(`{
      "object": "page",
      "entry": [{
        "messaging": [{
          "sender": {"id": "user-1"},
          "message": {"mid": "` + mid + `", "text": "` + text + `"}
        }]
      }]
    }`)
}

func TestWebhookReceive(t *testing.T) {
	f := newAppFixture(t)
	body := pageEventBody("m1", "hello")

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Hub-Signature-256", signBody("app-secret", body))

	resp, err := f.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "EVENT_RECEIVED", string(raw))

	// First contact triggers the welcome message.
	require.Len(t, f.replier.sent, 1)
	assert.Contains(t, f.replier.sent[0], "cerebral palsy")
}

func TestWebhookReceiveBadSignature(t *testing.T) {
	f := newAppFixture(t)
	body := pageEventBody("m1", "hello")

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", signBody("wrong-secret", body))

	resp, err := f.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Empty(t, f.replier.sent)
}

func TestWebhookReceiveNonPageObject(t *testing.T) {
	f := newAppFixture(t)
	body := []byte(`{"object": "instagram", "entry": []}`)

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", signBody("app-secret", body))

	resp, err := f.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebhookReceiveUnparseableAnswer(t *testing.T) {
	f := newAppFixture(t)

	// Establish the conversation first.
	body := pageEventBody("m1", "hello")
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", signBody("app-secret", body))
	_, err := f.app.Test(req)
	require.NoError(t, err)

	// An uninterpretable age answer gets a reprompt and the batch is still
	// acknowledged so the platform does not redeliver.
	body = pageEventBody("m2", "let me think about that")
	req = httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", signBody("app-secret", body))

	resp, err := f.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "EVENT_RECEIVED", string(raw))

	last := f.replier.sent[len(f.replier.sent)-1]
	assert.Contains(t, last, "couldn't understand the age")
}

package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/caseline/messenger-intake/internal/config"
	"github.com/caseline/messenger-intake/internal/messenger"
	"github.com/caseline/messenger-intake/internal/service"
	"github.com/caseline/messenger-intake/pkg/util/errorutil"
)

// WebhookHandler terminates the Messenger webhook: subscription
// verification on GET, signed event batches on POST.
type WebhookHandler struct {
	cfg           config.FacebookConfig
	conversations *service.ConversationService
	logger        *zap.Logger
}

// NewWebhookHandler returns a new handler instance.
func NewWebhookHandler(cfg config.FacebookConfig, conversations *service.ConversationService, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{cfg: cfg, conversations: conversations, logger: logger}
}

// Verify answers the platform's subscription handshake by echoing the
// challenge when the verify token matches.
func (h *WebhookHandler) Verify(c *fiber.Ctx) error {
	mode := queryWithFallback(c, "hub.mode", "hub_mode")
	token := queryWithFallback(c, "hub.verify_token", "hub_verify_token")
	challenge := queryWithFallback(c, "hub.challenge", "hub_challenge")

	if mode == "subscribe" && token == h.cfg.VerifyToken && h.cfg.VerifyToken != "" {
		h.logger.Info("webhook verified")
		return c.SendString(challenge)
	}

	h.logger.Warn("webhook verification failed", zap.String("mode", mode))
	return errorutil.NewAuthenticationError("webhook verification failed")
}

// Receive authenticates and processes one event batch. The response is
// 200 whenever the signature checks out, even if individual events fail,
// so the platform does not retry the whole batch.
func (h *WebhookHandler) Receive(c *fiber.Ctx) error {
	body := c.Body()

	signature := c.Get(messenger.SignatureHeader256)
	if signature == "" {
		signature = c.Get(messenger.SignatureHeader)
	}
	if h.cfg.AppSecret == "" {
		h.logger.Warn("APP_SECRET not configured, skipping signature verification")
	}
	if err := messenger.VerifySignature(h.cfg.AppSecret, body, signature); err != nil {
		h.logger.Warn("webhook signature rejected", zap.Error(err))
		return err
	}

	msgs, err := messenger.ParseEvents(body)
	if err != nil {
		return err
	}

	for _, msg := range msgs {
		if err := h.conversations.HandleInbound(c.UserContext(), msg); err != nil {
			h.logger.Error("event processing failed",
				zap.String("sender_id", msg.SenderID),
				zap.String("message_id", msg.MessageID),
				zap.Error(err))
		}
	}

	return c.SendString("EVENT_RECEIVED")
}

func queryWithFallback(c *fiber.Ctx, key, fallback string) string {
	if v := c.Query(key); v != "" {
		return v
	}
	return c.Query(fallback)
}

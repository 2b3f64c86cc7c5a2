package handlers

import (
	"os"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/caseline/messenger-intake/internal/config"
	"github.com/caseline/messenger-intake/internal/service"
)

// HealthHandler reports service status and configuration readiness.
type HealthHandler struct {
	serviceName   string
	version       string
	cfg           *config.Config
	conversations *service.ConversationService
}

// NewHealthHandler returns a new handler instance.
func NewHealthHandler(serviceName, version string, cfg *config.Config, conversations *service.ConversationService) *HealthHandler {
	return &HealthHandler{serviceName: serviceName, version: version, cfg: cfg, conversations: conversations}
}

// Status is the root banner endpoint.
func (h *HealthHandler) Status(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "running",
		"service": h.serviceName,
		"version": h.version,
	})
}

// Health reports active conversation load plus whether each external
// dependency is configured. Degraded means the bot cannot fully operate.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	anthropicConfigured := h.cfg.AnthropicConfigured()
	facebookConfigured := h.cfg.FacebookConfigured()

	status := "healthy"
	if !anthropicConfigured || !facebookConfigured {
		status = "degraded"
	}

	return c.JSON(fiber.Map{
		"status":               status,
		"active_conversations": h.conversations.ActiveConversations(),
		"configuration": fiber.Map{
			"anthropic_configured":  anthropicConfigured,
			"facebook_configured":   facebookConfigured,
			"criteria_file_exists":  fileExists(h.cfg.Intake.CriteriaFile),
			"data_directory_exists": fileExists(h.cfg.Intake.DataDirectory),
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

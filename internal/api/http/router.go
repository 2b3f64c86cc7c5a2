package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/caseline/messenger-intake/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health  *handlers.HealthHandler
	Webhook *handlers.WebhookHandler
	Cases   *handlers.CasesHandler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/", cfg.Health.Status)
	app.Get("/health", cfg.Health.Health)

	app.Get("/webhook", cfg.Webhook.Verify)
	app.Post("/webhook", cfg.Webhook.Receive)

	cases := app.Group("/cases")
	cases.Get("/", cfg.Cases.List)
	cases.Get("/statistics", cfg.Cases.Statistics)
	cases.Get("/:id", cfg.Cases.GetByID)
}

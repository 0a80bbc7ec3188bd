package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/hireloop/assess-api/internal/config"
	"github.com/hireloop/assess-api/internal/handler"
	"github.com/hireloop/assess-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	SessionHandler *handler.SessionHandler
	SeedHandler    *handler.SeedHandler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	if deps.SessionHandler != nil {
		sessions := api.Group("/sessions")
		deps.SessionHandler.Register(sessions)
	}

	// Demo data seeding is only mounted in development.
	if deps.SeedHandler != nil && cfg.IsDevelopment() {
		seed := api.Group("/seed")
		deps.SeedHandler.Register(seed)
	}
}

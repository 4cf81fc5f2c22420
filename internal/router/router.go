package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/testgen-workbench/internal/config"
	"github.com/noah-isme/testgen-workbench/internal/handler"
	"github.com/noah-isme/testgen-workbench/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	WorkbenchHandler   *handler.WorkbenchHandler
	SubmitLimiter      fiber.Handler
	ExtractionEndpoint string
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.ExtractionEndpoint))

	app.Get("/metrics", observability.MetricsHandler())

	if deps.WorkbenchHandler != nil {
		deps.WorkbenchHandler.Register(app, deps.SubmitLimiter)
	}
}

package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/testgen-workbench/internal/config"
	"github.com/noah-isme/testgen-workbench/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status             string    `json:"status"`
	Timestamp          time.Time `json:"timestamp"`
	Service            string    `json:"service"`
	Environment        string    `json:"environment"`
	ExtractionEndpoint string    `json:"extraction_endpoint"`
}

// HealthCheck returns a handler that reports application health information.
func HealthCheck(cfg config.Config, extractionEndpoint string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:             "ok",
			Timestamp:          time.Now().UTC(),
			Service:            cfg.AppName,
			Environment:        cfg.AppEnv,
			ExtractionEndpoint: extractionEndpoint,
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}

package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/campus-engage-api/internal/config"
	"github.com/noah-isme/campus-engage-api/internal/utils"
)

// HealthDependency checks one backing dependency.
type HealthDependency struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status       string            `json:"status"`
	Timestamp    time.Time         `json:"timestamp"`
	Service      string            `json:"service"`
	Environment  string            `json:"environment"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// HealthCheck returns a handler that reports application health information.
// Any failing dependency turns the response into a 503 with status "degraded".
func HealthCheck(cfg config.Config, dependencies ...HealthDependency) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
		}

		if len(dependencies) > 0 {
			ctx, cancel := context.WithTimeout(requestContext(c), 2*time.Second)
			defer cancel()

			payload.Dependencies = make(map[string]string, len(dependencies))
			for _, dependency := range dependencies {
				if dependency.Check == nil {
					continue
				}
				if err := dependency.Check(ctx); err != nil {
					payload.Dependencies[dependency.Name] = "down"
					payload.Status = "degraded"
					continue
				}
				payload.Dependencies[dependency.Name] = "up"
			}
		}

		if payload.Status != "ok" {
			return utils.SendFailure(c, fiber.StatusServiceUnavailable, "service degraded", payload)
		}
		return utils.SendSuccess(c, "service healthy", payload)
	}
}

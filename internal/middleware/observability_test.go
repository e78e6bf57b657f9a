package middleware_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-engage-api/internal/middleware"
)

func TestObservabilityLogsTrackedRoutesOnly(t *testing.T) {
	var logs bytes.Buffer
	app := fiber.New()
	app.Use(middleware.Observability(zerolog.New(&logs).Level(zerolog.InfoLevel), "/api/admin"))
	app.Get("/api/admin/gamification/submissions/:id", func(c *fiber.Ctx) error {
		return fiber.ErrNotFound
	})
	app.Get("/api/v1/health", func(c *fiber.Ctx) error {
		return fiber.ErrServiceUnavailable
	})

	for _, path := range []string{"/api/admin/gamification/submissions/9", "/api/v1/health"} {
		_, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
		require.NoError(t, err)
	}

	require.Contains(t, logs.String(), `"route":"/api/admin/gamification/submissions/:id"`)
	require.Contains(t, logs.String(), `"status":404`)
	require.Contains(t, logs.String(), "request completed with client error")
	require.NotContains(t, logs.String(), "/api/v1/health")
}

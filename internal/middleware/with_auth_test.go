package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-engage-api/internal/middleware"
)

func withLocals(userID interface{}, role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if userID != nil {
			c.Locals("user_id", userID)
		}
		if role != "" {
			c.Locals("user_role", role)
		}
		return c.Next()
	}
}

func TestRequireUser(t *testing.T) {
	cases := []struct {
		name   string
		userID interface{}
		status int
	}{
		{name: "uint subject", userID: uint(10), status: fiber.StatusNoContent},
		{name: "int subject", userID: 3, status: fiber.StatusNoContent},
		{name: "zero subject", userID: uint(0), status: fiber.StatusUnauthorized},
		{name: "missing subject", status: fiber.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			app.Use(withLocals(tc.userID, "student"))
			app.Use(middleware.RequireUser())
			app.Get("/", func(c *fiber.Ctx) error {
				return c.SendStatus(fiber.StatusNoContent)
			})

			require.Equal(t, tc.status, perform(t, app).StatusCode)
		})
	}
}

func TestRequireReviewerAllowsTeacher(t *testing.T) {
	app := fiber.New()
	app.Use(withLocals(uint(1), "Teacher"))
	app.Use(middleware.RequireReviewer())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	require.Equal(t, fiber.StatusOK, perform(t, app).StatusCode)
}

func TestRequireReviewerRejectsStudent(t *testing.T) {
	app := fiber.New()
	app.Use(withLocals(uint(7), "student"))
	app.Use(middleware.RequireReviewer())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	require.Equal(t, fiber.StatusForbidden, perform(t, app).StatusCode)
}

func TestRequireRole(t *testing.T) {
	cases := []struct {
		name   string
		role   string
		status int
	}{
		{name: "admin", role: "admin", status: fiber.StatusOK},
		{name: "mixed case with padding", role: "  Admin ", status: fiber.StatusOK},
		{name: "student", role: "student", status: fiber.StatusForbidden},
		{name: "no role", status: fiber.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			app.Use(withLocals(uint(1), tc.role))
			app.Use(middleware.RequireRole("admin"))
			app.Get("/", func(c *fiber.Ctx) error {
				return c.SendStatus(fiber.StatusOK)
			})

			require.Equal(t, tc.status, perform(t, app).StatusCode)
		})
	}
}

func perform(t *testing.T, app *fiber.App) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

package utils_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-engage-api/internal/utils"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func perform(t *testing.T, app *fiber.App) (*http.Response, envelope) {
	t.Helper()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	var body envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp, body
}

func TestSendSuccessDefaultsMessage(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return utils.SendSuccess(c, "", map[string]string{"hello": "world"})
	})

	resp, body := perform(t, app)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.True(t, body.Success)
	require.Equal(t, "success", body.Message)
	require.JSONEq(t, `{"hello":"world"}`, string(body.Data))
}

func TestSendSuccessWithStatus(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "created", nil)
	})

	resp, body := perform(t, app)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, "created", body.Message)
	require.Empty(t, body.Data)
}

func TestSendError(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return utils.SendError(c, fiber.StatusConflict, "")
	})

	resp, body := perform(t, app)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	require.False(t, body.Success)
	require.Equal(t, "error", body.Message)
}

func TestSendFailureKeepsData(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return utils.SendFailure(c, fiber.StatusServiceUnavailable, "degraded", map[string]string{"redis": "down"})
	})

	resp, body := perform(t, app)
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	require.False(t, body.Success)
	require.JSONEq(t, `{"redis":"down"}`, string(body.Data))
}

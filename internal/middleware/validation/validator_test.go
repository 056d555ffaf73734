package validation

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(cfg Config) *fiber.App {
	app := fiber.New()
	app.Use(Middleware(cfg))
	app.Post("/api/v1/match", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Post("/api/v1/match/batch", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/api/v1/health", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func postJSON(t *testing.T, app *fiber.App, path, body string) int {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestMiddlewarePassesValidMatch(t *testing.T) {
	app := newTestApp(Config{})
	status := postJSON(t, app, "/api/v1/match", `{"description":"Cotton t-shirt"}`)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestMiddlewareRejectsShortDescription(t *testing.T) {
	app := newTestApp(Config{})
	status := postJSON(t, app, "/api/v1/match", `{"description":"ab"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestMiddlewareRejectsLongDescription(t *testing.T) {
	app := newTestApp(Config{})
	long := strings.Repeat("x", 2001)
	status := postJSON(t, app, "/api/v1/match", `{"description":"`+long+`"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestMiddlewareRejectsBadJSON(t *testing.T) {
	app := newTestApp(Config{})
	status := postJSON(t, app, "/api/v1/match", `{not json`)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestMiddlewareRejectsWrongContentType(t *testing.T) {
	app := newTestApp(Config{})
	req := httptest.NewRequest(fiber.MethodPost, "/api/v1/match", strings.NewReader("description=shirt"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestMiddlewareRejectsOversizedBatch(t *testing.T) {
	app := newTestApp(Config{MaxBatchSize: 2})
	body := `{"queries":[{"description":"a"},{"description":"b"},{"description":"c"}]}`
	status := postJSON(t, app, "/api/v1/match/batch", body)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestMiddlewareIgnoresNonPostRoutes(t *testing.T) {
	app := newTestApp(Config{})
	req := httptest.NewRequest(fiber.MethodGet, "/api/v1/health", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

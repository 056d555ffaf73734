package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/tariffmatch/backend/internal/matching"
	"github.com/tariffmatch/backend/internal/model"
	"github.com/tariffmatch/backend/pkg/logger"
)

type AdminHandler struct {
	matcher *matching.Matcher
}

func NewAdminHandler(matcher *matching.Matcher) *AdminHandler {
	return &AdminHandler{matcher: matcher}
}

func (h *AdminHandler) HandleWarmCache(c *fiber.Ctx) error {
	var req struct {
		Queries []model.ClassificationQuery `json:"queries"`
	}
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		logger.Error("Failed to parse warm request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	report := h.matcher.Warm(c.Context(), req.Queries)
	return c.JSON(report)
}

func (h *AdminHandler) HandleInvalidateCache(c *fiber.Ctx) error {
	pattern := c.Query("pattern")
	if pattern == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "pattern is required",
		})
	}

	removed := h.matcher.Invalidate(c.Context(), pattern)
	return c.JSON(fiber.Map{
		"pattern": pattern,
		"removed": removed,
	})
}

func (h *AdminHandler) HandleCacheStats(c *fiber.Ctx) error {
	return c.JSON(h.matcher.Statistics(c.Context()))
}

func (h *AdminHandler) HandleHealth(c *fiber.Ctx) error {
	health := h.matcher.Health(c.Context())

	status := fiber.StatusOK
	if health.Status == "unhealthy" {
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(health)
}

package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tariffmatch/backend/internal/matching"
	"github.com/tariffmatch/backend/internal/model"
	"github.com/tariffmatch/backend/pkg/logger"
)

type MatchHandler struct {
	matcher *matching.Matcher
}

func NewMatchHandler(matcher *matching.Matcher) *MatchHandler {
	return &MatchHandler{matcher: matcher}
}

func (h *MatchHandler) HandleMatch(c *fiber.Ctx) error {
	var query model.ClassificationQuery
	if err := c.BodyParser(&query); err != nil {
		logger.Error("Failed to parse match request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	matchID := uuid.New().String()

	result, err := h.matcher.MatchSingle(c.Context(), query)
	if err != nil {
		if model.IsValidationError(err) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		var ce *model.ClassificationError
		if errors.As(err, &ce) {
			logger.Error("Classification failed",
				zap.String("match_id", matchID),
				zap.String("kind", string(ce.Kind)),
				zap.Error(err),
			)
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": "Classification backend failed",
				"kind":  string(ce.Kind),
			})
		}

		logger.Error("Match failed", zap.String("match_id", matchID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process match",
		})
	}

	return c.JSON(fiber.Map{
		"id":     matchID,
		"result": result,
	})
}

func (h *MatchHandler) HandleMatchBatch(c *fiber.Ctx) error {
	var req model.BatchRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse batch request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	batchID := uuid.New().String()

	items, err := h.matcher.MatchBatch(c.Context(), req)
	if err != nil {
		if model.IsValidationError(err) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		logger.Error("Batch match failed", zap.String("batch_id", batchID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process batch",
		})
	}

	failed := 0
	for _, item := range items {
		if item.Failure != nil {
			failed++
		}
	}

	return c.JSON(fiber.Map{
		"id":      batchID,
		"total":   len(items),
		"failed":  failed,
		"results": items,
	})
}

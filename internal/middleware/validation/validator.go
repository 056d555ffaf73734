package validation

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/tariffmatch/backend/internal/model"
)

type Config struct {
	MaxBatchSize int
	Logger       *zap.Logger
}

// Middleware screens match requests before they reach the orchestrator:
// content type, description length bounds, and batch size. The orchestrator
// re-validates; this layer exists to reject junk without burning a worker.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 100
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost {
			return c.Next()
		}

		contentType := c.Get("Content-Type")
		if contentType != "" && !strings.Contains(contentType, "application/json") {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
				"error": "Unsupported content type",
			})
		}

		path := c.Path()

		if strings.HasSuffix(path, "/match") {
			var req model.ClassificationQuery
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}
			if reason, ok := checkDescription(req.Description); !ok {
				cfg.Logger.Debug("Rejected match request",
					zap.String("ip", c.IP()),
					zap.String("reason", reason),
				)
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": reason,
				})
			}
		}

		if strings.HasSuffix(path, "/match/batch") {
			var req model.BatchRequest
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}
			if len(req.Queries) > cfg.MaxBatchSize {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Batch exceeds maximum size",
				})
			}
		}

		return c.Next()
	}
}

func checkDescription(description string) (string, bool) {
	length := len(strings.TrimSpace(description))
	if length < model.MinDescriptionLength {
		return "Description is too short", false
	}
	if length > model.MaxDescriptionLength {
		return "Description exceeds maximum length", false
	}
	return "", true
}

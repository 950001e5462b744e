package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// Health reports whether the database answers a ping.
func (h *Handler) Health(c *fiber.Ctx) error {
	if err := h.repo.HealthCheck(c.UserContext()); err != nil {
		h.logger.WarnContext(c.UserContext(), "Health check failed", "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
			"error":  "database connection failed",
		})
	}

	return c.JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": h.now().UTC().Format(time.RFC3339),
		"version":   h.version,
	})
}

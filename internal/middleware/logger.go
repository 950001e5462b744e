package middleware

import (
	"log/slog"
	"time"

	"groupdesk/internal/identity"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

// Logger logs one line per request after the rest of the chain has run.
func Logger(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		// The error is rendered here so the logged status matches the response.
		if err := c.Next(); err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()

		attrs := []any{
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.IP(),
		}
		if rid, ok := c.Locals(requestid.ConfigDefault.ContextKey).(string); ok {
			attrs = append(attrs, "request_id", rid)
		}
		if id, ok := identity.FromCtx(c); ok {
			attrs = append(attrs, "address", id.Address)
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			logger.ErrorContext(c.UserContext(), "Request", attrs...)
		case status >= fiber.StatusBadRequest:
			logger.WarnContext(c.UserContext(), "Request", attrs...)
		default:
			logger.InfoContext(c.UserContext(), "Request", attrs...)
		}

		return nil
	}
}

package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// JSONOnly rejects API requests that cannot be answered with JSON or that
// send a body in another format.
func JSONOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderAccept) != "" && c.Accepts(fiber.MIMEApplicationJSON) == "" {
			return fiber.NewError(fiber.StatusNotAcceptable, "Only application/json responses are supported")
		}

		if isWrite(c.Method()) && len(c.Body()) > 0 && !c.Is("json") {
			return fiber.NewError(fiber.StatusUnsupportedMediaType, "Request body must be application/json")
		}

		return c.Next()
	}
}

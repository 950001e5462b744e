package middleware

import (
	"strings"
	"time"

	"groupdesk/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// SecurityHeaders sets the response security headers.
func SecurityHeaders() fiber.Handler {
	return helmet.New(helmet.Config{
		ContentSecurityPolicy: "default-src 'self'; " +
			"script-src 'self'; " +
			"style-src 'self' 'unsafe-inline'; " +
			"img-src 'self' data: https:; " +
			"connect-src 'self'; " +
			"frame-ancestors 'none'; " +
			"form-action 'self';",
		XFrameOptions:  "DENY",
		ReferrerPolicy: "strict-origin-when-cross-origin",
		PermissionPolicy: "camera=(), microphone=(), geolocation=(), payment=(), " +
			"usb=(), magnetometer=(), gyroscope=()",
		HSTSMaxAge:         31536000,
		HSTSPreloadEnabled: true,
	})
}

func CORS(cfg config.SecurityConfig) fiber.Handler {
	origins := cfg.CORSAllowOrigins
	if origins == "" {
		origins = "*"
	}
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     strings.Join([]string{fiber.MethodGet, fiber.MethodPost, fiber.MethodPut, fiber.MethodOptions}, ","),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		AllowCredentials: origins != "*",
		MaxAge:           int((12 * time.Hour).Seconds()),
	})
}

func isWrite(method string) bool {
	switch method {
	case fiber.MethodPost, fiber.MethodPut, fiber.MethodPatch, fiber.MethodDelete:
		return true
	default:
		return false
	}
}

// WriteLimiter limits state-changing requests per client IP. Counters live
// in storage when one is given and in process memory otherwise.
func WriteLimiter(cfg config.SecurityConfig, storage fiber.Storage) fiber.Handler {
	max := cfg.WriteLimit
	if max <= 0 {
		max = 30
	}
	window := cfg.WriteWindow
	if window <= 0 {
		window = time.Minute
	}

	return limiter.New(limiter.Config{
		Next: func(c *fiber.Ctx) bool {
			return !isWrite(c.Method())
		},
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "writes:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": fiber.Map{
					"code":    "RESOURCE_EXHAUSTED",
					"status":  fiber.StatusTooManyRequests,
					"message": "Too many requests. Please try again later.",
				},
			})
		},
		Storage: storage,
	})
}

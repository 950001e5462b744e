package identity

import (
	"errors"
	"log/slog"
	"net/url"

	"github.com/gofiber/fiber/v2"
)

// Mode selects how the gate denies a request.
type Mode int

const (
	// ModeAPI answers with a JSON error.
	ModeAPI Mode = iota
	// ModePage redirects the browser to the login page.
	ModePage
)

const (
	DecisionAllowed         = "allowed"
	DecisionUnauthenticated = "unauthenticated"
	DecisionForbidden       = "forbidden"
)

type DecisionRecorder interface {
	RecordGateDecision(decision string)
}

type GateConfig struct {
	RequiredGroups []string
	Mode           Mode
	LoginPath      string
	Recorder       DecisionRecorder
}

// Protect wraps the following handlers with an identity check. A request
// without a valid identity, or whose identity shares no group with
// RequiredGroups, is denied. Otherwise the identity is stored on the context
// and the chain continues.
func Protect(resolver Resolver, authorizer Authorizer, cfg GateConfig) fiber.Handler {
	if authorizer == nil {
		authorizer = GroupAuthorizer{}
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}

	record := func(decision string) {
		if cfg.Recorder != nil {
			cfg.Recorder.RecordGateDecision(decision)
		}
	}

	return func(c *fiber.Ctx) error {
		id, err := resolver.Resolve(c)
		if err != nil {
			if !errors.Is(err, ErrUnauthenticated) {
				return err
			}
			record(DecisionUnauthenticated)
			slog.DebugContext(c.UserContext(), "Identity gate rejected request", "path", c.Path(), "reason", err)

			if cfg.Mode == ModePage {
				return c.Redirect(cfg.LoginPath+"?next="+url.QueryEscape(c.OriginalURL()), fiber.StatusFound)
			}
			return deny(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", ErrUnauthenticated.Error())
		}

		allowed, err := authorizer.Authorize(c.UserContext(), id, cfg.RequiredGroups)
		if err != nil {
			return err
		}
		if !allowed {
			record(DecisionForbidden)
			slog.InfoContext(c.UserContext(), "Identity gate denied request",
				"path", c.Path(),
				"address", id.Address,
				"required", cfg.RequiredGroups,
			)

			if cfg.Mode == ModePage {
				return c.Redirect(cfg.LoginPath+"?error=forbidden", fiber.StatusFound)
			}
			return deny(c, fiber.StatusForbidden, "PERMISSION_DENIED", ErrForbidden.Error())
		}

		record(DecisionAllowed)
		setIdentity(c, id)
		return c.Next()
	}
}

func deny(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    code,
			"status":  status,
			"message": message,
		},
	})
}

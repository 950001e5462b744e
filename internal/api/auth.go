package api

import (
	"time"

	"groupdesk/internal/audit"
	"groupdesk/internal/identity"
	"groupdesk/internal/model"
	"groupdesk/internal/service"

	"github.com/gofiber/fiber/v2"
)

func (h *Handler) Login(c *fiber.Ctx) error {
	if h.auth == nil {
		return service.ErrLoginDisabled
	}

	var req model.LoginRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	token, claims, err := h.auth.Login(c.UserContext(), req)
	if err != nil {
		return err
	}

	c.Cookie(&fiber.Cookie{
		Name:     h.cookie.Name,
		Value:    token,
		Path:     "/",
		Expires:  claims.ExpiresAt.Time,
		HTTPOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: fiber.CookieSameSiteStrictMode,
	})

	h.auditor.Record(c.UserContext(), audit.LogEventParam{
		Actor: claims.Subject,
		Type:  audit.AuditLogEventTypeAuthLogin,
		Data:  map[string]any{"ip": c.IP()},
	})

	return success(c, fiber.StatusOK, fiber.Map{
		"token":     token,
		"expiresAt": claims.ExpiresAt.Time,
	})
}

func (h *Handler) Logout(c *fiber.Ctx) error {
	id, err := identity.MustFromCtx(c)
	if err != nil {
		return err
	}

	if h.auth != nil {
		if err := h.auth.Logout(c.UserContext(), id); err != nil {
			return err
		}
	}

	c.Cookie(&fiber.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: fiber.CookieSameSiteStrictMode,
	})

	h.auditor.Record(c.UserContext(), audit.LogEventParam{
		Actor: id.Address,
		Type:  audit.AuditLogEventTypeAuthLogout,
	})

	return success(c, fiber.StatusOK, fiber.Map{"loggedOut": true})
}

// Me returns the identity resolved for the request.
func (h *Handler) Me(c *fiber.Ctx) error {
	id, err := identity.MustFromCtx(c)
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, id)
}

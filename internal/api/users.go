package api

import (
	"strconv"

	"groupdesk/internal/audit"
	"groupdesk/internal/identity"
	"groupdesk/internal/model"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// GetUsers looks a user up by ?address=, or lists users for admins.
func (h *Handler) GetUsers(c *fiber.Ctx) error {
	id, err := identity.MustFromCtx(c)
	if err != nil {
		return err
	}

	if address := c.Query("address"); address != "" {
		user, err := h.repo.GetUserByAddress(c.UserContext(), model.NormalizeAddress(address))
		if err != nil {
			return err
		}
		return success(c, fiber.StatusOK, user)
	}

	if !id.IsAdmin() {
		return identity.ErrForbidden
	}

	limit, err := queryInt(c, "limit", defaultPageSize)
	if err != nil {
		return err
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		return err
	}
	if limit == 0 {
		limit = defaultPageSize
	}
	limit = min(limit, maxPageSize)

	users, total, err := h.repo.ListUsers(c.UserContext(), limit, offset)
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, fiber.Map{
		"users":  users,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// UpsertUser creates the user for an address or refreshes its lastLogin.
func (h *Handler) UpsertUser(c *fiber.Ctx) error {
	id, err := identity.MustFromCtx(c)
	if err != nil {
		return err
	}

	var req model.UpsertUserRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	if req.Address != id.Address && !id.IsAdmin() {
		return identity.ErrForbidden
	}

	user, inserted, err := h.repo.UpsertUser(c.UserContext(), req)
	if err != nil {
		return err
	}

	h.metrics.RecordUserUpsert(c.UserContext(), inserted)
	h.auditor.Record(c.UserContext(), audit.LogEventParam{
		Actor: id.Address,
		Type:  audit.AuditLogEventTypeUserUpsert,
		Data:  map[string]any{"address": user.Address, "inserted": inserted},
	})

	status := fiber.StatusOK
	if inserted {
		status = fiber.StatusCreated
	}
	return success(c, status, user)
}

// UpdateMySettings changes the caller's own settings.
func (h *Handler) UpdateMySettings(c *fiber.Ctx) error {
	id, err := identity.MustFromCtx(c)
	if err != nil {
		return err
	}

	var req model.UserSettingsRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	user, err := h.repo.UpdateUserSettings(c.UserContext(), id.Address, req)
	if err != nil {
		return err
	}

	h.auditor.Record(c.UserContext(), audit.LogEventParam{
		Actor: id.Address,
		Type:  audit.AuditLogEventTypeUserSettingsUpdate,
		Data:  map[string]any{"theme": user.Settings.Theme, "notifications": user.Settings.Notifications},
	})

	return success(c, fiber.StatusOK, user)
}

func queryInt(c *fiber.Ctx, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, key+" must be a non-negative integer")
	}
	return n, nil
}

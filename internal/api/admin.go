package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	activeWindow      = 24 * time.Hour
	defaultAuditLimit = 50
	maxAuditLimit     = 200
)

func (h *Handler) AdminStats(c *fiber.Ctx) error {
	stats, err := h.repo.Stats(c.UserContext(), h.now().Add(-activeWindow))
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, stats)
}

func (h *Handler) AdminAudit(c *fiber.Ctx) error {
	limit, err := queryInt(c, "limit", defaultAuditLimit)
	if err != nil {
		return err
	}
	if limit == 0 {
		limit = defaultAuditLimit
	}
	limit = min(limit, maxAuditLimit)

	events, err := h.repo.ListAuditEvents(c.UserContext(), limit)
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, events)
}

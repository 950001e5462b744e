package identity

import (
	"errors"
	"slices"
	"time"

	"github.com/gofiber/fiber/v2"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("insufficient group membership")
)

const (
	AdminGroup = "admin"

	localsKey = "identity"
)

// Identity is the authenticated caller attached to a request.
type Identity struct {
	Address   string    `json:"address"`
	Groups    []string  `json:"groups"`
	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (i Identity) InGroup(name string) bool {
	return slices.Contains(i.Groups, name)
}

func (i Identity) IsAdmin() bool {
	return i.InGroup(AdminGroup)
}

// FromCtx returns the identity stored by Protect.
func FromCtx(c *fiber.Ctx) (Identity, bool) {
	id, ok := c.Locals(localsKey).(Identity)
	return id, ok
}

// MustFromCtx returns the stored identity or ErrUnauthenticated.
func MustFromCtx(c *fiber.Ctx) (Identity, error) {
	id, ok := FromCtx(c)
	if !ok {
		return Identity{}, ErrUnauthenticated
	}
	return id, nil
}

func setIdentity(c *fiber.Ctx, id Identity) {
	c.Locals(localsKey, id)
}

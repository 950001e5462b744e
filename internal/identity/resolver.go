package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Resolver extracts the caller's identity from a request. Failures caused by
// the request itself wrap ErrUnauthenticated; anything else is an internal
// error.
type Resolver interface {
	Resolve(c *fiber.Ctx) (Identity, error)
}

type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type GroupLookup interface {
	GroupNamesForUser(ctx context.Context, address string) ([]string, error)
}

// TokenResolver reads a bearer token, or the session cookie when no header is
// present, and expands the token groups with stored group memberships. The
// admin group is only ever granted by the token itself.
type TokenResolver struct {
	tokens      *TokenManager
	cookieName  string
	revocations RevocationChecker
	groups      GroupLookup
}

// NewTokenResolver builds a resolver. revocations and groups are optional.
func NewTokenResolver(tokens *TokenManager, cookieName string, revocations RevocationChecker, groups GroupLookup) *TokenResolver {
	return &TokenResolver{
		tokens:      tokens,
		cookieName:  cookieName,
		revocations: revocations,
		groups:      groups,
	}
}

// TokenFromRequest returns the raw token of the request or "".
func TokenFromRequest(c *fiber.Ctx, cookieName string) string {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if cookieName == "" {
		return ""
	}
	return c.Cookies(cookieName)
}

func (r *TokenResolver) Resolve(c *fiber.Ctx) (Identity, error) {
	tokenString := TokenFromRequest(c, r.cookieName)
	if tokenString == "" {
		return Identity{}, fmt.Errorf("%w: %w", ErrUnauthenticated, ErrMissingToken)
	}

	claims, err := r.tokens.Validate(tokenString)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	ctx := c.UserContext()

	if r.revocations != nil {
		revoked, err := r.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			return Identity{}, fmt.Errorf("failed to check token revocation: %w", err)
		}
		if revoked {
			return Identity{}, fmt.Errorf("%w: %w", ErrUnauthenticated, ErrRevokedToken)
		}
	}

	groups := append([]string(nil), claims.Groups...)
	if r.groups != nil {
		stored, err := r.groups.GroupNamesForUser(ctx, claims.Subject)
		if err != nil {
			return Identity{}, fmt.Errorf("failed to resolve group membership: %w", err)
		}
		groups = mergeGroups(groups, withoutReserved(stored))
	}

	id := Identity{
		Address: claims.Subject,
		Groups:  groups,
		TokenID: claims.ID,
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}

func withoutReserved(names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if strings.EqualFold(name, AdminGroup) {
			continue
		}
		out = append(out, name)
	}
	return out
}

func mergeGroups(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, g := range list {
			if _, ok := seen[g]; ok || g == "" {
				continue
			}
			seen[g] = struct{}{}
			out = append(out, g)
		}
	}
	return out
}

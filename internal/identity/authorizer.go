package identity

import (
	"context"
	"fmt"
	"log/slog"
)

// Authorizer decides whether an identity satisfies a set of required groups.
// An empty requirement is satisfied by any identity.
type Authorizer interface {
	Authorize(ctx context.Context, id Identity, required []string) (bool, error)
}

// GroupAuthorizer allows an identity that holds at least one required group.
type GroupAuthorizer struct{}

func (GroupAuthorizer) Authorize(_ context.Context, id Identity, required []string) (bool, error) {
	if len(required) == 0 {
		return true, nil
	}
	for _, g := range required {
		if id.InGroup(g) {
			return true, nil
		}
	}
	return false, nil
}

type PermissionChecker interface {
	CheckPermission(ctx context.Context, user, relation, object string) (bool, error)
}

// FGAAuthorizer asks OpenFGA whether the identity is a member of any required
// group after the groups carried by the identity itself have been checked.
type FGAAuthorizer struct {
	checker PermissionChecker
	local   GroupAuthorizer
}

func NewFGAAuthorizer(checker PermissionChecker) *FGAAuthorizer {
	return &FGAAuthorizer{checker: checker}
}

func (a *FGAAuthorizer) Authorize(ctx context.Context, id Identity, required []string) (bool, error) {
	if ok, _ := a.local.Authorize(ctx, id, required); ok {
		return true, nil
	}

	for _, g := range required {
		allowed, err := a.checker.CheckPermission(ctx, FGAUser(id.Address), "member", FGAGroup(g))
		if err != nil {
			return false, fmt.Errorf("failed to check group membership: %w", err)
		}
		if allowed {
			slog.DebugContext(ctx, "Group membership granted by OpenFGA", "address", id.Address, "group", g)
			return true, nil
		}
	}
	return false, nil
}

func FGAUser(address string) string {
	return "user:" + address
}

func FGAGroup(name string) string {
	return "group:" + name
}

package api

import (
	"errors"
	"strings"

	"groupdesk/internal/audit"
	"groupdesk/internal/identity"
	"groupdesk/internal/model"
	"groupdesk/internal/repository"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func (h *Handler) ListGroups(c *fiber.Ctx) error {
	groups, err := h.repo.ListGroups(c.UserContext())
	if err != nil {
		return err
	}

	views := make([]model.GroupView, 0, len(groups))
	for _, g := range groups {
		views = append(views, g.View())
	}
	return success(c, fiber.StatusOK, views)
}

func (h *Handler) CreateGroup(c *fiber.Ctx) error {
	id, err := identity.MustFromCtx(c)
	if err != nil {
		return err
	}

	var req model.CreateGroupRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	if req.CreatedBy != id.Address && !id.IsAdmin() {
		return identity.ErrForbidden
	}

	group, err := req.Group()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid member id")
	}
	if !id.IsAdmin() {
		if err := h.checkGroupGrant(c, id, group); err != nil {
			return err
		}
	}

	created, err := h.repo.CreateGroup(c.UserContext(), group)
	if err != nil {
		return err
	}

	h.metrics.RecordGroupCreated(c.UserContext())
	h.auditor.Record(c.UserContext(), audit.LogEventParam{
		Actor: id.Address,
		Type:  audit.AuditLogEventTypeGroupCreate,
		Data:  map[string]any{"group": created.ID.Hex(), "name": created.Name},
	})

	return success(c, fiber.StatusCreated, created)
}

// checkGroupGrant keeps non-admin creators from granting anything they do not
// already hold: the reserved admin group name is off limits and the only
// initial member they may list is themselves.
func (h *Handler) checkGroupGrant(c *fiber.Ctx, id identity.Identity, group model.Group) error {
	if strings.EqualFold(group.Name, identity.AdminGroup) {
		return identity.ErrForbidden
	}
	if len(group.Members) == 0 {
		return nil
	}

	caller, err := h.repo.GetUserByAddress(c.UserContext(), id.Address)
	if errors.Is(err, repository.ErrNotFound) {
		return identity.ErrForbidden
	}
	if err != nil {
		return err
	}
	for _, m := range group.Members {
		if m.User != caller.ID {
			return identity.ErrForbidden
		}
	}
	return nil
}

func (h *Handler) GetGroup(c *fiber.Ctx) error {
	groupID, err := groupIDParam(c)
	if err != nil {
		return err
	}

	group, err := h.repo.GetGroup(c.UserContext(), groupID)
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, group.View())
}

// AddMember adds a user to a group. Callers must be in the admin group or
// hold the admin role in the target group.
func (h *Handler) AddMember(c *fiber.Ctx) error {
	id, err := identity.MustFromCtx(c)
	if err != nil {
		return err
	}
	groupID, err := groupIDParam(c)
	if err != nil {
		return err
	}

	var req model.AddMemberRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	group, err := h.repo.GetGroup(c.UserContext(), groupID)
	if err != nil {
		return err
	}
	if !id.IsAdmin() {
		if err := h.requireGroupAdmin(c, group.Group, id); err != nil {
			return err
		}
	}

	target, err := h.repo.GetUserByAddress(c.UserContext(), req.Address)
	if err != nil {
		return err
	}

	member := req.Member(target.ID)
	if err := h.repo.AddMember(c.UserContext(), groupID, member); err != nil {
		return err
	}

	if h.tuples != nil {
		if err := h.tuples.WriteTuple(c.UserContext(), identity.FGAUser(target.Address), string(member.Role), identity.FGAGroup(group.Name)); err != nil {
			h.logger.ErrorContext(c.UserContext(), "Failed to write membership tuple",
				"group", group.Name, "address", target.Address, "error", err)
		}
	}

	h.metrics.RecordMemberAdded(c.UserContext(), string(member.Role))
	h.auditor.Record(c.UserContext(), audit.LogEventParam{
		Actor: id.Address,
		Type:  audit.AuditLogEventTypeGroupMemberAdd,
		Data:  map[string]any{"group": groupID.Hex(), "address": target.Address, "role": member.Role},
	})

	return success(c, fiber.StatusCreated, member)
}

func (h *Handler) requireGroupAdmin(c *fiber.Ctx, group model.Group, id identity.Identity) error {
	caller, err := h.repo.GetUserByAddress(c.UserContext(), id.Address)
	if errors.Is(err, repository.ErrNotFound) {
		return identity.ErrForbidden
	}
	if err != nil {
		return err
	}
	if role, ok := group.RoleOf(caller.ID); !ok || role != model.RoleAdmin {
		return identity.ErrForbidden
	}
	return nil
}

func groupIDParam(c *fiber.Ctx) (primitive.ObjectID, error) {
	groupID, err := primitive.ObjectIDFromHex(c.Params("id"))
	if err != nil {
		return primitive.NilObjectID, fiber.NewError(fiber.StatusBadRequest, "Invalid group id")
	}
	return groupID, nil
}

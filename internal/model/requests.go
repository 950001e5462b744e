package model

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserSettingsRequest struct {
	Theme         Theme `json:"theme,omitempty" validate:"omitempty,oneof=light dark system"`
	Notifications *bool `json:"notifications,omitempty"`
}

// Apply overlays the provided values on s.
func (r UserSettingsRequest) Apply(s UserSettings) UserSettings {
	if r.Theme != "" {
		s.Theme = r.Theme
	}
	if r.Notifications != nil {
		s.Notifications = *r.Notifications
	}
	return s
}

func (r *UserSettingsRequest) Normalize() {
	r.Theme = Theme(strings.ToLower(strings.TrimSpace(string(r.Theme))))
}

type UpsertUserRequest struct {
	Address  string               `json:"address" validate:"required,eth_addr"`
	Username *string              `json:"username,omitempty" validate:"omitempty,min=3,max=32,alphanum"`
	Email    *string              `json:"email,omitempty" validate:"omitempty,email,no_disposable_email"`
	Settings *UserSettingsRequest `json:"settings,omitempty"`
}

func (r *UpsertUserRequest) Normalize() {
	r.Address = NormalizeAddress(r.Address)
	r.Username = trimOptional(r.Username, false)
	r.Email = trimOptional(r.Email, true)
	if r.Settings != nil {
		r.Settings.Normalize()
	}
}

type ActionsRequest struct {
	Create *bool `json:"create" validate:"required"`
	Read   *bool `json:"read" validate:"required"`
	Update *bool `json:"update" validate:"required"`
	Delete *bool `json:"delete" validate:"required"`
}

type PermissionRequest struct {
	Name        PermissionName  `json:"name" validate:"required,oneof=users groups settings dashboard audit"`
	Description string          `json:"description,omitempty" validate:"max=500"`
	Actions     *ActionsRequest `json:"actions" validate:"required"`
}

type MemberRequest struct {
	User string `json:"user" validate:"required,mongodb"`
	Role Role   `json:"role,omitempty" validate:"omitempty,oneof=admin member"`
}

type GroupSettingsRequest struct {
	IsPublic         bool `json:"isPublic"`
	RequiresApproval bool `json:"requiresApproval"`
}

type CreateGroupRequest struct {
	Name        string                `json:"name" validate:"required,max=100"`
	Description string                `json:"description,omitempty" validate:"max=500"`
	CreatedBy   string                `json:"createdBy" validate:"required,eth_addr"`
	Members     []MemberRequest       `json:"members,omitempty" validate:"dive"`
	Permissions []PermissionRequest   `json:"permissions,omitempty" validate:"dive"`
	Settings    *GroupSettingsRequest `json:"settings,omitempty"`
}

func (r *CreateGroupRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
	r.CreatedBy = NormalizeAddress(r.CreatedBy)
	for i := range r.Members {
		r.Members[i].User = strings.TrimSpace(r.Members[i].User)
		r.Members[i].Role = Role(strings.ToLower(strings.TrimSpace(string(r.Members[i].Role))))
	}
	for i := range r.Permissions {
		r.Permissions[i].Name = PermissionName(strings.TrimSpace(string(r.Permissions[i].Name)))
		r.Permissions[i].Description = strings.TrimSpace(r.Permissions[i].Description)
	}
}

// Group converts a validated request into a new group document.
func (r CreateGroupRequest) Group() (Group, error) {
	g := NewGroup(r.Name, r.Description, r.CreatedBy)

	for _, m := range r.Members {
		id, err := primitive.ObjectIDFromHex(m.User)
		if err != nil {
			return Group{}, err
		}
		role := m.Role
		if role == "" {
			role = RoleMember
		}
		g.Members = append(g.Members, Member{User: id, Role: role, JoinedAt: g.CreatedAt})
	}

	for _, p := range r.Permissions {
		g.Permissions = append(g.Permissions, Permission{
			Name:        p.Name,
			Description: p.Description,
			Actions: Actions{
				Create: *p.Actions.Create,
				Read:   *p.Actions.Read,
				Update: *p.Actions.Update,
				Delete: *p.Actions.Delete,
			},
		})
	}

	if r.Settings != nil {
		g.Settings = GroupSettings{
			IsPublic:         r.Settings.IsPublic,
			RequiresApproval: r.Settings.RequiresApproval,
		}
	}
	return g, nil
}

type AddMemberRequest struct {
	Address string `json:"address" validate:"required,eth_addr"`
	Role    Role   `json:"role,omitempty" validate:"omitempty,oneof=admin member"`
}

func (r *AddMemberRequest) Normalize() {
	r.Address = NormalizeAddress(r.Address)
	r.Role = Role(strings.ToLower(strings.TrimSpace(string(r.Role))))
	if r.Role == "" {
		r.Role = RoleMember
	}
}

// Member builds the membership entry for userID.
func (r AddMemberRequest) Member(userID primitive.ObjectID) Member {
	return Member{User: userID, Role: r.Role, JoinedAt: time.Now().UTC()}
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (r *LoginRequest) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
}

func trimOptional(s *string, lower bool) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if lower {
		v = strings.ToLower(v)
	}
	if v == "" {
		return nil
	}
	return &v
}

package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

type PermissionName string

const (
	PermissionUsers     PermissionName = "users"
	PermissionGroups    PermissionName = "groups"
	PermissionSettings  PermissionName = "settings"
	PermissionDashboard PermissionName = "dashboard"
	PermissionAudit     PermissionName = "audit"
)

// Actions are the CRUD flags of a permission. All four are always stored.
type Actions struct {
	Create bool `bson:"create" json:"create"`
	Read   bool `bson:"read" json:"read"`
	Update bool `bson:"update" json:"update"`
	Delete bool `bson:"delete" json:"delete"`
}

type Permission struct {
	Name        PermissionName `bson:"name" json:"name"`
	Description string         `bson:"description,omitempty" json:"description,omitempty"`
	Actions     Actions        `bson:"actions" json:"actions"`
}

type Member struct {
	User     primitive.ObjectID `bson:"user" json:"user"`
	Role     Role               `bson:"role" json:"role"`
	JoinedAt time.Time          `bson:"joinedAt" json:"joinedAt"`
}

type GroupSettings struct {
	IsPublic         bool `bson:"isPublic" json:"isPublic"`
	RequiresApproval bool `bson:"requiresApproval" json:"requiresApproval"`
}

type Group struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description" json:"description"`
	CreatedBy   string             `bson:"createdBy" json:"createdBy"`
	Members     []Member           `bson:"members" json:"members"`
	Permissions []Permission       `bson:"permissions" json:"permissions"`
	Settings    GroupSettings      `bson:"settings" json:"settings"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
}

// NewGroup returns a group with empty member and permission lists and
// closed, approval-free settings.
func NewGroup(name, description, createdBy string) Group {
	return Group{
		Name:        name,
		Description: description,
		CreatedBy:   createdBy,
		Members:     []Member{},
		Permissions: []Permission{},
		Settings:    GroupSettings{},
		CreatedAt:   time.Now().UTC(),
	}
}

// RoleOf reports the role userID holds in the group.
func (g Group) RoleOf(userID primitive.ObjectID) (Role, bool) {
	for _, m := range g.Members {
		if m.User == userID {
			return m.Role, true
		}
	}
	return "", false
}

type PopulatedMember struct {
	User     *User     `json:"user"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

// GroupWithMembers is a group joined with the user documents of its members.
type GroupWithMembers struct {
	Group       `bson:",inline"`
	MemberUsers []User `bson:"memberUsers" json:"-"`
}

type GroupView struct {
	ID          primitive.ObjectID `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	CreatedBy   string             `json:"createdBy"`
	Members     []PopulatedMember  `json:"members"`
	Permissions []Permission       `json:"permissions"`
	Settings    GroupSettings      `json:"settings"`
	CreatedAt   time.Time          `json:"createdAt"`
}

// View replaces member references with the referenced users. Members whose
// user document no longer exists keep a nil User.
func (g GroupWithMembers) View() GroupView {
	users := make(map[primitive.ObjectID]*User, len(g.MemberUsers))
	for i := range g.MemberUsers {
		users[g.MemberUsers[i].ID] = &g.MemberUsers[i]
	}

	members := make([]PopulatedMember, 0, len(g.Members))
	for _, m := range g.Members {
		members = append(members, PopulatedMember{
			User:     users[m.User],
			Role:     m.Role,
			JoinedAt: m.JoinedAt,
		})
	}

	permissions := g.Permissions
	if permissions == nil {
		permissions = []Permission{}
	}

	return GroupView{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		CreatedBy:   g.CreatedBy,
		Members:     members,
		Permissions: permissions,
		Settings:    g.Settings,
		CreatedAt:   g.CreatedAt,
	}
}

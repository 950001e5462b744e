package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestNewGroup_Defaults(t *testing.T) {
	g := NewGroup("Core", "", "0xabc")

	assert.Equal(t, "Core", g.Name)
	assert.NotNil(t, g.Members)
	assert.Empty(t, g.Members)
	assert.NotNil(t, g.Permissions)
	assert.Empty(t, g.Permissions)
	assert.Equal(t, GroupSettings{IsPublic: false, RequiresApproval: false}, g.Settings)
	assert.WithinDuration(t, time.Now(), g.CreatedAt, time.Minute)
}

func TestNewGroup_BSONKeepsEmptyLists(t *testing.T) {
	raw, err := bson.Marshal(NewGroup("Core", "", "0xabc"))
	assert.NoError(t, err)

	var doc bson.M
	assert.NoError(t, bson.Unmarshal(raw, &doc))
	assert.Equal(t, bson.A{}, doc["members"])
	assert.Equal(t, bson.A{}, doc["permissions"])
	assert.Equal(t, bson.M{"isPublic": false, "requiresApproval": false}, doc["settings"])
	_, hasID := doc["_id"]
	assert.False(t, hasID)
}

func TestGroup_RoleOf(t *testing.T) {
	admin := primitive.NewObjectID()
	member := primitive.NewObjectID()
	g := NewGroup("Core", "", "0xabc")
	g.Members = []Member{
		{User: admin, Role: RoleAdmin},
		{User: member, Role: RoleMember},
	}

	role, ok := g.RoleOf(admin)
	assert.True(t, ok)
	assert.Equal(t, RoleAdmin, role)

	_, ok = g.RoleOf(primitive.NewObjectID())
	assert.False(t, ok)
}

func TestGroupWithMembers_View(t *testing.T) {
	alice := User{ID: primitive.NewObjectID(), Address: "0xa11ce"}
	gone := primitive.NewObjectID()

	g := GroupWithMembers{
		Group: Group{
			ID:   primitive.NewObjectID(),
			Name: "Core",
			Members: []Member{
				{User: alice.ID, Role: RoleAdmin},
				{User: gone, Role: RoleMember},
			},
		},
		MemberUsers: []User{alice},
	}

	view := g.View()
	assert.Len(t, view.Members, 2)
	assert.Equal(t, "0xa11ce", view.Members[0].User.Address)
	assert.Equal(t, RoleAdmin, view.Members[0].Role)
	assert.Nil(t, view.Members[1].User)
	assert.NotNil(t, view.Permissions)
}

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "0xabcdef", NormalizeAddress("  0xABCdef "))
}

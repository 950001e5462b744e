package model

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

type UserSettings struct {
	Theme         Theme `bson:"theme" json:"theme"`
	Notifications bool  `bson:"notifications" json:"notifications"`
}

func DefaultUserSettings() UserSettings {
	return UserSettings{Theme: ThemeSystem, Notifications: true}
}

// User is keyed by wallet address, which is always stored lowercase.
// Username and Email are pointers so that absent values are omitted from the
// document and do not collide on their sparse unique indexes.
type User struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Address   string               `bson:"address" json:"address"`
	Username  *string              `bson:"username,omitempty" json:"username,omitempty"`
	Email     *string              `bson:"email,omitempty" json:"email,omitempty"`
	Settings  UserSettings         `bson:"settings" json:"settings"`
	Groups    []primitive.ObjectID `bson:"groups" json:"groups"`
	CreatedAt time.Time            `bson:"createdAt" json:"createdAt"`
	LastLogin time.Time            `bson:"lastLogin" json:"lastLogin"`
}

// NormalizeAddress returns the canonical form of a wallet address.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

type AdminStats struct {
	TotalUsers   int64 `json:"totalUsers"`
	TotalGroups  int64 `json:"totalGroups"`
	ActiveUsers  int64 `json:"activeUsers"`
	PublicGroups int64 `json:"publicGroups"`
}

type AuditEvent struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Actor     string             `bson:"actor" json:"actor"`
	Type      string             `bson:"type" json:"type"`
	Data      map[string]any     `bson:"data,omitempty" json:"data,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

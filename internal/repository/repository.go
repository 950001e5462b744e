package repository

import (
	"context"
	"errors"
	"time"

	"groupdesk/internal/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound      = errors.New("document not found")
	ErrDuplicate     = errors.New("duplicate key")
	ErrAlreadyMember = errors.New("user is already a member of the group")
)

// Repository defines the persistence operations of the service.
type Repository interface {
	// User operations
	UpsertUser(ctx context.Context, req model.UpsertUserRequest) (model.User, bool, error)
	GetUserByAddress(ctx context.Context, address string) (model.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]model.User, int64, error)
	UpdateUserSettings(ctx context.Context, address string, req model.UserSettingsRequest) (model.User, error)

	// Group operations
	CreateGroup(ctx context.Context, group model.Group) (model.Group, error)
	ListGroups(ctx context.Context) ([]model.GroupWithMembers, error)
	GetGroup(ctx context.Context, id primitive.ObjectID) (model.GroupWithMembers, error)
	AddMember(ctx context.Context, groupID primitive.ObjectID, member model.Member) error
	GroupNamesForUser(ctx context.Context, address string) ([]string, error)

	// Admin operations
	RecordAudit(ctx context.Context, event model.AuditEvent) error
	ListAuditEvents(ctx context.Context, limit int) ([]model.AuditEvent, error)
	Stats(ctx context.Context, activeSince time.Time) (model.AdminStats, error)

	HealthCheck(ctx context.Context) error
}

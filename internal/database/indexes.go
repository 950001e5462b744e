package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Indexes returns the index models per collection. The names match the
// embedded migrations so both paths converge on the same indexes.
func Indexes(auditRetention time.Duration) map[string][]mongo.IndexModel {
	if auditRetention <= 0 {
		auditRetention = 90 * 24 * time.Hour
	}

	return map[string][]mongo.IndexModel{
		UsersCollection: {
			{
				Keys:    bson.D{{Key: "address", Value: 1}},
				Options: options.Index().SetName("address_1").SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetName("email_1").SetUnique(true).SetSparse(true),
			},
			{
				Keys:    bson.D{{Key: "username", Value: 1}},
				Options: options.Index().SetName("username_1").SetUnique(true).SetSparse(true),
			},
			{
				Keys:    bson.D{{Key: "lastLogin", Value: -1}},
				Options: options.Index().SetName("lastLogin_-1"),
			},
		},
		GroupsCollection: {
			{
				Keys:    bson.D{{Key: "members.user", Value: 1}},
				Options: options.Index().SetName("members.user_1"),
			},
			{
				Keys:    bson.D{{Key: "createdBy", Value: 1}},
				Options: options.Index().SetName("createdBy_1"),
			},
			{
				Keys:    bson.D{{Key: "name", Value: 1}},
				Options: options.Index().SetName("name_1").SetUnique(true),
			},
		},
		AuditCollection: {
			{
				Keys:    bson.D{{Key: "createdAt", Value: 1}},
				Options: options.Index().SetName("createdAt_ttl").SetExpireAfterSeconds(int32(auditRetention.Seconds())),
			},
		},
	}
}

// CreateIndexes creates every index on db in a fixed collection order.
func CreateIndexes(ctx context.Context, db *mongo.Database, auditRetention time.Duration) error {
	indexes := Indexes(auditRetention)
	for _, name := range []string{UsersCollection, GroupsCollection, AuditCollection} {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, indexes[name]); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}
	return nil
}

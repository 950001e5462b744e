package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"groupdesk/internal/database"
	"groupdesk/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type MongoRepository struct {
	db     *mongo.Database
	users  *mongo.Collection
	groups *mongo.Collection
	audit  *mongo.Collection
	now    func() time.Time
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		db:     db,
		users:  db.Collection(database.UsersCollection),
		groups: db.Collection(database.GroupsCollection),
		audit:  db.Collection(database.AuditCollection),
		now: func() time.Time {
			// BSON dates carry millisecond precision.
			return time.Now().UTC().Truncate(time.Millisecond)
		},
	}
}

// mapError converts driver errors into repository sentinels.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return err
	}
}

// UpsertUser creates the user keyed by its lowercase address or refreshes
// lastLogin on an existing one. The boolean reports whether a new document was
// inserted.
func (r *MongoRepository) UpsertUser(ctx context.Context, req model.UpsertUserRequest) (model.User, bool, error) {
	now := r.now()
	address := model.NormalizeAddress(req.Address)
	defaults := model.DefaultUserSettings()

	set := bson.M{"lastLogin": now}
	setOnInsert := bson.M{
		"createdAt": now,
		"groups":    bson.A{},
	}

	if req.Username != nil {
		set["username"] = *req.Username
	}
	if req.Email != nil {
		set["email"] = *req.Email
	}

	// Settings fields are set individually so that $set and $setOnInsert never
	// touch the same path.
	if req.Settings != nil && req.Settings.Theme != "" {
		set["settings.theme"] = req.Settings.Theme
	} else {
		setOnInsert["settings.theme"] = defaults.Theme
	}
	if req.Settings != nil && req.Settings.Notifications != nil {
		set["settings.notifications"] = *req.Settings.Notifications
	} else {
		setOnInsert["settings.notifications"] = defaults.Notifications
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var user model.User
	err := r.users.FindOneAndUpdate(ctx,
		bson.M{"address": address},
		bson.M{"$set": set, "$setOnInsert": setOnInsert},
		opts,
	).Decode(&user)
	if err != nil {
		return model.User{}, false, fmt.Errorf("failed to upsert user: %w", mapError(err))
	}

	return user, user.CreatedAt.Equal(now), nil
}

func (r *MongoRepository) GetUserByAddress(ctx context.Context, address string) (model.User, error) {
	var user model.User
	err := r.users.FindOne(ctx, bson.M{"address": model.NormalizeAddress(address)}).Decode(&user)
	if err != nil {
		return model.User{}, mapError(err)
	}
	return user, nil
}

func (r *MongoRepository) ListUsers(ctx context.Context, limit, offset int) ([]model.User, int64, error) {
	total, err := r.users.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := r.users.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}

	users := []model.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, 0, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, total, nil
}

func (r *MongoRepository) UpdateUserSettings(ctx context.Context, address string, req model.UserSettingsRequest) (model.User, error) {
	set := bson.M{}
	if req.Theme != "" {
		set["settings.theme"] = req.Theme
	}
	if req.Notifications != nil {
		set["settings.notifications"] = *req.Notifications
	}
	if len(set) == 0 {
		return r.GetUserByAddress(ctx, address)
	}

	var user model.User
	err := r.users.FindOneAndUpdate(ctx,
		bson.M{"address": model.NormalizeAddress(address)},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&user)
	if err != nil {
		return model.User{}, mapError(err)
	}
	return user, nil
}

func (r *MongoRepository) CreateGroup(ctx context.Context, group model.Group) (model.Group, error) {
	if group.Members == nil {
		group.Members = []model.Member{}
	}
	if group.Permissions == nil {
		group.Permissions = []model.Permission{}
	}
	if group.CreatedAt.IsZero() {
		group.CreatedAt = r.now()
	}

	res, err := r.groups.InsertOne(ctx, group)
	if err != nil {
		return model.Group{}, fmt.Errorf("failed to create group: %w", mapError(err))
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		group.ID = id
	}

	// Keep the users' group references in step with the initial members.
	for _, m := range group.Members {
		if _, err := r.users.UpdateByID(ctx, m.User, bson.M{"$addToSet": bson.M{"groups": group.ID}}); err != nil {
			return model.Group{}, fmt.Errorf("failed to link member to group: %w", err)
		}
	}
	return group, nil
}

func populateMembers() bson.D {
	return bson.D{{Key: "$lookup", Value: bson.D{
		{Key: "from", Value: database.UsersCollection},
		{Key: "localField", Value: "members.user"},
		{Key: "foreignField", Value: "_id"},
		{Key: "as", Value: "memberUsers"},
	}}}
}

func (r *MongoRepository) ListGroups(ctx context.Context) ([]model.GroupWithMembers, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}}}},
		populateMembers(),
	}

	cursor, err := r.groups.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	groups := []model.GroupWithMembers{}
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("failed to decode groups: %w", err)
	}
	return groups, nil
}

func (r *MongoRepository) GetGroup(ctx context.Context, id primitive.ObjectID) (model.GroupWithMembers, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "_id", Value: id}}}},
		{{Key: "$limit", Value: 1}},
		populateMembers(),
	}

	cursor, err := r.groups.Aggregate(ctx, pipeline)
	if err != nil {
		return model.GroupWithMembers{}, fmt.Errorf("failed to get group: %w", err)
	}

	var groups []model.GroupWithMembers
	if err := cursor.All(ctx, &groups); err != nil {
		return model.GroupWithMembers{}, fmt.Errorf("failed to decode group: %w", err)
	}
	if len(groups) == 0 {
		return model.GroupWithMembers{}, ErrNotFound
	}
	return groups[0], nil
}

// AddMember appends member to the group and records the group on the user.
func (r *MongoRepository) AddMember(ctx context.Context, groupID primitive.ObjectID, member model.Member) error {
	res, err := r.groups.UpdateOne(ctx,
		bson.M{"_id": groupID, "members.user": bson.M{"$ne": member.User}},
		bson.M{"$push": bson.M{"members": member}},
	)
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}

	if res.MatchedCount == 0 {
		n, err := r.groups.CountDocuments(ctx, bson.M{"_id": groupID})
		if err != nil {
			return fmt.Errorf("failed to look up group: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return ErrAlreadyMember
	}

	if _, err := r.users.UpdateByID(ctx, member.User, bson.M{"$addToSet": bson.M{"groups": groupID}}); err != nil {
		return fmt.Errorf("failed to link member to group: %w", err)
	}
	return nil
}

// GroupNamesForUser returns the names of the groups that list the user with
// the given address as a member. Unknown addresses have no groups.
func (r *MongoRepository) GroupNamesForUser(ctx context.Context, address string) ([]string, error) {
	user, err := r.GetUserByAddress(ctx, address)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	cursor, err := r.groups.Find(ctx,
		bson.M{"members.user": user.ID},
		options.Find().SetProjection(bson.M{"name": 1}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find user groups: %w", err)
	}

	var docs []struct {
		Name string `bson:"name"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode user groups: %w", err)
	}

	names := make([]string, 0, len(docs))
	for _, d := range docs {
		names = append(names, d.Name)
	}
	return names, nil
}

func (r *MongoRepository) RecordAudit(ctx context.Context, event model.AuditEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = r.now()
	}
	if _, err := r.audit.InsertOne(ctx, event); err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}

func (r *MongoRepository) ListAuditEvents(ctx context.Context, limit int) ([]model.AuditEvent, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.audit.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}

	events := []model.AuditEvent{}
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode audit events: %w", err)
	}
	return events, nil
}

func (r *MongoRepository) Stats(ctx context.Context, activeSince time.Time) (model.AdminStats, error) {
	var stats model.AdminStats
	var err error

	if stats.TotalUsers, err = r.users.CountDocuments(ctx, bson.M{}); err != nil {
		return stats, fmt.Errorf("failed to count users: %w", err)
	}
	if stats.TotalGroups, err = r.groups.CountDocuments(ctx, bson.M{}); err != nil {
		return stats, fmt.Errorf("failed to count groups: %w", err)
	}
	if stats.ActiveUsers, err = r.users.CountDocuments(ctx, bson.M{"lastLogin": bson.M{"$gte": activeSince}}); err != nil {
		return stats, fmt.Errorf("failed to count active users: %w", err)
	}
	if stats.PublicGroups, err = r.groups.CountDocuments(ctx, bson.M{"settings.isPublic": true}); err != nil {
		return stats, fmt.Errorf("failed to count public groups: %w", err)
	}
	return stats, nil
}

func (r *MongoRepository) HealthCheck(ctx context.Context) error {
	if err := r.db.Client().Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

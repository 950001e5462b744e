package main

import (
	"context"
	"errors"
	"fmt"

	"groupdesk/internal/database"
	"groupdesk/internal/model"
	"groupdesk/internal/repository"

	"github.com/spf13/cobra"
)

type seedUser struct {
	address  string
	username string
	email    string
}

var seedUsers = []seedUser{
	{"0x52908400098527886e0f7030069857d2e4169ee7", "alice", "alice@example.com"},
	{"0x8617e340b3d01fa5f11f306f4090fd50e238070d", "bob", "bob@example.com"},
	{"0xde709f2102306220921060314715629080e2fb77", "carol", "carol@example.com"},
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create sample users and a group for local development",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd, func(ctx context.Context, db *database.Database) error {
				if err := db.EnsureIndexes(ctx); err != nil {
					return err
				}
				mongoDB, err := db.DB(ctx)
				if err != nil {
					return err
				}
				return seed(ctx, cmd, repository.NewMongoRepository(mongoDB))
			})
		},
	}
}

func seed(ctx context.Context, cmd *cobra.Command, repo repository.Repository) error {
	users := make([]model.User, 0, len(seedUsers))
	for _, su := range seedUsers {
		username, email := su.username, su.email
		user, inserted, err := repo.UpsertUser(ctx, model.UpsertUserRequest{
			Address:  su.address,
			Username: &username,
			Email:    &email,
		})
		if err != nil {
			return fmt.Errorf("failed to seed user %s: %w", su.username, err)
		}
		users = append(users, user)
		fmt.Fprintf(cmd.OutOrStdout(), "user %s (%s) inserted=%t\n", su.username, user.Address, inserted)
	}

	group := model.NewGroup("core-team", "Sample group created by groupctl seed", users[0].Address)
	group.Members = []model.Member{{User: users[0].ID, Role: model.RoleAdmin, JoinedAt: group.CreatedAt}}
	group.Permissions = []model.Permission{
		{Name: model.PermissionGroups, Actions: model.Actions{Create: true, Read: true, Update: true}},
		{Name: model.PermissionDashboard, Actions: model.Actions{Read: true}},
	}

	created, err := repo.CreateGroup(ctx, group)
	if err != nil {
		return fmt.Errorf("failed to seed group: %w", err)
	}

	for _, u := range users[1:] {
		err := repo.AddMember(ctx, created.ID, model.Member{User: u.ID, Role: model.RoleMember, JoinedAt: created.CreatedAt})
		if err != nil && !errors.Is(err, repository.ErrAlreadyMember) {
			return fmt.Errorf("failed to add %s to group: %w", u.Address, err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "group %s (%s) with %d members\n", created.Name, created.ID.Hex(), len(users))
	return nil
}

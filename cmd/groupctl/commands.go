package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"groupdesk/internal/config"
	"groupdesk/internal/database"
	"groupdesk/internal/identity"
	"groupdesk/internal/model"
	"groupdesk/internal/openfga"
	"groupdesk/internal/repository"
	"groupdesk/internal/service"
	"groupdesk/internal/validator"

	"github.com/spf13/cobra"
)

const commandTimeout = 30 * time.Second

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "groupctl",
		Short:         "Administer a groupdesk deployment",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newTokenCmd(),
		newGroupCmd(),
		newIndexesCmd(),
		newHashPasswordCmd(),
		newFGACmd(),
		newSeedCmd(),
	)
	return root
}

func newTokenCmd() *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Manage access tokens",
	}

	var (
		address string
		groups  []string
		ttl     time.Duration
	)
	issueCmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a signed access token for an address",
		Long: `Issue a signed access token using AUTH_SECRET.

The token carries the address as subject and the given groups, e.g.
  groupctl token issue --address 0xabc... --group admin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Auth.Secret == "" {
				return errors.New("AUTH_SECRET must be set to issue tokens")
			}
			if ttl <= 0 {
				ttl = cfg.Auth.TokenTTL
			}

			token, claims, err := identity.NewTokenManager(cfg.Auth.Secret, ttl).Issue(address, groups)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", claims.ExpiresAt.Time.Format(time.RFC3339))
			return nil
		},
	}
	issueCmd.Flags().StringVar(&address, "address", "", "wallet address used as token subject")
	issueCmd.Flags().StringSliceVar(&groups, "group", nil, "group claim, repeatable")
	issueCmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to AUTH_TOKEN_TTL)")
	_ = issueCmd.MarkFlagRequired("address")

	tokenCmd.AddCommand(issueCmd)
	return tokenCmd
}

func newGroupCmd() *cobra.Command {
	groupCmd := &cobra.Command{
		Use:   "group",
		Short: "Manage groups",
	}

	var req model.CreateGroupRequest
	var public bool
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a group directly in MongoDB",
		RunE: func(cmd *cobra.Command, args []string) error {
			if public {
				req.Settings = &model.GroupSettingsRequest{IsPublic: true}
			}
			if err := validator.New().Validate(&req); err != nil {
				return err
			}
			group, err := req.Group()
			if err != nil {
				return err
			}

			return withDatabase(cmd, func(ctx context.Context, db *database.Database) error {
				mongoDB, err := db.DB(ctx)
				if err != nil {
					return err
				}
				created, err := repository.NewMongoRepository(mongoDB).CreateGroup(ctx, group)
				if err != nil {
					return err
				}
				return printJSON(cmd, created)
			})
		},
	}
	createCmd.Flags().StringVar(&req.Name, "name", "", "group name")
	createCmd.Flags().StringVar(&req.Description, "description", "", "group description")
	createCmd.Flags().StringVar(&req.CreatedBy, "created-by", "", "creator wallet address")
	createCmd.Flags().BoolVar(&public, "public", false, "make the group public")

	groupCmd.AddCommand(createCmd)
	return groupCmd
}

func newIndexesCmd() *cobra.Command {
	indexesCmd := &cobra.Command{
		Use:   "indexes",
		Short: "Manage collection indexes",
	}

	indexesCmd.AddCommand(&cobra.Command{
		Use:   "ensure",
		Short: "Create the users, groups and audit_logs indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd, func(ctx context.Context, db *database.Database) error {
				if err := db.EnsureIndexes(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Indexes are up to date")
				return nil
			})
		},
	})
	return indexesCmd
}

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print the bcrypt hash for ADMIN_PASSWORD_HASH",
		Long:  "Print the bcrypt hash for ADMIN_PASSWORD_HASH. Reads the password from stdin when no argument is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("failed to read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}

			hash, err := service.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func newFGACmd() *cobra.Command {
	fgaCmd := &cobra.Command{
		Use:   "fga",
		Short: "Manage the OpenFGA authorization model",
	}

	fgaCmd.AddCommand(&cobra.Command{
		Use:   "write-model",
		Short: "Write the embedded group authorization model to the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			cfg.OpenFGA.Enabled = true

			client, err := openfga.NewClient(cfg.OpenFGA)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(commandContext(cmd), commandTimeout)
			defer cancel()

			modelID, err := client.WriteAuthorizationModel(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Authorization model written with ID: %s\n", modelID)
			return nil
		},
	})

	fgaCmd.AddCommand(&cobra.Command{
		Use:   "print-model",
		Short: "Print the embedded authorization model",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openfga.AuthorizationModel()
			if err != nil {
				return err
			}
			return printJSON(cmd, m)
		},
	})
	return fgaCmd
}

func withDatabase(cmd *cobra.Command, fn func(ctx context.Context, db *database.Database) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(commandContext(cmd), commandTimeout)
	defer cancel()

	db := database.New(cfg.Database)
	defer func() {
		if err := db.Close(context.Background()); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "Failed to close database:", err)
		}
	}()

	return fn(ctx, db)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

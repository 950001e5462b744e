package openfga

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"groupdesk/internal/config"

	"github.com/openfga/go-sdk/client"
	"github.com/openfga/go-sdk/credentials"
)

//go:embed model.json
var authorizationModel []byte

var ErrDisabled = errors.New("openfga is disabled")

// Client wraps the OpenFGA SDK with the group membership operations used by
// the service. Users and objects are passed fully qualified, for example
// "user:0xabc" and "group:admin".
type Client struct {
	fga    *client.OpenFgaClient
	config config.OpenFGAConfig
}

func NewClient(cfg config.OpenFGAConfig) (*Client, error) {
	if !cfg.Enabled {
		slog.Info("OpenFGA is disabled")
		return &Client{config: cfg}, nil
	}

	creds := &credentials.Credentials{Method: credentials.CredentialsMethodNone}
	if cfg.APIToken != "" {
		creds = &credentials.Credentials{
			Method: credentials.CredentialsMethodApiToken,
			Config: &credentials.Config{
				ApiToken: cfg.APIToken,
			},
		}
	}

	fgaClient, err := client.NewSdkClient(&client.ClientConfiguration{
		ApiUrl:               cfg.APIURL,
		StoreId:              cfg.StoreID,
		AuthorizationModelId: cfg.ModelID,
		Credentials:          creds,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenFGA client: %w", err)
	}

	slog.Info("OpenFGA client initialized", "store_id", cfg.StoreID, "model_id", cfg.ModelID)

	return &Client{fga: fgaClient, config: cfg}, nil
}

func (c *Client) IsEnabled() bool {
	return c.config.Enabled && c.fga != nil
}

// Verify checks that the configured store exists and warns when the active
// authorization model differs from the configured one.
func (c *Client) Verify(ctx context.Context) error {
	if !c.IsEnabled() {
		return nil
	}

	store, err := c.fga.GetStore(ctx).Execute()
	if err != nil {
		return fmt.Errorf("failed to get store: %w", err)
	}
	if store.Id != c.config.StoreID {
		return fmt.Errorf("store ID mismatch: expected %s, got %s", c.config.StoreID, store.Id)
	}

	if c.config.ModelID == "" {
		return nil
	}
	model, err := c.fga.ReadAuthorizationModel(ctx).Execute()
	if err != nil {
		return fmt.Errorf("failed to read authorization model: %w", err)
	}
	if model.AuthorizationModel != nil && model.AuthorizationModel.Id != c.config.ModelID {
		slog.Warn("Authorization model ID mismatch",
			"expected", c.config.ModelID,
			"actual", model.AuthorizationModel.Id)
	}
	return nil
}

// CheckPermission reports whether user holds relation on object. A disabled
// client knows no relationships.
func (c *Client) CheckPermission(ctx context.Context, user, relation, object string) (bool, error) {
	if !c.IsEnabled() {
		return false, nil
	}

	body := client.ClientCheckRequest{
		User:     user,
		Relation: relation,
		Object:   object,
	}

	data, err := c.fga.Check(ctx).Body(body).Execute()
	if err != nil {
		slog.Error("OpenFGA check failed",
			"user", user,
			"relation", relation,
			"object", object,
			"error", err)
		return false, err
	}

	allowed := data.GetAllowed()
	slog.Debug("OpenFGA check completed",
		"user", user,
		"relation", relation,
		"object", object,
		"allowed", allowed)

	return allowed, nil
}

// WriteTuple creates a relationship tuple. It is a no-op when disabled.
func (c *Client) WriteTuple(ctx context.Context, user, relation, object string) error {
	if !c.IsEnabled() {
		return nil
	}

	body := client.ClientWriteRequest{
		Writes: []client.ClientTupleKey{
			{User: user, Relation: relation, Object: object},
		},
	}

	if _, err := c.fga.Write(ctx).Body(body).Execute(); err != nil {
		slog.Error("OpenFGA write failed",
			"user", user,
			"relation", relation,
			"object", object,
			"error", err)
		return err
	}

	slog.Debug("OpenFGA tuple written", "user", user, "relation", relation, "object", object)
	return nil
}

// DeleteTuple removes a relationship tuple. It is a no-op when disabled.
func (c *Client) DeleteTuple(ctx context.Context, user, relation, object string) error {
	if !c.IsEnabled() {
		return nil
	}

	body := client.ClientWriteRequest{
		Deletes: []client.ClientTupleKeyWithoutCondition{
			{User: user, Relation: relation, Object: object},
		},
	}

	if _, err := c.fga.Write(ctx).Body(body).Execute(); err != nil {
		slog.Error("OpenFGA delete failed",
			"user", user,
			"relation", relation,
			"object", object,
			"error", err)
		return err
	}

	slog.Debug("OpenFGA tuple deleted", "user", user, "relation", relation, "object", object)
	return nil
}

// AuthorizationModel returns the embedded group membership model.
func AuthorizationModel() (client.ClientWriteAuthorizationModelRequest, error) {
	var body client.ClientWriteAuthorizationModelRequest
	if err := json.Unmarshal(authorizationModel, &body); err != nil {
		return body, fmt.Errorf("failed to parse authorization model: %w", err)
	}
	return body, nil
}

// WriteAuthorizationModel uploads the embedded model and returns its ID.
func (c *Client) WriteAuthorizationModel(ctx context.Context) (string, error) {
	if !c.IsEnabled() {
		return "", ErrDisabled
	}

	body, err := AuthorizationModel()
	if err != nil {
		return "", err
	}

	resp, err := c.fga.WriteAuthorizationModel(ctx).Body(body).Execute()
	if err != nil {
		return "", fmt.Errorf("failed to write authorization model: %w", err)
	}
	return resp.GetAuthorizationModelId(), nil
}

package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"groupdesk/internal/config"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"golang.org/x/sync/singleflight"
)

const (
	UsersCollection  = "users"
	GroupsCollection = "groups"
	AuditCollection  = "audit_logs"
)

var ErrNotConnected = errors.New("database is not connected")

// ConnectFunc opens and verifies a client for uri.
type ConnectFunc func(ctx context.Context, uri string) (*mongo.Client, error)

type Option func(*Database)

// WithConnectFunc replaces the function used to open the client.
func WithConnectFunc(fn ConnectFunc) Option {
	return func(d *Database) {
		d.connect = fn
	}
}

// Database owns the process-wide MongoDB client. The client is created on the
// first successful Connect and reused afterwards; concurrent first callers
// share one attempt and a failed attempt is not remembered.
type Database struct {
	uri            string
	name           string
	connectTimeout time.Duration
	auditRetention time.Duration
	connect        ConnectFunc

	group  singleflight.Group
	mu     sync.Mutex
	client *mongo.Client

	indexOnce sync.Once
	indexErr  error
}

func New(cfg config.DatabaseConfig, opts ...Option) *Database {
	d := &Database{
		uri:            cfg.URI,
		name:           cfg.Name,
		connectTimeout: cfg.ConnectTimeout,
		auditRetention: cfg.AuditRetention,
		connect:        defaultConnect,
	}
	if d.connectTimeout <= 0 {
		d.connectTimeout = 10 * time.Second
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func defaultConnect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(25).
		SetMaxConnIdleTime(10*time.Minute))
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		if err := client.Disconnect(context.Background()); err != nil {
			slog.Warn("Failed to disconnect after ping failure", "error", err)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return client, nil
}

func (d *Database) cached() *mongo.Client {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.client
}

// Connect returns the shared client, opening it on first use.
func (d *Database) Connect(ctx context.Context) (*mongo.Client, error) {
	if client := d.cached(); client != nil {
		return client, nil
	}

	v, err, _ := d.group.Do("connect", func() (any, error) {
		if client := d.cached(); client != nil {
			return client, nil
		}

		// The attempt is shared, so one caller's cancellation must not abort it.
		connectCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.connectTimeout)
		defer cancel()

		client, err := d.connect(connectCtx, d.uri)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		d.mu.Lock()
		d.client = client
		d.mu.Unlock()

		slog.Info("Connected to database successfully", "database", d.name)
		return client, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*mongo.Client), nil
}

// DB returns the application database, connecting if needed.
func (d *Database) DB(ctx context.Context) (*mongo.Database, error) {
	client, err := d.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return client.Database(d.name), nil
}

// EnsureIndexes creates the collection indexes. It runs at most once per
// Database; later calls return the first result.
func (d *Database) EnsureIndexes(ctx context.Context) error {
	d.indexOnce.Do(func() {
		db, err := d.DB(ctx)
		if err != nil {
			d.indexErr = err
			return
		}
		d.indexErr = CreateIndexes(ctx, db, d.auditRetention)
	})
	return d.indexErr
}

func (d *Database) HealthCheck(ctx context.Context) error {
	client := d.cached()
	if client == nil {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Close disconnects the client if one was opened.
func (d *Database) Close(ctx context.Context) error {
	d.mu.Lock()
	client := d.client
	d.client = nil
	d.mu.Unlock()

	if client == nil {
		return nil
	}
	if err := client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

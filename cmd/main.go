package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"groupdesk/internal/api"
	"groupdesk/internal/audit"
	"groupdesk/internal/config"
	"groupdesk/internal/database"
	"groupdesk/internal/identity"
	"groupdesk/internal/logger"
	"groupdesk/internal/openfga"
	"groupdesk/internal/repository"
	"groupdesk/internal/service"
	"groupdesk/internal/telemetry"
	"groupdesk/internal/validator"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	tel, err := telemetry.New(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown telemetry", "error", err)
		}
	}()

	log := logger.New(*cfg)
	log.Info("Starting groupdesk", "environment", cfg.Server.Environment, "addr", cfg.Addr())

	// MongoDB
	db := database.New(cfg.Database)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.Close(closeCtx); err != nil {
			log.Error("Failed to close database", "error", err)
		}
	}()
	if err := db.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	mongoDB, err := db.DB(ctx)
	if err != nil {
		return err
	}
	repo := repository.NewMongoRepository(mongoDB)

	// Redis is optional. Without it login throttling and token revocation
	// are disabled and write limits are kept in memory.
	var (
		redisClient  *redis.Client
		writeStorage fiber.Storage
		revocations  identity.RevocationChecker
		revoker      service.Revoker
	)
	if cfg.Redis.URL != "" {
		redisClient, err = service.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error("Failed to close redis client", "error", err)
			}
		}()
		store := service.NewRevocationStore(redisClient)
		revocations, revoker = store, store
		writeStorage = service.NewRedisStorage(redisClient, "limiter:")
	} else {
		log.Warn("REDIS_URL not set, login throttling and token revocation are disabled")
	}

	// Authorization
	var (
		authorizer identity.Authorizer = identity.GroupAuthorizer{}
		tuples     api.TupleWriter
	)
	if cfg.OpenFGA.Enabled {
		fga, err := openfga.NewClient(cfg.OpenFGA)
		if err != nil {
			return err
		}
		if err := fga.Verify(ctx); err != nil {
			return err
		}
		authorizer = identity.NewFGAAuthorizer(fga)
		tuples = fga
	}

	tokens := identity.NewTokenManager(cfg.Auth.Secret, cfg.Auth.TokenTTL)
	resolver := identity.NewTokenResolver(tokens, cfg.Auth.CookieName, revocations, repo)
	limiter := service.NewRateLimiter(redisClient, cfg.Security)
	authService := service.NewAuthService(cfg.Auth, tokens, limiter, revoker)
	metrics := telemetry.NewMetrics("groupdesk")

	handler := api.NewHandler(api.HandlerConfig{
		Logger:        log,
		Repository:    repo,
		Validator:     validator.New(),
		Authenticator: authService,
		Auditor:       audit.NewAuditor(log, repo),
		Metrics:       metrics,
		Tuples:        tuples,
		Cookie: api.CookieConfig{
			Name:   cfg.Auth.CookieName,
			Secure: cfg.Auth.CookieSecure,
		},
		Version: cfg.Telemetry.ServiceVersion,
	})

	app := api.NewApp(handler, api.RouterConfig{
		Resolver:     resolver,
		Authorizer:   authorizer,
		LoginPath:    cfg.Auth.LoginPath,
		StaticDir:    cfg.Server.StaticDir,
		WriteStorage: writeStorage,
		Security:     cfg.Security,
		Metrics:      metrics,
		ServiceName:  cfg.Telemetry.ServiceName,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(cfg.Addr())
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Info("Shutting down server")
		return app.ShutdownWithTimeout(10 * time.Second)
	}
}

package api

import (
	"context"
	"log/slog"
	"time"

	"groupdesk/internal/audit"
	"groupdesk/internal/identity"
	"groupdesk/internal/model"
	"groupdesk/internal/repository"
	"groupdesk/internal/validator"

	"github.com/gofiber/fiber/v2"
)

// Authenticator issues and revokes tokens for the bootstrap admin login.
type Authenticator interface {
	Login(ctx context.Context, req model.LoginRequest) (string, *identity.Claims, error)
	Logout(ctx context.Context, id identity.Identity) error
	TokenTTL() time.Duration
}

// TupleWriter mirrors group memberships into the authorization backend.
type TupleWriter interface {
	WriteTuple(ctx context.Context, user, relation, object string) error
}

// Recorder receives domain counters.
type Recorder interface {
	RecordUserUpsert(ctx context.Context, inserted bool)
	RecordGroupCreated(ctx context.Context)
	RecordMemberAdded(ctx context.Context, role string)
}

type CookieConfig struct {
	Name   string
	Secure bool
}

type Handler struct {
	logger    *slog.Logger
	repo      repository.Repository
	validator *validator.Validator
	auth      Authenticator
	auditor   *audit.Auditor
	metrics   Recorder
	tuples    TupleWriter
	cookie    CookieConfig
	version   string
	now       func() time.Time
}

type HandlerConfig struct {
	Logger        *slog.Logger
	Repository    repository.Repository
	Validator     *validator.Validator
	Authenticator Authenticator
	Auditor       *audit.Auditor
	Metrics       Recorder
	Tuples        TupleWriter
	Cookie        CookieConfig
	Version       string
}

func NewHandler(cfg HandlerConfig) *Handler {
	h := &Handler{
		logger:    cfg.Logger,
		repo:      cfg.Repository,
		validator: cfg.Validator,
		auth:      cfg.Authenticator,
		auditor:   cfg.Auditor,
		metrics:   cfg.Metrics,
		tuples:    cfg.Tuples,
		cookie:    cfg.Cookie,
		version:   cfg.Version,
		now:       time.Now,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.validator == nil {
		h.validator = validator.New()
	}
	if h.auditor == nil {
		h.auditor = audit.NewAuditor(h.logger, cfg.Repository)
	}
	if h.metrics == nil {
		h.metrics = noopRecorder{}
	}
	if h.cookie.Name == "" {
		h.cookie.Name = "groupdesk_session"
	}
	return h
}

type noopRecorder struct{}

func (noopRecorder) RecordUserUpsert(context.Context, bool)    {}
func (noopRecorder) RecordGroupCreated(context.Context)        {}
func (noopRecorder) RecordMemberAdded(context.Context, string) {}

// bind parses the JSON body into v and validates it.
func (h *Handler) bind(c *fiber.Ctx, v any) error {
	if err := c.BodyParser(v); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid JSON body")
	}
	return h.validator.Validate(v)
}

func success(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(fiber.Map{
		"status": "success",
		"data":   data,
	})
}

package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"groupdesk/internal/config"
	"groupdesk/internal/identity"
	"groupdesk/internal/model"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTooManyAttempts    = errors.New("too many attempts")
	ErrLoginDisabled      = errors.New("admin login is not configured")
)

type Revoker interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
}

// AuthService implements the bootstrap admin login. The admin account lives
// in configuration and receives a token carrying the admin group.
type AuthService struct {
	adminUsername     string
	adminPasswordHash []byte
	tokens            *identity.TokenManager
	limiter           *RateLimiter
	revocations       Revoker
}

// NewAuthService builds the service. limiter and revocations may be nil.
func NewAuthService(cfg config.AuthConfig, tokens *identity.TokenManager, limiter *RateLimiter, revocations Revoker) *AuthService {
	return &AuthService{
		adminUsername:     cfg.AdminUsername,
		adminPasswordHash: []byte(cfg.AdminPasswordHash),
		tokens:            tokens,
		limiter:           limiter,
		revocations:       revocations,
	}
}

func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (string, *identity.Claims, error) {
	if len(s.adminPasswordHash) == 0 {
		return "", nil, ErrLoginDisabled
	}

	if s.limiter != nil {
		if err := s.limiter.CheckLogin(ctx, req.Username); err != nil {
			return "", nil, err
		}
	}

	usernameOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(s.adminUsername)) == 1
	passwordErr := bcrypt.CompareHashAndPassword(s.adminPasswordHash, []byte(req.Password))
	if !usernameOK || passwordErr != nil {
		slog.WarnContext(ctx, "Failed admin login", "username", req.Username)
		return "", nil, ErrInvalidCredentials
	}

	if s.limiter != nil {
		if err := s.limiter.ResetAttempts(ctx, req.Username); err != nil {
			slog.WarnContext(ctx, "Failed to reset login attempts", "error", err)
		}
	}

	token, claims, err := s.tokens.Issue(s.adminUsername, []string{identity.AdminGroup})
	if err != nil {
		return "", nil, err
	}
	return token, claims, nil
}

// Logout revokes the token of id. Without a revocation store the token stays
// valid until it expires.
func (s *AuthService) Logout(ctx context.Context, id identity.Identity) error {
	if s.revocations == nil {
		return nil
	}
	return s.revocations.Revoke(ctx, id.TokenID, id.ExpiresAt)
}

func (s *AuthService) TokenTTL() time.Duration {
	return s.tokens.TTL()
}

// HashPassword returns the bcrypt hash used for ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", fmt.Errorf("password must be at least 8 characters")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

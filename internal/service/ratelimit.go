package service

import (
	"context"
	"fmt"
	"time"

	"groupdesk/internal/config"

	"github.com/redis/go-redis/v9"
)

// RateLimiter counts attempts in fixed windows stored in Redis. A limiter
// without a Redis client allows everything.
type RateLimiter struct {
	redis            *redis.Client
	maxLoginAttempts int
	loginWindow      time.Duration
}

func NewRateLimiter(redis *redis.Client, cfg config.SecurityConfig) *RateLimiter {
	return &RateLimiter{
		redis:            redis,
		maxLoginAttempts: cfg.MaxLoginAttempts,
		loginWindow:      cfg.LoginBlockWindow,
	}
}

// Allow increments the counter of key and reports whether it is still within
// limit for the current window.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.redis == nil || limit <= 0 {
		return true, nil
	}

	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment %s: %w", key, err)
	}

	if count == 1 {
		if err := r.redis.Expire(ctx, key, window).Err(); err != nil {
			return false, fmt.Errorf("failed to set expiry on %s: %w", key, err)
		}
	}

	return count <= int64(limit), nil
}

func (r *RateLimiter) CheckLogin(ctx context.Context, username string) error {
	allowed, err := r.Allow(ctx, loginKey(username), r.maxLoginAttempts, r.loginWindow)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrTooManyAttempts
	}
	return nil
}

func (r *RateLimiter) ResetAttempts(ctx context.Context, username string) error {
	if r.redis == nil {
		return nil
	}
	return r.redis.Del(ctx, loginKey(username)).Err()
}

func loginKey(username string) string {
	return fmt.Sprintf("login_attempts:%s", username)
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationStore keeps revoked token IDs until the tokens would have expired
// anyway.
type RevocationStore struct {
	redis *redis.Client
}

func NewRevocationStore(redis *redis.Client) *RevocationStore {
	return &RevocationStore{redis: redis}
}

func (s *RevocationStore) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if tokenID == "" || ttl <= 0 {
		return nil
	}
	if err := s.redis.Set(ctx, revokedKey(tokenID), 1, ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (s *RevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	n, err := s.redis.Exists(ctx, revokedKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return n > 0, nil
}

func revokedKey(tokenID string) string {
	return fmt.Sprintf("revoked_token:%s", tokenID)
}

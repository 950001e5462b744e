package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to the Redis server at url and verifies it responds.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	slog.Info("Connected to redis successfully", "addr", opts.Addr)
	return client, nil
}

// RedisStorage implements fiber.Storage on top of Redis so that fiber
// middleware such as the limiter share state across instances.
type RedisStorage struct {
	redis  *redis.Client
	prefix string
}

func NewRedisStorage(redis *redis.Client, prefix string) *RedisStorage {
	return &RedisStorage{redis: redis, prefix: prefix}
}

func (s *RedisStorage) key(k string) string {
	return s.prefix + k
}

func (s *RedisStorage) Get(key string) ([]byte, error) {
	if key == "" {
		return nil, nil
	}
	val, err := s.redis.Get(context.Background(), s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return val, err
}

func (s *RedisStorage) Set(key string, val []byte, exp time.Duration) error {
	if key == "" || len(val) == 0 {
		return nil
	}
	return s.redis.Set(context.Background(), s.key(key), val, exp).Err()
}

func (s *RedisStorage) Delete(key string) error {
	if key == "" {
		return nil
	}
	return s.redis.Del(context.Background(), s.key(key)).Err()
}

// Reset removes every key under the storage prefix.
func (s *RedisStorage) Reset() error {
	ctx := context.Background()
	iter := s.redis.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.redis.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Close is a no-op; the client is owned by the caller.
func (s *RedisStorage) Close() error {
	return nil
}

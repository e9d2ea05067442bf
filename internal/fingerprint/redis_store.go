package fingerprint

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps saved fingerprints in redis without expiry
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a store on an existing redis client
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "device:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Save(ctx context.Context, owner, fingerprint string) error {
	if err := s.client.Set(ctx, s.prefix+owner, fingerprint, 0).Err(); err != nil {
		return fmt.Errorf("save fingerprint: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, owner string) (string, error) {
	fp, err := s.client.Get(ctx, s.prefix+owner).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotSaved
	}
	if err != nil {
		return "", fmt.Errorf("get fingerprint: %w", err)
	}
	return fp, nil
}

func (s *RedisStore) Clear(ctx context.Context, owner string) error {
	if err := s.client.Del(ctx, s.prefix+owner).Err(); err != nil {
		return fmt.Errorf("clear fingerprint: %w", err)
	}
	return nil
}

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each key as a plain Redis string, namespaced by Prefix.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore connects lazily using opts. prefix defaults to "seminars".
func NewRedisStore(opts *redis.Options, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "seminars"
	}
	return &RedisStore{rdb: redis.NewClient(opts), prefix: prefix}
}

// Key returns the namespaced Redis key for a dataset key.
func (s *RedisStore) Key(key string) string {
	return s.prefix + ":dataset:" + key
}

func (s *RedisStore) Save(ctx context.Context, key string, data []byte) error {
	if err := s.rdb.Set(ctx, s.Key(key), data, 0).Err(); err != nil {
		return fmt.Errorf("store: failed to write dataset to Redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := s.rdb.Get(ctx, s.Key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: failed to read dataset from Redis: %w", err)
	}
	return data, nil
}

// Ping verifies Redis connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a shared counter backend for multi-node deployments.
// Counts live in Redis under per-window bucket keys, so all nodes observe
// the same budget. Errors are returned to the limiter, which fails open.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies connectivity once at startup
func NewRedisStore(address, password string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       0,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// bucketKey scopes a key to the fixed window containing now, so counters
// reset naturally when the window rolls over. Redis expiry bounds memory.
func bucketKey(key string, window time.Duration) string {
	bucket := time.Now().UnixMilli() / window.Milliseconds()
	return fmt.Sprintf("ratelimit:%s:%d", key, bucket)
}

// Incr implements Store via an atomic INCR + EXPIRE pipeline
func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	bk := bucketKey(key, window)

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, bk)
	// Two windows of expiry keeps the key alive for the whole bucket plus
	// clock skew between nodes.
	pipe.Expire(ctx, bk, 2*window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis incr: %w", err)
	}

	return incr.Val(), nil
}

// Peek implements Store
func (s *RedisStore) Peek(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := s.client.Get(ctx, bucketKey(key, window)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get: %w", err)
	}
	return count, nil
}

// HealthCheck verifies Redis connectivity
func (s *RedisStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

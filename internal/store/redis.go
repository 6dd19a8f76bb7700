package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore handles Redis operations for request rate limiting. It is
// optional: when no REDIS_URL is configured the limiter is disabled.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Client exposes the underlying client for middleware that needs it.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// rateLimitKey returns the counter key for a caller/endpoint pair.
func rateLimitKey(bucket, caller string) string {
	return fmt.Sprintf("ratelimit:%s:%s", bucket, caller)
}

// CountRequest increments the request counter for a caller within a fixed
// window and returns the resulting count. The first hit sets the window TTL.
func (s *RedisStore) CountRequest(ctx context.Context, bucket, caller string, window time.Duration) (int64, error) {
	key := rateLimitKey(bucket, caller)

	pipe := s.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// Package cache provides ports.Cache implementations and a caching
// decorator for the task repository.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jsamuelsen/synaptik/internal/domain"
	"github.com/jsamuelsen/synaptik/internal/ports"
)

// Redis is a ports.Cache backed by a Redis client.
type Redis struct {
	client redis.UniversalClient
	prefix string
}

// Compile-time interface checks.
var (
	_ ports.Cache         = (*Redis)(nil)
	_ ports.HealthChecker = (*Redis)(nil)
)

// NewRedis wraps client. Every key is namespaced with prefix.
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

// Get implements ports.Cache.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.NewNotFoundError("cache entry", key)
	}

	if err != nil {
		return nil, fmt.Errorf("cache get %s: %w", key, domain.NewUnavailableError("redis", err.Error()))
	}

	return data, nil
}

// Set implements ports.Cache.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, domain.NewUnavailableError("redis", err.Error()))
	}

	return nil
}

// Delete implements ports.Cache.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("cache delete %s: %w", key, domain.NewUnavailableError("redis", err.Error()))
	}

	return nil
}

// Incr implements ports.Cache.
func (r *Redis) Incr(ctx context.Context, key string) (int64, error) {
	n, err := r.client.Incr(ctx, r.prefix+key).Result()
	if err != nil {
		return 0, fmt.Errorf("cache incr %s: %w", key, domain.NewUnavailableError("redis", err.Error()))
	}

	return n, nil
}

// Name implements ports.HealthChecker.
func (r *Redis) Name() string { return "redis" }

// Check implements ports.HealthChecker.
func (r *Redis) Check(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Nop is a ports.Cache that stores nothing. Used when caching is disabled.
type Nop struct{}

var _ ports.Cache = Nop{}

// Get always misses.
func (Nop) Get(_ context.Context, key string) ([]byte, error) {
	return nil, domain.NewNotFoundError("cache entry", key)
}

// Set discards the value.
func (Nop) Set(context.Context, string, []byte, time.Duration) error { return nil }

// Delete does nothing.
func (Nop) Delete(context.Context, string) error { return nil }

// Incr counts nothing.
func (Nop) Incr(context.Context, string) (int64, error) { return 0, nil }

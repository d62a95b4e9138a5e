// Package cache provides an optional answer cache. Caching is best
// effort: a miss or a broken backend never fails a query.
package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/medassist/medassist/config"
)

// Cache stores normalized answers keyed by query hash.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
	Close() error
}

// Noop is the cache used when Redis is disabled.
type Noop struct{}

func (Noop) Get(context.Context, string) (string, bool) { return "", false }

func (Noop) Set(context.Context, string, string, time.Duration) {}

func (Noop) Close() error { return nil }

// Redis implements Cache on a Redis client.
type Redis struct {
	client *redis.Client
	logger *log.Logger
}

// NewRedis connects and pings the configured Redis instance.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.Timeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{
		client: client,
		logger: log.New(log.Writer(), "[CACHE] ", log.LstdFlags),
	}, nil
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool) {
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		r.logger.Printf("get %s: %v", key, err)
		return "", false
	}
	return val, true
}

func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.logger.Printf("set %s: %v", key, err)
	}
}

func (r *Redis) Close() error { return r.client.Close() }

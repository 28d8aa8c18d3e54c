package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisCache shares cached views between processes. Every key embeds the
// user's generation, so Invalidate is a single INCR and stale keys simply
// age out by TTL.
type RedisCache struct {
	client *redis.Client
	prefix string
}

func NewRedisCache(ctx context.Context, url, prefix string) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisCacheWithClient(client, prefix), nil
}

func NewRedisCacheWithClient(client *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "habitbot"
	}
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) generationKey(userID int64) string {
	return fmt.Sprintf("%s:gen:%d", c.prefix, userID)
}

func (c *RedisCache) entryKey(key Key, gen int64) string {
	return fmt.Sprintf("%s:%d:%s", c.prefix, gen, key)
}

func (c *RedisCache) generation(ctx context.Context, userID int64) (int64, error) {
	gen, err := c.client.Get(ctx, c.generationKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// GetOrCompute falls back to computing directly when Redis is unavailable;
// the cache never turns a readable view into an error.
func (c *RedisCache) GetOrCompute(ctx context.Context, key Key, ttl time.Duration, compute func(context.Context) ([]byte, error)) ([]byte, error) {
	gen, err := c.generation(ctx, key.UserID)
	if err != nil {
		slog.Warn("Redis cache unavailable, computing directly",
			slog.String("type", "sys"),
			slog.String("key", key.String()),
			slog.Any("error", err))
		return compute(ctx)
	}

	name := c.entryKey(key, gen)
	value, err := c.client.Get(ctx, name).Bytes()
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, redis.Nil) {
		slog.Warn("Redis cache read failed",
			slog.String("type", "sys"),
			slog.String("key", name),
			slog.Any("error", err))
	}

	value, err = compute(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, name, value, ttl).Err(); err != nil {
		slog.Warn("Redis cache write failed",
			slog.String("type", "sys"),
			slog.String("key", name),
			slog.Any("error", err))
	}
	return value, nil
}

func (c *RedisCache) Invalidate(ctx context.Context, userID int64) error {
	if err := c.client.Incr(ctx, c.generationKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cache for user %d: %w", userID, err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Package rediscache wraps the Redis client used for rate limit windows and
// the generation response cache.
package rediscache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/advanced-ai/backend/internal/app/domain/generation"
)

// ErrCacheMiss is returned when no cached value exists for a key.
var ErrCacheMiss = errors.New("cache miss")

// Cache is a thin wrapper over a Redis client.
type Cache struct {
	client *redis.Client
}

// New connects to the Redis instance at addr.
func New(addr, password string, db int) *Cache {
	return &Cache{client: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

// Ping verifies the connection.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// IncrWindow increments the counter for key using fixed-window semantics. The
// expiry is set only when the increment creates the key, so the window closes
// after its duration no matter how many increments land inside it.
func (c *Cache) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := c.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, err
		}
	}
	return count, nil
}

// GenerationKey derives a stable cache key from a prompt.
func GenerationKey(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return "generation:" + hex.EncodeToString(sum[:])
}

// GetGeneration returns the cached response for a prompt, or ErrCacheMiss.
func (c *Cache) GetGeneration(ctx context.Context, prompt string) (generation.Response, error) {
	raw, err := c.client.Get(ctx, GenerationKey(prompt)).Bytes()
	if errors.Is(err, redis.Nil) {
		return generation.Response{}, ErrCacheMiss
	}
	if err != nil {
		return generation.Response{}, err
	}

	var resp generation.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return generation.Response{}, fmt.Errorf("decode cached generation: %w", err)
	}
	return resp, nil
}

// SetGeneration caches a response for a prompt with the given TTL.
func (c *Cache) SetGeneration(ctx context.Context, prompt string, resp generation.Response, ttl time.Duration) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode generation: %w", err)
	}
	return c.client.Set(ctx, GenerationKey(prompt), raw, ttl).Err()
}

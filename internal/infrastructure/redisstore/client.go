// Package redisstore provides namespaced JSON storage on Redis.
//
// The gateway uses it for the optional persistent session token store
// (security.tokens.store: redis). Every key is prefixed with
// "graylogic:" so the gateway can share a Redis instance with other
// site services.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/config"
)

// KeyPrefix namespaces every key the gateway writes.
const KeyPrefix = "graylogic"

const connectTimeout = 5 * time.Second

var (
	// ErrNotFound is returned by GetJSON when the key does not exist.
	ErrNotFound = errors.New("redisstore: key not found")

	// ErrConnectionFailed wraps the initial ping failure.
	ErrConnectionFailed = errors.New("redisstore: connection failed")
)

// Client is a thin, namespaced wrapper around a go-redis client.
// It is safe for concurrent use.
type Client struct {
	rdb *redis.Client
}

// Connect opens a client for cfg and verifies it with a ping.
func Connect(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	c := NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := c.Ping(pingCtx); err != nil {
		c.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return c, nil
}

// NewClient wraps an unverified connection. Tests point it at miniredis.
func NewClient(opts *redis.Options) *Client {
	return &Client{rdb: redis.NewClient(opts)}
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// HealthCheck is Ping with a wrapped error, matching the other
// infrastructure clients.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.Ping(ctx); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Key joins parts under the gateway prefix: Key("token", "ab12") is
// "graylogic:token:ab12".
func Key(parts ...string) string {
	return KeyPrefix + ":" + strings.Join(parts, ":")
}

// SetJSON stores v as JSON under key. A ttl of 0 means no expiry.
func (c *Client) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshalling %s: %w", key, err)
	}
	if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// GetJSON decodes the value stored under key into dst.
// Returns ErrNotFound if the key is absent or expired.
func (c *Client) GetJSON(ctx context.Context, key string, dst any) error {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	return nil
}

// Delete removes key and reports whether it existed.
func (c *Client) Delete(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Del(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("deleting %s: %w", key, err)
	}
	return n > 0, nil
}

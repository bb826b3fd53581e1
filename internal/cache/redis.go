// Package cache keeps JSON-encoded values in Redis with a fixed TTL.
package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
)

// KV is the subset of the Redis client used by Redis.
type KV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// Redis is a JSON cache on top of a Redis client.
type Redis struct {
	kv     KV
	ttl    time.Duration
	prefix string
}

// New returns a cache storing every value for ttl under prefix.
func New(kv KV, ttl time.Duration, prefix string) *Redis {
	return &Redis{kv: kv, ttl: ttl, prefix: prefix}
}

// NewClient connects to Redis. addr is either host:port or a redis:// URL.
func NewClient(addr string) (*redis.Client, error) {
	if strings.Contains(addr, "://") {
		opts, err := redis.ParseURL(addr)
		if err != nil {
			return nil, errors.Wrap(err, "parse redis url")
		}
		return redis.NewClient(opts), nil
	}
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}), nil
}

// Get decodes the value under key into dst and reports whether it existed.
func (c *Redis) Get(ctx context.Context, key string, dst any) (bool, error) {
	b, err := c.kv.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "redis get")
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return false, errors.Wrapf(err, "decode %s", key)
	}
	return true, nil
}

// Set encodes v and stores it under key.
func (c *Redis) Set(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encode %s", key)
	}
	if err := c.kv.Set(ctx, c.prefix+key, b, c.ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}

// Ping checks the connection.
func (c *Redis) Ping(ctx context.Context) error {
	return c.kv.Ping(ctx).Err()
}

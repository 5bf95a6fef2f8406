// Package dedup remembers processed article URLs across backfill runs.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

const keyPrefix = "evdata:processed:"

// commander is the subset of *redis.Client the store uses.
type commander interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// RedisStore marks URLs as processed with a TTL.
type RedisStore struct {
	client commander
	ttl    time.Duration
}

// Open connects to the Redis server at redisURL and verifies it responds.
func Open(ctx context.Context, redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, eris.Wrap(err, "dedup: parse redis url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, eris.Wrap(err, "dedup: ping redis")
	}
	return newRedisStore(client, ttl), nil
}

func newRedisStore(client commander, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Key returns the Redis key used for url.
func Key(url string) string {
	sum := sha256.Sum256([]byte(url))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Seen reports whether url was marked by any earlier run.
func (s *RedisStore) Seen(ctx context.Context, url string) (bool, error) {
	n, err := s.client.Exists(ctx, Key(url)).Result()
	if err != nil {
		return false, eris.Wrap(err, "dedup: exists")
	}
	return n == 1, nil
}

// Mark records url as processed until the TTL expires.
func (s *RedisStore) Mark(ctx context.Context, url string) error {
	if err := s.client.Set(ctx, Key(url), "1", s.ttl).Err(); err != nil {
		return eris.Wrap(err, "dedup: set")
	}
	return nil
}

// Close releases the connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

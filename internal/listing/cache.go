// Package listing lists trait directories in the blob store and memoizes the
// results behind an injected cache.
package listing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"traitforge/internal/pkg/clock"
)

// Cache stores directory listings keyed by the exact directory path.
// A miss is reported with ok=false and a nil error.
type Cache interface {
	Get(ctx context.Context, dir string) (names []string, ok bool, err error)
	Set(ctx context.Context, dir string, names []string) error
	Delete(ctx context.Context, dir string) error
}

type memoryEntry struct {
	names   []string
	expires time.Time // zero means never
}

// MemoryCache is a process-local Cache. With a zero TTL entries live forever.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	clock   clock.Clock
}

// NewMemoryCache returns an empty in-process cache.
func NewMemoryCache(ttl time.Duration, clk clock.Clock) *MemoryCache {
	if clk == nil {
		clk = clock.New()
	}
	return &MemoryCache{entries: make(map[string]memoryEntry), ttl: ttl, clock: clk}
}

func (c *MemoryCache) Get(_ context.Context, dir string) ([]string, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[dir]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !c.clock.Now().Before(e.expires) {
		c.mu.Lock()
		delete(c.entries, dir)
		c.mu.Unlock()
		return nil, false, nil
	}
	return append([]string(nil), e.names...), true, nil
}

func (c *MemoryCache) Set(_ context.Context, dir string, names []string) error {
	e := memoryEntry{names: append([]string{}, names...)}
	if c.ttl > 0 {
		e.expires = c.clock.Now().Add(c.ttl)
	}
	c.mu.Lock()
	c.entries[dir] = e
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, dir string) error {
	c.mu.Lock()
	delete(c.entries, dir)
	c.mu.Unlock()
	return nil
}

// Len reports the number of cached directories, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

const redisKeyPrefix = "traitforge:listing:"

// RedisCache shares listings between processes through Redis. Values are
// JSON arrays; a zero TTL stores keys without expiry.
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client redis.UniversalClient, ttl time.Duration) (*RedisCache, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

func (c *RedisCache) Get(ctx context.Context, dir string) ([]string, bool, error) {
	raw, err := c.client.Get(ctx, redisKeyPrefix+dir).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", dir, err)
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil, false, fmt.Errorf("decode listing %s: %w", dir, err)
	}
	if names == nil {
		names = []string{}
	}
	return names, true, nil
}

func (c *RedisCache) Set(ctx context.Context, dir string, names []string) error {
	if names == nil {
		names = []string{}
	}
	raw, err := json.Marshal(names)
	if err != nil {
		return fmt.Errorf("encode listing %s: %w", dir, err)
	}
	if err := c.client.Set(ctx, redisKeyPrefix+dir, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", dir, err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, dir string) error {
	if err := c.client.Del(ctx, redisKeyPrefix+dir).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", dir, err)
	}
	return nil
}

package cache

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Counter is a shared atomic counter keyed by string.
//
// It backs version counters that multiple server instances must agree
// on, so Increment and InitIfAbsent must be atomic primitives of the
// underlying store, never read-modify-write sequences.
type Counter interface {
	// Current returns the counter value.
	// Returns ErrNotFound if the key has never been set.
	Current(ctx context.Context, key string) (int64, error)

	// Increment atomically increments the counter by one and returns
	// the new value. A missing key is treated as zero.
	Increment(ctx context.Context, key string) (int64, error)

	// InitIfAbsent atomically sets the counter to val if the key does
	// not exist. Reports whether the value was set by this call.
	InitIfAbsent(ctx context.Context, key string, val int64) (bool, error)
}

// RedisCounter implements Counter on a shared Redis instance using
// GET, INCR, and SETNX. Counter keys never expire.
type RedisCounter struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisCounter creates a Redis-backed counter.
// Keys are stored as "{prefix}:{key}" when a prefix is given.
func NewRedisCounter(client redis.UniversalClient, prefix string) *RedisCounter {
	return &RedisCounter{client: client, prefix: prefix}
}

func (c *RedisCounter) key(key string) string {
	if c.prefix == "" {
		return key
	}
	return c.prefix + ":" + key
}

// Current returns the counter value, or ErrNotFound if absent.
func (c *RedisCounter) Current(ctx context.Context, key string) (int64, error) {
	val, err := c.client.Get(ctx, c.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrNotFound
		}
		return 0, err
	}

	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, errors.Join(ErrUnmarshal, err)
	}
	return n, nil
}

// Increment atomically increments via INCR and returns the new value.
func (c *RedisCounter) Increment(ctx context.Context, key string) (int64, error) {
	return c.client.Incr(ctx, c.key(key)).Result()
}

// InitIfAbsent atomically creates the counter via SETNX.
func (c *RedisCounter) InitIfAbsent(ctx context.Context, key string, val int64) (bool, error) {
	return c.client.SetNX(ctx, c.key(key), val, 0).Result()
}

var _ Counter = (*RedisCounter)(nil)

// MemoryCounter implements Counter in process memory.
// It is the fallback when Redis is not configured, and the test
// double for RedisCounter. Values do not survive restarts.
type MemoryCounter struct {
	mu     sync.Mutex
	values map[string]int64
}

// NewMemoryCounter creates an in-memory counter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{values: make(map[string]int64)}
}

// Current returns the counter value, or ErrNotFound if absent.
func (c *MemoryCounter) Current(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.values[key]
	if !ok {
		return 0, ErrNotFound
	}
	return n, nil
}

// Increment atomically increments the counter and returns the new value.
func (c *MemoryCounter) Increment(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.values[key]++
	return c.values[key], nil
}

// InitIfAbsent sets the counter to val if the key does not exist.
func (c *MemoryCounter) InitIfAbsent(_ context.Context, key string, val int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.values[key]; ok {
		return false, nil
	}
	c.values[key] = val
	return true, nil
}

var _ Counter = (*MemoryCounter)(nil)

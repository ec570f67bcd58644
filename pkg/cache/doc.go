// Package cache provides a generic Cache interface with in-memory and Redis
// implementations, plus a shared atomic Counter for version numbers.
//
// Both cache implementations share the same [Cache] interface, so the server
// can run against Redis in production and fall back to in-memory caching when
// Redis is not configured.
//
// # Interface
//
// The [Cache] interface is generic over value type V:
//
//   - Get(ctx, key) (V, error) — retrieve a value
//   - Set(ctx, key, value, ttl) error — store a value with TTL
//   - Delete(ctx, key) error — remove a single key
//   - Has(ctx, key) (bool, error) — check existence
//   - Close() error — release resources
//
// TTL semantics for Set:
//   - Positive duration: item expires after this duration
//   - Zero: use the cache's configured default TTL (1 hour by default)
//   - Negative: item never expires
//
// There is no Clear or pattern deletion. Invalidation in this codebase works
// by changing the keys under which entries are looked up; abandoned entries
// expire through their TTL.
//
// # In-Memory Cache
//
// Use [NewMemory] for single-process deployments or testing:
//
//	c := cache.NewMemory[string](
//	    cache.WithDefaultTTL(time.Hour),
//	    cache.WithCleanupInterval(time.Minute),
//	    cache.WithMaxEntries(10000),
//	)
//	defer c.Close()
//
// # Redis Cache
//
// Use [NewRedis] for distributed caching with a Redis backend.
// Requires a [github.com/redis/go-redis/v9.UniversalClient]
// from [github.com/khanhdo2000/calibre-web-clone/pkg/redis]:
//
//	client := redis.MustOpen(ctx, os.Getenv("REDIS_URL"))
//	c := cache.NewRedis[calibre.BookPage](client, nil,
//	    cache.WithPrefix("library"),
//	)
//
// Pass a custom [Marshaler] as the second argument to [NewRedis] to use a
// different serialization format. If nil, JSON is used.
//
// # Counters
//
// The [Counter] interface exposes the atomic primitives version counters
// need: Current, Increment, and InitIfAbsent. [RedisCounter] maps these to
// GET, INCR, and SETNX so they stay atomic across server instances;
// [MemoryCounter] is the in-process equivalent.
//
// # Cache Stampede Prevention
//
// Use the standalone [GetOrSet] function to prevent cache stampedes.
// It uses singleflight to ensure only one goroutine computes a missing value:
//
//	val, err := cache.GetOrSet(ctx, c, key, func(ctx context.Context) (BookPage, time.Duration, error) {
//	    page, err := store.ListBooks(ctx, params)
//	    return page, time.Hour, err
//	})
//
// # Error Handling
//
// The package defines sentinel errors:
//
//   - [ErrNotFound] — key does not exist or has expired
//   - [ErrClosed] — operation on a closed cache
//   - [ErrMarshal] — value serialization failed
//   - [ErrUnmarshal] — value deserialization failed
//
// Use [errors.Is] to check:
//
//	val, err := c.Get(ctx, "key")
//	if errors.Is(err, cache.ErrNotFound) {
//	    // handle miss
//	}
package cache

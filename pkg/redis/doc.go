// Package redis provides Redis connection management with retry logic,
// healthchecks, and graceful shutdown.
//
// The server uses one shared Redis instance for two things: the query
// result cache and the per-library generation counters. Both go through
// a single [github.com/redis/go-redis/v9.UniversalClient] opened here.
//
// # Connecting
//
//	client, err := redis.Open(ctx, cfg.RedisURL,
//	    redis.WithPoolSize(20),
//	    redis.WithRetry(5, 3*time.Second),
//	)
//
// Open validates the URL scheme (redis:// or rediss://), applies pool and
// timeout settings, and pings the server with linear-backoff retries before
// returning. [MustOpen] is the exit-on-failure variant for main().
//
// # Health and shutdown
//
// [Healthcheck] returns a func(ctx) error closure suitable for pkg/health
// readiness checks. [Shutdown] wraps client.Close for the shutdown path.
package redis

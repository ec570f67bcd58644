// Package health provides named health check execution and HTTP handlers
// for liveness and readiness probes.
//
// Checks are plain func(ctx) error closures, run in parallel under a shared
// timeout. The server wires in Redis connectivity, the Calibre database,
// and the cache service's watcher status:
//
//	http.Handle("/healthz", health.LivenessHandler())
//	http.Handle("/readyz", health.ReadinessHandler(health.Checks{
//	    "redis":   redis.Healthcheck(client),
//	    "calibre": store.Healthcheck(),
//	}, health.WithLogger(log)))
//
// A failing check turns the readiness response into 503 with per-check
// detail; liveness never fails while the process is up.
package health

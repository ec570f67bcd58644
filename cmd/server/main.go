// Command server is the read-only web backend for a Calibre library.
//
// It serves listings, search, and detail pages out of metadata.db
// through a generation-tagged Redis cache, and watches the database
// files so changes made by the Calibre desktop app invalidate the
// cache without a restart.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/khanhdo2000/calibre-web-clone/internal/config"
	"github.com/khanhdo2000/calibre-web-clone/pkg/cache"
	"github.com/khanhdo2000/calibre-web-clone/pkg/calibre"
	"github.com/khanhdo2000/calibre-web-clone/pkg/covers"
	"github.com/khanhdo2000/calibre-web-clone/pkg/health"
	"github.com/khanhdo2000/calibre-web-clone/pkg/library"
	"github.com/khanhdo2000/calibre-web-clone/pkg/librarycache"
	"github.com/khanhdo2000/calibre-web-clone/pkg/libwatch"
	"github.com/khanhdo2000/calibre-web-clone/pkg/logger"
	"github.com/khanhdo2000/calibre-web-clone/pkg/redis"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.NewWithSentry(cfg.Sentry, requestIDExtractor)

	handle := library.New(cfg.LibraryPath,
		library.WithDatabaseFile(cfg.DatabaseFile),
		library.WithWALSuffix(cfg.WALSuffix),
		library.WithSHMSuffix(cfg.SHMSuffix),
	)

	store, err := calibre.Open(handle.DatabasePath())
	if err != nil {
		return err
	}
	defer store.Close()

	checks := health.Checks{
		"calibre": store.Healthcheck(),
	}

	// Prefer Redis so generations and entries are shared across server
	// instances; degrade to in-process caching rather than refusing to
	// start when Redis is absent.
	var (
		entries     cache.Cache[json.RawMessage]
		counter     cache.Counter
		redisClient goredis.UniversalClient
	)
	if cfg.RedisURL != "" {
		client, err := redis.Open(ctx, cfg.RedisURL)
		if err != nil {
			log.WarnContext(ctx, "redis unreachable, falling back to in-process cache",
				slog.String("error", err.Error()))
		} else {
			redisClient = client
			entries = cache.NewRedis[json.RawMessage](client, nil,
				cache.WithPrefix("library"),
				cache.WithRedisDefaultTTL(cfg.CacheTTL),
			)
			counter = cache.NewRedisCounter(client, "library")
			checks["redis"] = redis.Healthcheck(client)
		}
	}
	if entries == nil {
		entries = cache.NewMemory[json.RawMessage](cache.WithDefaultTTL(cfg.CacheTTL))
		counter = cache.NewMemoryCounter()
	}
	defer entries.Close()

	gens := librarycache.NewGenerations(counter)

	svcOpts := []librarycache.Option{
		librarycache.WithTTL(cfg.CacheTTL),
		librarycache.WithLogger(log),
	}

	var watcher *libwatch.Watcher
	if cfg.WatchEnabled {
		watcher = libwatch.New(handle, gens,
			libwatch.WithDebounce(cfg.WatchDebounce),
			libwatch.WithLogger(log),
		)
		if err := watcher.Start(ctx); err != nil {
			// Not fatal: the cache stays correct, it just will not
			// invalidate automatically. Visible via /api/cache/health.
			log.WarnContext(ctx, "automatic cache invalidation unavailable",
				slog.String("error", err.Error()))
		}
		defer watcher.Stop()
		svcOpts = append(svcOpts, librarycache.WithWatcherStatus(watcher.StatusString))
	} else {
		log.InfoContext(ctx, "library watching disabled, manual refresh is the only invalidation path")
	}

	svc := librarycache.New(entries, gens, svcOpts...)

	var coverStore *covers.Storage
	if coversCfg := cfg.Covers.ToCovers(); coversCfg.Enabled() {
		coverStore, err = covers.New(coversCfg)
		if err != nil {
			log.WarnContext(ctx, "cover storage disabled", slog.String("error", err.Error()))
		}
	}

	a := &api{
		cfg:       cfg,
		log:       log,
		store:     store,
		svc:       svc,
		covers:    coverStore,
		libraryID: handle.ID(),
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           a.router(checks),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	log.InfoContext(ctx, "server listening",
		slog.String("addr", cfg.HTTPAddr),
		slog.String("library", handle.ID()))

	select {
	case <-ctx.Done():
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WarnContext(shutdownCtx, "http shutdown incomplete", slog.String("error", err.Error()))
	}
	if redisClient != nil {
		if err := redis.Shutdown(redisClient)(shutdownCtx); err != nil {
			log.WarnContext(shutdownCtx, "redis shutdown failed", slog.String("error", err.Error()))
		}
	}

	return nil
}

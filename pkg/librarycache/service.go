package librarycache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/khanhdo2000/calibre-web-clone/pkg/cache"
)

// Status reports the invalidation subsystem's operational state.
type Status string

const (
	// StatusWatching means automatic invalidation is active and the
	// cache backend is reachable.
	StatusWatching Status = "watching"
	// StatusDegraded means the service still returns correct results
	// but something is off: the cache backend is unreachable (reads
	// pass through) or the watcher has reported errors.
	StatusDegraded Status = "degraded"
	// StatusUnavailable means automatic invalidation is not running at
	// all; ForceBump is the only invalidation path.
	StatusUnavailable Status = "unavailable"
)

// Service is the read-through cache over the library read service.
//
// Every cache key is {libraryID}:{generation}:{fingerprint}. Bumping a
// library's generation silently orphans all of its previously cached
// entries: they are never matched again and expire via TTL. The service
// never enumerates or deletes entries on invalidation.
type Service struct {
	entries  cache.Cache[json.RawMessage]
	gens     *Generations
	opts     *options
	sf       singleflight.Group
	degraded atomic.Bool
}

// Option configures the Service.
type Option func(*options)

type options struct {
	ttl           time.Duration
	logger        *slog.Logger
	watcherStatus func() string
}

func defaultServiceOptions() *options {
	return &options{
		ttl:    time.Hour,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithTTL sets the safety-net TTL applied to cached entries when
// GetOrCompute is called with a zero TTL. The TTL bounds how long a
// stale entry can survive a missed invalidation.
// Default: 1 hour.
func WithTTL(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.ttl = d
		}
	}
}

// WithLogger sets the logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithWatcherStatus wires in the change watcher's status for Health
// reporting. The closure should return "watching", "degraded", or
// "unavailable". Without it the watcher is assumed absent.
func WithWatcherStatus(fn func() string) Option {
	return func(o *options) {
		o.watcherStatus = fn
	}
}

// New creates a cache service over an entry cache and a generation store.
func New(entries cache.Cache[json.RawMessage], gens *Generations, opts ...Option) *Service {
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Service{
		entries: entries,
		gens:    gens,
		opts:    o,
	}
}

// entryKey builds the full cache key for one query at one generation.
func entryKey(libraryID string, gen int64, fingerprint string) string {
	return fmt.Sprintf("%s:%d:%s", libraryID, gen, fingerprint)
}

// GetOrCompute returns the cached result for the query, or invokes fn
// and caches its result under the library's current generation.
//
// A zero ttl uses the service default. Concurrent misses on the same
// key are collapsed with singleflight, so a burst of identical requests
// right after an invalidation computes once.
//
// Failure handling follows the availability-over-optimization rule:
// if the cache backend is unreachable the call degrades to invoking fn
// directly and the service reports degraded health. Only
// ErrInvalidParams (a caller bug) and fn's own errors propagate.
func GetOrCompute[V any](ctx context.Context, s *Service, libraryID string, q Query, ttl time.Duration, fn func(context.Context) (V, error)) (V, error) {
	var zero V

	fingerprint, err := Fingerprint(q)
	if err != nil {
		return zero, err
	}

	gen, err := s.gens.Current(ctx, libraryID)
	if err != nil {
		s.noteBackendError(ctx, "generation lookup failed", err)
		return fn(ctx)
	}

	key := entryKey(libraryID, gen, fingerprint)

	raw, err := s.entries.Get(ctx, key)
	switch {
	case err == nil:
		var v V
		if uerr := json.Unmarshal(raw, &v); uerr == nil {
			s.degraded.Store(false)
			return v, nil
		}
		// Undecodable entry: treat as a miss and overwrite below.
		s.opts.logger.WarnContext(ctx, "discarding undecodable cache entry", slog.String("key", key))
	case errors.Is(err, cache.ErrNotFound):
		// Plain miss.
	default:
		s.noteBackendError(ctx, "cache read failed", err)
		return fn(ctx)
	}

	if ttl == 0 {
		ttl = s.opts.ttl
	}

	v, err, _ := s.sf.Do(key, func() (any, error) {
		val, err := fn(ctx)
		if err != nil {
			return nil, err
		}

		data, merr := json.Marshal(val)
		if merr != nil {
			// Uncacheable result is still a valid result.
			s.opts.logger.WarnContext(ctx, "failed to marshal cache entry",
				slog.String("key", key), slog.String("error", merr.Error()))
			return val, nil
		}

		// Best-effort store: a failed write just means a recompute later.
		if serr := s.entries.Set(ctx, key, data, ttl); serr != nil {
			s.noteBackendError(ctx, "cache write failed", serr)
		} else {
			s.degraded.Store(false)
		}
		return val, nil
	})
	if err != nil {
		return zero, err
	}

	return v.(V), nil
}

// ForceBump advances the library's generation, invalidating all of its
// cached entries. Exposed for operators who changed library files in
// ways the watcher cannot see, and as the only invalidation path when
// the watcher is disabled.
func (s *Service) ForceBump(ctx context.Context, libraryID string) (int64, error) {
	gen, err := s.gens.Bump(ctx, libraryID)
	if err != nil {
		s.noteBackendError(ctx, "forced bump failed", err)
		return 0, err
	}
	s.opts.logger.InfoContext(ctx, "library generation bumped",
		slog.String("library", libraryID), slog.Int64("generation", gen))
	return gen, nil
}

// Health reports the subsystem status for operational monitoring.
//
//   - unavailable: the watcher is not running (or was never wired in),
//     so nothing invalidates the cache automatically
//   - degraded: the cache backend is unreachable or the watcher has
//     reported errors; results are still correct
//   - watching: everything operational
func (s *Service) Health(ctx context.Context) Status {
	watcher := string(StatusUnavailable)
	if s.opts.watcherStatus != nil {
		watcher = s.opts.watcherStatus()
	}

	if watcher == string(StatusUnavailable) {
		return StatusUnavailable
	}

	if _, err := s.entries.Has(ctx, "health:probe"); err != nil {
		return StatusDegraded
	}
	if s.degraded.Load() || watcher == string(StatusDegraded) {
		return StatusDegraded
	}
	return StatusWatching
}

// noteBackendError records a backend failure for Health and logs it.
func (s *Service) noteBackendError(ctx context.Context, msg string, err error) {
	s.degraded.Store(true)
	s.opts.logger.WarnContext(ctx, msg, slog.String("error", errors.Join(ErrBackendUnavailable, err).Error()))
}

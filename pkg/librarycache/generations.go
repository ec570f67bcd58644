package librarycache

import (
	"context"
	"errors"

	"github.com/khanhdo2000/calibre-web-clone/pkg/cache"
)

// genKeyPrefix namespaces generation counters in the shared cache.
const genKeyPrefix = "gen"

// Generations is the source of truth for each library's current
// generation: a monotonically increasing logical version number that
// tags every cache key. Bumping the generation orphans all entries
// cached under previous generations without touching them; they expire
// through their TTL.
//
// The store is backed by a [cache.Counter] so that increments stay
// atomic across server instances sharing one Redis.
type Generations struct {
	counter cache.Counter
}

// NewGenerations creates a generation store over the given counter.
func NewGenerations(counter cache.Counter) *Generations {
	return &Generations{counter: counter}
}

func genKey(libraryID string) string {
	return genKeyPrefix + ":" + libraryID
}

// Current returns the library's current generation, initializing it to 1
// on first use. Absence is not an error: an unseen library atomically
// gets generation 1 via create-if-absent, so concurrent first readers
// agree on the value.
func (g *Generations) Current(ctx context.Context, libraryID string) (int64, error) {
	key := genKey(libraryID)

	n, err := g.counter.Current(ctx, key)
	if err == nil {
		return n, nil
	}
	if !errors.Is(err, cache.ErrNotFound) {
		return 0, errors.Join(ErrBackendUnavailable, err)
	}

	if _, err := g.counter.InitIfAbsent(ctx, key, 1); err != nil {
		return 0, errors.Join(ErrBackendUnavailable, err)
	}

	n, err = g.counter.Current(ctx, key)
	if err != nil {
		return 0, errors.Join(ErrBackendUnavailable, err)
	}
	return n, nil
}

// Bump atomically increments the library's generation and returns the
// new value. Concurrent bumps from multiple server instances are safe:
// the generation only needs to increase, not increase by exactly one
// per detected change. A transient backend error is retried once.
func (g *Generations) Bump(ctx context.Context, libraryID string) (int64, error) {
	key := genKey(libraryID)

	n, err := g.counter.Increment(ctx, key)
	if err != nil {
		n, err = g.counter.Increment(ctx, key)
	}
	if err != nil {
		return 0, errors.Join(ErrBackendUnavailable, err)
	}
	return n, nil
}

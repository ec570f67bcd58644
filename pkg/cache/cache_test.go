package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/khanhdo2000/calibre-web-clone/pkg/cache"
)

// --- Memory: Get ---

func TestMemory_Get(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrNotFound for missing key", func(t *testing.T) {
		t.Parallel()

		c := cache.NewMemory[string]()
		defer c.Close()

		_, err := c.Get(context.Background(), "missing")
		require.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run("returns stored value", func(t *testing.T) {
		t.Parallel()

		c := cache.NewMemory[int]()
		defer c.Close()

		ctx := context.Background()
		require.NoError(t, c.Set(ctx, "key", 42, time.Minute))

		val, err := c.Get(ctx, "key")
		require.NoError(t, err)
		require.Equal(t, 42, val)
	})

	t.Run("returns ErrNotFound for expired key", func(t *testing.T) {
		t.Parallel()

		c := cache.NewMemory[string](cache.WithCleanupInterval(0))
		defer c.Close()

		ctx := context.Background()
		require.NoError(t, c.Set(ctx, "key", "value", time.Millisecond))

		time.Sleep(5 * time.Millisecond)

		_, err := c.Get(ctx, "key")
		require.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run("marks entry as recently used", func(t *testing.T) {
		t.Parallel()

		c := cache.NewMemory[string](cache.WithMaxEntries(2))
		defer c.Close()

		ctx := context.Background()
		require.NoError(t, c.Set(ctx, "a", "1", time.Minute))
		require.NoError(t, c.Set(ctx, "b", "2", time.Minute))

		// Touch "a" so "b" becomes the LRU entry.
		_, err := c.Get(ctx, "a")
		require.NoError(t, err)

		require.NoError(t, c.Set(ctx, "c", "3", time.Minute))

		has, err := c.Has(ctx, "a")
		require.NoError(t, err)
		require.True(t, has, "a should still exist (recently used)")

		has, err = c.Has(ctx, "b")
		require.NoError(t, err)
		require.False(t, has, "b should have been evicted")
	})

	t.Run("set after Close returns ErrClosed", func(t *testing.T) {
		t.Parallel()

		c := cache.NewMemory[string]()
		require.NoError(t, c.Close())

		err := c.Set(context.Background(), "key", "value", time.Minute)
		require.ErrorIs(t, err, cache.ErrClosed)
	})
}

// --- Memory: Set ---

func TestMemory_Set(t *testing.T) {
	t.Parallel()

	t.Run("zero ttl uses default", func(t *testing.T) {
		t.Parallel()

		c := cache.NewMemory[string](
			cache.WithDefaultTTL(time.Millisecond),
			cache.WithCleanupInterval(0),
		)
		defer c.Close()

		ctx := context.Background()
		require.NoError(t, c.Set(ctx, "key", "value", 0))

		time.Sleep(5 * time.Millisecond)

		_, err := c.Get(ctx, "key")
		require.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run("negative ttl never expires", func(t *testing.T) {
		t.Parallel()

		c := cache.NewMemory[string](cache.WithDefaultTTL(time.Millisecond))
		defer c.Close()

		ctx := context.Background()
		require.NoError(t, c.Set(ctx, "key", "value", -1))

		time.Sleep(5 * time.Millisecond)

		val, err := c.Get(ctx, "key")
		require.NoError(t, err)
		require.Equal(t, "value", val)
	})

	t.Run("evicts oldest when full", func(t *testing.T) {
		t.Parallel()

		c := cache.NewMemory[int](cache.WithMaxEntries(2))
		defer c.Close()

		ctx := context.Background()
		require.NoError(t, c.Set(ctx, "a", 1, time.Minute))
		require.NoError(t, c.Set(ctx, "b", 2, time.Minute))
		require.NoError(t, c.Set(ctx, "c", 3, time.Minute))

		has, err := c.Has(ctx, "a")
		require.NoError(t, err)
		require.False(t, has)

		has, err = c.Has(ctx, "c")
		require.NoError(t, err)
		require.True(t, has)
	})

	t.Run("overwrites existing key", func(t *testing.T) {
		t.Parallel()

		c := cache.NewMemory[string]()
		defer c.Close()

		ctx := context.Background()
		require.NoError(t, c.Set(ctx, "key", "old", time.Minute))
		require.NoError(t, c.Set(ctx, "key", "new", time.Minute))

		val, err := c.Get(ctx, "key")
		require.NoError(t, err)
		require.Equal(t, "new", val)
	})
}

// --- Memory: Delete / Has / Close ---

func TestMemory_Delete(t *testing.T) {
	t.Parallel()

	t.Run("removes entry", func(t *testing.T) {
		t.Parallel()

		c := cache.NewMemory[string]()
		defer c.Close()

		ctx := context.Background()
		require.NoError(t, c.Set(ctx, "key", "value", time.Minute))
		require.NoError(t, c.Delete(ctx, "key"))

		_, err := c.Get(ctx, "key")
		require.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run("missing key is not an error", func(t *testing.T) {
		t.Parallel()

		c := cache.NewMemory[string]()
		defer c.Close()

		require.NoError(t, c.Delete(context.Background(), "missing"))
	})
}

func TestMemory_Close(t *testing.T) {
	t.Parallel()

	t.Run("idempotent", func(t *testing.T) {
		t.Parallel()

		c := cache.NewMemory[string]()
		require.NoError(t, c.Close())
		require.NoError(t, c.Close())
	})
}

// --- GetOrSet ---

func TestGetOrSet(t *testing.T) {
	t.Parallel()

	t.Run("computes and stores on miss", func(t *testing.T) {
		t.Parallel()

		c := cache.NewMemory[string]()
		defer c.Close()

		ctx := context.Background()
		val, err := cache.GetOrSet(ctx, c, "miss-key", func(context.Context) (string, time.Duration, error) {
			return "computed", time.Minute, nil
		})
		require.NoError(t, err)
		require.Equal(t, "computed", val)

		stored, err := c.Get(ctx, "miss-key")
		require.NoError(t, err)
		require.Equal(t, "computed", stored)
	})

	t.Run("returns cached value without calling fn", func(t *testing.T) {
		t.Parallel()

		c := cache.NewMemory[string]()
		defer c.Close()

		ctx := context.Background()
		require.NoError(t, c.Set(ctx, "hit-key", "cached", time.Minute))

		val, err := cache.GetOrSet(ctx, c, "hit-key", func(context.Context) (string, time.Duration, error) {
			t.Fatal("fn should not be called on hit")
			return "", 0, nil
		})
		require.NoError(t, err)
		require.Equal(t, "cached", val)
	})

	t.Run("propagates fn error", func(t *testing.T) {
		t.Parallel()

		c := cache.NewMemory[string]()
		defer c.Close()

		wantErr := errors.New("compute failed")
		_, err := cache.GetOrSet(context.Background(), c, "err-key", func(context.Context) (string, time.Duration, error) {
			return "", 0, wantErr
		})
		require.ErrorIs(t, err, wantErr)
	})

	t.Run("collapses concurrent computes", func(t *testing.T) {
		t.Parallel()

		c := cache.NewMemory[int]()
		defer c.Close()

		var calls atomic.Int64
		release := make(chan struct{})

		const workers = 10
		var wg sync.WaitGroup
		results := make([]int, workers)

		for i := range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				val, err := cache.GetOrSet(context.Background(), c, "shared", func(context.Context) (int, time.Duration, error) {
					calls.Add(1)
					<-release
					return 99, time.Minute, nil
				})
				require.NoError(t, err)
				results[i] = val
			}()
		}

		// Give every worker time to join the in-flight call.
		time.Sleep(50 * time.Millisecond)
		close(release)
		wg.Wait()

		require.Equal(t, int64(1), calls.Load(), "concurrent callers should share one compute")
		for _, v := range results {
			require.Equal(t, 99, v)
		}
	})
}

// --- MemoryCounter ---

func TestMemoryCounter(t *testing.T) {
	t.Parallel()

	t.Run("Current on missing key returns ErrNotFound", func(t *testing.T) {
		t.Parallel()

		c := cache.NewMemoryCounter()
		_, err := c.Current(context.Background(), "missing")
		require.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run("InitIfAbsent sets only once", func(t *testing.T) {
		t.Parallel()

		c := cache.NewMemoryCounter()
		ctx := context.Background()

		set, err := c.InitIfAbsent(ctx, "gen", 1)
		require.NoError(t, err)
		require.True(t, set)

		set, err = c.InitIfAbsent(ctx, "gen", 100)
		require.NoError(t, err)
		require.False(t, set)

		cur, err := c.Current(ctx, "gen")
		require.NoError(t, err)
		require.Equal(t, int64(1), cur)
	})

	t.Run("Increment is monotonic under concurrency", func(t *testing.T) {
		t.Parallel()

		c := cache.NewMemoryCounter()
		ctx := context.Background()

		const workers = 50
		var wg sync.WaitGroup
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := c.Increment(ctx, "gen")
				require.NoError(t, err)
			}()
		}
		wg.Wait()

		cur, err := c.Current(ctx, "gen")
		require.NoError(t, err)
		require.Equal(t, int64(workers), cur)
	})

	t.Run("Increment initializes missing key to one", func(t *testing.T) {
		t.Parallel()

		c := cache.NewMemoryCounter()
		n, err := c.Increment(context.Background(), "fresh")
		require.NoError(t, err)
		require.Equal(t, int64(1), n)
	})
}

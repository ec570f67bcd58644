// Package librarycache keeps cached Calibre query results consistent
// with a metadata.db that another process mutates out-of-band.
//
// The Calibre desktop application owns the library database; this
// server only reads it. When the desktop app writes, cached listings,
// search results, and detail pages must stop being served — but the
// server must never block the writer, and a shared cache cannot be
// cheaply enumerated for deletion.
//
// # Generation tagging
//
// Instead of deleting cache keys, every library carries a generation:
// a monotonically increasing counter stored in the shared cache
// ([Generations]). Cache keys embed it:
//
//	{libraryID}:{generation}:{fingerprint}
//
// Invalidation is a single atomic increment. All entries cached under
// the previous generation become unreachable immediately (key
// shadowing) and expire through their safety-net TTL. This is O(1),
// atomic across server instances, and free of the races that
// delete-by-pattern schemes have with concurrent re-population.
//
// The change watcher in pkg/libwatch calls [Generations.Bump] after a
// quiescent burst of filesystem events; [Service.ForceBump] is the
// manual operator path.
//
// # Read-through caching
//
// [GetOrCompute] wraps any read operation:
//
//	page, err := librarycache.GetOrCompute(ctx, svc, libID, librarycache.Query{
//	    Op:   "list",
//	    Page: 1, PerPage: 20, Sort: "new",
//	}, 0, func(ctx context.Context) (calibre.BookPage, error) {
//	    return store.ListBooks(ctx, params)
//	})
//
// [Fingerprint] canonicalizes the query parameters (sorted term keys,
// sorted and deduplicated filter sets, explicit pagination fields) and
// digests them with xxhash, so semantically identical requests share an
// entry while any result-relevant difference gets its own.
//
// # Degradation
//
// An unreachable cache backend never fails a request: reads fall
// through to the compute function and the condition is visible via
// [Service.Health]. Worst case is correct-but-uncached behavior.
package librarycache

// Package libwatch detects out-of-band changes to a Calibre library
// database and invalidates the query cache once per change burst.
//
// The Calibre desktop app writes to metadata.db in WAL mode: between
// checkpoints most writes land in metadata.db-wal, and the -wal/-shm
// files come and go. The watcher therefore monitors the library
// directory with fsnotify and filters events down to the three
// database paths from library.Handle.
//
// A bulk import produces hundreds of write events over several seconds.
// Collapsing them matters: the watcher keeps a single debounce timer,
// resets it on every relevant event, and only when the configured
// quiescence interval (default 2s) passes without events does it bump
// the library's generation — one invalidation per burst, not one per
// write.
//
//	w := libwatch.New(handle, generations,
//	    libwatch.WithDebounce(2*time.Second),
//	    libwatch.WithLogger(log),
//	)
//	if err := w.Start(ctx); err != nil {
//	    log.Warn("automatic invalidation disabled", "error", err)
//	}
//	defer w.Stop()
//
// Watcher errors (such as an overflowed OS event queue) force an
// immediate bump instead of waiting: a missed invalidation would serve
// stale data, while a spurious one only costs a cache miss.
package libwatch

package libwatch

import "errors"

// ErrWatchUnavailable is returned when a filesystem watch cannot be
// registered (permissions, unsupported filesystem, exhausted inotify
// quota). Degraded, not fatal: the cache keeps functioning without
// automatic invalidation.
var ErrWatchUnavailable = errors.New("libwatch: filesystem watch unavailable")

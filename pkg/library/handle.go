// Package library identifies a single Calibre library on disk.
//
// A Handle owns the path to the library's metadata database and the
// derived paths of its SQLite companion files. In WAL mode Calibre
// writes mostly to the -wal file between checkpoints, so anything that
// watches the database for changes must cover all three paths.
package library

import (
	"path/filepath"
)

// Default naming convention for a Calibre library database.
const (
	DefaultDatabaseFile = "metadata.db"
	DefaultWALSuffix    = "-wal"
	DefaultSHMSuffix    = "-shm"
)

// Handle identifies one Calibre library. Immutable once constructed.
type Handle struct {
	dir       string
	dbFile    string
	walSuffix string
	shmSuffix string
}

// Option configures a Handle.
type Option func(*Handle)

// WithDatabaseFile overrides the database filename.
// Default: metadata.db.
func WithDatabaseFile(name string) Option {
	return func(h *Handle) {
		if name != "" {
			h.dbFile = name
		}
	}
}

// WithWALSuffix overrides the write-ahead-log filename suffix.
// Default: -wal.
func WithWALSuffix(suffix string) Option {
	return func(h *Handle) {
		if suffix != "" {
			h.walSuffix = suffix
		}
	}
}

// WithSHMSuffix overrides the shared-memory filename suffix.
// Default: -shm.
func WithSHMSuffix(suffix string) Option {
	return func(h *Handle) {
		if suffix != "" {
			h.shmSuffix = suffix
		}
	}
}

// New creates a Handle for the library rooted at dir.
func New(dir string, opts ...Option) Handle {
	h := Handle{
		dir:       filepath.Clean(dir),
		dbFile:    DefaultDatabaseFile,
		walSuffix: DefaultWALSuffix,
		shmSuffix: DefaultSHMSuffix,
	}
	for _, opt := range opts {
		opt(&h)
	}
	return h
}

// ID returns a stable identifier for the library, used as the library
// segment of cache keys. Two handles for the same directory and database
// file produce the same ID.
func (h Handle) ID() string {
	return filepath.ToSlash(filepath.Join(h.dir, h.dbFile))
}

// Dir returns the library directory.
func (h Handle) Dir() string {
	return h.dir
}

// DatabasePath returns the path of the primary database file.
func (h Handle) DatabasePath() string {
	return filepath.Join(h.dir, h.dbFile)
}

// WALPath returns the path of the write-ahead-log companion file.
// The file may not exist until the first write in WAL mode.
func (h Handle) WALPath() string {
	return h.DatabasePath() + h.walSuffix
}

// SHMPath returns the path of the shared-memory companion file.
func (h Handle) SHMPath() string {
	return h.DatabasePath() + h.shmSuffix
}

// WatchedPaths returns every path whose modification means the library
// may have changed: the database file and both companion files.
func (h Handle) WatchedPaths() []string {
	return []string{h.DatabasePath(), h.WALPath(), h.SHMPath()}
}

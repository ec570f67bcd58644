package calibre

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// Sentinel errors for the calibre store.
var (
	// ErrNotFound is returned when a book does not exist.
	ErrNotFound = errors.New("calibre: book not found")

	// ErrUnavailable is returned when the metadata database cannot be
	// opened or reached.
	ErrUnavailable = errors.New("calibre: metadata database unavailable")
)

// Store reads Calibre's metadata.db.
//
// The database belongs to the Calibre desktop application and is opened
// strictly read-only here; the desktop app remains the only writer. A
// busy timeout covers the moments when the writer holds the lock.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens the metadata database at path in read-only mode.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: empty database path", ErrUnavailable)
	}

	cleanPath := filepath.Clean(path)
	dsn := "file:" + cleanPath + "?mode=ro&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Join(ErrUnavailable, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Join(ErrUnavailable, err)
	}

	return &Store{db: db, path: cleanPath}, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the metadata database path.
func (s *Store) Path() string {
	return s.path
}

// Healthcheck returns a closure that validates database reachability
// for readiness probes.
func (s *Store) Healthcheck() func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if s == nil || s.db == nil {
			return ErrUnavailable
		}
		if err := s.db.PingContext(ctx); err != nil {
			return errors.Join(ErrUnavailable, err)
		}
		return nil
	}
}

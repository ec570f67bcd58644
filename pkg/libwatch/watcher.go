package libwatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/khanhdo2000/calibre-web-clone/pkg/library"
)

// DefaultDebounce is how long the watcher waits for filesystem silence
// before treating a burst of events as one finished change.
const DefaultDebounce = 2 * time.Second

// Status reports the watcher's operational state.
type Status string

const (
	// StatusWatching means filesystem watches are registered and events
	// are being processed.
	StatusWatching Status = "watching"
	// StatusDegraded means the watcher is running but the OS
	// notification stream reported errors; invalidation was forced.
	StatusDegraded Status = "degraded"
	// StatusUnavailable means the watcher is not running.
	StatusUnavailable Status = "unavailable"
)

// Bumper advances a library's generation. Satisfied by
// librarycache.Generations. The watcher talks to the rest of the
// system only through this interface.
type Bumper interface {
	Bump(ctx context.Context, libraryID string) (int64, error)
}

// Watcher translates a burst of low-level filesystem events on a
// library's database and companion files into exactly one generation
// bump per quiescent burst.
//
// It watches the library directory rather than the individual files, so
// companion files created after startup (the first WAL write) or
// removed by a checkpoint are picked up without re-registration.
type Watcher struct {
	handle library.Handle
	bumper Bumper
	opts   *options

	fsw      *fsnotify.Watcher
	events   <-chan fsnotify.Event
	errs     <-chan error
	done     chan struct{}
	stopOnce sync.Once

	mu     sync.Mutex
	status Status
}

// Option configures the Watcher.
type Option func(*options)

type options struct {
	debounce time.Duration
	logger   *slog.Logger
}

func defaultWatcherOptions() *options {
	return &options{
		debounce: DefaultDebounce,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithDebounce sets the quiescence interval. Events arriving closer
// together than this collapse into a single bump.
// Default: 2 seconds.
func WithDebounce(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.debounce = d
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

// New creates a watcher for the given library. Call Start to begin
// watching and Stop to release OS watch handles.
func New(handle library.Handle, bumper Bumper, opts ...Option) *Watcher {
	o := defaultWatcherOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Watcher{
		handle: handle,
		bumper: bumper,
		opts:   o,
		done:   make(chan struct{}),
		status: StatusUnavailable,
	}
}

// Start registers the filesystem watch and launches the event loop.
// Returns ErrWatchUnavailable if the library directory cannot be
// watched; the caller is expected to log this and continue serving,
// since the cache stays correct without automatic invalidation.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Join(ErrWatchUnavailable, err)
	}

	if err := fsw.Add(w.handle.Dir()); err != nil {
		_ = fsw.Close()
		return errors.Join(ErrWatchUnavailable, err)
	}

	w.fsw = fsw
	w.events = fsw.Events
	w.errs = fsw.Errors
	w.setStatus(StatusWatching)

	w.opts.logger.InfoContext(ctx, "watching library database",
		slog.String("dir", w.handle.Dir()),
		slog.String("database", w.handle.DatabasePath()),
		slog.Duration("debounce", w.opts.debounce))

	go w.loop(ctx)
	return nil
}

// Stop cancels any pending debounce timer and releases the OS watch
// handles. Idempotent.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		if w.fsw != nil {
			_ = w.fsw.Close()
		}
		w.setStatus(StatusUnavailable)
	})
}

// Status reports the watcher's current state.
func (w *Watcher) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// StatusString is Status as a plain string, shaped for
// librarycache.WithWatcherStatus.
func (w *Watcher) StatusString() string {
	return string(w.Status())
}

func (w *Watcher) setStatus(s Status) {
	w.mu.Lock()
	w.status = s
	w.mu.Unlock()
}

// loop is the watcher's single goroutine: it owns the debounce timer,
// so only one timer is ever pending and resets never race.
func (w *Watcher) loop(ctx context.Context) {
	timer := time.NewTimer(w.opts.debounce)
	stopTimer(timer)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return

		case <-w.done:
			return

		case ev, ok := <-w.events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			w.opts.logger.DebugContext(ctx, "library change detected",
				slog.String("path", ev.Name), slog.String("op", ev.Op.String()))

			// Reset the quiescence timer: the burst is still going.
			stopTimer(timer)
			timer.Reset(w.opts.debounce)

		case err, ok := <-w.errs:
			if !ok {
				return
			}
			// The OS event queue may have overflowed and dropped
			// events. An extra cache miss is cheaper than serving
			// stale data, so invalidate immediately.
			w.setStatus(StatusDegraded)
			w.opts.logger.WarnContext(ctx, "watcher error, forcing invalidation",
				slog.String("error", err.Error()))
			stopTimer(timer)
			w.bump(ctx)

		case <-timer.C:
			w.bump(ctx)
		}
	}
}

// relevant reports whether the event touches the database file or one
// of its companion files and represents a modification. Chmod-only
// events are ignored; Create/Remove/Rename matter because SQLite
// creates the WAL file on first write and removes it on checkpoint.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}

	name := filepath.Base(ev.Name)
	for _, p := range w.handle.WatchedPaths() {
		if name == filepath.Base(p) {
			return true
		}
	}
	return false
}

// bump invalidates the library's cached state via the generation store.
func (w *Watcher) bump(ctx context.Context) {
	bumpCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	gen, err := w.bumper.Bump(bumpCtx, w.handle.ID())
	if err != nil {
		w.setStatus(StatusDegraded)
		w.opts.logger.WarnContext(ctx, "generation bump failed",
			slog.String("library", w.handle.ID()), slog.String("error", err.Error()))
		return
	}

	w.opts.logger.InfoContext(ctx, "library changed, cache invalidated",
		slog.String("library", w.handle.ID()), slog.Int64("generation", gen))
}

// stopTimer stops a timer and drains its channel if it already fired.
// Safe only from the goroutine that also receives from the timer.
func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

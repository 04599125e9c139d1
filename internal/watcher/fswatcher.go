package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	verrors "github.com/dmwm/wmviews/internal/errors"
	"github.com/dmwm/wmviews/internal/source"
)

// FSWatcher watches a directory tree with fsnotify and emits debounced
// batches of events for files matching the include/exclude globs.
type FSWatcher struct {
	fsWatcher      *fsnotify.Watcher
	debouncer      *Debouncer
	events         chan []FileEvent
	errors         chan error
	stopCh         chan struct{}
	rootPath       string
	opts           Options
	logger         *slog.Logger
	mu             sync.RWMutex
	stopped        bool
	droppedBatches atomic.Uint64

	// dirs holds the absolute paths added to fsWatcher. Only the Start
	// goroutine touches it.
	dirs map[string]struct{}
}

// New creates a watcher. Call Start to begin watching.
func New(opts Options) (*FSWatcher, error) {
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, verrors.New(verrors.ErrCodeWatchFailed, "cannot create file watcher", err)
	}

	return &FSWatcher{
		fsWatcher: fsw,
		debouncer: NewDebouncer(opts.DebounceWindow),
		events:    make(chan []FileEvent, opts.EventBufferSize),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
		opts:      opts,
		logger:    slog.Default(),
		dirs:      make(map[string]struct{}),
	}, nil
}

// Start watches root recursively and blocks until Stop is called or ctx is
// done. It returns an error if root cannot be watched.
func (w *FSWatcher) Start(ctx context.Context, root string) error {
	absPath, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return verrors.New(verrors.ErrCodeWatchFailed, "cannot watch "+root, err)
	}
	if !info.IsDir() {
		return verrors.New(verrors.ErrCodeWatchFailed, "cannot watch "+root+": not a directory", nil)
	}

	w.mu.Lock()
	w.rootPath = absPath
	w.mu.Unlock()

	if err := w.addRecursive(absPath); err != nil {
		return verrors.New(verrors.ErrCodeWatchFailed, "cannot watch "+root, err)
	}

	go w.forwardDebouncedEvents(ctx)

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

// handleEvent converts one fsnotify event. A rename is reported by
// fsnotify on the old name, so it is a delete here; the new name arrives
// as a create. A watched directory that goes away is reported as a single
// delete of its path, which covers every file below it.
func (w *FSWatcher) handleEvent(event fsnotify.Event) {
	rel, err := filepath.Rel(w.RootPath(), event.Name)
	if err != nil || rel == "." {
		return
	}
	rel = filepath.ToSlash(rel)

	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && w.forgetDir(event.Name) {
		w.debouncer.Add(FileEvent{Path: rel, Operation: OpDelete, Timestamp: time.Now()})
		return
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if source.Excluded(rel, w.opts.Exclude) {
				return
			}
			// Files written before the watch was in place get no event of their own
			if err := w.addRecursive(event.Name); err != nil {
				w.emitError(err)
			}
			w.announceExisting(event.Name)
			return
		}
	}

	if !source.Match(rel, w.opts.Include, w.opts.Exclude) {
		return
	}

	var op Operation
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		op = OpDelete
	default:
		return
	}

	w.debouncer.Add(FileEvent{Path: rel, Operation: op, Timestamp: time.Now()})
}

// announceExisting emits CREATE for matching files already inside a newly
// created directory.
func (w *FSWatcher) announceExisting(dir string) {
	root := w.RootPath()
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if source.Match(rel, w.opts.Include, w.opts.Exclude) {
			w.debouncer.Add(FileEvent{Path: rel, Operation: OpCreate, Timestamp: time.Now()})
		}
		return nil
	})
}

func (w *FSWatcher) forwardDebouncedEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case events, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			if len(events) > 0 {
				w.emitEvents(events)
			}
		}
	}
}

// addRecursive adds dir and every non-excluded directory below it.
func (w *FSWatcher) addRecursive(dir string) error {
	root := w.RootPath()
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			w.logger.Warn("skipping unreadable directory",
				slog.String("path", path),
				slog.String("error", err.Error()))
			return nil
		}
		if !d.IsDir() {
			return nil
		}

		rel, _ := filepath.Rel(root, path)
		if rel != "." && source.Excluded(filepath.ToSlash(rel), w.opts.Exclude) {
			return filepath.SkipDir
		}
		if err := w.fsWatcher.Add(path); err != nil {
			return err
		}
		w.dirs[path] = struct{}{}
		return nil
	})
}

// forgetDir stops watching dir and the directories below it. It reports
// false when dir was not a watched directory.
func (w *FSWatcher) forgetDir(dir string) bool {
	if _, ok := w.dirs[dir]; !ok {
		return false
	}
	prefix := dir + string(filepath.Separator)
	for d := range w.dirs {
		if d == dir || strings.HasPrefix(d, prefix) {
			delete(w.dirs, d)
			// Already gone from fsnotify when the directory was deleted
			_ = w.fsWatcher.Remove(d)
		}
	}
	return true
}

func (w *FSWatcher) emitEvents(events []FileEvent) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.stopped {
		return
	}

	select {
	case w.events <- events:
	default:
		count := w.droppedBatches.Add(1)
		w.logger.Warn("event buffer full, dropping batch",
			slog.Int("batch_size", len(events)),
			slog.Uint64("total_dropped_batches", count))
	}
}

func (w *FSWatcher) emitError(err error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.stopped {
		return
	}

	select {
	case w.errors <- err:
	default:
	}
}

// Stop stops the watcher and closes its channels. Safe to call multiple times.
func (w *FSWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}

	w.stopped = true
	close(w.stopCh)
	w.debouncer.Stop()
	_ = w.fsWatcher.Close()

	close(w.events)
	close(w.errors)
	return nil
}

// Events returns the channel of batched file events.
func (w *FSWatcher) Events() <-chan []FileEvent {
	return w.events
}

// Errors returns non-fatal watcher errors. The watcher keeps running.
func (w *FSWatcher) Errors() <-chan error {
	return w.errors
}

// DroppedBatches returns the number of batches dropped because the event
// buffer was full.
func (w *FSWatcher) DroppedBatches() uint64 {
	return w.droppedBatches.Load()
}

// RootPath returns the absolute root being watched.
func (w *FSWatcher) RootPath() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.rootPath
}

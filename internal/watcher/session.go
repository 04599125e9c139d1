package watcher

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	verrors "github.com/dmwm/wmviews/internal/errors"
	"github.com/dmwm/wmviews/internal/runner"
	"github.com/dmwm/wmviews/internal/source"
	"github.com/dmwm/wmviews/internal/view"
)

// Update is handed to the Watch callback after the initial load and after
// every batch of changes.
type Update struct {
	// View names the view the rows came from.
	View string
	// Rows holds every row currently known, grouped by file in path order.
	Rows []view.Row
	// Files is the number of files contributing rows.
	Files int
	// Changed and Removed are the relative paths touched by this batch.
	// Both are empty for the initial load.
	Changed []string
	Removed []string
	// Stats covers only the documents re-read for this update.
	Stats runner.Stats
}

// Session holds the rows each input file produced so that a change to one
// file only re-maps that file.
type Session struct {
	root    string
	runner  *runner.Runner
	include []string
	exclude []string
	logger  *slog.Logger

	mu    sync.Mutex
	files map[string][]view.Row
}

// NewSession creates a session over root. Call Load before Apply.
func NewSession(root string, r *runner.Runner, include, exclude []string, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		root:    root,
		runner:  r,
		include: include,
		exclude: exclude,
		logger:  logger,
		files:   make(map[string][]view.Row),
	}
}

// Load discovers and maps every matching file under the root, replacing any
// state from an earlier load.
func (s *Session) Load(ctx context.Context) (*Update, error) {
	paths, err := source.Discover(s.root, s.include, s.exclude)
	if err != nil {
		return nil, err
	}

	files := make(map[string][]view.Row, len(paths))
	var stats runner.Stats
	start := time.Now()
	for _, path := range paths {
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return nil, verrors.InternalError("relative path for "+path, err)
		}
		rows, st, err := s.mapFile(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("skipping unreadable file", slog.Any("error", verrors.FormatForLog(err)))
			continue
		}
		files[filepath.ToSlash(rel)] = rows
		addStats(&stats, st)
	}
	stats.Duration = time.Since(start)

	s.mu.Lock()
	s.files = files
	s.mu.Unlock()

	return s.update(nil, nil, stats), nil
}

// Apply re-reads created and modified files and forgets deleted ones. A
// delete of a directory forgets every file below it. A changed file that
// cannot be read keeps its previous rows.
func (s *Session) Apply(ctx context.Context, events []FileEvent) (*Update, error) {
	var changed, removed []string
	var stats runner.Stats
	start := time.Now()

	for _, ev := range events {
		if ev.Operation == OpDelete {
			removed = append(removed, s.forget(ev.Path)...)
			continue
		}

		path := filepath.Join(s.root, filepath.FromSlash(ev.Path))
		rows, st, err := s.mapFile(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if verrors.GetCode(err) == verrors.ErrCodeFileNotFound {
				// Gone again before we got to it
				removed = append(removed, s.forget(ev.Path)...)
				continue
			}
			s.logger.Warn("keeping previous rows for unreadable file",
				slog.String("path", ev.Path),
				slog.Any("error", verrors.FormatForLog(err)))
			continue
		}

		s.mu.Lock()
		s.files[ev.Path] = rows
		s.mu.Unlock()
		changed = append(changed, ev.Path)
		addStats(&stats, st)
	}
	stats.Duration = time.Since(start)

	return s.update(changed, removed, stats), nil
}

// forget drops path and every file below it, returning the dropped paths in
// order.
func (s *Session) forget(path string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var gone []string
	prefix := path + "/"
	for f := range s.files {
		if f == path || strings.HasPrefix(f, prefix) {
			gone = append(gone, f)
			delete(s.files, f)
		}
	}
	slices.Sort(gone)
	return gone
}

func (s *Session) mapFile(ctx context.Context, path string) ([]view.Row, runner.Stats, error) {
	docs, err := source.ReadFile(path)
	if err != nil {
		return nil, runner.Stats{}, err
	}
	res, err := s.runner.Run(ctx, docs)
	if err != nil {
		return nil, runner.Stats{}, err
	}
	return res.Rows, res.Stats, nil
}

// Files returns the relative paths of all loaded files in order.
func (s *Session) Files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedFiles()
}

// Rows returns every row, grouped by file in path order.
func (s *Session) Rows() []view.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows()
}

func (s *Session) update(changed, removed []string, stats runner.Stats) *Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &Update{
		View:    s.runner.View().Name(),
		Rows:    s.rows(),
		Files:   len(s.files),
		Changed: changed,
		Removed: removed,
		Stats:   stats,
	}
}

// rows and sortedFiles expect s.mu to be held.
func (s *Session) rows() []view.Row {
	out := make([]view.Row, 0)
	for _, f := range s.sortedFiles() {
		out = append(out, s.files[f]...)
	}
	return out
}

func (s *Session) sortedFiles() []string {
	files := make([]string, 0, len(s.files))
	for f := range s.files {
		files = append(files, f)
	}
	slices.Sort(files)
	return files
}

// Watch loads the session, calls fn, then starts w on the session root and
// calls fn again after every batch. It returns when ctx is done, when w
// stops, or when fn returns an error.
func (s *Session) Watch(ctx context.Context, w *FSWatcher, fn func(Update) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	startErr := make(chan error, 1)
	go func() {
		startErr <- w.Start(ctx, s.root)
	}()

	initial, err := s.Load(ctx)
	if err != nil {
		return err
	}
	if err := fn(*initial); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-startErr:
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			s.logger.Warn("watcher error", slog.String("error", err.Error()))
		case events, ok := <-w.Events():
			if !ok {
				return nil
			}
			u, err := s.Apply(ctx, events)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			s.logger.Debug("inputs changed",
				slog.Int("changed", len(u.Changed)),
				slog.Int("removed", len(u.Removed)),
				slog.Int("rows", len(u.Rows)))
			if err := fn(*u); err != nil {
				return err
			}
		}
	}
}

func addStats(total *runner.Stats, st runner.Stats) {
	total.Scanned += st.Scanned
	total.Emitted += st.Emitted
	total.Skipped += st.Skipped
	total.Invalid += st.Invalid
	total.CacheHits += st.CacheHits
}

// Package runner feeds documents to a view and collects the emitted rows.
package runner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	verrors "github.com/dmwm/wmviews/internal/errors"
	"github.com/dmwm/wmviews/internal/source"
	"github.com/dmwm/wmviews/internal/view"
)

// DefaultCacheSize is the number of documents whose rows are memoised when
// WithCacheSize is not given.
const DefaultCacheSize = 4096

// Runner applies one view to batches of documents. It is safe for
// concurrent use; the row cache is shared between runs.
type Runner struct {
	view    view.View
	docType string
	workers int
	cache   *lru.Cache[string, []view.Row]
	logger  *slog.Logger
}

// Option configures a Runner.
type Option func(*config)

type config struct {
	workers   int
	cacheSize int
	logger    *slog.Logger
}

// WithWorkers bounds how many documents are mapped at once.
// Values below 1 mean runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(c *config) { c.workers = n }
}

// WithCacheSize sets how many documents' rows are memoised. 0 disables the cache.
func WithCacheSize(n int) Option {
	return func(c *config) { c.cacheSize = n }
}

// WithLogger sets the logger used for per-document failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// New returns a Runner for v.
func New(v view.View, opts ...Option) *Runner {
	cfg := config{cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.workers < 1 {
		cfg.workers = runtime.NumCPU()
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	r := &Runner{
		view:    v,
		workers: cfg.workers,
		logger:  cfg.logger,
	}
	if f, ok := v.(view.TypeFilter); ok {
		r.docType = f.DocType()
	}
	if cfg.cacheSize > 0 {
		r.cache, _ = lru.New[string, []view.Row](cfg.cacheSize)
	}
	return r
}

// View returns the view this runner applies.
func (r *Runner) View() view.View {
	return r.view
}

// Stats summarises one Run.
type Stats struct {
	// Scanned is the number of documents given to Run.
	Scanned int `json:"scanned"`
	// Emitted is the number of rows produced.
	Emitted int `json:"emitted"`
	// Skipped counts documents whose type rules them out without decoding.
	Skipped int `json:"skipped"`
	// Invalid counts documents that failed to decode or whose map call panicked.
	Invalid int `json:"invalid"`
	// CacheHits counts documents answered from the row cache.
	CacheHits int `json:"cache_hits"`

	Duration time.Duration `json:"duration"`
}

// Result holds the rows of one Run in input order.
type Result struct {
	Rows  []view.Row
	Stats Stats
}

type outcome int

const (
	mapped outcome = iota
	skipped
	invalid
	cached
)

// Run maps every document and returns the rows grouped by document, in the
// order the documents were given. Rows of one document keep their emit
// order. A document that cannot be decoded is logged and counted, never
// fatal; only cancellation of ctx makes Run fail.
func (r *Runner) Run(ctx context.Context, docs []source.Raw) (*Result, error) {
	start := time.Now()
	perDoc := make([][]view.Row, len(docs))

	var nSkipped, nInvalid, nCached atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for i, raw := range docs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			rows, out := r.mapOne(raw)
			perDoc[i] = rows

			switch out {
			case skipped:
				nSkipped.Add(1)
			case invalid:
				nInvalid.Add(1)
			case cached:
				nCached.Add(1)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	total := 0
	for _, rows := range perDoc {
		total += len(rows)
	}
	result := &Result{Rows: make([]view.Row, 0, total)}
	for _, rows := range perDoc {
		result.Rows = append(result.Rows, rows...)
	}

	result.Stats = Stats{
		Scanned:   len(docs),
		Emitted:   total,
		Skipped:   int(nSkipped.Load()),
		Invalid:   int(nInvalid.Load()),
		CacheHits: int(nCached.Load()),
		Duration:  time.Since(start),
	}

	r.logger.Debug("view run complete",
		slog.String("view", r.view.Name()),
		slog.Int("scanned", result.Stats.Scanned),
		slog.Int("emitted", result.Stats.Emitted),
		slog.Int("skipped", result.Stats.Skipped),
		slog.Int("invalid", result.Stats.Invalid),
		slog.Int("cache_hits", result.Stats.CacheHits),
		slog.Duration("duration", result.Stats.Duration))

	return result, nil
}

func (r *Runner) mapOne(raw source.Raw) ([]view.Row, outcome) {
	if r.docType != "" {
		if typ, ok := raw.Type(); !ok || typ != r.docType {
			return nil, skipped
		}
	}

	var key string
	if r.cache != nil {
		key = r.cacheKey(raw.Data)
		if rows, ok := r.cache.Get(key); ok {
			return rows, cached
		}
	}

	doc, err := view.Decode(raw.Data)
	if err != nil {
		r.logFailure(verrors.DocumentError(raw.Source, raw.Index, err))
		return nil, invalid
	}

	rows, err := collect(r.view, doc)
	if err != nil {
		r.logFailure(verrors.New(verrors.ErrCodeMapFailed,
			fmt.Sprintf("view %s failed on document %d of %s", r.view.Name(), raw.Index, raw.Source), err).
			WithDetail("source", raw.Source).
			WithDetail("id", raw.ID()))
		return nil, invalid
	}

	if r.cache != nil {
		r.cache.Add(key, rows)
	}
	return rows, mapped
}

// collect runs the view, turning a panic inside Map into an error.
func collect(v view.View, doc *view.Document) (rows []view.Row, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic in map: %v", p)
		}
	}()
	return view.Collect(v, doc), nil
}

// cacheKey hashes the view name and document bytes so the same document
// under two views never shares an entry.
func (r *Runner) cacheKey(data []byte) string {
	h := sha256.New()
	h.Write([]byte(r.view.Name()))
	h.Write([]byte{0})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

func (r *Runner) logFailure(err error) {
	attrs := make([]any, 0, 8)
	for k, v := range verrors.FormatForLog(err) {
		attrs = append(attrs, slog.Any(k, v))
	}
	r.logger.Warn("skipping document", attrs...)
}

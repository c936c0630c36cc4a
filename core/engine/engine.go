// Package engine ties the corpus, the searches, the coordinate mapper and
// the overlay together behind one object.
//
// The engine fetches the flattened corpus once through a CorpusFetcher and
// keeps it until Invalidate is called. A failed fetch leaves the engine
// without a corpus; the next call retries. References are resolved by the
// local coordinate mapper unless a ReferenceResolver is supplied, which is
// how a remote corpus server is used.
package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/FocuswithJustin/guematrix/core/coords"
	"github.com/FocuswithJustin/guematrix/core/corpus"
	gerrors "github.com/FocuswithJustin/guematrix/core/errors"
	"github.com/FocuswithJustin/guematrix/core/ref"
	"github.com/FocuswithJustin/guematrix/core/search"
)

// CorpusFetcher supplies the flattened corpus.
type CorpusFetcher interface {
	FetchFlattenedCorpus(ctx context.Context) (*corpus.Flat, error)
}

// ReferenceResolver turns letter indices into references, in order.
type ReferenceResolver interface {
	ResolveReferences(ctx context.Context, indices []int, withText bool) ([]coords.Reference, error)
}

// Invalidator is implemented by fetchers that memoize.
type Invalidator interface {
	Invalidate()
}

// Engine runs searches against one corpus.
type Engine struct {
	fetcher    CorpusFetcher
	resolver   ReferenceResolver
	texts      coords.VerseTexter
	maxResults int
	verseCache int
	logger     *slog.Logger

	mu     sync.Mutex
	flat   *corpus.Flat
	mapper *coords.Mapper
}

// Option configures an Engine.
type Option func(*Engine)

// WithResolver resolves references through r instead of the local mapper.
func WithResolver(r ReferenceResolver) Option {
	return func(e *Engine) { e.resolver = r }
}

// WithVerseTexts makes the local mapper read verse texts from t.
func WithVerseTexts(t coords.VerseTexter) Option {
	return func(e *Engine) { e.texts = t }
}

// WithMaxResults sets the per-search match cap.
func WithMaxResults(n int) Option {
	return func(e *Engine) { e.maxResults = n }
}

// WithVerseCacheSize sets the size of the verse text cache.
func WithVerseCacheSize(n int) Option {
	return func(e *Engine) { e.verseCache = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an engine over fetcher.
func New(fetcher CorpusFetcher, opts ...Option) *Engine {
	e := &Engine{
		fetcher:    fetcher,
		maxResults: search.DefaultMaxResults,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Corpus returns the flattened corpus, fetching it on first use.
func (e *Engine) Corpus(ctx context.Context) (*corpus.Flat, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.flat != nil {
		return e.flat, nil
	}
	f, err := e.fetcher.FetchFlattenedCorpus(ctx)
	if err != nil {
		e.logger.Error("corpus fetch failed", "error", err)
		return nil, gerrors.Upstream("fetch corpus", err)
	}
	if err := f.Validate(); err != nil {
		return nil, gerrors.Upstream("fetch corpus", err)
	}
	var opts []coords.Option
	if e.texts != nil {
		opts = append(opts, coords.WithVerseTexts(e.texts))
	}
	if e.verseCache > 0 {
		opts = append(opts, coords.WithCacheSize(e.verseCache))
	}
	e.flat = f
	e.mapper = coords.NewMapper(f, opts...)
	e.logger.Info("corpus loaded",
		"letters", f.Len(),
		"words", f.WordCount(),
		"version", f.Version,
	)
	return f, nil
}

// Loaded reports whether the corpus is in memory.
func (e *Engine) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flat != nil
}

// Invalidate drops the corpus so the next call fetches it again.
func (e *Engine) Invalidate() {
	e.mu.Lock()
	e.flat = nil
	e.mapper = nil
	e.mu.Unlock()
	if inv, ok := e.fetcher.(Invalidator); ok {
		inv.Invalidate()
	}
}

// Mapper returns the coordinate mapper of the loaded corpus.
func (e *Engine) Mapper(ctx context.Context) (*coords.Mapper, error) {
	if _, err := e.Corpus(ctx); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mapper, nil
}

// Search normalizes input and runs q.
func (e *Engine) Search(ctx context.Context, input string, q search.Query, opts ...search.Option) (search.Result, error) {
	f, err := e.Corpus(ctx)
	if err != nil {
		return search.Result{}, err
	}
	return e.searchIn(f, input, q, opts...)
}

func (e *Engine) searchIn(f *corpus.Flat, input string, q search.Query, opts ...search.Option) (search.Result, error) {
	opts = append([]search.Option{search.WithMaxResults(e.maxResults)}, opts...)
	res, err := search.Run(f, input, q, opts...)
	if err != nil {
		return search.Result{}, err
	}
	e.logger.Debug("search",
		"mode", res.Mode,
		"pattern", res.Pattern,
		"skip", res.Skip(),
		"matches", len(res.Matches),
		"truncated", res.Truncated(),
	)
	return res, nil
}

// ResolveReferences resolves letter indices in order, keeping duplicates.
func (e *Engine) ResolveReferences(ctx context.Context, indices []int, withText bool) ([]coords.Reference, error) {
	if e.resolver != nil {
		refs, err := e.resolver.ResolveReferences(ctx, indices, withText)
		if err != nil {
			return nil, gerrors.Upstream("resolve references", err)
		}
		return refs, nil
	}
	m, err := e.Mapper(ctx)
	if err != nil {
		return nil, err
	}
	return m.ResolveReferences(ctx, indices, withText)
}

// Bounds resolves a reference range such as "Gen.1-3" to letter bounds.
func (e *Engine) Bounds(ctx context.Context, reference string) (search.Bounds, error) {
	r, err := ref.Parse(reference)
	if err != nil {
		return search.Bounds{}, err
	}
	m, err := e.Mapper(ctx)
	if err != nil {
		return search.Bounds{}, err
	}
	lo, hi, err := m.LetterRange(r)
	if err != nil {
		return search.Bounds{}, err
	}
	return search.Bounds{Lo: lo, Hi: hi}, nil
}

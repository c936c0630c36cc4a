package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/FocuswithJustin/guematrix/core/corpus"
	gerrors "github.com/FocuswithJustin/guematrix/core/errors"
)

// ParseFiles reads several OSIS files on a pool of workers and merges them
// into one corpus. Workers below one default to half the CPUs. Every file is
// attempted; the errors of all failed files are returned together.
func ParseFiles(ctx context.Context, paths []string, workers int, opts Options) (*corpus.Corpus, error) {
	if len(paths) == 0 {
		return nil, gerrors.NewValidation("paths", "no input files")
	}
	if workers < 1 {
		workers = max(runtime.NumCPU()/2, 1)
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, gerrors.Wrap(err, "create worker pool")
	}
	defer pool.Release()

	parts := make([]*corpus.Corpus, len(paths))
	errs := make([]error, len(paths))
	var wg sync.WaitGroup
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			continue
		}
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return
			}
			parts[i], errs[i] = ParseFile(path, opts)
		}); err != nil {
			wg.Done()
			errs[i] = gerrors.Wrapf(err, "schedule %s", filepath.Base(path))
		}
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return Merge(parts...)
}

// Merge combines corpora. A book appearing in two parts is an error.
func Merge(parts ...*corpus.Corpus) (*corpus.Corpus, error) {
	out := &corpus.Corpus{}
	seen := make(map[string]bool)
	for _, p := range parts {
		if p == nil {
			continue
		}
		for _, b := range p.Books {
			if seen[b.Code] {
				return nil, gerrors.NewValidation("book", fmt.Sprintf("%s appears in more than one input", b.Code))
			}
			seen[b.Code] = true
			out.Books = append(out.Books, b)
		}
	}
	out.Sort()
	return out, nil
}

// Stats counts the books, chapters, verses and words of c.
func Stats(c *corpus.Corpus) corpus.Stats {
	var st corpus.Stats
	for _, b := range c.Books {
		st.Books++
		for _, ch := range b.Chapters {
			st.Chapters++
			for _, v := range ch.Verses {
				st.Verses++
				st.Words += len(v.Words)
			}
		}
	}
	return st
}

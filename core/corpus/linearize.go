package corpus

import (
	"context"
	"sync"

	"github.com/FocuswithJustin/guematrix/core/hebrew"
)

// Linearize builds the flattened form of src. It either returns a complete
// Flat or an error; partial results are never returned.
func Linearize(ctx context.Context, src Source) (*Flat, error) {
	f := &Flat{}
	err := src.Words(ctx, func(rec WordRecord) error {
		plain := rec.Plain
		if plain == "" {
			plain = rec.Text
		}
		letters := []rune(hebrew.Letters(plain))
		if len(letters) == 0 {
			return nil
		}
		start := len(f.Letters)
		f.Letters = append(f.Letters, letters...)
		f.WordStart = append(f.WordStart, start)
		f.WordEnd = append(f.WordEnd, len(f.Letters)-1)
		f.Words = append(f.Words, WordMeta{
			VerseID:   rec.VerseID,
			Book:      rec.BookCode,
			BookName:  rec.BookName,
			BookOrder: rec.BookOrder,
			Chapter:   rec.Chapter,
			Verse:     rec.Verse,
			WordIndex: rec.WordIndex,
			Text:      rec.Text,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	f.Version = ComputeVersion(f)
	return f, nil
}

// Cache linearizes a Source at most once and keeps the result until
// Invalidate is called. A failed build is not cached.
type Cache struct {
	src Source

	mu     sync.Mutex
	flat   *Flat
	builds int
}

// NewCache creates a cache over src.
func NewCache(src Source) *Cache {
	return &Cache{src: src}
}

// FetchFlattenedCorpus returns the memoized flat corpus, building it on first use.
func (c *Cache) FetchFlattenedCorpus(ctx context.Context) (*Flat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.flat != nil {
		return c.flat, nil
	}
	f, err := Linearize(ctx, c.src)
	if err != nil {
		return nil, err
	}
	c.flat = f
	c.builds++
	return f, nil
}

// Cached returns the memoized corpus without building it.
func (c *Cache) Cached() (*Flat, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flat, c.flat != nil
}

// Invalidate drops the memoized corpus so the next fetch rebuilds it.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.flat = nil
	c.mu.Unlock()
}

// Builds returns how many times the corpus has been linearized.
func (c *Cache) Builds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.builds
}

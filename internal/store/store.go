// Package store defines the persistent corpus store and opens one of its
// implementations by driver name.
package store

import (
	"context"
	"fmt"

	"github.com/FocuswithJustin/guematrix/core/corpus"
	gerrors "github.com/FocuswithJustin/guematrix/core/errors"
	"github.com/FocuswithJustin/guematrix/internal/store/pgstore"
	"github.com/FocuswithJustin/guematrix/internal/store/sqlitestore"
)

// Store keeps the corpus as books, chapters, verses and words.
//
// Words streams the corpus in canonical order (book order, chapter, verse,
// word index) and VerseText joins a verse's pointed words with single spaces.
type Store interface {
	corpus.Source
	VerseText(ctx context.Context, verseID int64) (string, error)
	Migrate(ctx context.Context) error
	Import(ctx context.Context, c *corpus.Corpus) (corpus.Stats, error)
	Reset(ctx context.Context) error
	Stats(ctx context.Context) (corpus.Stats, error)
	Verse(ctx context.Context, book string, chapter, verse int) ([]corpus.VerseWord, error)
	Close() error
}

var (
	_ Store = (*sqlitestore.Store)(nil)
	_ Store = (*pgstore.Store)(nil)
)

// Open opens the store for driver ("sqlite" or "postgres") and migrates its
// schema.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	var (
		s   Store
		err error
	)
	switch driver {
	case "sqlite":
		s, err = sqlitestore.Open(dsn)
	case "postgres":
		s, err = pgstore.Open(ctx, dsn)
	default:
		return nil, gerrors.NewUnsupported("store driver", fmt.Sprintf("%q", driver))
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

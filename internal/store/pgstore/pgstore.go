// Package pgstore keeps the corpus in PostgreSQL using the books, chapters,
// verses and words tables of the corpus API database.
package pgstore

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/FocuswithJustin/guematrix/core/corpus"
	gerrors "github.com/FocuswithJustin/guematrix/core/errors"
	"github.com/FocuswithJustin/guematrix/core/hebrew"
)

const schema = `
CREATE TABLE IF NOT EXISTS books (
	id          SERIAL PRIMARY KEY,
	code        TEXT NOT NULL UNIQUE,
	name_he     TEXT NOT NULL DEFAULT '',
	order_index INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS chapters (
	id      SERIAL PRIMARY KEY,
	book_id INTEGER NOT NULL REFERENCES books(id) ON DELETE CASCADE,
	number  INTEGER NOT NULL,
	UNIQUE (book_id, number)
);
CREATE TABLE IF NOT EXISTS verses (
	id         BIGSERIAL PRIMARY KEY,
	chapter_id INTEGER NOT NULL REFERENCES chapters(id) ON DELETE CASCADE,
	verse_num  INTEGER NOT NULL,
	UNIQUE (chapter_id, verse_num)
);
CREATE TABLE IF NOT EXISTS words (
	id                BIGSERIAL PRIMARY KEY,
	verse_id          BIGINT NOT NULL REFERENCES verses(id) ON DELETE CASCADE,
	word_index        INTEGER NOT NULL,
	text_he           TEXT NOT NULL,
	text_he_no_niqqud TEXT NOT NULL,
	UNIQUE (verse_id, word_index)
);
CREATE INDEX IF NOT EXISTS idx_words_plain ON words(text_he_no_niqqud);
`

const wordsQuery = `
SELECT b.order_index, b.code, b.name_he, c.number, v.verse_num, v.id,
       w.word_index, w.text_he, w.text_he_no_niqqud
FROM words w
JOIN verses   v ON v.id = w.verse_id
JOIN chapters c ON c.id = v.chapter_id
JOIN books    b ON b.id = c.book_id
ORDER BY b.order_index, c.number, v.verse_num, w.word_index`

var wordColumns = []string{"verse_id", "word_index", "text_he", "text_he_no_niqqud"}

// Store is a PostgreSQL corpus store.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to the database at dsn.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, gerrors.Wrap(err, "connect to postgres")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, gerrors.Wrap(err, "ping postgres")
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Migrate creates the schema if needed.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return gerrors.Wrap(err, "migrate corpus schema")
	}
	return nil
}

// Reset deletes every book and, through the cascades, all other rows.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM books`); err != nil {
		return gerrors.Wrap(err, "reset corpus")
	}
	return nil
}

// Import writes c in one transaction. Books already present are replaced.
// Words are loaded with COPY, one batch per verse.
func (s *Store) Import(ctx context.Context, c *corpus.Corpus) (corpus.Stats, error) {
	var st corpus.Stats
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return st, gerrors.Wrap(err, "begin import")
	}
	defer tx.Rollback(ctx)

	for _, b := range c.Books {
		if _, err := tx.Exec(ctx, `DELETE FROM books WHERE code = $1`, b.Code); err != nil {
			return st, gerrors.Wrapf(err, "replace book %s", b.Code)
		}
		var bookID int
		if err := tx.QueryRow(ctx,
			`INSERT INTO books (code, name_he, order_index) VALUES ($1, $2, $3) RETURNING id`,
			b.Code, b.Name, b.Order).Scan(&bookID); err != nil {
			return st, gerrors.Wrapf(err, "insert book %s", b.Code)
		}
		st.Books++
		for _, ch := range b.Chapters {
			var chapterID int
			if err := tx.QueryRow(ctx,
				`INSERT INTO chapters (book_id, number) VALUES ($1, $2) RETURNING id`,
				bookID, ch.Number).Scan(&chapterID); err != nil {
				return st, gerrors.Wrapf(err, "insert %s.%d", b.Code, ch.Number)
			}
			st.Chapters++
			var rows [][]any
			for _, v := range ch.Verses {
				var verseID int64
				if err := tx.QueryRow(ctx,
					`INSERT INTO verses (chapter_id, verse_num) VALUES ($1, $2) RETURNING id`,
					chapterID, v.Number).Scan(&verseID); err != nil {
					return st, gerrors.Wrapf(err, "insert %s.%d.%d", b.Code, ch.Number, v.Number)
				}
				st.Verses++
				for _, w := range v.Words {
					plain := w.Plain
					if plain == "" {
						plain = hebrew.StripMarks(w.Text)
					}
					rows = append(rows, []any{verseID, w.Index, w.Text, plain})
					st.Letters += len([]rune(hebrew.Letters(plain)))
				}
			}
			n, err := tx.CopyFrom(ctx, pgx.Identifier{"words"}, wordColumns, pgx.CopyFromRows(rows))
			if err != nil {
				return st, gerrors.Wrapf(err, "copy words of %s.%d", b.Code, ch.Number)
			}
			st.Words += int(n)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return corpus.Stats{}, gerrors.Wrap(err, "commit import")
	}
	return st, nil
}

// Words implements corpus.Source.
func (s *Store) Words(ctx context.Context, fn func(corpus.WordRecord) error) error {
	rows, err := s.pool.Query(ctx, wordsQuery)
	if err != nil {
		return gerrors.Wrap(err, "query words")
	}
	defer rows.Close()
	for rows.Next() {
		var rec corpus.WordRecord
		if err := rows.Scan(&rec.BookOrder, &rec.BookCode, &rec.BookName, &rec.Chapter, &rec.Verse,
			&rec.VerseID, &rec.WordIndex, &rec.Text, &rec.Plain); err != nil {
			return gerrors.Wrap(err, "scan word")
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return rows.Err()
}

// VerseText returns the pointed words of a verse joined by single spaces.
func (s *Store) VerseText(ctx context.Context, verseID int64) (string, error) {
	var text *string
	err := s.pool.QueryRow(ctx,
		`SELECT string_agg(text_he, ' ' ORDER BY word_index) FROM words WHERE verse_id = $1`,
		verseID).Scan(&text)
	if err != nil {
		return "", gerrors.Wrap(err, "query verse text")
	}
	if text == nil {
		return "", gerrors.NewNotFound("verse", strconv.FormatInt(verseID, 10))
	}
	return *text, nil
}

// Stats counts books, chapters, verses and words.
func (s *Store) Stats(ctx context.Context) (corpus.Stats, error) {
	var st corpus.Stats
	err := s.pool.QueryRow(ctx, `
SELECT (SELECT COUNT(*) FROM books),
       (SELECT COUNT(*) FROM chapters),
       (SELECT COUNT(*) FROM verses),
       (SELECT COUNT(*) FROM words)`).Scan(&st.Books, &st.Chapters, &st.Verses, &st.Words)
	if err != nil {
		return st, gerrors.Wrap(err, "count corpus")
	}
	return st, nil
}

// Verse returns the words of one verse in order. The book code is matched
// without regard to case.
func (s *Store) Verse(ctx context.Context, book string, chapter, verse int) ([]corpus.VerseWord, error) {
	rows, err := s.pool.Query(ctx, `
SELECT w.word_index, w.text_he, w.text_he_no_niqqud
FROM words w
JOIN verses   v ON v.id = w.verse_id
JOIN chapters c ON c.id = v.chapter_id
JOIN books    b ON b.id = c.book_id
WHERE lower(b.code) = lower($1) AND c.number = $2 AND v.verse_num = $3
ORDER BY w.word_index`, book, chapter, verse)
	if err != nil {
		return nil, gerrors.Wrap(err, "query verse")
	}
	words, err := pgx.CollectRows(rows, pgx.RowToStructByPos[corpus.VerseWord])
	if err != nil {
		return nil, gerrors.Wrap(err, "scan verse")
	}
	if len(words) == 0 {
		return nil, gerrors.NewNotFound("verse", book+"."+strconv.Itoa(chapter)+"."+strconv.Itoa(verse))
	}
	return words, nil
}

// Package sqlitestore keeps the corpus in a SQLite database.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/guematrix/core/corpus"
	gerrors "github.com/FocuswithJustin/guematrix/core/errors"
	"github.com/FocuswithJustin/guematrix/core/hebrew"
	"github.com/FocuswithJustin/guematrix/core/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS books (
	id          INTEGER PRIMARY KEY,
	code        TEXT NOT NULL UNIQUE,
	name_he     TEXT NOT NULL DEFAULT '',
	order_index INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS chapters (
	id      INTEGER PRIMARY KEY,
	book_id INTEGER NOT NULL REFERENCES books(id) ON DELETE CASCADE,
	number  INTEGER NOT NULL,
	UNIQUE (book_id, number)
);
CREATE TABLE IF NOT EXISTS verses (
	id         INTEGER PRIMARY KEY,
	chapter_id INTEGER NOT NULL REFERENCES chapters(id) ON DELETE CASCADE,
	verse_num  INTEGER NOT NULL,
	UNIQUE (chapter_id, verse_num)
);
CREATE TABLE IF NOT EXISTS words (
	id                INTEGER PRIMARY KEY,
	verse_id          INTEGER NOT NULL REFERENCES verses(id) ON DELETE CASCADE,
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

// Store is a SQLite corpus store.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, gerrors.NewIO("open", path, err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB { return s.db }

// Migrate creates the schema if needed.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return gerrors.Wrap(err, "migrate corpus schema")
	}
	return nil
}

// Reset deletes every book and, through the cascades, all other rows.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM books`); err != nil {
		return gerrors.Wrap(err, "reset corpus")
	}
	return nil
}

// Import writes c in one transaction. Books already present are replaced.
func (s *Store) Import(ctx context.Context, c *corpus.Corpus) (corpus.Stats, error) {
	var st corpus.Stats
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return st, gerrors.Wrap(err, "begin import")
	}
	defer tx.Rollback()

	insChapter, err := tx.PrepareContext(ctx, `INSERT INTO chapters (book_id, number) VALUES (?, ?)`)
	if err != nil {
		return st, err
	}
	defer insChapter.Close()
	insVerse, err := tx.PrepareContext(ctx, `INSERT INTO verses (chapter_id, verse_num) VALUES (?, ?)`)
	if err != nil {
		return st, err
	}
	defer insVerse.Close()
	insWord, err := tx.PrepareContext(ctx, `INSERT INTO words (verse_id, word_index, text_he, text_he_no_niqqud) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return st, err
	}
	defer insWord.Close()

	for _, b := range c.Books {
		if _, err := tx.ExecContext(ctx, `DELETE FROM books WHERE code = ?`, b.Code); err != nil {
			return st, gerrors.Wrapf(err, "replace book %s", b.Code)
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO books (code, name_he, order_index) VALUES (?, ?, ?)`, b.Code, b.Name, b.Order)
		if err != nil {
			return st, gerrors.Wrapf(err, "insert book %s", b.Code)
		}
		bookID, err := res.LastInsertId()
		if err != nil {
			return st, err
		}
		st.Books++
		for _, ch := range b.Chapters {
			res, err := insChapter.ExecContext(ctx, bookID, ch.Number)
			if err != nil {
				return st, gerrors.Wrapf(err, "insert %s.%d", b.Code, ch.Number)
			}
			chapterID, err := res.LastInsertId()
			if err != nil {
				return st, err
			}
			st.Chapters++
			for _, v := range ch.Verses {
				res, err := insVerse.ExecContext(ctx, chapterID, v.Number)
				if err != nil {
					return st, gerrors.Wrapf(err, "insert %s.%d.%d", b.Code, ch.Number, v.Number)
				}
				verseID, err := res.LastInsertId()
				if err != nil {
					return st, err
				}
				st.Verses++
				for _, w := range v.Words {
					plain := w.Plain
					if plain == "" {
						plain = hebrew.StripMarks(w.Text)
					}
					if _, err := insWord.ExecContext(ctx, verseID, w.Index, w.Text, plain); err != nil {
						return st, gerrors.Wrapf(err, "insert word %d of %s.%d.%d", w.Index, b.Code, ch.Number, v.Number)
					}
					st.Words++
					st.Letters += len([]rune(hebrew.Letters(plain)))
				}
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return corpus.Stats{}, gerrors.Wrap(err, "commit import")
	}
	return st, nil
}

// Words implements corpus.Source.
func (s *Store) Words(ctx context.Context, fn func(corpus.WordRecord) error) error {
	rows, err := s.db.QueryContext(ctx, wordsQuery)
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
	rows, err := s.db.QueryContext(ctx, `SELECT text_he FROM words WHERE verse_id = ? ORDER BY word_index`, verseID)
	if err != nil {
		return "", gerrors.Wrap(err, "query verse text")
	}
	defer rows.Close()
	var words []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return "", err
		}
		words = append(words, w)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	if len(words) == 0 {
		return "", gerrors.NewNotFound("verse", strconv.FormatInt(verseID, 10))
	}
	return strings.Join(words, " "), nil
}

// Stats counts books, chapters, verses and words.
func (s *Store) Stats(ctx context.Context) (corpus.Stats, error) {
	var st corpus.Stats
	err := s.db.QueryRowContext(ctx, `
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
	rows, err := s.db.QueryContext(ctx, `
SELECT w.word_index, w.text_he, w.text_he_no_niqqud
FROM words w
JOIN verses   v ON v.id = w.verse_id
JOIN chapters c ON c.id = v.chapter_id
JOIN books    b ON b.id = c.book_id
WHERE b.code = ? COLLATE NOCASE AND c.number = ? AND v.verse_num = ?
ORDER BY w.word_index`, book, chapter, verse)
	if err != nil {
		return nil, gerrors.Wrap(err, "query verse")
	}
	defer rows.Close()
	var words []corpus.VerseWord
	for rows.Next() {
		var w corpus.VerseWord
		if err := rows.Scan(&w.WordIndex, &w.Text, &w.Plain); err != nil {
			return nil, err
		}
		words = append(words, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(words) == 0 {
		return nil, gerrors.NewNotFound("verse", book+"."+strconv.Itoa(chapter)+"."+strconv.Itoa(verse))
	}
	return words, nil
}

// IsEmpty reports whether no words have been imported.
func (s *Store) IsEmpty(ctx context.Context) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM words LIMIT 1`).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	return false, err
}

// Package corpus models the ordered Hebrew text (books, chapters, verses,
// words) and linearizes it into the flattened letter sequence every search
// runs against.
//
// # Flattened form
//
// Linearization walks the words in canonical order (book order, chapter,
// verse, word index), keeps each word's Hebrew base letters and appends them
// to one contiguous sequence. For every kept word it records the index of its
// first and last letter. Words with no letters are skipped and get no
// boundary entry.
//
//	words:      "בְּרֵאשִׁ֖ית"  "בָּרָ֣א"
//	letters:    ב ר א ש י ת ב ר א
//	wordStart:  0           6
//	wordEnd:    5           8
//
// # Sources
//
// A Source streams WordRecords in canonical order. The SQLite and PostgreSQL
// stores implement it, and so does an in-memory Corpus.
package corpus

import (
	"context"
	"sort"
)

// WordRecord is one word together with its location.
type WordRecord struct {
	VerseID   int64  `json:"verseId"`
	BookCode  string `json:"book"`
	BookName  string `json:"bookName,omitempty"`
	BookOrder int    `json:"bookOrder"`
	Chapter   int    `json:"chapter"`
	Verse     int    `json:"verse"`
	WordIndex int    `json:"wordIndex"`
	// Text is the original (pointed) word.
	Text string `json:"text"`
	// Plain is the word without marks. Linearization keeps only its letters.
	Plain string `json:"plain"`
}

// Source streams words in canonical order.
type Source interface {
	Words(ctx context.Context, fn func(WordRecord) error) error
}

// Corpus is an in-memory tree of books.
type Corpus struct {
	Books []*Book `json:"books"`
}

// Book is a single book of the corpus.
type Book struct {
	Code     string     `json:"code"`
	Name     string     `json:"name"`
	Order    int        `json:"order"`
	Chapters []*Chapter `json:"chapters"`
}

// Chapter holds the verses of one chapter.
type Chapter struct {
	Number int      `json:"number"`
	Verses []*Verse `json:"verses"`
}

// Verse holds its words in reading order.
type Verse struct {
	ID     int64   `json:"id,omitempty"`
	Number int     `json:"number"`
	Words  []*Word `json:"words"`
}

// Word is a single word of a verse.
type Word struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
	Plain string `json:"plain"`
}

// Sort puts books, chapters, verses and words into canonical order.
func (c *Corpus) Sort() {
	sort.SliceStable(c.Books, func(i, j int) bool { return c.Books[i].Order < c.Books[j].Order })
	for _, b := range c.Books {
		sort.SliceStable(b.Chapters, func(i, j int) bool { return b.Chapters[i].Number < b.Chapters[j].Number })
		for _, ch := range b.Chapters {
			sort.SliceStable(ch.Verses, func(i, j int) bool { return ch.Verses[i].Number < ch.Verses[j].Number })
			for _, v := range ch.Verses {
				sort.SliceStable(v.Words, func(i, j int) bool { return v.Words[i].Index < v.Words[j].Index })
			}
		}
	}
}

// Words implements Source. Verses without an ID get a sequential one.
func (c *Corpus) Words(ctx context.Context, fn func(WordRecord) error) error {
	var nextID int64
	for _, b := range c.Books {
		for _, ch := range b.Chapters {
			for _, v := range ch.Verses {
				if err := ctx.Err(); err != nil {
					return err
				}
				nextID++
				id := v.ID
				if id == 0 {
					id = nextID
				}
				for _, w := range v.Words {
					rec := WordRecord{
						VerseID:   id,
						BookCode:  b.Code,
						BookName:  b.Name,
						BookOrder: b.Order,
						Chapter:   ch.Number,
						Verse:     v.Number,
						WordIndex: w.Index,
						Text:      w.Text,
						Plain:     w.Plain,
					}
					if err := fn(rec); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

// Stats summarizes the size of a corpus.
type Stats struct {
	Books    int `json:"books"`
	Chapters int `json:"chapters"`
	Verses   int `json:"verses"`
	Words    int `json:"words"`
	Letters  int `json:"letters"`
}

// VerseWord is one word of a verse as stored.
type VerseWord struct {
	WordIndex int    `json:"wordIndex"`
	Text      string `json:"textHe"`
	Plain     string `json:"textHeNoNiqqud"`
}

// Package coords maps flattened letter indices back to words and verses.
//
// Word lookup is a binary search over the word start array: the owning word
// is the one with the greatest start not after the letter. Verse texts are
// assembled from the original pointed words, joined by single spaces in word
// order, and cached per verse.
package coords

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/guematrix/core/cache"
	"github.com/FocuswithJustin/guematrix/core/corpus"
	gerrors "github.com/FocuswithJustin/guematrix/core/errors"
	"github.com/FocuswithJustin/guematrix/core/ref"
)

// MaxBatch is the largest number of indices resolved by one batch call
// through the HTTP surface.
const MaxBatch = 300

// Reference locates one letter in the corpus.
type Reference struct {
	Index     int    `json:"index"`
	Found     bool   `json:"found"`
	Raw       string `json:"raw,omitempty"`
	Word      int    `json:"word,omitempty"`
	VerseID   int64  `json:"verseId,omitempty"`
	Book      string `json:"book,omitempty"`
	BookName  string `json:"bookName,omitempty"`
	Chapter   int    `json:"chapter,omitempty"`
	Verse     int    `json:"verse,omitempty"`
	WordIndex int    `json:"wordIndex,omitempty"`
	WordText  string `json:"wordText,omitempty"`
	Text      string `json:"textHe,omitempty"`
}

// Label returns "Book chapter:verse".
func (r Reference) Label() string {
	if !r.Found {
		return ""
	}
	name := r.BookName
	if name == "" {
		name = r.Book
	}
	return name + " " + strconv.Itoa(r.Chapter) + ":" + strconv.Itoa(r.Verse)
}

// VerseTexter returns the full text of a verse.
type VerseTexter interface {
	VerseText(ctx context.Context, verseID int64) (string, error)
}

type span struct{ first, last int }

// Mapper answers coordinate questions about one flattened corpus.
type Mapper struct {
	flat      *corpus.Flat
	texts     VerseTexter
	verseText *cache.LRU[int64, string]
	verses    map[int64]span
	bookOrder map[string]int
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithVerseTexts fetches verse texts from t instead of assembling them from
// the corpus word metadata.
func WithVerseTexts(t VerseTexter) Option {
	return func(m *Mapper) { m.texts = t }
}

// WithCacheSize sets the number of cached verse texts.
func WithCacheSize(n int) Option {
	return func(m *Mapper) { m.verseText = cache.New[int64, string](cache.Config{MaxSize: n}) }
}

// NewMapper indexes f for lookups.
func NewMapper(f *corpus.Flat, opts ...Option) *Mapper {
	m := &Mapper{
		flat:      f,
		verseText: cache.New[int64, string](cache.DefaultConfig()),
		verses:    make(map[int64]span),
		bookOrder: make(map[string]int),
	}
	for w, meta := range f.Words {
		if s, ok := m.verses[meta.VerseID]; ok {
			s.last = w
			m.verses[meta.VerseID] = s
		} else {
			m.verses[meta.VerseID] = span{first: w, last: w}
		}
		key := strings.ToLower(meta.Book)
		if _, ok := m.bookOrder[key]; !ok {
			m.bookOrder[key] = meta.BookOrder
		}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Flat returns the indexed corpus.
func (m *Mapper) Flat() *corpus.Flat { return m.flat }

// WordIndexForLetter returns the flattened word containing letter i.
func (m *Mapper) WordIndexForLetter(i int) (int, error) {
	if i < 0 || i >= m.flat.Len() {
		return -1, gerrors.NewSearchf(gerrors.KindIndexOutOfRange, "letter %d not in [0,%d)", i, m.flat.Len())
	}
	if !m.flat.HasBoundaries() {
		return -1, gerrors.NewSearch(gerrors.KindMissingBoundaryData, "corpus has no word boundaries")
	}
	starts := m.flat.WordStart
	w := sort.Search(len(starts), func(k int) bool { return starts[k] > i }) - 1
	if w < 0 || i > m.flat.WordEnd[w] {
		return -1, gerrors.NewNotFound("word for letter", strconv.Itoa(i))
	}
	return w, nil
}

// WordSpan returns the first and last letter of word w.
func (m *Mapper) WordSpan(w int) (int, int, error) {
	if w < 0 || w >= m.flat.WordCount() {
		return 0, 0, gerrors.NewSearchf(gerrors.KindIndexOutOfRange, "word %d not in [0,%d)", w, m.flat.WordCount())
	}
	return m.flat.WordStart[w], m.flat.WordEnd[w], nil
}

// ReferenceForLetter resolves one letter index.
func (m *Mapper) ReferenceForLetter(ctx context.Context, i int, withText bool) (Reference, error) {
	w, err := m.WordIndexForLetter(i)
	if err != nil {
		return Reference{}, err
	}
	if !m.flat.HasMeta() {
		return Reference{}, gerrors.NewNotFound("location for letter", strconv.Itoa(i))
	}
	meta := m.flat.Words[w]
	r := Reference{
		Index:     i,
		Found:     true,
		Word:      w,
		VerseID:   meta.VerseID,
		Book:      meta.Book,
		BookName:  meta.BookName,
		Chapter:   meta.Chapter,
		Verse:     meta.Verse,
		WordIndex: meta.WordIndex,
		WordText:  meta.Text,
	}
	if withText {
		text, err := m.VerseText(ctx, meta.VerseID)
		if err != nil {
			return Reference{}, err
		}
		r.Text = text
	}
	return r, nil
}

// ResolveReferences resolves indices in order, keeping duplicates.
// Indices that cannot be located come back with Found false.
func (m *Mapper) ResolveReferences(ctx context.Context, indices []int, withText bool) ([]Reference, error) {
	out := make([]Reference, 0, len(indices))
	for _, i := range indices {
		r, err := m.ReferenceForLetter(ctx, i, withText)
		if err != nil {
			if gerrors.Is(err, gerrors.ErrUpstreamFetch) {
				return nil, err
			}
			out = append(out, Reference{Index: i, Found: false})
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// VerseText returns the space-joined original words of a verse.
func (m *Mapper) VerseText(ctx context.Context, verseID int64) (string, error) {
	return m.verseText.GetOrLoad(ctx, verseID, func(ctx context.Context) (string, error) {
		if m.texts != nil {
			text, err := m.texts.VerseText(ctx, verseID)
			if err != nil {
				return "", gerrors.Upstream("verse text", err)
			}
			return text, nil
		}
		s, ok := m.verses[verseID]
		if !ok {
			return "", gerrors.NewNotFound("verse", strconv.FormatInt(verseID, 10))
		}
		words := make([]string, 0, s.last-s.first+1)
		for w := s.first; w <= s.last; w++ {
			words = append(words, m.flat.Words[w].Text)
		}
		return strings.Join(words, " "), nil
	})
}

// CacheStats reports the verse text cache.
func (m *Mapper) CacheStats() cache.Stats { return m.verseText.Stats() }

type key struct{ book, chapter, verse int }

func (a key) less(b key) bool {
	if a.book != b.book {
		return a.book < b.book
	}
	if a.chapter != b.chapter {
		return a.chapter < b.chapter
	}
	return a.verse < b.verse
}

func (m *Mapper) wordKey(w int) key {
	meta := m.flat.Words[w]
	return key{meta.BookOrder, meta.Chapter, meta.Verse}
}

// LetterRange returns the inclusive letter span covered by r.
func (m *Mapper) LetterRange(r ref.Range) (int, int, error) {
	if !m.flat.HasMeta() {
		return 0, 0, gerrors.NewSearch(gerrors.KindMissingBoundaryData, "corpus has no word locations")
	}
	startBook, ok := m.bookOrder[strings.ToLower(r.Start.Book)]
	if !ok {
		return 0, 0, gerrors.NewNotFound("book", r.Start.Book)
	}
	endBook, ok := m.bookOrder[strings.ToLower(r.End.Book)]
	if !ok {
		return 0, 0, gerrors.NewNotFound("book", r.End.Book)
	}

	lo := key{startBook, r.Start.Chapter, r.Start.Verse}
	hi := key{endBook, r.End.Chapter, r.End.Verse}
	if hi.chapter == 0 {
		hi.chapter = math.MaxInt
	}
	if hi.verse == 0 {
		hi.verse = math.MaxInt
	}

	n := m.flat.WordCount()
	first := sort.Search(n, func(w int) bool { return !m.wordKey(w).less(lo) })
	last := sort.Search(n, func(w int) bool { return hi.less(m.wordKey(w)) }) - 1
	if first >= n || last < 0 || first > last {
		return 0, 0, gerrors.NewNotFound("reference", r.String())
	}
	return m.flat.WordStart[first], m.flat.WordEnd[last], nil
}

// Excerpt returns up to radius letters on each side of center.
func (m *Mapper) Excerpt(center, radius int) (string, int, error) {
	if center < 0 || center >= m.flat.Len() {
		return "", 0, gerrors.NewSearchf(gerrors.KindIndexOutOfRange, "letter %d not in [0,%d)", center, m.flat.Len())
	}
	from := max(0, center-radius)
	to := min(m.flat.Len(), center+radius+1)
	return string(m.flat.Letters[from:to]), from, nil
}

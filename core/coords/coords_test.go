package coords_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FocuswithJustin/guematrix/core/coords"
	"github.com/FocuswithJustin/guematrix/core/corpus"
	"github.com/FocuswithJustin/guematrix/core/corpus/corpustest"
	gerrors "github.com/FocuswithJustin/guematrix/core/errors"
	"github.com/FocuswithJustin/guematrix/core/ref"
)

func genesisMapper(t *testing.T, opts ...coords.Option) *coords.Mapper {
	t.Helper()
	f, err := corpus.Linearize(context.Background(), corpustest.Genesis())
	require.NoError(t, err)
	return coords.NewMapper(f, opts...)
}

func TestWordIndexForLetter(t *testing.T) {
	m := genesisMapper(t)

	tests := []struct {
		letter int
		word   int
	}{
		{0, 0}, {5, 0}, {6, 1}, {8, 1}, {9, 2}, {28, 6}, {29, 7},
	}
	for _, tt := range tests {
		w, err := m.WordIndexForLetter(tt.letter)
		require.NoError(t, err)
		assert.Equal(t, tt.word, w, "letter %d", tt.letter)
	}

	_, err := m.WordIndexForLetter(-1)
	assert.ErrorIs(t, err, gerrors.ErrIndexOutOfRange)
	_, err = m.WordIndexForLetter(m.Flat().Len())
	assert.ErrorIs(t, err, gerrors.ErrIndexOutOfRange)
}

func TestWordIndexForEveryLetter(t *testing.T) {
	m := genesisMapper(t)
	f := m.Flat()
	for i := 0; i < f.Len(); i++ {
		w, err := m.WordIndexForLetter(i)
		require.NoError(t, err)
		assert.LessOrEqual(t, f.WordStart[w], i)
		assert.GreaterOrEqual(t, f.WordEnd[w], i)
	}
}

func TestWordIndexWithoutBoundaries(t *testing.T) {
	m := coords.NewMapper(corpustest.Letters("אבג"))
	_, err := m.WordIndexForLetter(1)
	assert.ErrorIs(t, err, gerrors.ErrMissingBoundaryData)
}

func TestWordSpan(t *testing.T) {
	m := genesisMapper(t)
	s, e, err := m.WordSpan(2)
	require.NoError(t, err)
	assert.Equal(t, 9, s)
	assert.Equal(t, 13, e)

	_, _, err = m.WordSpan(27)
	assert.ErrorIs(t, err, gerrors.ErrIndexOutOfRange)
}

func TestReferenceForLetter(t *testing.T) {
	m := genesisMapper(t)

	r, err := m.ReferenceForLetter(context.Background(), 30, true)
	require.NoError(t, err)
	assert.True(t, r.Found)
	assert.Equal(t, "Gen", r.Book)
	assert.Equal(t, 1, r.Chapter)
	assert.Equal(t, 2, r.Verse)
	assert.Equal(t, 1, r.WordIndex)
	assert.Equal(t, "וְהָאָ֗רֶץ", r.WordText)
	assert.Equal(t, "בראשית 1:2", r.Label())
	assert.Contains(t, r.Text, "וְהָאָ֗רֶץ הָיְתָ֥ה")
}

func TestResolveReferencesKeepsOrderAndDuplicates(t *testing.T) {
	m := genesisMapper(t)
	refs, err := m.ResolveReferences(context.Background(), []int{81, 0, -5, 0, 9999}, false)
	require.NoError(t, err)
	require.Len(t, refs, 5)

	assert.Equal(t, 81, refs[0].Index)
	assert.True(t, refs[0].Found)
	assert.Equal(t, 3, refs[0].Verse)
	assert.True(t, refs[1].Found)
	assert.False(t, refs[2].Found)
	assert.Equal(t, -5, refs[2].Index)
	assert.Equal(t, refs[1], refs[3])
	assert.False(t, refs[4].Found)
	assert.Empty(t, refs[1].Text)
}

func TestVerseTextAssembledAndCached(t *testing.T) {
	m := genesisMapper(t)
	text, err := m.VerseText(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "וַיֹּ֥אמֶר אֱלֹהִ֖ים יְהִ֣י א֑וֹר וַֽיְהִי אֽוֹר׃", text)

	_, err = m.VerseText(context.Background(), 3)
	require.NoError(t, err)
	stats := m.CacheStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, 1, stats.Size)
}

type stubTexts struct {
	calls int
	err   error
}

func (s *stubTexts) VerseText(ctx context.Context, id int64) (string, error) {
	s.calls++
	return "stored", s.err
}

func TestVerseTextFromStore(t *testing.T) {
	texts := &stubTexts{}
	m := genesisMapper(t, coords.WithVerseTexts(texts), coords.WithCacheSize(8))

	refs, err := m.ResolveReferences(context.Background(), []int{0, 1, 2}, true)
	require.NoError(t, err)
	for _, r := range refs {
		assert.Equal(t, "stored", r.Text)
	}
	assert.Equal(t, 1, texts.calls)
}

func TestVerseTextStoreFailure(t *testing.T) {
	texts := &stubTexts{err: errors.New("db down")}
	m := genesisMapper(t, coords.WithVerseTexts(texts))

	_, err := m.ResolveReferences(context.Background(), []int{0}, true)
	assert.ErrorIs(t, err, gerrors.ErrUpstreamFetch)
}

func TestLetterRange(t *testing.T) {
	m := genesisMapper(t)
	f := m.Flat()

	tests := []struct {
		in     string
		lo, hi int
	}{
		{"Gen.1.1", 0, 28},
		{"Gen.1.2", 29, 80},
		{"Gen.1.1-2", 0, 80},
		{"Gen.1", 0, f.Len() - 1},
		{"Gen", 0, f.Len() - 1},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			r, err := ref.Parse(tt.in)
			require.NoError(t, err)
			lo, hi, err := m.LetterRange(r)
			require.NoError(t, err)
			assert.Equal(t, tt.lo, lo)
			assert.Equal(t, tt.hi, hi)
		})
	}

	// Book codes match case-insensitively.
	p := ref.Point{Book: "gen", Chapter: 1, Verse: 3}
	lo, hi, err := m.LetterRange(ref.Range{Start: p, End: p})
	require.NoError(t, err)
	assert.Equal(t, 81, lo)
	assert.Equal(t, f.Len()-1, hi)

	r, _ := ref.Parse("Gen.2.1")
	_, _, err = m.LetterRange(r)
	assert.ErrorIs(t, err, gerrors.ErrNotFound)

	r, _ = ref.Parse("Exod.1.1")
	_, _, err = m.LetterRange(r)
	assert.ErrorIs(t, err, gerrors.ErrNotFound)
}

func TestExcerpt(t *testing.T) {
	m := genesisMapper(t)
	s, from, err := m.Excerpt(2, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, from)
	assert.Equal(t, "בראשי", s)

	_, _, err = m.Excerpt(1000, 45)
	assert.ErrorIs(t, err, gerrors.ErrIndexOutOfRange)
}

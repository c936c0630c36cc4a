package corpus_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FocuswithJustin/guematrix/core/corpus"
	"github.com/FocuswithJustin/guematrix/core/corpus/corpustest"
)

func TestLinearizeBoundaries(t *testing.T) {
	f := corpustest.Flat("בְּרֵאשִׁ֖ית", "בָּרָ֣א", "אֱלֹהִ֑ים")

	assert.Equal(t, "בראשיתבראאלהים", f.Text())
	assert.Equal(t, []int{0, 6, 9}, f.WordStart)
	assert.Equal(t, []int{5, 8, 13}, f.WordEnd)
	require.Len(t, f.Words, 3)
	assert.Equal(t, "בָּרָ֣א", f.Words[1].Text)
	assert.Equal(t, 2, f.Words[1].WordIndex)
	assert.NoError(t, f.Validate())
	assert.NotEmpty(t, f.Version)
}

func TestLinearizeSkipsEmptyWords(t *testing.T) {
	f := corpustest.Flat("את", "׃", "123", "הארץ")

	assert.Equal(t, "אתהארץ", f.Text())
	assert.Equal(t, []int{0, 2}, f.WordStart)
	assert.Equal(t, []int{1, 5}, f.WordEnd)
	// Word indices keep the position in the verse.
	assert.Equal(t, 1, f.Words[0].WordIndex)
	assert.Equal(t, 4, f.Words[1].WordIndex)
}

func TestLinearizeGenesis(t *testing.T) {
	c := corpustest.Genesis()
	f, err := corpus.Linearize(context.Background(), c)
	require.NoError(t, err)

	assert.Equal(t, 27, f.WordCount())
	assert.True(t, f.HasBoundaries())
	assert.True(t, f.HasMeta())
	assert.NoError(t, f.Validate())
	assert.Equal(t, int64(2), f.Words[7].VerseID)
	assert.Equal(t, 2, f.Words[7].Verse)
	assert.Equal(t, "Gen", f.Words[0].Book)
}

func TestLinearizeDeterministicVersion(t *testing.T) {
	a := corpustest.Flat("שלום", "עולם")
	b := corpustest.Flat("שָׁלוֹם", "עוֹלָם")
	c := corpustest.Flat("שלו", "םעולם")

	assert.Equal(t, a.Version, b.Version)
	assert.NotEqual(t, a.Version, c.Version, "same letters with other boundaries")
}

type failingSource struct{ after int }

func (s failingSource) Words(ctx context.Context, fn func(corpus.WordRecord) error) error {
	for i := 0; i < s.after; i++ {
		if err := fn(corpus.WordRecord{VerseID: 1, WordIndex: i, Plain: "אב"}); err != nil {
			return err
		}
	}
	return errors.New("connection reset")
}

func TestLinearizeAllOrNothing(t *testing.T) {
	f, err := corpus.Linearize(context.Background(), failingSource{after: 3})
	assert.Error(t, err)
	assert.Nil(t, f)
}

type countingSource struct {
	mu    sync.Mutex
	calls int
	inner corpus.Source
}

func (s *countingSource) Words(ctx context.Context, fn func(corpus.WordRecord) error) error {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.inner.Words(ctx, fn)
}

func TestCacheBuildsOnce(t *testing.T) {
	src := &countingSource{inner: corpustest.Genesis()}
	c := corpus.NewCache(src)

	var wg sync.WaitGroup
	results := make([]*corpus.Flat, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f, err := c.FetchFlattenedCorpus(context.Background())
			assert.NoError(t, err)
			results[i] = f
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, src.calls)
	assert.Equal(t, 1, c.Builds())
	for _, f := range results[1:] {
		assert.Same(t, results[0], f)
	}

	c.Invalidate()
	_, ok := c.Cached()
	assert.False(t, ok)

	f, err := c.FetchFlattenedCorpus(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, results[0], f)
	assert.Equal(t, 2, src.calls)
}

func TestCacheDoesNotKeepFailures(t *testing.T) {
	c := corpus.NewCache(failingSource{after: 1})
	_, err := c.FetchFlattenedCorpus(context.Background())
	assert.Error(t, err)
	_, ok := c.Cached()
	assert.False(t, ok)
	assert.Equal(t, 0, c.Builds())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		flat    corpus.Flat
		wantErr bool
	}{
		{"empty", corpus.Flat{}, false},
		{"letters without boundaries", corpus.Flat{Letters: []rune("אבג")}, false},
		{"uncovered tail", corpus.Flat{Letters: []rune("אבג"), WordStart: []int{0}, WordEnd: []int{1}}, true},
		{"gap", corpus.Flat{Letters: []rune("אבג"), WordStart: []int{0, 2}, WordEnd: []int{0, 2}}, true},
		{"overlap", corpus.Flat{Letters: []rune("אבג"), WordStart: []int{0, 1}, WordEnd: []int{1, 2}}, true},
		{"length mismatch", corpus.Flat{Letters: []rune("אב"), WordStart: []int{0}, WordEnd: []int{0, 1}}, true},
		{"valid", corpus.Flat{Letters: []rune("אבג"), WordStart: []int{0, 1}, WordEnd: []int{0, 2}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.flat.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCorpusSort(t *testing.T) {
	c := &corpus.Corpus{Books: []*corpus.Book{
		{Code: "Exod", Order: 2, Chapters: []*corpus.Chapter{{Number: 2}, {Number: 1}}},
		{Code: "Gen", Order: 1},
	}}
	c.Sort()
	assert.Equal(t, "Gen", c.Books[0].Code)
	assert.Equal(t, 1, c.Books[1].Chapters[0].Number)
}

func TestLookupBook(t *testing.T) {
	b, ok := corpus.LookupBook("gen")
	require.True(t, ok)
	assert.Equal(t, 1, b.Order)
	assert.True(t, b.IsTorah())

	b, ok = corpus.LookupBook("Ps")
	require.True(t, ok)
	assert.False(t, b.IsTorah())

	_, ok = corpus.LookupBook("Matt")
	assert.False(t, ok)
	assert.Len(t, corpus.Books, 39)
}

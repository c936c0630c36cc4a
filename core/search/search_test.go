package search_test

import (
	"context"
	"math"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FocuswithJustin/guematrix/core/corpus"
	"github.com/FocuswithJustin/guematrix/core/corpus/corpustest"
	gerrors "github.com/FocuswithJustin/guematrix/core/errors"
	"github.com/FocuswithJustin/guematrix/core/search"
)

func TestFixedELS(t *testing.T) {
	// positions: 0 ת, 1 א, 2 ו, 3 ב, 4 ו, 5 ג, 6 ה
	f := corpustest.Letters("תאובוגה")

	tests := []struct {
		name    string
		pattern string
		skip    int
		want    []int
	}{
		{"skip two", "תור", 2, []int{}},
		{"skip three", "תבה", 3, []int{0}},
		{"skip one", "אוב", 1, []int{1}},
		{"negative skip", "הבת", -3, []int{6}},
		{"single letter", "ו", 5, []int{2, 4}},
		{"no match", "שלום", 1, []int{}},
		{"longer than corpus", "תאובוגהא", 1, []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := search.Run(f, tt.pattern, search.FixedELS{Skip: tt.skip})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Matches)
			assert.Equal(t, tt.skip, res.Skip())
			assert.Equal(t, search.ModeELS, res.Mode)
		})
	}
}

func TestFixedELSScenarios(t *testing.T) {
	f := corpustest.Letters("אבגדאבגד")

	tests := []struct {
		pattern string
		skip    int
		want    []int
	}{
		{"אגא", 2, []int{0}},
		{"בדב", 2, []int{1}},
		{"דבד", -2, []int{7}},
		{"אא", 4, []int{0}},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			res, err := search.Run(f, tt.pattern, search.FixedELS{Skip: tt.skip})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Matches)
		})
	}
}

func TestFixedELSSkipOneIsSubstringSearch(t *testing.T) {
	f := genesis(t)
	text := f.Text()

	for _, pattern := range []string{"ברא", "את", "אור", "ה", "ויאמר", "שלום"} {
		t.Run(pattern, func(t *testing.T) {
			want := []int{}
			for off := 0; ; {
				i := strings.Index(text[off:], pattern)
				if i < 0 {
					break
				}
				at := off + i
				want = append(want, utf8.RuneCountInString(text[:at]))
				_, size := utf8.DecodeRuneInString(text[at:])
				off = at + size
			}

			res, err := search.Run(f, pattern, search.FixedELS{Skip: 1}, search.WithMaxResults(f.Len()))
			require.NoError(t, err)
			assert.Equal(t, want, res.Matches)
		})
	}
}

func TestFixedELSMatchesReadBack(t *testing.T) {
	f := genesis(t)

	checked := 0
	for _, tc := range []struct {
		pattern string
		skip    int
	}{
		{"אר", 3}, {"יה", -2}, {"אלה", 5}, {"םי", -1}, {"הו", 7}, {"תא", -11},
	} {
		res, err := search.Run(f, tc.pattern, search.FixedELS{Skip: tc.skip}, search.WithMaxResults(f.Len()))
		require.NoError(t, err)
		pat := []rune(tc.pattern)
		for _, m := range res.Matches {
			for i, r := range pat {
				idx := m + i*tc.skip
				require.True(t, idx >= 0 && idx < f.Len(), "%s/%d: letter %d of match %d at %d", tc.pattern, tc.skip, i, m, idx)
				assert.Equal(t, string(r), string(f.Letters[idx]), "%s/%d: match %d letter %d", tc.pattern, tc.skip, m, i)
			}
			checked++
		}
	}
	assert.Positive(t, checked)
}

func TestHugeSkipFindsNothing(t *testing.T) {
	f := genesis(t)
	skips := []int{1 << 62, -(1 << 62), math.MaxInt, math.MinInt, f.Len()}

	for _, skip := range skips {
		res, err := search.Run(f, "ברא", search.FixedELS{Skip: skip})
		require.NoError(t, err, "els skip %d", skip)
		assert.Empty(t, res.Matches, "els skip %d", skip)

		for _, q := range []search.Query{search.AcrosticFirst{Skip: skip}, search.AcrosticLast{Skip: skip}} {
			res, err := search.Run(f, "בבא", q)
			require.NoError(t, err, "%s skip %d", q.Mode(), skip)
			assert.Empty(t, res.Matches, "%s skip %d", q.Mode(), skip)
		}
	}

	// A skip that exactly spans the bounds still matches.
	res, err := search.Run(corpustest.Letters("אבגדה"), "אה", search.FixedELS{Skip: 4})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, res.Matches)
}

func TestFixedELSBounds(t *testing.T) {
	f := corpustest.Letters("אבאבאבאב")

	res, err := search.Run(f, "אא", search.FixedELS{Skip: 2}, search.WithBounds(2, 6))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4}, res.Matches)

	// Every letter of the match must lie in bounds, not only the start.
	res, err = search.Run(f, "אא", search.FixedELS{Skip: 2}, search.WithBounds(4, 5))
	require.NoError(t, err)
	assert.Empty(t, res.Matches)

	// Out of range bounds are clamped.
	res, err = search.Run(f, "אא", search.FixedELS{Skip: 2}, search.WithBounds(-10, 100))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 4}, res.Matches)

	res, err = search.Run(f, "א", search.FixedELS{Skip: 1}, search.WithBounds(5, 4))
	require.NoError(t, err)
	assert.Empty(t, res.Matches)
}

func TestFixedELSCap(t *testing.T) {
	f := corpustest.Letters(strings.Repeat("א", 500))

	res, err := search.Run(f, "א", search.FixedELS{Skip: 1})
	require.NoError(t, err)
	assert.Len(t, res.Matches, search.DefaultMaxResults)
	assert.True(t, res.Truncated())
	assert.Equal(t, 0, res.Matches[0])
	assert.Equal(t, 199, res.Matches[199])

	res, err = search.Run(f, "אא", search.FixedELS{Skip: 1}, search.WithMaxResults(5))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, res.Matches)
	assert.True(t, res.Truncated())

	res, err = search.Run(corpustest.Letters("אבא"), "א", search.FixedELS{Skip: 1})
	require.NoError(t, err)
	assert.False(t, res.Truncated())
}

func TestInvalidInput(t *testing.T) {
	f := corpustest.Letters("אבג")

	_, err := search.Run(f, "abc 123", search.FixedELS{Skip: 1})
	assert.ErrorIs(t, err, gerrors.ErrInvalidPattern)

	_, err = search.Run(f, "אב", search.FixedELS{Skip: 0})
	assert.ErrorIs(t, err, gerrors.ErrInvalidSkip)

	_, err = search.Run(f, "אב", search.AcrosticFirst{Skip: 0})
	assert.ErrorIs(t, err, gerrors.ErrInvalidSkip)

	_, err = search.Run(f, "אב", search.AutoELS{MinSkip: -1, MaxSkip: 5})
	assert.ErrorIs(t, err, gerrors.ErrInvalidSkip)

	kind, ok := gerrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, gerrors.KindInvalidSkip, kind)
}

func TestAutoELS(t *testing.T) {
	// "אב" occurs twice at skip 2 and at most once at any other skip.
	f := corpustest.Letters("אגבאגבאב")

	res, err := search.Run(f, "אב", search.AutoELS{MinSkip: 1, MaxSkip: 5})
	require.NoError(t, err)
	assert.Equal(t, search.ModeELSAuto, res.Mode)

	best := map[int]int{}
	for skip := 1; skip <= 5; skip++ {
		r, err := search.Run(f, "אב", search.FixedELS{Skip: skip})
		require.NoError(t, err)
		best[skip] = len(r.Matches)
	}
	// The smallest skip with the maximal count wins.
	wantSkip, wantCount := 0, 0
	for skip := 1; skip <= 5; skip++ {
		if best[skip] > wantCount {
			wantSkip, wantCount = skip, best[skip]
		}
	}
	assert.Equal(t, wantSkip, res.Skip())
	assert.Len(t, res.Matches, wantCount)
	assert.Equal(t, 2, res.Skip())
	assert.Equal(t, []int{0, 3}, res.Matches)
}

func TestAutoELSTieKeepsSmallestSkip(t *testing.T) {
	// "אב" appears once at skip 1 and once at skip 2.
	f := corpustest.Letters("אבגאגב")
	res, err := search.Run(f, "אב", search.AutoELS{MinSkip: 1, MaxSkip: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skip())
	assert.Equal(t, []int{0}, res.Matches)
}

func TestAutoELSNoMatch(t *testing.T) {
	f := corpustest.Letters("אבג")
	res, err := search.Run(f, "שלום", search.AutoELS{})
	require.NoError(t, err)
	assert.False(t, res.Found())
	assert.Equal(t, 0, res.Skip())
	assert.NotNil(t, res.Matches)
}

func TestAutoELSStopsAtCap(t *testing.T) {
	f := corpustest.Letters(strings.Repeat("א", 50))
	res, err := search.Run(f, "אא", search.AutoELS{MinSkip: 1, MaxSkip: 10}, search.WithMaxResults(10))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skip())
	assert.Len(t, res.Matches, 10)
	assert.True(t, res.Truncated())
}

func TestAutoELSHugeRangeEndsAtCorpusWidth(t *testing.T) {
	f := corpustest.Letters("אבגאבג")

	res, err := search.Run(f, "אב", search.AutoELS{MinSkip: 1, MaxSkip: math.MaxInt})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skip())
	assert.Equal(t, []int{0, 3}, res.Matches)

	res, err = search.Run(f, "א", search.AutoELS{MinSkip: 1, MaxSkip: math.MaxInt})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skip())
	assert.Equal(t, []int{0, 3}, res.Matches)

	res, err = search.Run(f, "אב", search.AutoELS{MinSkip: 1 << 40, MaxSkip: 1 << 41})
	require.NoError(t, err)
	assert.False(t, res.Found())
}

func TestAutoELSRange(t *testing.T) {
	lo, hi, err := search.AutoELS{}.Range()
	require.NoError(t, err)
	assert.Equal(t, 1, lo)
	assert.Equal(t, 100, hi)

	lo, hi, err = search.AutoELS{MinSkip: 7, MaxSkip: 3}.Range()
	require.NoError(t, err)
	assert.Equal(t, 7, lo)
	assert.Equal(t, 7, hi)
}

func genesis(t *testing.T) *corpus.Flat {
	t.Helper()
	f, err := corpus.Linearize(context.Background(), corpustest.Genesis())
	require.NoError(t, err)
	return f
}

func TestAcrosticFirst(t *testing.T) {
	f := genesis(t)
	// Gen 1:1 words 0,1: בראשית ברא
	res, err := search.Run(f, "בב", search.AcrosticFirst{Skip: 1})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, res.Matches)
	assert.Equal(t, search.UnitWord, res.Layout.Unit)

	// Multi-word input becomes its first letters: ב ב א.
	res, err = search.Run(f, "בית ברית אור", search.AcrosticFirst{Skip: 1})
	require.NoError(t, err)
	assert.Equal(t, "בבא", res.Pattern)
	assert.Equal(t, []int{0}, res.Matches)
}

func TestAcrosticLast(t *testing.T) {
	f := genesis(t)
	// Last letters of בראשית ברא אלהים: ת א ם
	res, err := search.Run(f, "תאם", search.AcrosticLast{Skip: 1})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, res.Matches)

	// Word skip 2 from word 0: בראשית, אלהים, השמים -> ת ם ם
	res, err = search.Run(f, "תםם", search.AcrosticLast{Skip: 2})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, res.Matches)

	// Negative word skip walks backwards: אלהים, ברא, בראשית -> ם א ת
	res, err = search.Run(f, "םאת", search.AcrosticLast{Skip: -1})
	require.NoError(t, err)
	assert.Contains(t, res.Matches, 2)
}

func TestAcrosticBounds(t *testing.T) {
	f := genesis(t)
	// Word 1 (ברא) starts at letter 6; excluding it kills the match.
	res, err := search.Run(f, "בב", search.AcrosticFirst{Skip: 1}, search.WithBounds(0, 5))
	require.NoError(t, err)
	assert.Empty(t, res.Matches)
}

func TestAcrosticWithoutBoundaries(t *testing.T) {
	_, err := search.Run(corpustest.Letters("אבג"), "אב", search.AcrosticFirst{Skip: 1})
	assert.ErrorIs(t, err, gerrors.ErrMissingBoundaryData)
}

func TestLayoutLetterIndices(t *testing.T) {
	f := genesis(t)

	els := search.LayoutOf(search.FixedELS{}, 3, 4)
	assert.Equal(t, []int{10, 13, 16, 19}, els.LetterIndices(f, 10))
	assert.Equal(t, 10, els.Center(f, 10))

	first := search.LayoutOf(search.AcrosticFirst{}, 1, 3)
	assert.Equal(t, []int{0, 6, 9}, first.LetterIndices(f, 0))
	assert.Equal(t, 6, first.Center(f, 1))

	last := search.LayoutOf(search.AcrosticLast{}, 1, 3)
	assert.Equal(t, []int{5, 8, 13}, last.LetterIndices(f, 0))
	assert.Equal(t, 8, last.Center(f, 1))
	assert.Equal(t, -1, last.Center(f, 1000))
}

func TestSpecRoundTrip(t *testing.T) {
	queries := []search.Query{
		search.FixedELS{Skip: -4},
		search.AutoELS{MinSkip: 2, MaxSkip: 30},
		search.AcrosticFirst{Skip: 1},
		search.AcrosticLast{Skip: 3},
	}
	for _, q := range queries {
		got, err := search.SpecOf(q).Query()
		require.NoError(t, err)
		assert.Equal(t, q, got)
	}
	_, err := search.Spec{Mode: "gematria"}.Query()
	assert.ErrorIs(t, err, gerrors.ErrInvalidInput)
}

func TestSpecCapped(t *testing.T) {
	auto := search.Spec{Mode: search.ModeELSAuto}

	got, err := auto.Capped(40)
	require.NoError(t, err)
	assert.Equal(t, 40, got.MaxSkip)

	got, err = search.Spec{Mode: search.ModeELSAuto, MinSkip: 3, MaxSkip: 40}.Capped(40)
	require.NoError(t, err)
	assert.Equal(t, 3, got.MinSkip)
	assert.Equal(t, 40, got.MaxSkip)

	_, err = search.Spec{Mode: search.ModeELSAuto, MaxSkip: 41}.Capped(40)
	assert.ErrorIs(t, err, gerrors.ErrInvalidSkip)
	_, err = search.Spec{Mode: search.ModeELSAuto, MinSkip: 50}.Capped(40)
	assert.ErrorIs(t, err, gerrors.ErrInvalidSkip)

	fixed := search.Spec{Mode: search.ModeELS, Skip: 1 << 40}
	got, err = fixed.Capped(40)
	require.NoError(t, err)
	assert.Equal(t, fixed, got)

	got, err = auto.Capped(0)
	require.NoError(t, err)
	assert.Equal(t, auto, got)
}

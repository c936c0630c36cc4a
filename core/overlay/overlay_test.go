package overlay_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FocuswithJustin/guematrix/core/corpus"
	"github.com/FocuswithJustin/guematrix/core/corpus/corpustest"
	gerrors "github.com/FocuswithJustin/guematrix/core/errors"
	"github.com/FocuswithJustin/guematrix/core/matrix"
	"github.com/FocuswithJustin/guematrix/core/overlay"
	"github.com/FocuswithJustin/guematrix/core/search"
)

func genesis(t *testing.T) *corpus.Flat {
	t.Helper()
	f, err := corpus.Linearize(context.Background(), corpustest.Genesis())
	require.NoError(t, err)
	return f
}

func addQuery(t *testing.T, m *overlay.Manager, f *corpus.Flat, id, input string, q search.Query) *overlay.Query {
	t.Helper()
	res, err := search.Run(f, input, q)
	require.NoError(t, err)
	oq := overlay.NewQuery(id, input, q, res)
	require.NoError(t, m.Add(oq))
	return oq
}

func TestColorsCycle(t *testing.T) {
	f := genesis(t)
	m := overlay.NewManager(f)
	ids := []string{"a", "b", "c", "d", "e"}
	for _, id := range ids {
		addQuery(t, m, f, id, "א", search.FixedELS{Skip: 1})
	}
	assert.Equal(t, overlay.Palette[0], m.Get("a").Color)
	assert.Equal(t, overlay.Palette[3], m.Get("d").Color)
	assert.Equal(t, overlay.Palette[0], m.Get("e").Color)

	assert.Error(t, m.Add(&overlay.Query{ID: "a"}))
}

func TestBaseSelectionAndPinning(t *testing.T) {
	f := genesis(t)
	m := overlay.NewManager(f)
	a := addQuery(t, m, f, "a", "בר", search.FixedELS{Skip: 1})
	b := addQuery(t, m, f, "b", "אל", search.FixedELS{Skip: 1})

	assert.Nil(t, m.Base())
	assert.Empty(t, m.Pinned())

	// Pinning requires a selection.
	err := m.Pin("a")
	assert.ErrorIs(t, err, gerrors.ErrInvalidInput)

	// The first selection pins.
	require.NoError(t, m.Select("b", 0))
	assert.Equal(t, "b", m.Pinned())
	assert.Same(t, b, m.Base())

	// Later selections do not move the pin.
	require.NoError(t, m.Select("a", 0))
	assert.Equal(t, "b", m.Pinned())
	assert.Same(t, b, m.Base())

	require.NoError(t, m.Pin("a"))
	assert.Same(t, a, m.Base())

	// Removing the pinned query clears the pin and falls back to the
	// first query with a selection.
	assert.True(t, m.Remove("a"))
	assert.Empty(t, m.Pinned())
	assert.Same(t, b, m.Base())
	assert.False(t, m.Remove("a"))
}

func TestSelectErrors(t *testing.T) {
	f := genesis(t)
	m := overlay.NewManager(f)
	addQuery(t, m, f, "a", "בר", search.FixedELS{Skip: 1})

	assert.ErrorIs(t, m.Select("missing", 0), gerrors.ErrNotFound)
	assert.ErrorIs(t, m.Select("a", 99), gerrors.ErrIndexOutOfRange)
	assert.ErrorIs(t, m.SelectStart("a", 1), gerrors.ErrNotFound)

	require.NoError(t, m.SelectStart("a", 6))
	assert.Equal(t, 6, *m.Get("a").Selected)
}

func TestOwnershipAndIntersections(t *testing.T) {
	f := genesis(t)
	m := overlay.NewManager(f)
	// בראשית at skip 1 covers letters 0..5.
	addQuery(t, m, f, "a", "בראשית", search.FixedELS{Skip: 1})
	// First letters of words 0,1: ב(0) ב(6).
	addQuery(t, m, f, "b", "בב", search.AcrosticFirst{Skip: 1})
	require.NoError(t, m.Select("a", 0))
	require.NoError(t, m.Select("b", 0))

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, m.LetterIndices(m.Get("a")))
	assert.Equal(t, []int{0, 6}, m.LetterIndices(m.Get("b")))

	owners := m.Ownership()
	assert.Equal(t, []int{0, 1}, owners[0])
	assert.Equal(t, []int{0}, owners[3])
	assert.Equal(t, []int{1}, owners[6])
	assert.NotContains(t, owners, 7)

	w, err := m.Window(10, 5)
	require.NoError(t, err)
	grid := m.Grid(w)
	assert.Equal(t, matrix.ClassIntersection, grid[0][0].Class)
	assert.True(t, grid[0][0].Center)
	assert.Equal(t, matrix.ClassOwned, grid[0][6].Class)
	assert.Equal(t, matrix.ClassPlain, grid[0][7].Class)
}

func TestCenterPerLayout(t *testing.T) {
	f := genesis(t)
	m := overlay.NewManager(f)
	addQuery(t, m, f, "last", "תאם", search.AcrosticLast{Skip: 1})
	require.NoError(t, m.Select("last", 0))

	c, ok := m.Center()
	require.True(t, ok)
	// Last letter of word 0 (בראשית).
	assert.Equal(t, 5, c)

	_, err := overlay.NewManager(f).Window(50, 20)
	assert.ErrorIs(t, err, gerrors.ErrNotFound)
}

func TestAutoSelect(t *testing.T) {
	f := corpustest.Letters("אבאבאבאבאבאבאבאבאבאב")
	layout := search.LayoutOf(search.FixedELS{}, 4, 3)

	w, err := matrix.Compute(10, 5, 1, f.Len())
	require.NoError(t, err)
	require.Equal(t, 10, w.StartIndex)
	require.Equal(t, 14, w.EndIndex)

	// 0: 0,4,8 none inside. 6: 6,10,14 two inside. 10: 10,14,18 two inside.
	// 12: 12,16,20 one inside.
	best, ok := overlay.AutoSelect(f, layout, []int{0, 6, 10, 12}, w)
	require.True(t, ok)
	assert.Equal(t, 6, best)

	wide, err := matrix.Compute(10, 10, 1, f.Len())
	require.NoError(t, err)
	// Window 10..19: 10,14,18 is fully inside and beats partial 6.
	best, ok = overlay.AutoSelect(f, layout, []int{6, 10}, wide)
	require.True(t, ok)
	assert.Equal(t, 10, best)

	_, ok = overlay.AutoSelect(f, layout, []int{0}, w)
	assert.False(t, ok)
}

func TestStateRoundTrip(t *testing.T) {
	f := genesis(t)
	m := overlay.NewManager(f)
	addQuery(t, m, f, "a", "בר", search.FixedELS{Skip: 1})
	addQuery(t, m, f, "b", "אל", search.FixedELS{Skip: 1})
	require.NoError(t, m.Select("b", 0))

	restored := overlay.Restore(f, m.State())
	assert.Equal(t, f.Version, m.State().Version)
	assert.Same(t, f, restored.Flat())
	assert.Equal(t, 2, restored.Len())
	assert.Equal(t, "b", restored.Pinned())
	assert.Equal(t, m.Ownership(), restored.Ownership())

	// A pin without a selection is dropped.
	s := m.State()
	s.Pinned = "a"
	assert.Empty(t, overlay.Restore(f, s).Pinned())
}

// Package overlay tracks several searches shown together on one matrix.
//
// Each query keeps its match list and at most one selected match. The
// selected matches' letters are merged into an ownership map so the matrix
// can tell single letters from intersections. One query is the base: the
// matrix is centered on its selected match.
//
// The base is the pinned query when it has a selection, otherwise the first
// query in insertion order that has one. The first selection made while
// nothing is pinned pins its query; later selections never move the pin.
// Removing the pinned query clears the pin.
//
// A Manager is not safe for concurrent use.
package overlay

import (
	"strconv"

	"github.com/FocuswithJustin/guematrix/core/corpus"
	gerrors "github.com/FocuswithJustin/guematrix/core/errors"
	"github.com/FocuswithJustin/guematrix/core/matrix"
	"github.com/FocuswithJustin/guematrix/core/search"
)

// Palette holds the highlight colors assigned to queries in order.
var Palette = []string{"#38bdf8", "#f97316", "#22c55e", "#a855f7"}

// Query is one search in the overlay.
type Query struct {
	ID       string        `json:"id"`
	Input    string        `json:"input"`
	Pattern  string        `json:"pattern"`
	Spec     search.Spec   `json:"query"`
	Layout   search.Layout `json:"layout"`
	Matches  []int         `json:"matches"`
	Limit    int           `json:"limit"`
	Selected *int          `json:"selected,omitempty"`
	Color    string        `json:"color"`
	// Range or Bounds record the scope the query was searched in, so the
	// search can be repeated over a reloaded corpus.
	Range  string         `json:"range,omitempty"`
	Bounds *search.Bounds `json:"bounds,omitempty"`
}

// NewQuery builds an overlay query from a search result.
func NewQuery(id, input string, q search.Query, res search.Result) *Query {
	return &Query{
		ID:      id,
		Input:   input,
		Pattern: res.Pattern,
		Spec:    search.SpecOf(q),
		Layout:  res.Layout,
		Matches: res.Matches,
		Limit:   res.Limit,
	}
}

// HasSelection reports whether a match is selected.
func (q *Query) HasSelection() bool { return q.Selected != nil }

// Truncated reports whether the match list hit its cap.
func (q *Query) Truncated() bool { return q.Limit > 0 && len(q.Matches) >= q.Limit }

// State is the serializable form of a Manager. Version is the version of
// the corpus the match positions refer to.
type State struct {
	Queries []*Query `json:"queries"`
	Pinned  string   `json:"pinned,omitempty"`
	Version string   `json:"version,omitempty"`
}

// Manager holds the ordered queries of one overlay.
type Manager struct {
	flat    *corpus.Flat
	queries []*Query
	pinned  string
}

// NewManager creates an empty overlay over f.
func NewManager(f *corpus.Flat) *Manager {
	return &Manager{flat: f}
}

// Restore rebuilds a Manager from a saved state.
func Restore(f *corpus.Flat, s State) *Manager {
	m := &Manager{flat: f, queries: append([]*Query(nil), s.Queries...)}
	if q := m.Get(s.Pinned); q != nil && q.HasSelection() {
		m.pinned = s.Pinned
	}
	return m
}

// State returns a copy of the overlay state.
func (m *Manager) State() State {
	s := State{Queries: append([]*Query(nil), m.queries...), Pinned: m.pinned}
	if m.flat != nil {
		s.Version = m.flat.Version
	}
	return s
}

// Flat returns the corpus the overlay is bound to.
func (m *Manager) Flat() *corpus.Flat { return m.flat }

// Queries returns the queries in insertion order.
func (m *Manager) Queries() []*Query { return m.queries }

// Len returns the number of queries.
func (m *Manager) Len() int { return len(m.queries) }

// Get returns the query with the given ID, or nil.
func (m *Manager) Get(id string) *Query {
	_, q := m.find(id)
	return q
}

func (m *Manager) find(id string) (int, *Query) {
	for i, q := range m.queries {
		if q.ID == id {
			return i, q
		}
	}
	return -1, nil
}

// Add appends q and assigns its color. If q arrives with a selection and
// nothing is pinned, q becomes pinned.
func (m *Manager) Add(q *Query) error {
	if _, dup := m.find(q.ID); dup != nil {
		return gerrors.NewValidation("id", "duplicate query id "+q.ID)
	}
	if q.Color == "" {
		q.Color = Palette[len(m.queries)%len(Palette)]
	}
	m.queries = append(m.queries, q)
	if q.HasSelection() && m.pinned == "" {
		m.pinned = q.ID
	}
	return nil
}

// Remove deletes a query. Removing the pinned query clears the pin.
func (m *Manager) Remove(id string) bool {
	i, q := m.find(id)
	if q == nil {
		return false
	}
	m.queries = append(m.queries[:i], m.queries[i+1:]...)
	if m.pinned == id {
		m.pinned = ""
	}
	return true
}

// Select makes the match at position pos of the query's match list the
// selected one.
func (m *Manager) Select(id string, pos int) error {
	q := m.Get(id)
	if q == nil {
		return gerrors.NewNotFound("query", id)
	}
	if pos < 0 || pos >= len(q.Matches) {
		return gerrors.NewSearchf(gerrors.KindIndexOutOfRange, "match %d of %d", pos, len(q.Matches))
	}
	start := q.Matches[pos]
	q.Selected = &start
	if m.pinned == "" {
		m.pinned = id
	}
	return nil
}

// SelectStart selects the match that starts at start.
func (m *Manager) SelectStart(id string, start int) error {
	q := m.Get(id)
	if q == nil {
		return gerrors.NewNotFound("query", id)
	}
	for pos, s := range q.Matches {
		if s == start {
			return m.Select(id, pos)
		}
	}
	return gerrors.NewNotFound("match", strconv.Itoa(start))
}

// Pin makes a query the base. Only a query with a selection can be pinned.
func (m *Manager) Pin(id string) error {
	q := m.Get(id)
	if q == nil {
		return gerrors.NewNotFound("query", id)
	}
	if !q.HasSelection() {
		return gerrors.NewValidation("pin", "query "+id+" has no selected match")
	}
	m.pinned = id
	return nil
}

// Pinned returns the pinned query ID, or "".
func (m *Manager) Pinned() string { return m.pinned }

// Base returns the query the matrix is centered on, or nil.
func (m *Manager) Base() *Query {
	if q := m.Get(m.pinned); q != nil && q.HasSelection() {
		return q
	}
	for _, q := range m.queries {
		if q.HasSelection() {
			return q
		}
	}
	return nil
}

// LetterIndices returns the letters of the query's selected match.
func (m *Manager) LetterIndices(q *Query) []int {
	if q == nil || !q.HasSelection() {
		return nil
	}
	return q.Layout.LetterIndices(m.flat, *q.Selected)
}

// Ownership maps each selected letter to the positions of the queries that
// own it, in insertion order.
func (m *Manager) Ownership() map[int][]int {
	owners := make(map[int][]int)
	for pos, q := range m.queries {
		for _, idx := range m.LetterIndices(q) {
			if list := owners[idx]; len(list) == 0 || list[len(list)-1] != pos {
				owners[idx] = append(list, pos)
			}
		}
	}
	return owners
}

// Center returns the letter the base query's selected match centers on.
func (m *Manager) Center() (int, bool) {
	base := m.Base()
	if base == nil {
		return -1, false
	}
	c := base.Layout.Center(m.flat, *base.Selected)
	return c, c >= 0
}

// Window computes the matrix window around the base query.
func (m *Manager) Window(cols, rows int) (matrix.Window, error) {
	center, ok := m.Center()
	if !ok {
		return matrix.Window{}, gerrors.NewNotFound("base query", "")
	}
	return matrix.Compute(center, cols, rows, m.flat.Len())
}

// Grid fills w with ownership and the center marker.
func (m *Manager) Grid(w matrix.Window) [][]matrix.Cell {
	center, ok := m.Center()
	if !ok {
		center = -1
	}
	return w.Cells(m.flat.Letters, m.Ownership(), center)
}

// AutoSelect picks the match that fits w best: full containment first,
// then the most letters inside. A match needs at least one letter inside.
func AutoSelect(f *corpus.Flat, layout search.Layout, matches []int, w matrix.Window) (int, bool) {
	best, bestInside, bestFull := -1, 0, false
	for _, start := range matches {
		idx := layout.LetterIndices(f, start)
		inside := 0
		for _, i := range idx {
			if w.Contains(i) {
				inside++
			}
		}
		if inside == 0 {
			continue
		}
		full := inside == len(idx)
		if best < 0 || (full && !bestFull) || (full == bestFull && inside > bestInside) {
			best, bestInside, bestFull = start, inside, full
		}
	}
	return best, best >= 0
}

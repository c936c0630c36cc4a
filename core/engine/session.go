package engine

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/guematrix/core/coords"
	"github.com/FocuswithJustin/guematrix/core/corpus"
	gerrors "github.com/FocuswithJustin/guematrix/core/errors"
	"github.com/FocuswithJustin/guematrix/core/matrix"
	"github.com/FocuswithJustin/guematrix/core/overlay"
	"github.com/FocuswithJustin/guematrix/core/search"
)

// AddRequest describes a query to add to a session.
type AddRequest struct {
	Input string
	Query search.Query
	// Bounds restricts the search. It takes precedence over Range.
	Bounds *search.Bounds
	// Range restricts the search to a reference range such as "Gen.1-3".
	Range string
}

// LegendEntry describes where a query's selected match sits.
type LegendEntry struct {
	QueryID string           `json:"queryId"`
	Color   string           `json:"color"`
	Pattern string           `json:"pattern"`
	Center  int              `json:"center"`
	Ref     coords.Reference `json:"ref"`
}

// View is a rendered matrix window.
type View struct {
	Window matrix.Window   `json:"window"`
	Base   string          `json:"base"`
	Cells  [][]matrix.Cell `json:"cells"`
}

// Session is one user's overlay of queries. Sessions are safe for
// concurrent use.
type Session struct {
	ID      string
	Created time.Time

	engine *Engine

	mu         sync.Mutex
	overlay    *overlay.Manager
	cols, rows int
	autoSelect bool
}

// NewSession creates an empty session. The corpus is fetched if needed.
func (e *Engine) NewSession(ctx context.Context) (*Session, error) {
	f, err := e.Corpus(ctx)
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:         uuid.New().String(),
		Created:    time.Now().UTC(),
		engine:     e,
		overlay:    overlay.NewManager(f),
		cols:       matrix.DefaultCols,
		rows:       matrix.DefaultRows,
		autoSelect: true,
	}, nil
}

// RestoreSession rebuilds a saved session. A state saved against another
// corpus version has its queries searched again.
func (e *Engine) RestoreSession(ctx context.Context, id string, created time.Time, state overlay.State, cols, rows int) (*Session, error) {
	f, err := e.Corpus(ctx)
	if err != nil {
		return nil, err
	}
	if state.Version != f.Version {
		e.logger.Info("restoring session against a changed corpus", "session", id, "saved", state.Version, "current", f.Version)
		state = e.rerun(ctx, f, state)
	}
	return &Session{
		ID:         id,
		Created:    created,
		engine:     e,
		overlay:    overlay.Restore(f, state),
		cols:       matrix.ClampCols(cols),
		rows:       matrix.ClampRows(rows),
		autoSelect: true,
	}, nil
}

// SetDimensions sets the matrix size, clamped to the allowed range.
func (s *Session) SetDimensions(cols, rows int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cols = matrix.ClampCols(cols)
	s.rows = matrix.ClampRows(rows)
}

// Dimensions returns the matrix size.
func (s *Session) Dimensions() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cols, s.rows
}

// SetAutoSelect turns selection of the best in-window match on or off.
func (s *Session) SetAutoSelect(on bool) {
	s.mu.Lock()
	s.autoSelect = on
	s.mu.Unlock()
}

// AddQuery runs a search and adds its result to the overlay.
//
// When a matrix is already shown, an AutoELS query first searches inside the
// current window and falls back to the whole corpus only if the window has
// no match. With auto-select on, the match that best fits the current window
// is selected.
func (s *Session) AddQuery(ctx context.Context, req AddRequest) (*overlay.Query, error) {
	if req.Query == nil {
		return nil, gerrors.NewValidation("query", "missing search mode")
	}
	var opts []search.Option
	switch {
	case req.Bounds != nil:
		opts = append(opts, search.WithBounds(req.Bounds.Lo, req.Bounds.Hi))
	case req.Range != "":
		b, err := s.engine.Bounds(ctx, req.Range)
		if err != nil {
			return nil, err
		}
		opts = append(opts, search.WithBounds(b.Lo, b.Hi))
	}

	f, err := s.engine.Corpus(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncLocked(ctx, f)

	window, hasWindow := s.windowLocked()

	var res search.Result
	if _, auto := req.Query.(search.AutoELS); auto && hasWindow && len(opts) == 0 {
		res, err = s.engine.searchIn(f, req.Input, req.Query, search.WithBounds(window.StartIndex, window.EndIndex))
		if err == nil && !res.Found() {
			res, err = s.engine.searchIn(f, req.Input, req.Query)
		}
	} else {
		res, err = s.engine.searchIn(f, req.Input, req.Query, opts...)
	}
	if err != nil {
		return nil, err
	}

	q := overlay.NewQuery(uuid.New().String(), req.Input, req.Query, res)
	if req.Bounds != nil {
		b := *req.Bounds
		q.Bounds = &b
	} else {
		q.Range = req.Range
	}
	if s.autoSelect && hasWindow && res.Found() {
		if best, ok := overlay.AutoSelect(f, res.Layout, res.Matches, window); ok {
			q.Selected = &best
		}
	}
	if err := s.overlay.Add(q); err != nil {
		return nil, err
	}
	return q, nil
}

// RemoveQuery deletes a query from the overlay.
func (s *Session) RemoveQuery(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.overlay.Remove(id) {
		return gerrors.NewNotFound("query", id)
	}
	return nil
}

// SelectMatch selects the match at position pos of the query's match list.
func (s *Session) SelectMatch(id string, pos int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlay.Select(id, pos)
}

// Pin makes a query with a selection the base of the matrix.
func (s *Session) Pin(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlay.Pin(id)
}

// Queries returns the queries in insertion order.
func (s *Session) Queries() []*overlay.Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*overlay.Query(nil), s.overlay.Queries()...)
}

// Query returns one query.
func (s *Session) Query(id string) (*overlay.Query, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.overlay.Get(id)
	if q == nil {
		return nil, gerrors.NewNotFound("query", id)
	}
	return q, nil
}

// Base returns the ID of the base query, or "".
func (s *Session) Base() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b := s.overlay.Base(); b != nil {
		return b.ID
	}
	return ""
}

// State returns the overlay state for persistence.
func (s *Session) State() overlay.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlay.State()
}

func (s *Session) windowLocked() (matrix.Window, bool) {
	w, err := s.overlay.Window(s.cols, s.rows)
	if err != nil {
		return matrix.Window{}, false
	}
	return w, true
}

// Window returns the matrix window around the base query.
func (s *Session) Window() (matrix.Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlay.Window(s.cols, s.rows)
}

// View renders the current window with ownership and the center marker.
func (s *Session) View() (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := s.overlay.Window(s.cols, s.rows)
	if err != nil {
		return View{}, err
	}
	return View{
		Window: w,
		Base:   s.overlay.Base().ID,
		Cells:  s.overlay.Grid(w),
	}, nil
}

// Ownership maps letters to the positions of the queries owning them.
func (s *Session) Ownership() map[int][]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlay.Ownership()
}

// LegendFor resolves every letter of the query's selected match.
func (s *Session) LegendFor(ctx context.Context, id string) ([]coords.Reference, error) {
	if err := s.Sync(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	q := s.overlay.Get(id)
	if q == nil {
		s.mu.Unlock()
		return nil, gerrors.NewNotFound("query", id)
	}
	indices := s.overlay.LetterIndices(q)
	s.mu.Unlock()
	if len(indices) == 0 {
		return []coords.Reference{}, nil
	}
	return s.engine.ResolveReferences(ctx, indices, false)
}

// Legend resolves the center letter of every selected match, with verse text.
func (s *Session) Legend(ctx context.Context) ([]LegendEntry, error) {
	if err := s.Sync(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	f := s.overlay.Flat()
	var entries []LegendEntry
	var centers []int
	for _, q := range s.overlay.Queries() {
		if !q.HasSelection() {
			continue
		}
		c := q.Layout.Center(f, *q.Selected)
		if c < 0 {
			continue
		}
		entries = append(entries, LegendEntry{QueryID: q.ID, Color: q.Color, Pattern: q.Pattern, Center: c})
		centers = append(centers, c)
	}
	s.mu.Unlock()

	if len(centers) == 0 {
		return []LegendEntry{}, nil
	}
	refs, err := s.engine.ResolveReferences(ctx, centers, true)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if i < len(refs) {
			entries[i].Ref = refs[i]
		}
	}
	return entries, nil
}

// Sync rebinds the session to the engine's current corpus. When the corpus
// version changed, every query is searched again in its recorded scope and a
// selection survives only if its match still exists.
func (s *Session) Sync(ctx context.Context) error {
	f, err := s.engine.Corpus(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncLocked(ctx, f)
	return nil
}

func (s *Session) syncLocked(ctx context.Context, f *corpus.Flat) {
	cur := s.overlay.Flat()
	if cur == f {
		return
	}
	state := s.overlay.State()
	if cur == nil || cur.Version == "" || cur.Version != f.Version {
		s.engine.logger.Info("corpus changed under session", "session", s.ID, "from", state.Version, "to", f.Version)
		state = s.engine.rerun(ctx, f, state)
	}
	s.overlay = overlay.Restore(f, state)
}

// rerun searches every query of state again over f. A query whose search now
// fails keeps its place with no matches.
func (e *Engine) rerun(ctx context.Context, f *corpus.Flat, state overlay.State) overlay.State {
	out := overlay.State{Pinned: state.Pinned, Version: f.Version, Queries: make([]*overlay.Query, 0, len(state.Queries))}
	for _, old := range state.Queries {
		q := *old
		q.Matches, q.Limit, q.Selected = []int{}, 0, nil
		res, err := e.rerunQuery(ctx, f, old)
		if err != nil {
			e.logger.Warn("query cleared after corpus change", "query", old.ID, "pattern", old.Pattern, "error", err)
		} else {
			q.Pattern, q.Layout, q.Matches, q.Limit = res.Pattern, res.Layout, res.Matches, res.Limit
			if old.Selected != nil && slices.Contains(res.Matches, *old.Selected) {
				start := *old.Selected
				q.Selected = &start
			}
		}
		out.Queries = append(out.Queries, &q)
	}
	return out
}

func (e *Engine) rerunQuery(ctx context.Context, f *corpus.Flat, q *overlay.Query) (search.Result, error) {
	sq, err := q.Spec.Query()
	if err != nil {
		return search.Result{}, err
	}
	var opts []search.Option
	switch {
	case q.Bounds != nil:
		opts = append(opts, search.WithBounds(q.Bounds.Lo, q.Bounds.Hi))
	case q.Range != "":
		b, err := e.Bounds(ctx, q.Range)
		if err != nil {
			return search.Result{}, err
		}
		opts = append(opts, search.WithBounds(b.Lo, b.Hi))
	}
	return e.searchIn(f, q.Input, sq, opts...)
}

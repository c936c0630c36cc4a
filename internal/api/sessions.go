package api

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/FocuswithJustin/guematrix/core/engine"
	gerrors "github.com/FocuswithJustin/guematrix/core/errors"
	"github.com/FocuswithJustin/guematrix/core/overlay"
	"github.com/FocuswithJustin/guematrix/core/search"
	"github.com/FocuswithJustin/guematrix/internal/logging"
	"github.com/FocuswithJustin/guematrix/internal/server"
	"github.com/FocuswithJustin/guematrix/internal/sessionstore"
)

// SessionInfo describes one overlay session.
type SessionInfo struct {
	ID      string           `json:"id"`
	Created time.Time        `json:"created"`
	Cols    int              `json:"cols"`
	Rows    int              `json:"rows"`
	Base    string           `json:"base,omitempty"`
	Queries []*overlay.Query `json:"queries"`
}

// SessionSummary is one entry of the session list.
type SessionSummary struct {
	ID      string    `json:"id"`
	Created time.Time `json:"created"`
	Queries int       `json:"queries"`
	Live    bool      `json:"live"`
}

// CreateSessionRequest is the optional body of POST /api/sessions.
type CreateSessionRequest struct {
	Cols int `json:"cols,omitempty"`
	Rows int `json:"rows,omitempty"`
}

// SelectRequest picks the match at position Match of a query's match list.
type SelectRequest struct {
	Match *int `json:"match"`
}

func sessionInfo(sess *engine.Session) SessionInfo {
	cols, rows := sess.Dimensions()
	return SessionInfo{
		ID:      sess.ID,
		Created: sess.Created,
		Cols:    cols,
		Rows:    rows,
		Base:    sess.Base(),
		Queries: sess.Queries(),
	}
}

// session returns a live session, restoring it from the session store when
// it is not in memory.
func (s *Server) session(ctx context.Context, id string) (*engine.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.live[id]; ok {
		return sess, nil
	}
	if s.sessions == nil {
		return nil, gerrors.NewNotFound("session", id)
	}
	rec, err := s.sessions.Load(id)
	if err != nil {
		return nil, err
	}
	sess, err := s.engine.RestoreSession(ctx, rec.ID, rec.Created, rec.State, rec.Cols, rec.Rows)
	if err != nil {
		return nil, err
	}
	s.live[id] = sess
	logging.InfoContext(ctx, "session restored", "session_id", id, "queries", len(rec.State.Queries))
	return sess, nil
}

// persist saves the session. Failures are logged; the in-memory session
// stays authoritative.
func (s *Server) persist(ctx context.Context, sess *engine.Session) {
	if s.sessions == nil {
		return
	}
	cols, rows := sess.Dimensions()
	err := s.sessions.Save(sessionstore.Record{
		ID:      sess.ID,
		Created: sess.Created,
		Cols:    cols,
		Rows:    rows,
		State:   sess.State(),
	})
	if err != nil {
		logging.ErrorContext(ctx, "failed to persist session", "error", err)
	}
}

// withSession resolves the {id} path value, binds the session to the
// current corpus and runs fn with a context carrying the session ID.
func (s *Server) withSession(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, sess *engine.Session)) {
	id := r.PathValue("id")
	ctx := logging.WithSessionID(r.Context(), id)
	sess, err := s.session(ctx, id)
	if err == nil {
		err = sess.Sync(ctx)
	}
	if err != nil {
		respondErr(w, r, err)
		return
	}
	fn(ctx, sess)
}

// resyncLive rebinds every live session to the current corpus and saves it.
func (s *Server) resyncLive(ctx context.Context) {
	s.mu.Lock()
	live := make([]*engine.Session, 0, len(s.live))
	for _, sess := range s.live {
		live = append(live, sess)
	}
	s.mu.Unlock()
	for _, sess := range live {
		if err := sess.Sync(ctx); err != nil {
			logging.ErrorContext(ctx, "failed to rebind session", "session_id", sess.ID, "error", err)
			continue
		}
		s.persist(ctx, sess)
	}
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	byID := make(map[string]SessionSummary)
	if s.sessions != nil {
		recs, err := s.sessions.List()
		if err != nil {
			respondErr(w, r, err)
			return
		}
		for _, rec := range recs {
			byID[rec.ID] = SessionSummary{ID: rec.ID, Created: rec.Created, Queries: len(rec.State.Queries)}
		}
	}
	s.mu.Lock()
	for id, sess := range s.live {
		byID[id] = SessionSummary{ID: id, Created: sess.Created, Queries: len(sess.Queries()), Live: true}
	}
	s.mu.Unlock()

	list := make([]SessionSummary, 0, len(byID))
	for _, sum := range byID {
		list = append(list, sum)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Created.Equal(list[j].Created) {
			return list[i].ID < list[j].ID
		}
		return list[i].Created.Before(list[j].Created)
	})
	respondList(w, list, len(list))
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	req := CreateSessionRequest{Cols: s.cfg.MatrixCols, Rows: s.cfg.MatrixRows}
	if !decodeJSON(w, r, &req) {
		return
	}
	sess, err := s.engine.NewSession(r.Context())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	sess.SetDimensions(req.Cols, req.Rows)

	s.mu.Lock()
	s.live[sess.ID] = sess
	s.mu.Unlock()

	ctx := logging.WithSessionID(r.Context(), sess.ID)
	s.persist(ctx, sess)
	logging.InfoContext(ctx, "session created")
	s.hub.Broadcast(Event{Type: EventSessionCreated, SessionID: sess.ID})
	respond(w, http.StatusCreated, sessionInfo(sess))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(ctx context.Context, sess *engine.Session) {
		respond(w, http.StatusOK, sessionInfo(sess))
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.mu.Lock()
	_, live := s.live[id]
	delete(s.live, id)
	s.mu.Unlock()

	stored := false
	if s.sessions != nil {
		if _, err := s.sessions.Load(id); err == nil {
			stored = true
		}
		if err := s.sessions.Delete(id); err != nil {
			respondErr(w, r, err)
			return
		}
	}
	if !live && !stored {
		respondErr(w, r, gerrors.NewNotFound("session", id))
		return
	}
	s.hub.Broadcast(Event{Type: EventSessionDeleted, SessionID: id})
	respond(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) handleAddQuery(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Pattern = server.SanitizeUserInput(req.Pattern, maxPatternRunes)
	q, err := req.query(s.cfg.AutoMaxSkip)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	s.withSession(w, r, func(ctx context.Context, sess *engine.Session) {
		add := engine.AddRequest{Input: req.Pattern, Query: q, Range: req.Ref}
		if req.Bounds != nil {
			add.Bounds = &search.Bounds{Lo: req.Bounds.Start, Hi: req.Bounds.End}
		}
		if req.AutoSelect != nil {
			sess.SetAutoSelect(*req.AutoSelect)
		}
		added, err := sess.AddQuery(ctx, add)
		if err != nil {
			respondErr(w, r, err)
			return
		}
		logging.SearchEvent(ctx, string(q.Mode()), added.Pattern, added.Layout.Skip, len(added.Matches), added.Truncated(), "query_id", added.ID)
		s.persist(ctx, sess)
		s.hub.Broadcast(Event{
			Type:      EventQueryAdded,
			SessionID: sess.ID,
			QueryID:   added.ID,
			Base:      sess.Base(),
			Data:      map[string]any{"pattern": added.Pattern, "matches": len(added.Matches), "selected": added.Selected},
		})
		respond(w, http.StatusCreated, added)
	})
}

func (s *Server) handleRemoveQuery(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(ctx context.Context, sess *engine.Session) {
		qid := r.PathValue("qid")
		if err := sess.RemoveQuery(qid); err != nil {
			respondErr(w, r, err)
			return
		}
		s.persist(ctx, sess)
		s.hub.Broadcast(Event{Type: EventQueryRemoved, SessionID: sess.ID, QueryID: qid, Base: sess.Base()})
		respond(w, http.StatusOK, sessionInfo(sess))
	})
}

func (s *Server) handleSelectMatch(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Match == nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "match is required")
		return
	}
	s.withSession(w, r, func(ctx context.Context, sess *engine.Session) {
		qid := r.PathValue("qid")
		if err := sess.SelectMatch(qid, *req.Match); err != nil {
			respondErr(w, r, err)
			return
		}
		q, err := sess.Query(qid)
		if err != nil {
			respondErr(w, r, err)
			return
		}
		s.persist(ctx, sess)
		s.hub.Broadcast(Event{
			Type:      EventMatchSelected,
			SessionID: sess.ID,
			QueryID:   qid,
			Base:      sess.Base(),
			Data:      map[string]any{"match": *req.Match, "start": *q.Selected},
		})
		respond(w, http.StatusOK, q)
	})
}

func (s *Server) handlePin(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(ctx context.Context, sess *engine.Session) {
		qid := r.PathValue("qid")
		if err := sess.Pin(qid); err != nil {
			respondErr(w, r, err)
			return
		}
		s.persist(ctx, sess)
		s.hub.Broadcast(Event{Type: EventBasePinned, SessionID: sess.ID, QueryID: qid, Base: sess.Base()})
		respond(w, http.StatusOK, sessionInfo(sess))
	})
}

// handleWindow renders the matrix around the base query. cols and rows,
// when given, resize the session first.
func (s *Server) handleWindow(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(ctx context.Context, sess *engine.Session) {
		q := r.URL.Query()
		if q.Has("cols") || q.Has("rows") {
			oldCols, oldRows := sess.Dimensions()
			cols, rows := oldCols, oldRows
			if v, err := strconv.Atoi(q.Get("cols")); err == nil {
				cols = v
			}
			if v, err := strconv.Atoi(q.Get("rows")); err == nil {
				rows = v
			}
			sess.SetDimensions(cols, rows)
			if newCols, newRows := sess.Dimensions(); newCols != oldCols || newRows != oldRows {
				s.persist(ctx, sess)
				s.hub.Broadcast(Event{
					Type:      EventWindowResized,
					SessionID: sess.ID,
					Data:      map[string]any{"cols": newCols, "rows": newRows},
				})
			}
		}
		view, err := sess.View()
		if err != nil {
			respondErr(w, r, err)
			return
		}
		respond(w, http.StatusOK, view)
	})
}

func (s *Server) handleLegend(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(ctx context.Context, sess *engine.Session) {
		entries, err := sess.Legend(ctx)
		if err != nil {
			respondErr(w, r, err)
			return
		}
		respondList(w, entries, len(entries))
	})
}

func (s *Server) handleLegendFor(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(ctx context.Context, sess *engine.Session) {
		refs, err := sess.LegendFor(ctx, r.PathValue("qid"))
		if err != nil {
			respondErr(w, r, err)
			return
		}
		respondList(w, refs, len(refs))
	})
}

// handlePreview previews the match at position ?match=N, or the selected
// match when match is absent.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	pos := -1
	if raw := r.URL.Query().Get("match"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "match must be a non-negative integer")
			return
		}
		pos = n
	}
	s.withSession(w, r, func(ctx context.Context, sess *engine.Session) {
		p, err := sess.Preview(ctx, r.PathValue("qid"), pos)
		if err != nil {
			respondErr(w, r, err)
			return
		}
		respond(w, http.StatusOK, p)
	})
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/FocuswithJustin/guematrix/core/coords"
	"github.com/FocuswithJustin/guematrix/core/corpus"
	gerrors "github.com/FocuswithJustin/guematrix/core/errors"
	"github.com/FocuswithJustin/guematrix/core/search"
	"github.com/FocuswithJustin/guematrix/internal/logging"
	"github.com/FocuswithJustin/guematrix/internal/server"
)

const (
	maxBodyBytes    = 1 << 20
	maxPatternRunes = 512
)

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *APIMeta  `json:"meta,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIMeta contains response metadata.
type APIMeta struct {
	Total     int    `json:"total,omitempty"`
	Timestamp string `json:"timestamp"`
}

// HealthInfo is the health check response.
type HealthInfo struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`
	Loaded   bool   `json:"corpusLoaded"`
	Sessions int    `json:"sessions"`
	Clients  int    `json:"wsClients"`
}

// StatsInfo is the corpus statistics response.
type StatsInfo struct {
	corpus.Stats
	Version string `json:"version,omitempty"`
	Source  string `json:"source"`
}

// RawCorpus is the flattened corpus as served to remote engines.
type RawCorpus struct {
	Torah      string `json:"torah"`
	Letters    int    `json:"letters"`
	Version    string `json:"version"`
	WordStarts []int  `json:"wordStarts,omitempty"`
	WordEnds   []int  `json:"wordEnds,omitempty"`
	WordCount  int    `json:"wordCount,omitempty"`
}

// VerseInfo is one verse with its words.
type VerseInfo struct {
	Book    string             `json:"book"`
	Chapter int                `json:"chapter"`
	Verse   int                `json:"verse"`
	Text    string             `json:"textHe"`
	Words   []corpus.VerseWord `json:"words"`
}

// BoundsRequest restricts a search to letters [Start, End].
type BoundsRequest struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// SearchRequest is the body of a search or of a query added to a session.
// Ref is a reference range such as "Gen.1-3"; Bounds wins when both are set.
type SearchRequest struct {
	Pattern    string         `json:"pattern"`
	Mode       search.Mode    `json:"mode"`
	Skip       int            `json:"skip,omitempty"`
	MinSkip    int            `json:"minSkip,omitempty"`
	MaxSkip    int            `json:"maxSkip,omitempty"`
	Bounds     *BoundsRequest `json:"bounds,omitempty"`
	Ref        string         `json:"ref,omitempty"`
	AutoSelect *bool          `json:"autoSelect,omitempty"`
}

// query builds the search. An els_auto range is capped at autoMaxSkip.
func (req SearchRequest) query(autoMaxSkip int) (search.Query, error) {
	spec, err := search.Spec{Mode: req.Mode, Skip: req.Skip, MinSkip: req.MinSkip, MaxSkip: req.MaxSkip}.Capped(autoMaxSkip)
	if err != nil {
		return nil, err
	}
	return spec.Query()
}

// SearchResponse is the result of a one-shot search.
type SearchResponse struct {
	Pattern   string        `json:"pattern"`
	Mode      search.Mode   `json:"mode"`
	Skip      int           `json:"skip"`
	Layout    search.Layout `json:"layout"`
	Matches   []int         `json:"matches"`
	Total     int           `json:"total"`
	Truncated bool          `json:"truncated"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]any{
		"name":    "guematrix",
		"version": s.cfg.Version,
		"endpoints": []string{
			"GET /health",
			"GET /api/torah/raw?meta=1",
			"GET /api/torah/refs?indices=&withText=1",
			"GET /api/stats",
			"GET /api/verse?book=&chapter=&verse=",
			"POST /api/search",
			"POST /api/corpus/reload",
			"GET|POST /api/sessions",
			"GET|DELETE /api/sessions/{id}",
			"POST /api/sessions/{id}/queries",
			"DELETE /api/sessions/{id}/queries/{qid}",
			"POST /api/sessions/{id}/queries/{qid}/select",
			"POST /api/sessions/{id}/queries/{qid}/pin",
			"GET /api/sessions/{id}/queries/{qid}/legend",
			"GET /api/sessions/{id}/queries/{qid}/preview",
			"GET /api/sessions/{id}/window?cols=&rows=",
			"GET /api/sessions/{id}/legend",
			"WS /ws?session=",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	n := len(s.live)
	s.mu.Unlock()
	respond(w, http.StatusOK, HealthInfo{
		Status:   "healthy",
		Version:  s.cfg.Version,
		Uptime:   time.Since(s.started).Round(time.Second).String(),
		Loaded:   s.engine.Loaded(),
		Sessions: n,
		Clients:  s.hub.ClientCount(),
	})
}

func (s *Server) handleRaw(w http.ResponseWriter, r *http.Request) {
	f, err := s.engine.Corpus(r.Context())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	raw := RawCorpus{Torah: f.Text(), Letters: f.Len(), Version: f.Version}
	if queryFlag(r, "meta") && f.HasBoundaries() {
		raw.WordStarts = f.WordStart
		raw.WordEnds = f.WordEnd
		raw.WordCount = f.WordCount()
	}
	respond(w, http.StatusOK, raw)
}

// handleRefs resolves at most MaxBatch comma-separated indices in order.
// Extra entries are ignored and entries that are not integers come back
// unresolved with the raw token.
func (s *Server) handleRefs(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("indices")
	if strings.TrimSpace(raw) == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "indices is required")
		return
	}
	tokens := strings.Split(raw, ",")
	if len(tokens) > s.cfg.MaxBatch {
		tokens = tokens[:s.cfg.MaxBatch]
	}

	refs := make([]coords.Reference, len(tokens))
	var indices, slots []int
	for i, tok := range tokens {
		tok = strings.TrimSpace(tok)
		n, err := strconv.Atoi(tok)
		if err != nil {
			refs[i] = coords.Reference{Index: -1, Raw: tok}
			continue
		}
		indices = append(indices, n)
		slots = append(slots, i)
	}
	if len(indices) > 0 {
		resolved, err := s.engine.ResolveReferences(r.Context(), indices, queryFlag(r, "withText"))
		if err != nil {
			respondErr(w, r, err)
			return
		}
		for j, ref := range resolved {
			refs[slots[j]] = ref
		}
	}
	respondList(w, map[string]any{"refs": refs}, len(refs))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	info, err := s.stats.GetOrLoad(r.Context(), "stats", s.loadStats)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, info)
}

func (s *Server) loadStats(ctx context.Context) (StatsInfo, error) {
	f, err := s.engine.Corpus(ctx)
	if err != nil {
		return StatsInfo{}, err
	}
	if s.store != nil {
		st, err := s.store.Stats(ctx)
		if err != nil {
			return StatsInfo{}, err
		}
		st.Letters = f.Len()
		return StatsInfo{Stats: st, Version: f.Version, Source: "store"}, nil
	}
	return StatsInfo{Stats: flatStats(f), Version: f.Version, Source: "corpus"}, nil
}

// flatStats counts what the flattened corpus can tell. Without word
// locations only words and letters are known.
func flatStats(f *corpus.Flat) corpus.Stats {
	st := corpus.Stats{Words: f.WordCount(), Letters: f.Len()}
	if !f.HasMeta() {
		return st
	}
	type chapterKey struct {
		book    string
		chapter int
	}
	books := make(map[string]bool)
	chapters := make(map[chapterKey]bool)
	verses := make(map[int64]bool)
	for _, m := range f.Words {
		books[m.Book] = true
		chapters[chapterKey{m.Book, m.Chapter}] = true
		verses[m.VerseID] = true
	}
	st.Books, st.Chapters, st.Verses = len(books), len(chapters), len(verses)
	return st
}

func (s *Server) handleVerse(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	book := strings.TrimSpace(q.Get("book"))
	chapter, errC := strconv.Atoi(q.Get("chapter"))
	verse, errV := strconv.Atoi(q.Get("verse"))
	if book == "" || errC != nil || errV != nil || chapter < 1 || verse < 1 {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "book, chapter and verse are required")
		return
	}

	var words []corpus.VerseWord
	var err error
	if s.store != nil {
		words, err = s.store.Verse(r.Context(), book, chapter, verse)
	} else {
		words, err = s.verseFromCorpus(r.Context(), book, chapter, verse)
	}
	if err != nil {
		respondErr(w, r, err)
		return
	}
	texts := make([]string, len(words))
	for i, vw := range words {
		texts[i] = vw.Text
	}
	if info, ok := corpus.LookupBook(book); ok {
		book = info.Code
	}
	respond(w, http.StatusOK, VerseInfo{
		Book:    book,
		Chapter: chapter,
		Verse:   verse,
		Text:    strings.Join(texts, " "),
		Words:   words,
	})
}

func (s *Server) verseFromCorpus(ctx context.Context, book string, chapter, verse int) ([]corpus.VerseWord, error) {
	f, err := s.engine.Corpus(ctx)
	if err != nil {
		return nil, err
	}
	var words []corpus.VerseWord
	if f.HasMeta() {
		for w, m := range f.Words {
			if m.Chapter != chapter || m.Verse != verse || !strings.EqualFold(m.Book, book) {
				continue
			}
			plain := string(f.Letters[f.WordStart[w] : f.WordEnd[w]+1])
			text := m.Text
			if text == "" {
				text = plain
			}
			words = append(words, corpus.VerseWord{WordIndex: m.WordIndex, Text: text, Plain: plain})
		}
	}
	if len(words) == 0 {
		return nil, gerrors.NewNotFound("verse", book+"."+strconv.Itoa(chapter)+"."+strconv.Itoa(verse))
	}
	return words, nil
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
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
	opts, err := s.searchOptions(r.Context(), req)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	res, err := s.engine.Search(r.Context(), req.Pattern, q, opts...)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	logging.SearchEvent(r.Context(), string(res.Mode), res.Pattern, res.Skip(), len(res.Matches), res.Truncated())
	respond(w, http.StatusOK, SearchResponse{
		Pattern:   res.Pattern,
		Mode:      res.Mode,
		Skip:      res.Skip(),
		Layout:    res.Layout,
		Matches:   nonNil(res.Matches),
		Total:     len(res.Matches),
		Truncated: res.Truncated(),
	})
}

func (s *Server) searchOptions(ctx context.Context, req SearchRequest) ([]search.Option, error) {
	switch {
	case req.Bounds != nil:
		return []search.Option{search.WithBounds(req.Bounds.Start, req.Bounds.End)}, nil
	case req.Ref != "":
		b, err := s.engine.Bounds(ctx, req.Ref)
		if err != nil {
			return nil, err
		}
		return []search.Option{search.WithBounds(b.Lo, b.Hi)}, nil
	}
	return nil, nil
}

// handleReload drops the cached corpus and statistics. The next request
// rebuilds them.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	s.engine.Invalidate()
	s.stats.Clear()
	f, err := s.engine.Corpus(r.Context())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	s.resyncLive(r.Context())
	logging.InfoContext(r.Context(), "corpus reloaded", "letters", f.Len(), "version", f.Version)
	respond(w, http.StatusOK, map[string]any{"letters": f.Len(), "words": f.WordCount(), "version": f.Version})
}

func queryFlag(r *http.Request, name string) bool {
	switch strings.ToLower(r.URL.Query().Get(name)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func nonNil(s []int) []int {
	if s == nil {
		return []int{}
	}
	return s
}

// decodeJSON reads a JSON body into v. An empty body leaves v unchanged.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" && !server.ValidateContentType(ct, "application/json") {
		respondError(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && skipFields[typeErr.Field] {
			respondErr(w, r, gerrors.NewSearchf(gerrors.KindInvalidSkip, "%s must be an integer, got %s", typeErr.Field, typeErr.Value))
			return false
		}
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// skipFields are the request fields holding skips.
var skipFields = map[string]bool{"skip": true, "minSkip": true, "maxSkip": true}

// errorStatus maps an error to its HTTP status and API code.
func errorStatus(err error) (int, string) {
	if kind, ok := gerrors.KindOf(err); ok {
		switch kind {
		case gerrors.KindInvalidPattern:
			return http.StatusBadRequest, "INVALID_PATTERN"
		case gerrors.KindInvalidSkip:
			return http.StatusBadRequest, "INVALID_SKIP"
		case gerrors.KindMissingBoundaryData:
			return http.StatusUnprocessableEntity, "MISSING_BOUNDARY_DATA"
		case gerrors.KindIndexOutOfRange:
			return http.StatusBadRequest, "INDEX_OUT_OF_RANGE"
		case gerrors.KindUpstreamFetch:
			return http.StatusBadGateway, "UPSTREAM_FAILURE"
		}
	}
	switch {
	case errors.Is(err, gerrors.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, gerrors.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, gerrors.ErrUnsupported):
		return http.StatusNotImplemented, "UNSUPPORTED"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "CANCELLED"
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logging.ErrorContext(r.Context(), "request failed", "code", code, "error", err)
	}
	respondError(w, status, code, err.Error())
}

func respond(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Meta:    &APIMeta{Timestamp: time.Now().UTC().Format(time.RFC3339)},
	})
}

func respondList(w http.ResponseWriter, data any, total int) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
		Meta:    &APIMeta{Total: total, Timestamp: time.Now().UTC().Format(time.RFC3339)},
	})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: message},
		Meta:    &APIMeta{Timestamp: time.Now().UTC().Format(time.RFC3339)},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("failed to write response", "error", err)
	}
}

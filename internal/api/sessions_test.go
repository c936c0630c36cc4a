package api

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/FocuswithJustin/guematrix/core/coords"
	"github.com/FocuswithJustin/guematrix/core/corpus"
	"github.com/FocuswithJustin/guematrix/core/corpus/corpustest"
	"github.com/FocuswithJustin/guematrix/core/engine"
	"github.com/FocuswithJustin/guematrix/core/overlay"
	"github.com/FocuswithJustin/guematrix/internal/sessionstore"
)

// viewCell mirrors matrix.Cell with the class kept as its wire name.
type viewCell struct {
	Index  int    `json:"index"`
	Char   string `json:"char"`
	Owners []int  `json:"owners"`
	Class  string `json:"class"`
	Center bool   `json:"center"`
}

type viewPayload struct {
	Window struct {
		Cols       int `json:"cols"`
		Rows       int `json:"rows"`
		StartIndex int `json:"startIndex"`
		EndIndex   int `json:"endIndex"`
	} `json:"window"`
	Base  string       `json:"base"`
	Cells [][]viewCell `json:"cells"`
}

func (v viewPayload) cell(idx int) (viewCell, bool) {
	for _, row := range v.Cells {
		for _, c := range row {
			if c.Index == idx {
				return c, true
			}
		}
	}
	return viewCell{}, false
}

func createSession(t *testing.T, h http.Handler, body any) SessionInfo {
	t.Helper()
	rec, resp := doRequest(t, h, http.MethodPost, "/api/sessions", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session = %d %s", rec.Code, rec.Body.String())
	}
	var info SessionInfo
	decodeData(t, resp, &info)
	if info.ID == "" {
		t.Fatal("session has no ID")
	}
	return info
}

func addQuery(t *testing.T, h http.Handler, sessionID string, req SearchRequest) overlay.Query {
	t.Helper()
	rec, resp := doRequest(t, h, http.MethodPost, "/api/sessions/"+sessionID+"/queries", req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add query = %d %s", rec.Code, rec.Body.String())
	}
	var q overlay.Query
	decodeData(t, resp, &q)
	return q
}

func selectMatch(t *testing.T, h http.Handler, sessionID, queryID string, pos int) overlay.Query {
	t.Helper()
	rec, resp := doRequest(t, h, http.MethodPost, "/api/sessions/"+sessionID+"/queries/"+queryID+"/select", SelectRequest{Match: &pos})
	if rec.Code != http.StatusOK {
		t.Fatalf("select = %d %s", rec.Code, rec.Body.String())
	}
	var q overlay.Query
	decodeData(t, resp, &q)
	return q
}

func TestSessionFlow(t *testing.T) {
	_, h := newTestServer(t, genesisEngine())

	sess := createSession(t, h, CreateSessionRequest{Cols: 10, Rows: 5})
	if sess.Cols != 10 || sess.Rows != 5 || len(sess.Queries) != 0 {
		t.Fatalf("session = %+v", sess)
	}
	base := "/api/sessions/" + sess.ID

	rec, resp := doRequest(t, h, http.MethodGet, base+"/window", nil)
	expectError(t, rec, resp, http.StatusNotFound, "NOT_FOUND")

	bara := addQuery(t, h, sess.ID, SearchRequest{Pattern: "ברא", Mode: "els", Skip: 1})
	if bara.Pattern != "ברא" || len(bara.Matches) == 0 || bara.Matches[0] != 0 || bara.Selected != nil {
		t.Fatalf("query = %+v", bara)
	}
	if bara.Color == "" {
		t.Error("query has no color")
	}

	selected := selectMatch(t, h, sess.ID, bara.ID, 0)
	if selected.Selected == nil || *selected.Selected != 0 {
		t.Fatalf("selected = %v", selected.Selected)
	}

	rosh := addQuery(t, h, sess.ID, SearchRequest{Pattern: "ראש", Mode: "els", Skip: 1})
	selectMatch(t, h, sess.ID, rosh.ID, 0)

	_, resp = doRequest(t, h, http.MethodGet, base+"/window", nil)
	var view viewPayload
	decodeData(t, resp, &view)
	if view.Base != bara.ID {
		t.Errorf("base = %q, want first selected query %q", view.Base, bara.ID)
	}
	if view.Window.Cols != 10 || view.Window.StartIndex != 0 {
		t.Errorf("window = %+v", view.Window)
	}
	wantClass := map[int]string{0: "owned", 1: "intersection", 2: "intersection", 3: "owned", 4: "plain"}
	for idx, want := range wantClass {
		c, ok := view.cell(idx)
		if !ok {
			t.Fatalf("cell %d missing", idx)
		}
		if c.Class != want {
			t.Errorf("cell %d class = %q, want %q", idx, c.Class, want)
		}
	}

	_, resp = doRequest(t, h, http.MethodGet, base+"/legend", nil)
	var legend []engine.LegendEntry
	decodeData(t, resp, &legend)
	if len(legend) != 2 || legend[0].QueryID != bara.ID || !legend[0].Ref.Found || legend[0].Ref.Text == "" {
		t.Errorf("legend = %+v", legend)
	}

	_, resp = doRequest(t, h, http.MethodGet, base+"/queries/"+bara.ID+"/legend", nil)
	var refs []coords.Reference
	decodeData(t, resp, &refs)
	if len(refs) != 3 {
		t.Fatalf("legendFor = %d refs, want 3", len(refs))
	}
	for _, r := range refs {
		if !r.Found || r.Verse != 1 || r.WordIndex != 1 {
			t.Errorf("ref = %+v", r)
		}
	}

	_, resp = doRequest(t, h, http.MethodGet, base+"/queries/"+bara.ID+"/preview", nil)
	var preview engine.Preview
	decodeData(t, resp, &preview)
	if preview.Letters != "ברא" || preview.Start != 0 {
		t.Errorf("preview = %+v", preview)
	}

	rec, resp = doRequest(t, h, http.MethodGet, base+"/queries/"+bara.ID+"/preview?match=x", nil)
	expectError(t, rec, resp, http.StatusBadRequest, "INVALID_REQUEST")

	rec, resp = doRequest(t, h, http.MethodGet, base+"/queries/"+bara.ID+"/preview?match=500", nil)
	expectError(t, rec, resp, http.StatusBadRequest, "INDEX_OUT_OF_RANGE")

	rec, resp = doRequest(t, h, http.MethodPost, base+"/queries/"+rosh.ID+"/pin", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("pin = %d %s", rec.Code, rec.Body.String())
	}
	var info SessionInfo
	decodeData(t, resp, &info)
	if info.Base != rosh.ID {
		t.Errorf("base after pin = %q, want %q", info.Base, rosh.ID)
	}

	rec, resp = doRequest(t, h, http.MethodDelete, base+"/queries/"+bara.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("remove = %d %s", rec.Code, rec.Body.String())
	}
	info = SessionInfo{}
	decodeData(t, resp, &info)
	if len(info.Queries) != 1 || info.Queries[0].ID != rosh.ID {
		t.Errorf("queries after remove = %+v", info.Queries)
	}

	rec, resp = doRequest(t, h, http.MethodDelete, base+"/queries/"+bara.ID, nil)
	expectError(t, rec, resp, http.StatusNotFound, "NOT_FOUND")

	rec, _ = doRequest(t, h, http.MethodDelete, base, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete = %d", rec.Code)
	}
	rec, resp = doRequest(t, h, http.MethodGet, base, nil)
	expectError(t, rec, resp, http.StatusNotFound, "NOT_FOUND")
	rec, resp = doRequest(t, h, http.MethodDelete, base, nil)
	expectError(t, rec, resp, http.StatusNotFound, "NOT_FOUND")
}

func TestSessionDefaults(t *testing.T) {
	s := New(Config{Version: "test", MatrixCols: 30, MatrixRows: 8}, genesisEngine())
	h := s.Handler(t.Context())

	sess := createSession(t, h, nil)
	if sess.Cols != 30 || sess.Rows != 8 {
		t.Errorf("dimensions = %dx%d, want 30x8", sess.Cols, sess.Rows)
	}
}

func TestSessionSelectErrors(t *testing.T) {
	_, h := newTestServer(t, genesisEngine())
	sess := createSession(t, h, nil)
	q := addQuery(t, h, sess.ID, SearchRequest{Pattern: "ברא", Mode: "els", Skip: 1})
	path := "/api/sessions/" + sess.ID + "/queries/" + q.ID

	rec, resp := doRequest(t, h, http.MethodPost, path+"/select", SelectRequest{})
	expectError(t, rec, resp, http.StatusBadRequest, "INVALID_REQUEST")

	far := 99
	rec, resp = doRequest(t, h, http.MethodPost, path+"/select", SelectRequest{Match: &far})
	expectError(t, rec, resp, http.StatusBadRequest, "INDEX_OUT_OF_RANGE")

	rec, resp = doRequest(t, h, http.MethodPost, path+"/pin", nil)
	expectError(t, rec, resp, http.StatusBadRequest, "INVALID_REQUEST")

	rec, resp = doRequest(t, h, http.MethodGet, path+"/preview", nil)
	expectError(t, rec, resp, http.StatusBadRequest, "INVALID_REQUEST")

	rec, resp = doRequest(t, h, http.MethodPost, "/api/sessions/"+sess.ID+"/queries", SearchRequest{Pattern: "ברא", Mode: "els"})
	expectError(t, rec, resp, http.StatusBadRequest, "INVALID_SKIP")

	rec, resp = doRequest(t, h, http.MethodGet, "/api/sessions/missing", nil)
	expectError(t, rec, resp, http.StatusNotFound, "NOT_FOUND")
}

func TestSessionWindowResize(t *testing.T) {
	_, h := newTestServer(t, genesisEngine())
	sess := createSession(t, h, CreateSessionRequest{Cols: 10, Rows: 5})
	q := addQuery(t, h, sess.ID, SearchRequest{Pattern: "ברא", Mode: "els", Skip: 1})
	selectMatch(t, h, sess.ID, q.ID, 0)

	_, resp := doRequest(t, h, http.MethodGet, "/api/sessions/"+sess.ID+"/window?cols=20&rows=6", nil)
	var view viewPayload
	decodeData(t, resp, &view)
	if view.Window.Cols != 20 || view.Window.Rows != 6 {
		t.Errorf("window = %+v, want 20x6", view.Window)
	}

	_, resp = doRequest(t, h, http.MethodGet, "/api/sessions/"+sess.ID, nil)
	var info SessionInfo
	decodeData(t, resp, &info)
	if info.Cols != 20 || info.Rows != 6 {
		t.Errorf("session dimensions = %dx%d, want 20x6", info.Cols, info.Rows)
	}
}

func TestSessionPersistence(t *testing.T) {
	store, err := sessionstore.Open(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("open session store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	_, h := newTestServer(t, genesisEngine(), WithSessionStore(store))
	sess := createSession(t, h, CreateSessionRequest{Cols: 12, Rows: 6})
	q := addQuery(t, h, sess.ID, SearchRequest{Pattern: "ברא", Mode: "els", Skip: 1})
	selectMatch(t, h, sess.ID, q.ID, 1)

	// A second server shares the store but has nothing in memory.
	_, h2 := newTestServer(t, genesisEngine(), WithSessionStore(store))

	_, resp := doRequest(t, h2, http.MethodGet, "/api/sessions", nil)
	var list []SessionSummary
	decodeData(t, resp, &list)
	if len(list) != 1 || list[0].ID != sess.ID || list[0].Live || list[0].Queries != 1 {
		t.Fatalf("list = %+v", list)
	}

	_, resp = doRequest(t, h2, http.MethodGet, "/api/sessions/"+sess.ID, nil)
	var info SessionInfo
	decodeData(t, resp, &info)
	if info.Base != q.ID || info.Cols != 12 || info.Rows != 6 || len(info.Queries) != 1 {
		t.Fatalf("restored session = %+v", info)
	}
	if sel := info.Queries[0].Selected; sel == nil || *sel != q.Matches[1] {
		t.Errorf("restored selection = %v, want %d", sel, q.Matches[1])
	}

	_, resp = doRequest(t, h2, http.MethodGet, "/api/sessions", nil)
	list = nil
	decodeData(t, resp, &list)
	if len(list) != 1 || !list[0].Live {
		t.Errorf("list after restore = %+v", list)
	}

	rec, _ := doRequest(t, h2, http.MethodDelete, "/api/sessions/"+sess.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete = %d", rec.Code)
	}
	if _, err := store.Load(sess.ID); err == nil {
		t.Error("session still stored after delete")
	}
}

func TestSessionSurvivesCorpusReload(t *testing.T) {
	store, err := sessionstore.Open(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("open session store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	text := "אבגדאבגדאבגד"
	eng := engine.New(fetcherFunc(func(ctx context.Context) (*corpus.Flat, error) {
		return corpustest.Letters(text), nil
	}))
	_, h := newTestServer(t, eng, WithSessionStore(store))

	sess := createSession(t, h, CreateSessionRequest{Cols: 4, Rows: 2})
	q := addQuery(t, h, sess.ID, SearchRequest{Pattern: "גד", Mode: "els", Skip: 1})
	if len(q.Matches) != 3 {
		t.Fatalf("matches = %v", q.Matches)
	}
	selectMatch(t, h, sess.ID, q.ID, 2)
	before, err := store.Load(sess.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	text = "גדאב"
	rec, resp := doRequest(t, h, http.MethodPost, "/api/corpus/reload", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reload = %d %s", rec.Code, rec.Body.String())
	}
	var reloaded struct {
		Version string `json:"version"`
	}
	decodeData(t, resp, &reloaded)
	if reloaded.Version == before.State.Version {
		t.Fatalf("version unchanged after reload: %s", reloaded.Version)
	}

	saved, err := store.Load(sess.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if saved.State.Version != reloaded.Version {
		t.Errorf("stored version = %q, want %q", saved.State.Version, reloaded.Version)
	}

	_, resp = doRequest(t, h, http.MethodGet, "/api/sessions/"+sess.ID, nil)
	var info SessionInfo
	decodeData(t, resp, &info)
	if len(info.Queries) != 1 {
		t.Fatalf("queries = %+v", info.Queries)
	}
	got := info.Queries[0]
	if len(got.Matches) != 1 || got.Matches[0] != 0 || got.Selected != nil || info.Base != "" {
		t.Fatalf("query after reload = %+v, base %q", got, info.Base)
	}

	rec, resp = doRequest(t, h, http.MethodGet, "/api/sessions/"+sess.ID+"/window", nil)
	expectError(t, rec, resp, http.StatusNotFound, "NOT_FOUND")

	selectMatch(t, h, sess.ID, q.ID, 0)
	rec, resp = doRequest(t, h, http.MethodGet, "/api/sessions/"+sess.ID+"/window", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("window = %d %s", rec.Code, rec.Body.String())
	}
	var view viewPayload
	decodeData(t, resp, &view)
	if view.Window.EndIndex > 3 {
		t.Errorf("window = %+v", view.Window)
	}
}

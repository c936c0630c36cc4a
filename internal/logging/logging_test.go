package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// captureLogOutput reinitializes the logger on a buffer, runs f and restores
// the default logger.
func captureLogOutput(level Level, format Format, f func()) string {
	var buf bytes.Buffer
	InitLoggerTo(&buf, level, format)
	defer InitLogger(LevelInfo, FormatJSON)
	f()
	return buf.String()
}

func decodeLines(t *testing.T, out string) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid JSON log line %q: %v", line, err)
		}
		entries = append(entries, m)
	}
	return entries
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warn":    LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"":        LevelInfo,
		"verbose": LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if ParseFormat("text") != FormatText || ParseFormat(" TEXT ") != FormatText {
		t.Error("expected text format")
	}
	if ParseFormat("json") != FormatJSON || ParseFormat("") != FormatJSON {
		t.Error("expected JSON format")
	}
}

func TestLevelFiltering(t *testing.T) {
	out := captureLogOutput(LevelWarn, FormatJSON, func() {
		Debug("hidden")
		Info("hidden")
		Warn("shown", "k", 1)
		Error("shown too")
	})
	entries := decodeLines(t, out)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2: %s", len(entries), out)
	}
	if entries[0]["msg"] != "shown" || entries[0]["k"] != float64(1) {
		t.Errorf("unexpected entry %v", entries[0])
	}
}

func TestTimestampFormat(t *testing.T) {
	out := captureLogOutput(LevelInfo, FormatJSON, func() {
		Info("tick")
	})
	entries := decodeLines(t, out)
	ts, _ := entries[0]["time"].(string)
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Errorf("time %q is not RFC3339: %v", ts, err)
	}
}

func TestTextFormat(t *testing.T) {
	out := captureLogOutput(LevelInfo, FormatText, func() {
		Info("plain", "pattern", "תורה")
	})
	if !strings.Contains(out, "msg=plain") || !strings.Contains(out, "pattern=תורה") {
		t.Errorf("unexpected text output %q", out)
	}
}

func TestContextLogger(t *testing.T) {
	out := captureLogOutput(LevelInfo, FormatJSON, func() {
		ctx := WithRequestID(context.Background(), "req-1")
		ctx = WithSessionID(ctx, "sess-1")
		InfoContext(ctx, "with ids")
		WarnContext(context.Background(), "without ids")
		ErrorContext(ctx, "failure", "error", errors.New("boom").Error())
	})
	entries := decodeLines(t, out)
	if len(entries) != 3 {
		t.Fatalf("got %d entries", len(entries))
	}
	if entries[0]["request_id"] != "req-1" || entries[0]["session_id"] != "sess-1" {
		t.Errorf("missing ids in %v", entries[0])
	}
	if _, ok := entries[1]["request_id"]; ok {
		t.Errorf("unexpected request_id in %v", entries[1])
	}
	if GetRequestID(context.Background()) != "" {
		t.Error("empty context returned a request ID")
	}
}

func TestDomainEvents(t *testing.T) {
	out := captureLogOutput(LevelInfo, FormatJSON, func() {
		SearchEvent(context.Background(), "els", "תורה", 50, 3, false)
		ImportEvent("torah.xml", 5, 5845, 79847, 1500*time.Millisecond)
		WebSocketEvent("connect", 2)
		ServerStartup("api", "http", 8081)
	})
	entries := decodeLines(t, out)
	if len(entries) != 4 {
		t.Fatalf("got %d entries", len(entries))
	}
	if entries[0]["msg"] != "search" || entries[0]["skip"] != float64(50) || entries[0]["truncated"] != false {
		t.Errorf("search entry %v", entries[0])
	}
	if entries[1]["msg"] != "corpus_import" || entries[1]["duration_ms"] != float64(1500) {
		t.Errorf("import entry %v", entries[1])
	}
	if entries[2]["client_count"] != float64(2) {
		t.Errorf("websocket entry %v", entries[2])
	}
	if entries[3]["port"] != float64(8081) {
		t.Errorf("startup entry %v", entries[3])
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || rec.Header().Get("X-Request-ID") != seen {
		t.Errorf("generated id %q, header %q", seen, rec.Header().Get("X-Request-ID"))
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "given")
	h.ServeHTTP(rec, req)
	if seen != "given" {
		t.Errorf("request id = %q, want given", seen)
	}
}

func TestCombinedMiddlewareLogsStatus(t *testing.T) {
	out := captureLogOutput(LevelInfo, FormatJSON, func() {
		h := CombinedMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
			_, _ = w.Write([]byte("x"))
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	})
	entries := decodeLines(t, out)
	if len(entries) != 1 {
		t.Fatalf("got %d entries", len(entries))
	}
	e := entries[0]
	if e["msg"] != "http_request" || e["status_code"] != float64(http.StatusTeapot) || e["path"] != "/api/stats" {
		t.Errorf("unexpected entry %v", e)
	}
	if e["request_id"] == nil {
		t.Errorf("request id missing from %v", e)
	}
}

func TestHijackUnsupported(t *testing.T) {
	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	if _, _, err := rw.Hijack(); err == nil {
		t.Error("expected hijack error on recorder")
	}
}

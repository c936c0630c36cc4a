package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

const testAPIKey = "0123456789abcdef0123"

func TestAuthMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := AuthMiddleware(AuthConfig{Enabled: true, APIKey: testAPIKey}, ok)

	tests := []struct {
		name   string
		method string
		path   string
		header string
		want   int
	}{
		{"health is public", http.MethodGet, "/health", "", http.StatusOK},
		{"preflight passes", http.MethodOptions, "/api/search", "", http.StatusOK},
		{"missing key", http.MethodGet, "/api/stats", "", http.StatusUnauthorized},
		{"wrong key", http.MethodGet, "/api/stats", "wrong-key-wrong-key", http.StatusUnauthorized},
		{"valid key", http.MethodGet, "/api/stats", testAPIKey, http.StatusOK},
		{"ws query key", http.MethodGet, "/ws?api_key=" + testAPIKey, "", http.StatusOK},
		{"query key only on ws", http.MethodGet, "/api/stats?api_key=" + testAPIKey, "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("X-API-Key", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestAuthMiddlewareDisabled(t *testing.T) {
	called := false
	h := AuthMiddleware(AuthConfig{}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	if !called {
		t.Error("disabled auth blocked the request")
	}
}

func TestValidateAuthConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     AuthConfig
		wantErr bool
	}{
		{"disabled", AuthConfig{}, false},
		{"enabled without key", AuthConfig{Enabled: true}, true},
		{"short key", AuthConfig{Enabled: true, APIKey: "short"}, true},
		{"valid", AuthConfig{Enabled: true, APIKey: testAPIKey}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateAuthConfig(tt.cfg); (err != nil) != tt.wantErr {
				t.Errorf("ValidateAuthConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHandlerRequiresKey(t *testing.T) {
	s := New(Config{Version: "test", Auth: AuthConfig{Enabled: true, APIKey: testAPIKey}}, genesisEngine())
	h := s.Handler(t.Context())

	rec, resp := doRequest(t, h, http.MethodGet, "/api/stats", nil)
	expectError(t, rec, resp, http.StatusUnauthorized, "UNAUTHORIZED")

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("X-API-Key", testAPIKey)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("authorized status = %d", rec.Code)
	}

	rec, _ = doRequest(t, h, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}
}

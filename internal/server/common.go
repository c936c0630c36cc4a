// Package server holds the HTTP middleware shared by the guematrix API.
package server

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"
)

// SlowRequestThreshold is the duration above which TimingMiddleware warns.
const SlowRequestThreshold = 100 * time.Millisecond

// CORSConfig holds CORS middleware configuration.
type CORSConfig struct {
	AllowedOrigins []string // List of allowed origins, empty = allow all (*)
	AllowedMethods []string // Defaults to GET, POST, PUT, DELETE, OPTIONS
}

func (cfg CORSConfig) methods() string {
	if len(cfg.AllowedMethods) == 0 {
		return "GET, POST, PUT, DELETE, OPTIONS"
	}
	return strings.Join(cfg.AllowedMethods, ", ")
}

// CORSMiddlewareWithConfig adds CORS headers to responses.
// With no allowed origins every origin gets "*". Otherwise the request
// origin must be on the list: a preflight from any other origin is refused
// with 403 and a plain request is served without CORS headers, which makes
// the browser drop the response.
func CORSMiddlewareWithConfig(cfg CORSConfig, next http.Handler) http.Handler {
	methods := cfg.methods()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		allowedOrigin := "*"
		if len(cfg.AllowedOrigins) > 0 {
			w.Header().Add("Vary", "Origin")
			if !slices.Contains(cfg.AllowedOrigins, origin) {
				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			allowedOrigin = origin
		}

		w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Request-ID")
		w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, X-RateLimit-Remaining, Retry-After")
		if allowedOrigin != "*" {
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// TimingMiddleware logs the duration of every request at debug level, and
// of slow requests at warn level.
func TimingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		d := time.Since(start)
		if d > SlowRequestThreshold {
			logger.WarnContext(r.Context(), "slow request", "method", r.Method, "path", r.URL.Path, "duration_ms", d.Milliseconds())
			return
		}
		logger.DebugContext(r.Context(), "request timing", "method", r.Method, "path", r.URL.Path, "duration_ms", d.Milliseconds())
	})
}

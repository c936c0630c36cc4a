package api

import (
	"time"

	"github.com/FocuswithJustin/guematrix/internal/config"
)

// Config holds server configuration.
type Config struct {
	Port              int
	RateLimitRequests int        // Requests per minute (0 = disabled)
	RateLimitBurst    int        // Burst size
	Auth              AuthConfig // Authentication configuration
	AllowedOrigins    []string   // CORS and WebSocket allowed origins (empty = allow all)
	MaxBatch          int        // Largest reference batch accepted
	AutoMaxSkip       int        // Largest skip els_auto may scan; the default range end
	StatsTTL          time.Duration
	MatrixCols        int // Default window width for new sessions
	MatrixRows        int // Default window height for new sessions
	Version           string
}

// ConfigFrom maps the application configuration onto the server.
func ConfigFrom(cfg *config.Config, version string) Config {
	return Config{
		Port:              cfg.Server.Port,
		RateLimitRequests: cfg.Server.RateLimitRequests,
		RateLimitBurst:    cfg.Server.RateLimitBurst,
		Auth: AuthConfig{
			Enabled: cfg.Server.APIKey != "",
			APIKey:  cfg.Server.APIKey,
		},
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxBatch:       cfg.Refs.MaxBatch,
		AutoMaxSkip:    cfg.Search.AutoMaxSkip,
		StatsTTL:       cfg.Cache.StatsTTL,
		MatrixCols:     cfg.Matrix.Cols,
		MatrixRows:     cfg.Matrix.Rows,
		Version:        version,
	}
}

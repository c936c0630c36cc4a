package main

import (
	"context"

	"github.com/FocuswithJustin/guematrix/internal/api"
	"github.com/FocuswithJustin/guematrix/internal/logging"
	"github.com/FocuswithJustin/guematrix/internal/sessionstore"
)

// ServeCmd starts the REST API server.
type ServeCmd struct {
	Port     int    `help:"HTTP server port (overrides server.port)"`
	Sessions string `help:"Session database path (overrides sessions.path)" type:"path"`
	Preload  bool   `help:"Build the flattened corpus before accepting requests"`
}

func (c *ServeCmd) Run(ctx context.Context, g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}
	if c.Sessions != "" {
		cfg.Sessions.Path = c.Sessions
	}

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	var opts []api.Option
	if b.store != nil {
		opts = append(opts, api.WithStore(b.store))
	}
	if cfg.Sessions.Path != "" {
		ss, err := sessionstore.Open(cfg.Sessions.Path)
		if err != nil {
			return err
		}
		defer ss.Close()
		opts = append(opts, api.WithSessionStore(ss))
	}

	if c.Preload {
		f, err := b.engine.Corpus(ctx)
		if err != nil {
			return err
		}
		logging.Info("corpus preloaded", "letters", f.Len(), "words", f.WordCount())
	}

	return api.New(api.ConfigFrom(cfg, version), b.engine, opts...).Run(ctx)
}

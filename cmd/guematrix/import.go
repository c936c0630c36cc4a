package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/FocuswithJustin/guematrix/internal/ingest"
	"github.com/FocuswithJustin/guematrix/internal/logging"
)

// ImportCmd loads OSIS files into the corpus store.
type ImportCmd struct {
	Paths     []string `arg:"" help:"OSIS XML files" type:"existingfile"`
	Reset     bool     `help:"Delete the stored corpus first"`
	TorahOnly bool     `name:"torah-only" help:"Keep only Genesis through Deuteronomy"`
	Workers   int      `help:"Files parsed in parallel (default: half the CPUs)"`
}

func (c *ImportCmd) Run(ctx context.Context, g *Globals, out io.Writer) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()
	st, err := b.requireStore("import")
	if err != nil {
		return err
	}

	start := time.Now()
	parsed, err := ingest.ParseFiles(ctx, c.Paths, c.Workers, ingest.Options{TorahOnly: c.TorahOnly})
	if err != nil {
		return err
	}
	if c.Reset {
		if err := st.Reset(ctx); err != nil {
			return err
		}
	}
	stats, err := st.Import(ctx, parsed)
	if err != nil {
		return err
	}

	names := make([]string, len(c.Paths))
	for i, p := range c.Paths {
		names[i] = filepath.Base(p)
	}
	logging.ImportEvent(strings.Join(names, ","), stats.Books, stats.Verses, stats.Words, time.Since(start),
		"driver", cfg.Store.Driver, "reset", c.Reset)

	fmt.Fprintf(out, "Imported %d files\n", len(c.Paths))
	fmt.Fprintf(out, "  Books:    %d\n", stats.Books)
	fmt.Fprintf(out, "  Chapters: %d\n", stats.Chapters)
	fmt.Fprintf(out, "  Verses:   %d\n", stats.Verses)
	fmt.Fprintf(out, "  Words:    %d\n", stats.Words)
	return nil
}

// StatsCmd prints corpus statistics.
type StatsCmd struct{}

func (c *StatsCmd) Run(ctx context.Context, g *Globals, out io.Writer) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	f, err := b.engine.Corpus(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Corpus %s\n", f.Version)
	if b.store != nil {
		st, err := b.store.Stats(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  Books:    %d\n", st.Books)
		fmt.Fprintf(out, "  Chapters: %d\n", st.Chapters)
		fmt.Fprintf(out, "  Verses:   %d\n", st.Verses)
	}
	fmt.Fprintf(out, "  Words:    %d\n", f.WordCount())
	fmt.Fprintf(out, "  Letters:  %d\n", f.Len())
	return nil
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/FocuswithJustin/guematrix/core/coords"
	"github.com/FocuswithJustin/guematrix/core/engine"
	"github.com/FocuswithJustin/guematrix/core/search"
)

// SearchCmd runs one search and lists its matches.
type SearchCmd struct {
	Pattern string      `arg:"" help:"Hebrew pattern; for acrostics several words spell their first or last letters"`
	Mode    search.Mode `short:"m" default:"els" enum:"els,els_auto,tevot_first,tevot_last" help:"Search mode (els, els_auto, tevot_first, tevot_last)"`
	Skip    int         `short:"s" default:"1" help:"Letter skip for els, word skip for acrostics; may be negative"`
	MinSkip int         `name:"min-skip" help:"Smallest skip tried by els_auto"`
	MaxSkip int         `name:"max-skip" help:"Largest skip tried by els_auto (default and limit: search.auto_max_skip)"`
	Ref     string      `short:"r" help:"Restrict the search to a reference range such as Gen.1-3"`
	Limit   int         `short:"n" help:"Maximum matches (default: search.max_results)"`
	JSON    bool        `name:"json" help:"Print the result as JSON"`
}

// query builds the search; an els_auto range is capped at autoMaxSkip.
func (c *SearchCmd) query(autoMaxSkip int) (search.Query, error) {
	spec, err := search.Spec{Mode: c.Mode, Skip: c.Skip, MinSkip: c.MinSkip, MaxSkip: c.MaxSkip}.Capped(autoMaxSkip)
	if err != nil {
		return nil, err
	}
	return spec.Query()
}

// searchMatch is one listed match with the reference of its center letter.
type searchMatch struct {
	Start   int              `json:"start"`
	Letters []int            `json:"letters"`
	Ref     coords.Reference `json:"ref"`
}

func (c *SearchCmd) Run(ctx context.Context, g *Globals, out io.Writer) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	q, err := c.query(cfg.Search.AutoMaxSkip)
	if err != nil {
		return err
	}
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	var opts []search.Option
	if c.Ref != "" {
		bounds, err := b.engine.Bounds(ctx, c.Ref)
		if err != nil {
			return err
		}
		opts = append(opts, search.WithBounds(bounds.Lo, bounds.Hi))
	}
	if c.Limit > 0 {
		opts = append(opts, search.WithMaxResults(c.Limit))
	}
	res, err := b.engine.Search(ctx, c.Pattern, q, opts...)
	if err != nil {
		return err
	}
	matches, err := describeMatches(ctx, b.engine, res)
	if err != nil {
		return err
	}

	if c.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"pattern":   res.Pattern,
			"mode":      res.Mode,
			"skip":      res.Skip(),
			"truncated": res.Truncated(),
			"matches":   matches,
		})
	}

	fmt.Fprintf(out, "Pattern %s  mode %s  skip %d  matches %d", res.Pattern, res.Mode, res.Skip(), len(res.Matches))
	if res.Truncated() {
		fmt.Fprintf(out, " (truncated at %d)", res.Limit)
	}
	fmt.Fprintln(out)
	for i, m := range matches {
		fmt.Fprintf(out, "%4d. start %-8d %s\n", i+1, m.Start, formatRef(m.Ref))
	}
	return nil
}

// describeMatches resolves the center of every match in batches the
// reference resolver accepts.
func describeMatches(ctx context.Context, eng *engine.Engine, res search.Result) ([]searchMatch, error) {
	f, err := eng.Corpus(ctx)
	if err != nil {
		return nil, err
	}
	matches := make([]searchMatch, len(res.Matches))
	centers := make([]int, len(res.Matches))
	for i, start := range res.Matches {
		matches[i] = searchMatch{Start: start, Letters: res.Layout.LetterIndices(f, start)}
		centers[i] = res.Layout.Center(f, start)
	}
	for lo := 0; lo < len(centers); lo += coords.MaxBatch {
		hi := min(lo+coords.MaxBatch, len(centers))
		refs, err := eng.ResolveReferences(ctx, centers[lo:hi], false)
		if err != nil {
			return nil, err
		}
		for j, r := range refs {
			matches[lo+j].Ref = r
		}
	}
	return matches, nil
}

func formatRef(r coords.Reference) string {
	if !r.Found {
		return "(no reference)"
	}
	return fmt.Sprintf("%s %d:%d word %d %s", r.Book, r.Chapter, r.Verse, r.WordIndex, r.WordText)
}

// RefsCmd resolves letter indices.
type RefsCmd struct {
	Indices  []int `arg:"" help:"Letter indices in the flattened corpus"`
	WithText bool  `name:"text" short:"t" help:"Include the verse text"`
}

func (c *RefsCmd) Run(ctx context.Context, g *Globals, out io.Writer) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	indices := c.Indices
	if len(indices) > cfg.Refs.MaxBatch {
		indices = indices[:cfg.Refs.MaxBatch]
	}
	refs, err := b.engine.ResolveReferences(ctx, indices, c.WithText)
	if err != nil {
		return err
	}
	for _, r := range refs {
		fmt.Fprintf(out, "%-8d %s\n", r.Index, formatRef(r))
		if r.Text != "" {
			fmt.Fprintf(out, "         %s\n", r.Text)
		}
	}
	return nil
}

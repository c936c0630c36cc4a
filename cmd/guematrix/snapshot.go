package main

import (
	"context"
	"fmt"
	"io"

	gerrors "github.com/FocuswithJustin/guematrix/core/errors"
	"github.com/FocuswithJustin/guematrix/internal/snapshot"
)

// SnapshotCmds groups the snapshot commands.
type SnapshotCmds struct {
	Export SnapshotExportCmd `cmd:"" help:"Write the flattened corpus to a snapshot file"`
	Verify SnapshotVerifyCmd `cmd:"" help:"Check a snapshot's content hash"`
}

// SnapshotExportCmd writes the current corpus to a snapshot.
type SnapshotExportCmd struct {
	Out string `arg:"" help:"Output file (.json.xz)" type:"path"`
}

func (c *SnapshotExportCmd) Run(ctx context.Context, g *Globals, out io.Writer) error {
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
	h, err := snapshot.WriteFile(c.Out, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote %s\n", c.Out)
	printHeader(out, h)
	return nil
}

// SnapshotVerifyCmd reads a snapshot and recomputes its version. With
// --against the snapshot must also match the configured corpus.
type SnapshotVerifyCmd struct {
	Path    string `arg:"" help:"Snapshot file" type:"existingfile"`
	Against bool   `help:"Compare with the configured corpus source"`
}

func (c *SnapshotVerifyCmd) Run(ctx context.Context, g *Globals, out io.Writer) error {
	_, h, err := snapshot.ReadFile(c.Path)
	if err != nil {
		return err
	}
	printHeader(out, h)

	if c.Against {
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
		if f.Version != h.Version {
			return gerrors.NewValidation("snapshot", fmt.Sprintf("version %s differs from corpus %s", h.Version, f.Version))
		}
		fmt.Fprintln(out, "Matches the configured corpus")
	}
	fmt.Fprintln(out, "OK")
	return nil
}

func printHeader(out io.Writer, h snapshot.Header) {
	fmt.Fprintf(out, "  Format:  %s v%d\n", h.Format, h.FormatVersion)
	fmt.Fprintf(out, "  Created: %s\n", h.Created.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "  Version: %s\n", h.Version)
	fmt.Fprintf(out, "  Letters: %d\n", h.Letters)
	fmt.Fprintf(out, "  Words:   %d\n", h.Words)
}

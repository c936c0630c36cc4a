package main

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/FocuswithJustin/guematrix/core/engine"
	gerrors "github.com/FocuswithJustin/guematrix/core/errors"
	"github.com/FocuswithJustin/guematrix/core/matrix"
	"github.com/FocuswithJustin/guematrix/core/search"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#0AF"))

	intersectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFF")).Background(lipgloss.Color("#DC2626"))

	plainStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888"))
)

// MatrixCmd lays several searches over one letter matrix. The first query
// that has matches is the base; the others are selected automatically when
// one of their matches falls inside the window.
type MatrixCmd struct {
	Queries []string `arg:"" help:"Queries as PATTERN[/MODE[/SKIP]], e.g. ברא/els/1 or משה/tevot_first/2"`
	Match   int      `default:"0" help:"Match of the first query to center on"`
	Cols    int      `help:"Matrix width (default: matrix.cols)"`
	Rows    int      `help:"Matrix height (default: matrix.rows)"`
	Ref     string   `short:"r" help:"Restrict every query to a reference range"`
	LTR     bool     `name:"ltr" help:"Print rows left to right"`
	NoColor bool     `name:"no-color" help:"Mark owned letters with brackets instead of colors"`
}

// parseQueryArg splits PATTERN[/MODE[/SKIP]].
func parseQueryArg(arg string) (string, search.Query, error) {
	parts := strings.Split(arg, "/")
	if len(parts) > 3 || strings.TrimSpace(parts[0]) == "" {
		return "", nil, gerrors.NewValidation("query", fmt.Sprintf("%q is not PATTERN[/MODE[/SKIP]]", arg))
	}
	spec := search.Spec{Mode: search.ModeELS, Skip: 1}
	if len(parts) > 1 && parts[1] != "" {
		spec.Mode = search.Mode(parts[1])
	}
	if len(parts) > 2 {
		n, err := strconv.Atoi(parts[2])
		if err != nil {
			return "", nil, gerrors.NewValidation("query", fmt.Sprintf("skip %q is not a number", parts[2]))
		}
		if spec.Mode == search.ModeELSAuto {
			spec.Skip = 0
			spec.MaxSkip = n
		} else {
			spec.Skip = n
		}
	}
	q, err := spec.Query()
	if err != nil {
		return "", nil, err
	}
	return parts[0], q, nil
}

func (c *MatrixCmd) Run(ctx context.Context, g *Globals, out io.Writer) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	type parsed struct {
		input string
		query search.Query
	}
	queries := make([]parsed, len(c.Queries))
	for i, arg := range c.Queries {
		input, q, err := parseQueryArg(arg)
		if err != nil {
			return err
		}
		spec, err := search.SpecOf(q).Capped(cfg.Search.AutoMaxSkip)
		if err != nil {
			return err
		}
		if q, err = spec.Query(); err != nil {
			return err
		}
		queries[i] = parsed{input, q}
	}

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	sess, err := b.engine.NewSession(ctx)
	if err != nil {
		return err
	}
	sess.SetDimensions(
		matrix.ClampCols(orDefault(c.Cols, cfg.Matrix.Cols)),
		matrix.ClampRows(orDefault(c.Rows, cfg.Matrix.Rows)),
	)
	sess.SetAutoSelect(true)

	for i, pq := range queries {
		q, err := sess.AddQuery(ctx, engine.AddRequest{Input: pq.input, Query: pq.query, Range: c.Ref})
		if err != nil {
			return err
		}
		if i == 0 {
			if len(q.Matches) == 0 {
				return gerrors.NewNotFound("match", q.Pattern)
			}
			if err := sess.SelectMatch(q.ID, c.Match); err != nil {
				return err
			}
		}
	}

	view, err := sess.View()
	if err != nil {
		return err
	}
	legend, err := sess.Legend(ctx)
	if err != nil {
		return err
	}

	colors := make([]string, 0, len(queries))
	for _, q := range sess.Queries() {
		colors = append(colors, q.Color)
	}
	w := view.Window
	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Letters %d-%d  %dx%d  center %d",
		w.StartIndex, w.EndIndex, w.Cols, w.Rows, w.Center)))
	for _, row := range view.Cells {
		fmt.Fprintln(out, c.renderRow(row, colors))
	}
	fmt.Fprintln(out)
	for _, e := range legend {
		swatch := "■"
		if !c.NoColor {
			swatch = lipgloss.NewStyle().Foreground(lipgloss.Color(e.Color)).Render(swatch)
		}
		fmt.Fprintf(out, "%s %s  letter %d  %s\n", swatch, e.Pattern, e.Center, formatRef(e.Ref))
	}
	for _, q := range sess.Queries() {
		if !q.HasSelection() {
			fmt.Fprintf(out, "  %s  %d matches, none in this window\n", q.Pattern, len(q.Matches))
		}
	}
	return nil
}

// orDefault returns v, or def when v is zero.
func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func (c *MatrixCmd) renderRow(row []matrix.Cell, colors []string) string {
	cells := make([]string, 0, len(row))
	for _, cell := range row {
		cells = append(cells, c.renderCell(cell, colors))
	}
	if !c.LTR {
		slices.Reverse(cells)
	}
	return strings.Join(cells, " ")
}

func (c *MatrixCmd) renderCell(cell matrix.Cell, colors []string) string {
	ch := cell.Char
	if cell.Class == matrix.ClassBlank {
		return " "
	}
	if c.NoColor {
		switch {
		case cell.Center:
			return "(" + ch + ")"
		case cell.Class == matrix.ClassIntersection:
			return "{" + ch + "}"
		case cell.Class == matrix.ClassOwned:
			return "[" + ch + "]"
		}
		return ch
	}

	var style lipgloss.Style
	switch cell.Class {
	case matrix.ClassIntersection:
		style = intersectionStyle
	case matrix.ClassOwned:
		style = lipgloss.NewStyle().Bold(true)
		if owner := cell.Owners[0]; owner < len(colors) {
			style = style.Foreground(lipgloss.Color(colors[owner]))
		}
	default:
		style = plainStyle
	}
	if cell.Center {
		style = style.Underline(true)
	}
	return style.Render(ch)
}

// Package matrix lays the flattened corpus out as a grid of fixed width and
// computes the window of rows shown around a center letter.
package matrix

import (
	"fmt"

	gerrors "github.com/FocuswithJustin/guematrix/core/errors"
)

const (
	DefaultCols = 50
	MinCols     = 10
	MaxCols     = 200
	DefaultRows = 20
	MinRows     = 5
	MaxRows     = 200
)

// ClampCols bounds a requested width. Zero selects the default.
func ClampCols(n int) int { return clamp(n, DefaultCols, MinCols, MaxCols) }

// ClampRows bounds a requested height. Zero selects the default.
func ClampRows(n int) int { return clamp(n, DefaultRows, MinRows, MaxRows) }

func clamp(n, def, lo, hi int) int {
	if n == 0 {
		return def
	}
	return max(lo, min(hi, n))
}

// Window is a run of whole rows of the grid.
type Window struct {
	Center     int `json:"center"`
	Cols       int `json:"cols"`
	Rows       int `json:"rows"`
	StartRow   int `json:"startRow"`
	EndRow     int `json:"endRow"`
	StartIndex int `json:"startIndex"`
	EndIndex   int `json:"endIndex"`
	Length     int `json:"length"`
}

// Compute centers a window of rows x cols on the center letter. The window
// is shifted to stay inside the grid, so it is only truly centered away
// from the ends of the corpus.
func Compute(center, cols, rows, length int) (Window, error) {
	if cols <= 0 || rows <= 0 {
		return Window{}, gerrors.NewValidation("window", fmt.Sprintf("cols and rows must be positive, got %dx%d", cols, rows))
	}
	if center < 0 || center >= length {
		return Window{}, gerrors.NewSearchf(gerrors.KindIndexOutOfRange, "center %d not in [0,%d)", center, length)
	}
	centerRow := center / cols
	startRow := max(0, centerRow-rows/2)
	endRow := startRow + rows
	maxRow := (length + cols - 1) / cols
	if endRow > maxRow {
		endRow = maxRow
		startRow = max(0, endRow-rows)
	}
	return Window{
		Center:     center,
		Cols:       cols,
		Rows:       rows,
		StartRow:   startRow,
		EndRow:     endRow,
		StartIndex: startRow * cols,
		EndIndex:   min(length-1, endRow*cols-1),
		Length:     length,
	}, nil
}

// Contains reports whether letter idx is inside the window.
func (w Window) Contains(idx int) bool {
	return idx >= w.StartIndex && idx <= w.EndIndex
}

// RowCount returns the number of rows actually covered.
func (w Window) RowCount() int { return w.EndRow - w.StartRow }

// Class describes how a cell is highlighted.
type Class int

const (
	// ClassBlank is a cell past the end of the corpus.
	ClassBlank Class = iota
	// ClassPlain is a letter no query owns.
	ClassPlain
	// ClassOwned is a letter owned by exactly one query.
	ClassOwned
	// ClassIntersection is a letter owned by more than one query.
	ClassIntersection
)

func (c Class) String() string {
	switch c {
	case ClassPlain:
		return "plain"
	case ClassOwned:
		return "owned"
	case ClassIntersection:
		return "intersection"
	}
	return "blank"
}

// MarshalText encodes the class by name.
func (c Class) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// Cell is one grid position.
type Cell struct {
	Index  int    `json:"index"`
	Letter rune   `json:"-"`
	Char   string `json:"char"`
	Owners []int  `json:"owners,omitempty"`
	Class  Class  `json:"class"`
	Center bool   `json:"center,omitempty"`
}

// Cells fills the window row by row. owners maps a letter index to the
// queries that own it; center is the highlighted letter, or -1.
func (w Window) Cells(letters []rune, owners map[int][]int, center int) [][]Cell {
	grid := make([][]Cell, 0, w.RowCount())
	for row := w.StartRow; row < w.EndRow; row++ {
		line := make([]Cell, w.Cols)
		for col := 0; col < w.Cols; col++ {
			idx := row*w.Cols + col
			c := Cell{Index: idx}
			if idx < len(letters) {
				c.Letter = letters[idx]
				c.Char = string(c.Letter)
				c.Owners = owners[idx]
				switch {
				case len(c.Owners) > 1:
					c.Class = ClassIntersection
				case len(c.Owners) == 1:
					c.Class = ClassOwned
				default:
					c.Class = ClassPlain
				}
				c.Center = idx == center
			}
			line[col] = c
		}
		grid = append(grid, line)
	}
	return grid
}

package search

import (
	"github.com/FocuswithJustin/guematrix/core/corpus"
	"github.com/FocuswithJustin/guematrix/core/hebrew"
)

// Unit is what a match start indexes: letters for ELS, words for acrostics.
type Unit int

const (
	UnitLetter Unit = iota
	UnitWord
)

func (u Unit) String() string {
	if u == UnitWord {
		return "word"
	}
	return "letter"
}

// Layout describes how a match of a given start sits in the corpus.
type Layout struct {
	Unit   Unit        `json:"unit"`
	Edge   hebrew.Edge `json:"edge"`
	Skip   int         `json:"skip"`
	Length int         `json:"length"`
}

// LayoutOf returns the layout for q with the given effective skip.
func LayoutOf(q Query, skip, length int) Layout {
	switch q.(type) {
	case AcrosticFirst:
		return Layout{Unit: UnitWord, Edge: hebrew.EdgeFirst, Skip: skip, Length: length}
	case AcrosticLast:
		return Layout{Unit: UnitWord, Edge: hebrew.EdgeLast, Skip: skip, Length: length}
	}
	return Layout{Unit: UnitLetter, Skip: skip, Length: length}
}

// LetterIndices returns the letter positions of the match starting at start.
// For word layouts a position that falls outside the corpus is omitted.
func (l Layout) LetterIndices(f *corpus.Flat, start int) []int {
	out := make([]int, 0, l.Length)
	for i := 0; i < l.Length; i++ {
		pos := start + i*l.Skip
		if l.Unit == UnitLetter {
			out = append(out, pos)
			continue
		}
		if pos < 0 || pos >= f.WordCount() {
			continue
		}
		out = append(out, l.edgeLetter(f, pos))
	}
	return out
}

// Center returns the letter a matrix view of this match is centered on:
// the start letter for ELS, or the first or last letter of the start word.
func (l Layout) Center(f *corpus.Flat, start int) int {
	if l.Unit == UnitLetter {
		return start
	}
	if start < 0 || start >= f.WordCount() {
		return -1
	}
	return l.edgeLetter(f, start)
}

func (l Layout) edgeLetter(f *corpus.Flat, w int) int {
	if l.Edge == hebrew.EdgeLast {
		return f.WordEnd[w]
	}
	return f.WordStart[w]
}

// Package hebrew normalizes Hebrew text into the 22-letter alphabet used by
// the flattened corpus and the search patterns.
//
// Normalization decomposes the input (NFD), drops every combining mark
// (niqqud and cantillation) and keeps only the base letters U+05D0..U+05EA,
// final forms included. Presentation forms such as U+FB2A decompose to their
// base letter first, so pointed input and consonantal input normalize to the
// same string.
package hebrew

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// FirstLetter is ALEF.
	FirstLetter = 'א'
	// LastLetter is TAV.
	LastLetter = 'ת'
	// Maqaf joins words in the Masoretic text.
	Maqaf = '־'
)

// IsLetter reports whether r is a Hebrew base letter, final forms included.
func IsLetter(r rune) bool {
	return r >= FirstLetter && r <= LastLetter
}

func stripper() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
}

// Letters returns only the Hebrew base letters of s, in order.
func Letters(s string) string {
	stripped, _, err := transform.String(stripper(), s)
	if err != nil {
		stripped = s
	}
	var b strings.Builder
	b.Grow(len(stripped))
	for _, r := range stripped {
		if IsLetter(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// StripMarks removes niqqud and cantillation but keeps every other rune.
func StripMarks(s string) string {
	stripped, _, err := transform.String(stripper(), s)
	if err != nil {
		return s
	}
	return stripped
}

// Words splits s on whitespace and maqaf and returns the letters of each
// token. Tokens with no Hebrew letters are dropped.
func Words(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == Maqaf
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if w := Letters(f); w != "" {
			out = append(out, w)
		}
	}
	return out
}

// Edge selects the first or last letter of a word.
type Edge int

const (
	EdgeFirst Edge = iota
	EdgeLast
)

func (e Edge) String() string {
	if e == EdgeLast {
		return "last"
	}
	return "first"
}

// AcrosticPattern turns a multi-word input into the string formed by the
// first (or last) letter of each word. Input with fewer than two words is
// returned as its plain letters.
func AcrosticPattern(s string, edge Edge) string {
	words := Words(s)
	if len(words) < 2 {
		return Letters(s)
	}
	var b strings.Builder
	for _, w := range words {
		r := []rune(w)
		if edge == EdgeLast {
			b.WriteRune(r[len(r)-1])
		} else {
			b.WriteRune(r[0])
		}
	}
	return b.String()
}

var finalToMedial = map[rune]rune{
	'ך': 'כ',
	'ם': 'מ',
	'ן': 'נ',
	'ף': 'פ',
	'ץ': 'צ',
}

// FoldFinals maps the five final forms to their medial letters.
func FoldFinals(s string) string {
	return strings.Map(func(r rune) rune {
		if m, ok := finalToMedial[r]; ok {
			return m
		}
		return r
	}, s)
}

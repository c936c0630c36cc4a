// Package search finds equidistant letter sequences (ELS) and word acrostics
// (tevot) in a flattened corpus.
//
// An ELS match is a start letter index s such that pattern[i] equals the
// letter at s+i*skip for every i, with every position inside the search
// bounds. An acrostic match is a start word index w such that pattern[i]
// equals the first (or last) letter of word w+i*skip.
//
// Matches are returned in ascending start order and capped at MaxResults.
// A result that reached the cap is reported as truncated.
package search

import (
	"github.com/FocuswithJustin/guematrix/core/corpus"
	gerrors "github.com/FocuswithJustin/guematrix/core/errors"
	"github.com/FocuswithJustin/guematrix/core/hebrew"
)

// Bounds is an inclusive letter index range.
type Bounds struct {
	Lo int `json:"lo"`
	Hi int `json:"hi"`
}

// Contains reports whether idx lies within b.
func (b Bounds) Contains(idx int) bool { return idx >= b.Lo && idx <= b.Hi }

// Empty reports whether b covers no index.
func (b Bounds) Empty() bool { return b.Lo > b.Hi }

func (b Bounds) clamp(n int) Bounds {
	if b.Lo < 0 {
		b.Lo = 0
	}
	if b.Hi > n-1 {
		b.Hi = n - 1
	}
	return b
}

// Options tune a search.
type Options struct {
	// Bounds restricts every matched letter. Nil means the whole corpus.
	Bounds *Bounds
	// MaxResults caps the number of matches. Zero means DefaultMaxResults.
	MaxResults int
}

// Option configures Options.
type Option func(*Options)

// WithBounds restricts the search to letters in [lo, hi].
func WithBounds(lo, hi int) Option {
	return func(o *Options) { o.Bounds = &Bounds{Lo: lo, Hi: hi} }
}

// WithMaxResults sets the match cap.
func WithMaxResults(n int) Option {
	return func(o *Options) { o.MaxResults = n }
}

// Result holds the matches of one search.
type Result struct {
	Pattern string `json:"pattern"`
	Mode    Mode   `json:"mode"`
	Layout  Layout `json:"layout"`
	Matches []int  `json:"matches"`
	Limit   int    `json:"limit"`
}

// Skip returns the effective skip. An AutoELS search that found nothing
// reports zero.
func (r Result) Skip() int { return r.Layout.Skip }

// Found reports whether there is at least one match.
func (r Result) Found() bool { return len(r.Matches) > 0 }

// Truncated reports whether the match cap was reached.
func (r Result) Truncated() bool { return r.Limit > 0 && len(r.Matches) >= r.Limit }

// Run normalizes raw and searches f for it.
func Run(f *corpus.Flat, raw string, q Query, opts ...Option) (Result, error) {
	return RunPattern(f, NormalizePattern(raw, q), q, opts...)
}

// RunPattern searches f for an already normalized pattern.
func RunPattern(f *corpus.Flat, pattern string, q Query, opts ...Option) (Result, error) {
	o := Options{}
	for _, opt := range opts {
		opt(&o)
	}
	limit := o.MaxResults
	if limit <= 0 {
		limit = DefaultMaxResults
	}
	b := Bounds{Lo: 0, Hi: f.Len() - 1}
	if o.Bounds != nil {
		b = o.Bounds.clamp(f.Len())
	}

	pat := []rune(pattern)
	if len(pat) == 0 {
		return Result{}, gerrors.NewSearch(gerrors.KindInvalidPattern, "pattern has no Hebrew letters")
	}
	res := Result{Pattern: pattern, Mode: q.Mode(), Limit: limit}

	switch q := q.(type) {
	case FixedELS:
		if q.Skip == 0 {
			return Result{}, gerrors.NewSearch(gerrors.KindInvalidSkip, "skip must not be zero")
		}
		res.Matches = fixedELS(f.Letters, pat, q.Skip, b, limit)
		res.Layout = LayoutOf(q, q.Skip, len(pat))
	case AutoELS:
		lo, hi, err := q.Range()
		if err != nil {
			return Result{}, err
		}
		skip, matches := autoELS(f.Letters, pat, lo, hi, b, limit)
		res.Matches = matches
		res.Layout = LayoutOf(q, skip, len(pat))
	case AcrosticFirst:
		m, err := acrostic(f, pat, q.Skip, hebrew.EdgeFirst, b, limit)
		if err != nil {
			return Result{}, err
		}
		res.Matches = m
		res.Layout = LayoutOf(q, q.Skip, len(pat))
	case AcrosticLast:
		m, err := acrostic(f, pat, q.Skip, hebrew.EdgeLast, b, limit)
		if err != nil {
			return Result{}, err
		}
		res.Matches = m
		res.Layout = LayoutOf(q, q.Skip, len(pat))
	default:
		return Result{}, gerrors.NewUnsupported("search mode", "unknown query type")
	}
	if res.Matches == nil {
		res.Matches = []int{}
	}
	return res, nil
}

func fixedELS(letters, pat []rune, skip int, b Bounds, limit int) []int {
	var matches []int
	if b.Empty() {
		return matches
	}
	if !fits(skip, len(pat), b.Hi-b.Lo) {
		return matches
	}
	span := (len(pat) - 1) * skip
	from, to := b.Lo, b.Hi
	if span > 0 {
		to = b.Hi - span
	} else {
		from = b.Lo - span
	}
	for s := from; s <= to; s++ {
		ok := true
		for i, r := range pat {
			if letters[s+i*skip] != r {
				ok = false
				break
			}
		}
		if ok {
			matches = append(matches, s)
			if len(matches) >= limit {
				break
			}
		}
	}
	return matches
}

// autoELS keeps the skip with strictly more matches, so ties go to the
// smallest skip. It stops early once a skip reaches the cap, once the skip
// no longer fits inside the bounds, and after the first skip of a one-letter
// pattern, which matches the same letters at every skip.
func autoELS(letters, pat []rune, lo, hi int, b Bounds, limit int) (int, []int) {
	bestSkip := 0
	var best []int
	for skip := lo; skip <= hi; skip++ {
		if !fits(skip, len(pat), b.Hi-b.Lo) {
			break
		}
		m := fixedELS(letters, pat, skip, b, limit)
		if len(m) > len(best) {
			bestSkip, best = skip, m
			if len(best) >= limit {
				break
			}
		}
		if len(pat) == 1 {
			break
		}
	}
	return bestSkip, best
}

// fits reports whether k positions spaced skip apart can lie within a
// range whose ends are width apart. It never multiplies, so huge skips
// cannot overflow.
func fits(skip, k, width int) bool {
	if k <= 1 {
		return width >= 0
	}
	if width < 0 {
		return false
	}
	reach := width / (k - 1)
	return skip <= reach && skip >= -reach
}

func acrostic(f *corpus.Flat, pat []rune, skip int, edge hebrew.Edge, b Bounds, limit int) ([]int, error) {
	if skip == 0 {
		return nil, gerrors.NewSearch(gerrors.KindInvalidSkip, "word skip must not be zero")
	}
	if !f.HasBoundaries() {
		return nil, gerrors.NewSearch(gerrors.KindMissingBoundaryData, "corpus has no word boundaries")
	}
	edges := f.WordStart
	if edge == hebrew.EdgeLast {
		edges = f.WordEnd
	}
	words := len(edges)
	if !fits(skip, len(pat), words-1) {
		return []int{}, nil
	}
	span := (len(pat) - 1) * skip

	var matches []int
	for w := 0; w < words; w++ {
		if end := w + span; end < 0 || end >= words {
			continue
		}
		ok := true
		for i, r := range pat {
			li := edges[w+i*skip]
			if !b.Contains(li) || f.Letters[li] != r {
				ok = false
				break
			}
		}
		if ok {
			matches = append(matches, w)
			if len(matches) >= limit {
				break
			}
		}
	}
	return matches, nil
}

// Package ref parses scripture references such as "Gen.1.1", "Gen 1:1-5",
// "Gen.1-3" or "Gen.1.1-Exod.2.3" into a resolved range.
package ref

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	gerrors "github.com/FocuswithJustin/guematrix/core/errors"
)

// Point is a book, chapter or verse. Zero Chapter means the whole book and
// zero Verse means the whole chapter.
type Point struct {
	Book    string `json:"book"`
	Chapter int    `json:"chapter,omitempty"`
	Verse   int    `json:"verse,omitempty"`
}

// String returns the OSIS form of the point.
func (p Point) String() string {
	var sb strings.Builder
	sb.WriteString(p.Book)
	if p.Chapter > 0 {
		sb.WriteString(".")
		sb.WriteString(strconv.Itoa(p.Chapter))
		if p.Verse > 0 {
			sb.WriteString(".")
			sb.WriteString(strconv.Itoa(p.Verse))
		}
	}
	return sb.String()
}

// Range is an inclusive span between two points.
type Range struct {
	Start Point `json:"start"`
	End   Point `json:"end"`
}

// IsSingle reports whether the range names one point.
func (r Range) IsSingle() bool { return r.Start == r.End }

// String returns the OSIS form of the range.
func (r Range) String() string {
	if r.IsSingle() {
		return r.Start.String()
	}
	return r.Start.String() + "-" + r.End.String()
}

//nolint:govet // participle grammar tags are not standard struct tags
type rangeGrammar struct {
	Start *pointGrammar `@@`
	End   *endGrammar   `( "-" @@ )?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type pointGrammar struct {
	Book    string          `@Book`
	Chapter *chapterGrammar `( ( "." | ":" )? @@ )?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type chapterGrammar struct {
	Number int  `@Int`
	Verse  *int `( ( "." | ":" ) @Int )?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type endGrammar struct {
	Point   *pointGrammar   `  @@`
	Numbers *chapterGrammar `| @@`
}

// Book names may carry a leading ordinal ("1Kgs"); the rule is listed
// before Int so "1Kgs" lexes as one token.
var refLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Book", Pattern: `[1-3]?[A-Z][A-Za-z]*`},
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Punct", Pattern: `[.:\-]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var refParser = participle.MustBuild[rangeGrammar](
	participle.Lexer(refLexer),
	participle.Elide("Whitespace"),
)

// Parse parses a reference or reference range.
func Parse(s string) (Range, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Range{}, gerrors.NewParse("reference", "", "empty reference")
	}
	parsed, err := refParser.ParseString("", s)
	if err != nil {
		return Range{}, &gerrors.ParseError{Format: "reference", Message: fmt.Sprintf("%q: %v", s, err), Err: err}
	}

	start := parsed.Start.point()
	if parsed.End == nil {
		return Range{Start: start, End: start}, nil
	}

	var end Point
	switch {
	case parsed.End.Point != nil:
		end = parsed.End.Point.point()
	case parsed.End.Numbers.Verse != nil:
		end = Point{Book: start.Book, Chapter: parsed.End.Numbers.Number, Verse: *parsed.End.Numbers.Verse}
	case start.Verse > 0:
		end = Point{Book: start.Book, Chapter: start.Chapter, Verse: parsed.End.Numbers.Number}
	case start.Chapter > 0:
		end = Point{Book: start.Book, Chapter: parsed.End.Numbers.Number}
	default:
		return Range{}, gerrors.NewParse("reference", "", fmt.Sprintf("%q: a book cannot end at a number", s))
	}
	return Range{Start: start, End: end}, nil
}

func (g *pointGrammar) point() Point {
	p := Point{Book: g.Book}
	if g.Chapter != nil {
		p.Chapter = g.Chapter.Number
		if g.Chapter.Verse != nil {
			p.Verse = *g.Chapter.Verse
		}
	}
	return p
}

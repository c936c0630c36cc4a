package engine

import (
	"context"

	gerrors "github.com/FocuswithJustin/guematrix/core/errors"
	"github.com/FocuswithJustin/guematrix/core/search"
)

// ExcerptRadius is the number of letters shown on each side of a match
// center in a preview.
const ExcerptRadius = 45

// Preview shows what one match spells and the text around it.
type Preview struct {
	Start   int    `json:"start"`
	Center  int    `json:"center"`
	Indices []int  `json:"indices"`
	Letters string `json:"letters"`
	// Excerpt holds the letters from ExcerptStart up to ExcerptRadius past
	// the center. Marks[i] is set when Excerpt[i] belongs to the match.
	Excerpt      string `json:"excerpt"`
	ExcerptStart int    `json:"excerptStart"`
	Marks        []bool `json:"marks"`
}

// Preview builds the preview of the match starting at start.
func (e *Engine) Preview(ctx context.Context, layout search.Layout, start int) (Preview, error) {
	f, err := e.Corpus(ctx)
	if err != nil {
		return Preview{}, err
	}
	m, err := e.Mapper(ctx)
	if err != nil {
		return Preview{}, err
	}
	center := layout.Center(f, start)
	if center < 0 {
		return Preview{}, gerrors.NewSearchf(gerrors.KindIndexOutOfRange, "match start %d", start)
	}
	indices := layout.LetterIndices(f, start)
	letters := make([]rune, 0, len(indices))
	for _, i := range indices {
		if i < 0 || i >= f.Len() {
			return Preview{}, gerrors.NewSearchf(gerrors.KindIndexOutOfRange, "letter %d not in [0,%d)", i, f.Len())
		}
		letters = append(letters, f.Letters[i])
	}
	excerpt, from, err := m.Excerpt(center, ExcerptRadius)
	if err != nil {
		return Preview{}, err
	}
	marks := make([]bool, len([]rune(excerpt)))
	for _, i := range indices {
		if off := i - from; off >= 0 && off < len(marks) {
			marks[off] = true
		}
	}
	return Preview{
		Start:        start,
		Center:       center,
		Indices:      indices,
		Letters:      string(letters),
		Excerpt:      excerpt,
		ExcerptStart: from,
		Marks:        marks,
	}, nil
}

// Preview builds the preview of the match at position pos of the query's
// match list. A negative pos previews the selected match.
func (s *Session) Preview(ctx context.Context, id string, pos int) (Preview, error) {
	if err := s.Sync(ctx); err != nil {
		return Preview{}, err
	}
	s.mu.Lock()
	q := s.overlay.Get(id)
	if q == nil {
		s.mu.Unlock()
		return Preview{}, gerrors.NewNotFound("query", id)
	}
	layout := q.Layout
	var start int
	switch {
	case pos < 0 && q.HasSelection():
		start = *q.Selected
	case pos < 0:
		s.mu.Unlock()
		return Preview{}, gerrors.NewValidation("match", "query "+id+" has no selected match")
	case pos >= len(q.Matches):
		s.mu.Unlock()
		return Preview{}, gerrors.NewSearchf(gerrors.KindIndexOutOfRange, "match %d of %d", pos, len(q.Matches))
	default:
		start = q.Matches[pos]
	}
	s.mu.Unlock()
	return s.engine.Preview(ctx, layout, start)
}

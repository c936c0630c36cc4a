// Package ingest reads OSIS XML (for example the Open Scriptures Hebrew
// Bible) into an in-memory corpus.
//
// Books are div elements with type="book"; verses are verse elements with an
// osisID such as "Gen.1.1". A verse's words are its w elements, with the
// "/" morpheme separators removed. A verse without w elements is split on
// whitespace instead. Element names are matched by local name, so files with
// or without the OSIS namespace are read the same way.
package ingest

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/FocuswithJustin/guematrix/core/corpus"
	gerrors "github.com/FocuswithJustin/guematrix/core/errors"
	"github.com/FocuswithJustin/guematrix/core/hebrew"
	"github.com/FocuswithJustin/guematrix/core/ref"
	"github.com/FocuswithJustin/guematrix/internal/validation"
)

var (
	bookExpr  = xpath.MustCompile(`//*[local-name()='div'][@type='book']`)
	verseExpr = xpath.MustCompile(`.//*[local-name()='verse'][@osisID]`)
	wordExpr  = xpath.MustCompile(`.//*[local-name()='w']`)
)

// Options filters what is read.
type Options struct {
	// TorahOnly keeps the five books of Moses.
	TorahOnly bool
}

// ParseOSIS reads one OSIS document. source names it in errors.
func ParseOSIS(r io.Reader, source string, opts Options) (*corpus.Corpus, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, &gerrors.ParseError{Format: "OSIS", Path: source, Message: err.Error(), Err: err}
	}

	c := &corpus.Corpus{}
	for i, node := range xmlquery.QuerySelectorAll(doc, bookExpr) {
		code := strings.TrimSpace(node.SelectAttr("osisID"))
		if code == "" {
			return nil, gerrors.NewParse("OSIS", source, fmt.Sprintf("book %d has no osisID", i+1))
		}
		info, known := corpus.LookupBook(code)
		if !known {
			info = corpus.BookInfo{Code: code, Name: code, Order: len(corpus.Books) + i + 1}
		}
		if opts.TorahOnly && !info.IsTorah() {
			continue
		}
		book, err := parseBook(node, info, source)
		if err != nil {
			return nil, err
		}
		c.Books = append(c.Books, book)
	}
	if len(c.Books) == 0 && !opts.TorahOnly {
		return nil, gerrors.NewParse("OSIS", source, "no book found")
	}
	c.Sort()
	return c, nil
}

func parseBook(node *xmlquery.Node, info corpus.BookInfo, source string) (*corpus.Book, error) {
	book := &corpus.Book{Code: info.Code, Name: info.Name, Order: info.Order}
	chapters := make(map[int]*corpus.Chapter)
	for _, vn := range xmlquery.QuerySelectorAll(node, verseExpr) {
		id := vn.SelectAttr("osisID")
		// Some files list several IDs for a merged verse; the first wins.
		if f := strings.Fields(id); len(f) > 0 {
			id = f[0]
		}
		r, err := ref.Parse(id)
		if err != nil {
			return nil, &gerrors.ParseError{Format: "OSIS", Path: source, Message: "verse " + id, Err: err}
		}
		p := r.Start
		if p.Chapter == 0 || p.Verse == 0 {
			return nil, gerrors.NewParse("OSIS", source, fmt.Sprintf("verse osisID %q is not book.chapter.verse", id))
		}
		ch, ok := chapters[p.Chapter]
		if !ok {
			ch = &corpus.Chapter{Number: p.Chapter}
			chapters[p.Chapter] = ch
			book.Chapters = append(book.Chapters, ch)
		}
		ch.Verses = append(ch.Verses, &corpus.Verse{Number: p.Verse, Words: verseWords(vn)})
	}
	return book, nil
}

func verseWords(vn *xmlquery.Node) []*corpus.Word {
	var texts []string
	if ws := xmlquery.QuerySelectorAll(vn, wordExpr); len(ws) > 0 {
		for _, w := range ws {
			texts = append(texts, strings.ReplaceAll(strings.TrimSpace(w.InnerText()), "/", ""))
		}
	} else {
		texts = strings.Fields(vn.InnerText())
	}

	var words []*corpus.Word
	for _, t := range texts {
		if hebrew.Letters(t) == "" {
			continue
		}
		words = append(words, &corpus.Word{
			Index: len(words) + 1,
			Text:  t,
			Plain: hebrew.StripMarks(t),
		})
	}
	return words
}

// ParseFile reads one OSIS file. The file is checked first so that snapshots,
// databases and binary files are rejected by name.
func ParseFile(path string, opts Options) (*corpus.Corpus, error) {
	if err := validation.CheckInput(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, gerrors.NewIO("open", path, err)
	}
	defer f.Close()
	return ParseOSIS(f, path, opts)
}

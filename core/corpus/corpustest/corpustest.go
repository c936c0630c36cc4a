// Package corpustest provides small corpora for tests.
package corpustest

import (
	"context"
	"strings"

	"github.com/FocuswithJustin/guematrix/core/corpus"
	"github.com/FocuswithJustin/guematrix/core/hebrew"
)

// Genesis 1:1-3, pointed.
var genesisVerses = []string{
	"בְּרֵאשִׁ֖ית בָּרָ֣א אֱלֹהִ֑ים אֵ֥ת הַשָּׁמַ֖יִם וְאֵ֥ת הָאָֽרֶץ׃",
	"וְהָאָ֗רֶץ הָיְתָ֥ה תֹ֙הוּ֙ וָבֹ֔הוּ וְחֹ֖שֶׁךְ עַל פְּנֵ֣י תְה֑וֹם וְר֣וּחַ אֱלֹהִ֔ים מְרַחֶ֖פֶת עַל פְּנֵ֥י הַמָּֽיִם׃",
	"וַיֹּ֥אמֶר אֱלֹהִ֖ים יְהִ֣י א֑וֹר וַֽיְהִי אֽוֹר׃",
}

// Genesis returns the first three verses of Genesis 1 as one book.
func Genesis() *corpus.Corpus {
	ch := &corpus.Chapter{Number: 1}
	for i, text := range genesisVerses {
		ch.Verses = append(ch.Verses, Verse(int64(i+1), i+1, text))
	}
	return &corpus.Corpus{Books: []*corpus.Book{{
		Code:     "Gen",
		Name:     "בראשית",
		Order:    1,
		Chapters: []*corpus.Chapter{ch},
	}}}
}

// Verse splits text on whitespace into words.
func Verse(id int64, number int, text string) *corpus.Verse {
	v := &corpus.Verse{ID: id, Number: number}
	for i, w := range strings.Fields(text) {
		v.Words = append(v.Words, &corpus.Word{Index: i + 1, Text: w, Plain: hebrew.StripMarks(w)})
	}
	return v
}

// Flat linearizes a single verse made of the given words.
func Flat(words ...string) *corpus.Flat {
	c := &corpus.Corpus{Books: []*corpus.Book{{
		Code:     "Gen",
		Order:    1,
		Chapters: []*corpus.Chapter{{Number: 1, Verses: []*corpus.Verse{Verse(1, 1, strings.Join(words, " "))}}},
	}}}
	f, err := corpus.Linearize(context.Background(), c)
	if err != nil {
		panic(err)
	}
	return f
}

// Letters builds a corpus of bare letters with no word boundaries.
func Letters(s string) *corpus.Flat {
	f := &corpus.Flat{Letters: []rune(s)}
	f.Version = corpus.ComputeVersion(f)
	return f
}

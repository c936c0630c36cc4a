package corpus

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// WordMeta locates a flattened word in the corpus.
type WordMeta struct {
	VerseID   int64  `json:"verseId"`
	Book      string `json:"book"`
	BookName  string `json:"bookName,omitempty"`
	BookOrder int    `json:"bookOrder"`
	Chapter   int    `json:"chapter"`
	Verse     int    `json:"verse"`
	WordIndex int    `json:"wordIndex"`
	Text      string `json:"text,omitempty"`
}

// Flat is the linearized corpus. WordStart, WordEnd and Words are parallel;
// Words may be nil when only boundaries are known.
type Flat struct {
	Letters   []rune
	WordStart []int
	WordEnd   []int
	Words     []WordMeta
	Version   string
}

// Len returns the number of letters.
func (f *Flat) Len() int { return len(f.Letters) }

// WordCount returns the number of flattened words.
func (f *Flat) WordCount() int { return len(f.WordStart) }

// HasBoundaries reports whether word boundary arrays are present.
func (f *Flat) HasBoundaries() bool {
	return len(f.WordStart) > 0 && len(f.WordStart) == len(f.WordEnd)
}

// HasMeta reports whether every word carries its location.
func (f *Flat) HasMeta() bool {
	return len(f.Words) > 0 && len(f.Words) == len(f.WordStart)
}

// Text returns the letters as a string.
func (f *Flat) Text() string { return string(f.Letters) }

// Validate checks that the boundaries partition the letter sequence: words
// are contiguous, non-empty, in order and cover every letter.
func (f *Flat) Validate() error {
	if len(f.WordStart) != len(f.WordEnd) {
		return fmt.Errorf("boundary arrays differ in length: %d starts, %d ends", len(f.WordStart), len(f.WordEnd))
	}
	if f.Words != nil && len(f.Words) != len(f.WordStart) {
		return fmt.Errorf("word metadata has %d entries for %d words", len(f.Words), len(f.WordStart))
	}
	if len(f.WordStart) == 0 {
		return nil
	}
	next := 0
	for w := range f.WordStart {
		s, e := f.WordStart[w], f.WordEnd[w]
		if s != next {
			return fmt.Errorf("word %d starts at %d, expected %d", w, s, next)
		}
		if e < s {
			return fmt.Errorf("word %d ends at %d before its start %d", w, e, s)
		}
		next = e + 1
	}
	if next != len(f.Letters) {
		return fmt.Errorf("words cover %d letters of %d", next, len(f.Letters))
	}
	return nil
}

// ComputeVersion hashes the letters and boundaries with BLAKE3.
func ComputeVersion(f *Flat) string {
	h := blake3.New()
	_, _ = h.Write([]byte(string(f.Letters)))
	var buf [4]byte
	for w := range f.WordStart {
		binary.LittleEndian.PutUint32(buf[:], uint32(f.WordStart[w]))
		_, _ = h.Write(buf[:])
		binary.LittleEndian.PutUint32(buf[:], uint32(f.WordEnd[w]))
		_, _ = h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

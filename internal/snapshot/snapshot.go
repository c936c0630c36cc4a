// Package snapshot stores a linearized corpus in one xz-compressed JSON
// file so a server can start without a database.
//
// Reading a snapshot recomputes the BLAKE3 version of the letters and word
// boundaries and checks it against the stored one, then checks that the
// boundaries partition the letters. Either failure rejects the whole file.
package snapshot

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/guematrix/core/corpus"
	gerrors "github.com/FocuswithJustin/guematrix/core/errors"
)

// Format identifies snapshot files.
const Format = "guematrix-snapshot"

// FormatVersion is the current layout version.
const FormatVersion = 1

// Header describes a snapshot.
type Header struct {
	Format        string    `json:"format"`
	FormatVersion int       `json:"formatVersion"`
	Created       time.Time `json:"created"`
	Version       string    `json:"version"`
	Letters       int       `json:"letters"`
	Words         int       `json:"words"`
}

type document struct {
	Header
	Torah      string            `json:"torah"`
	WordStarts []int             `json:"wordStarts"`
	WordEnds   []int             `json:"wordEnds"`
	WordMeta   []corpus.WordMeta `json:"wordMeta,omitempty"`
}

// Write encodes f to w.
func Write(w io.Writer, f *corpus.Flat) (Header, error) {
	version := f.Version
	if version == "" {
		version = corpus.ComputeVersion(f)
	}
	doc := document{
		Header: Header{
			Format:        Format,
			FormatVersion: FormatVersion,
			Created:       time.Now().UTC().Truncate(time.Second),
			Version:       version,
			Letters:       f.Len(),
			Words:         f.WordCount(),
		},
		Torah:      f.Text(),
		WordStarts: f.WordStart,
		WordEnds:   f.WordEnd,
		WordMeta:   f.Words,
	}

	xw, err := xz.NewWriter(w)
	if err != nil {
		return Header{}, fmt.Errorf("failed to create xz writer: %w", err)
	}
	if err := json.NewEncoder(xw).Encode(doc); err != nil {
		xw.Close()
		return Header{}, gerrors.Wrap(err, "encode snapshot")
	}
	if err := xw.Close(); err != nil {
		return Header{}, gerrors.Wrap(err, "finish snapshot")
	}
	return doc.Header, nil
}

// Read decodes and verifies a snapshot.
func Read(r io.Reader) (*corpus.Flat, Header, error) {
	xr, err := xz.NewReader(bufio.NewReader(r))
	if err != nil {
		return nil, Header{}, parseError("", err)
	}
	var doc document
	if err := json.NewDecoder(xr).Decode(&doc); err != nil {
		return nil, Header{}, parseError("", err)
	}
	if doc.Format != Format {
		return nil, Header{}, gerrors.NewParse("snapshot", "", fmt.Sprintf("unexpected format %q", doc.Format))
	}
	if doc.FormatVersion != FormatVersion {
		return nil, Header{}, gerrors.NewUnsupported("snapshot version", fmt.Sprintf("%d", doc.FormatVersion))
	}

	f := &corpus.Flat{
		Letters:   []rune(doc.Torah),
		WordStart: doc.WordStarts,
		WordEnd:   doc.WordEnds,
		Words:     doc.WordMeta,
	}
	if got := corpus.ComputeVersion(f); got != doc.Version {
		return nil, Header{}, gerrors.NewParse("snapshot", "", fmt.Sprintf("version mismatch: stored %s, computed %s", doc.Version, got))
	}
	if err := f.Validate(); err != nil {
		return nil, Header{}, parseError("", err)
	}
	f.Version = doc.Version
	return f, doc.Header, nil
}

func parseError(path string, err error) error {
	return &gerrors.ParseError{Format: "snapshot", Path: path, Message: err.Error(), Err: err}
}

// WriteFile writes f to path through a temporary file.
func WriteFile(path string, f *corpus.Flat) (Header, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return Header{}, gerrors.NewIO("create", path, err)
	}
	defer os.Remove(tmp.Name())

	h, err := Write(tmp, f)
	if err != nil {
		tmp.Close()
		return Header{}, err
	}
	if err := tmp.Close(); err != nil {
		return Header{}, gerrors.NewIO("write", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return Header{}, gerrors.NewIO("rename", path, err)
	}
	return h, nil
}

// ReadFile reads and verifies the snapshot at path.
func ReadFile(path string) (*corpus.Flat, Header, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, Header{}, gerrors.NewIO("open", path, err)
	}
	defer file.Close()
	f, h, err := Read(file)
	if err != nil {
		var pe *gerrors.ParseError
		if gerrors.As(err, &pe) {
			pe.Path = path
		}
		return nil, Header{}, err
	}
	return f, h, nil
}

// Source serves the flattened corpus from a snapshot file.
type Source struct {
	Path string
}

// FetchFlattenedCorpus reads the snapshot on every call; callers memoize.
func (s Source) FetchFlattenedCorpus(ctx context.Context) (*corpus.Flat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, _, err := ReadFile(s.Path)
	return f, err
}

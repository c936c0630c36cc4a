// Package validation checks files handed to the importer before they are
// parsed, so that a snapshot, a database or an oversized file is reported by
// what it is rather than as malformed XML.
package validation

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	gerrors "github.com/FocuswithJustin/guematrix/core/errors"
)

const (
	// MaxFileSize bounds one input file (256 MB).
	MaxFileSize = 256 << 20
	// MaxPathLength bounds a path given on the command line.
	MaxPathLength = 4096

	sniffLen = 512
)

// Kind is what a file's leading bytes say it is.
type Kind string

const (
	KindText    Kind = "text"
	KindXZ      Kind = "xz"
	KindGzip    Kind = "gzip"
	KindZip     Kind = "zip"
	KindSQLite  Kind = "sqlite"
	KindBinary  Kind = "binary"
	KindUnknown Kind = "unknown"
)

var signatures = []struct {
	kind  Kind
	magic []byte
}{
	{KindXZ, []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}},
	{KindGzip, []byte{0x1f, 0x8b}},
	{KindZip, []byte{'P', 'K', 0x03, 0x04}},
	{KindSQLite, []byte("SQLite format 3\x00")},
}

// ValidatePath rejects empty paths, paths over MaxPathLength and paths
// containing control characters.
func ValidatePath(path string) error {
	if path == "" {
		return gerrors.NewValidation("path", "empty")
	}
	if len(path) > MaxPathLength {
		return gerrors.NewValidation("path", fmt.Sprintf("longer than %d bytes", MaxPathLength))
	}
	for _, r := range path {
		if unicode.IsControl(r) {
			return gerrors.NewValidation("path", "contains a control character")
		}
	}
	return nil
}

// Detect classifies the first bytes of a file.
func Detect(head []byte) Kind {
	if len(head) == 0 {
		return KindUnknown
	}
	for _, sig := range signatures {
		if bytes.HasPrefix(head, sig.magic) {
			return sig.kind
		}
	}
	if isLikelyText(head) {
		return KindText
	}
	return KindBinary
}

// CheckInput validates path and confirms the file is a text document no
// larger than MaxFileSize.
func CheckInput(path string) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return gerrors.NewIO("open", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return gerrors.NewIO("stat", path, err)
	}
	if info.IsDir() {
		return gerrors.NewValidation("path", fmt.Sprintf("%s is a directory", path))
	}
	if info.Size() > MaxFileSize {
		return gerrors.NewValidation("path", fmt.Sprintf("%s is %d bytes, the limit is %d", path, info.Size(), MaxFileSize))
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return gerrors.NewIO("read", path, err)
	}
	name := filepath.Base(path)
	switch kind := Detect(head[:n]); kind {
	case KindText:
		return nil
	case KindUnknown:
		return gerrors.NewValidation("path", fmt.Sprintf("%s is empty", name))
	case KindXZ:
		if strings.HasSuffix(strings.ToLower(name), ".json.xz") {
			return gerrors.NewUnsupported("import "+name, "it is a corpus snapshot; serve it with the snapshot driver")
		}
		return gerrors.NewUnsupported("import "+name, "compressed input is not supported")
	case KindSQLite:
		return gerrors.NewUnsupported("import "+name, "it is an SQLite database; point --dsn at it instead")
	case KindGzip, KindZip:
		return gerrors.NewUnsupported("import "+name, fmt.Sprintf("%s archives are not supported", kind))
	default:
		return gerrors.NewValidation("path", fmt.Sprintf("%s is not a text file", name))
	}
}

// isLikelyText accepts UTF-8 without NUL bytes where control characters
// other than whitespace are rare. A multibyte rune cut off at the end of the
// buffer is allowed.
func isLikelyText(buf []byte) bool {
	if bytes.IndexByte(buf, 0) != -1 {
		return false
	}
	control, total := 0, 0
	for len(buf) > 0 {
		r, size := utf8.DecodeRune(buf)
		if r == utf8.RuneError && size <= 1 {
			if !utf8.FullRune(buf) {
				break
			}
			return false
		}
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			control++
		}
		total++
		buf = buf[size:]
	}
	return total > 0 && control*20 <= total
}

// Package remote reads the flattened corpus and letter references from a
// corpus server over HTTP.
//
// Two endpoints are used: GET /api/torah/raw?meta=1 returning the letters
// and word boundaries, and GET /api/torah/refs?indices=..&withText=1
// returning one reference per index. Responses may be bare JSON or wrapped
// in a {success, data, error} envelope, and keys may use camelCase or
// snake_case. Every transport failure, non-2xx status or malformed body is
// reported as an upstream fetch failure.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/FocuswithJustin/guematrix/core/coords"
	"github.com/FocuswithJustin/guematrix/core/corpus"
	gerrors "github.com/FocuswithJustin/guematrix/core/errors"
)

// DefaultTimeout bounds one HTTP request.
const DefaultTimeout = 30 * time.Second

// Client talks to one corpus server.
type Client struct {
	base   *url.URL
	http   *http.Client
	apiKey string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithAPIKey sends key in the X-API-Key header.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// New creates a client for the server rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, gerrors.NewValidation("remote.url", fmt.Sprintf("invalid URL %q", baseURL))
	}
	c := &Client{base: u, http: &http.Client{Timeout: DefaultTimeout}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type rawPayload struct {
	Torah         string `json:"torah"`
	WordStarts    []int  `json:"wordStarts"`
	WordStartsAlt []int  `json:"word_starts"`
	WordEnds      []int  `json:"wordEnds"`
	WordEndsAlt   []int  `json:"word_ends"`
}

// FetchFlattenedCorpus downloads the letters and word boundaries. A payload
// without both boundary arrays gives a corpus without boundaries.
func (c *Client) FetchFlattenedCorpus(ctx context.Context) (*corpus.Flat, error) {
	var p rawPayload
	if err := c.get(ctx, "/api/torah/raw", url.Values{"meta": {"1"}}, &p); err != nil {
		return nil, err
	}
	starts, ends := p.WordStarts, p.WordEnds
	if starts == nil {
		starts = p.WordStartsAlt
	}
	if ends == nil {
		ends = p.WordEndsAlt
	}
	f := &corpus.Flat{Letters: []rune(p.Torah)}
	if len(starts) > 0 && len(ends) > 0 {
		f.WordStart, f.WordEnd = starts, ends
	}
	if err := f.Validate(); err != nil {
		return nil, gerrors.Upstream("validate corpus payload", err)
	}
	f.Version = corpus.ComputeVersion(f)
	return f, nil
}

// wireRef accepts both the camelCase and the snake_case reference shapes.
type wireRef struct {
	Index         json.RawMessage `json:"index"`
	Found         bool            `json:"found"`
	Raw           string          `json:"raw"`
	Word          int             `json:"word"`
	VerseID       int64           `json:"verseId"`
	VerseIDAlt    int64           `json:"verse_id"`
	Book          string          `json:"book"`
	BookCode      string          `json:"book_code"`
	BookName      string          `json:"bookName"`
	BookNameHe    string          `json:"book_name_he"`
	Chapter       int             `json:"chapter"`
	ChapterNumber int             `json:"chapter_number"`
	Verse         int             `json:"verse"`
	VerseNumber   int             `json:"verse_number"`
	WordIndex     int             `json:"wordIndex"`
	WordText      string          `json:"wordText"`
	Text          string          `json:"textHe"`
	VerseTextHe   *string         `json:"verse_text_he"`
}

func (w wireRef) reference() coords.Reference {
	r := coords.Reference{
		Found:     w.Found,
		Raw:       w.Raw,
		Word:      w.Word,
		VerseID:   firstNonZero(w.VerseID, w.VerseIDAlt),
		Book:      firstNonEmpty(w.Book, w.BookCode),
		BookName:  firstNonEmpty(w.BookName, w.BookNameHe),
		Chapter:   firstNonZero(w.Chapter, w.ChapterNumber),
		Verse:     firstNonZero(w.Verse, w.VerseNumber),
		WordIndex: w.WordIndex,
		WordText:  w.WordText,
		Text:      w.Text,
	}
	if r.Text == "" && w.VerseTextHe != nil {
		r.Text = *w.VerseTextHe
	}
	var n int
	if err := json.Unmarshal(w.Index, &n); err == nil {
		r.Index = n
	} else {
		var s string
		_ = json.Unmarshal(w.Index, &s)
		r.Index = -1
		if r.Raw == "" {
			r.Raw = s
		}
	}
	return r
}

// ResolveReferences resolves indices in order, in batches of coords.MaxBatch.
func (c *Client) ResolveReferences(ctx context.Context, indices []int, withText bool) ([]coords.Reference, error) {
	out := make([]coords.Reference, 0, len(indices))
	for start := 0; start < len(indices); start += coords.MaxBatch {
		end := min(start+coords.MaxBatch, len(indices))
		batch := indices[start:end]

		parts := make([]string, len(batch))
		for i, idx := range batch {
			parts[i] = strconv.Itoa(idx)
		}
		q := url.Values{"indices": {strings.Join(parts, ",")}}
		if withText {
			q.Set("withText", "1")
		}

		var payload struct {
			Refs []wireRef `json:"refs"`
		}
		if err := c.get(ctx, "/api/torah/refs", q, &payload); err != nil {
			return nil, err
		}
		if len(payload.Refs) != len(batch) {
			return nil, gerrors.Upstream("resolve references",
				fmt.Errorf("asked for %d references, got %d", len(batch), len(payload.Refs)))
		}
		for i, w := range payload.Refs {
			r := w.reference()
			if r.Index < 0 {
				r.Index = batch[i]
			}
			out = append(out, r)
		}
	}
	return out, nil
}

type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) get(ctx context.Context, path string, q url.Values, v any) error {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return gerrors.Upstream(path, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return gerrors.Upstream(path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return gerrors.Upstream(path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return gerrors.Upstream(path, fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(truncate(body, 200))))
	}

	payload := body
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Success != nil {
		if !*env.Success {
			msg := "request failed"
			if env.Error != nil {
				msg = env.Error.Code + ": " + env.Error.Message
			}
			return gerrors.Upstream(path, fmt.Errorf("%s", msg))
		}
		payload = env.Data
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return gerrors.Upstream(path, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func firstNonZero[T int | int64](a, b T) T {
	if a != 0 {
		return a
	}
	return b
}

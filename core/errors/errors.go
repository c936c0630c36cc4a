// Package errors provides the error kinds shared by the guematrix search engine,
// its stores and its HTTP surface.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
	// ErrInternal indicates an internal system error
	ErrInternal = errors.New("internal error")
	// ErrUnsupported indicates an unsupported operation or format
	ErrUnsupported = errors.New("unsupported")

	// ErrInvalidPattern is returned when a pattern is empty after normalization.
	ErrInvalidPattern = errors.New("invalid pattern")
	// ErrInvalidSkip is returned for a zero skip or an unusable skip range.
	ErrInvalidSkip = errors.New("invalid skip")
	// ErrMissingBoundaryData is returned when an acrostic search runs against a
	// corpus without word boundaries.
	ErrMissingBoundaryData = errors.New("missing word boundary data")
	// ErrIndexOutOfRange is returned for letter or word indices outside the corpus.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrUpstreamFetch is returned when the corpus or references cannot be fetched.
	ErrUpstreamFetch = errors.New("upstream fetch failed")
)

// Kind classifies a SearchError.
type Kind int

const (
	KindInvalidPattern Kind = iota + 1
	KindInvalidSkip
	KindMissingBoundaryData
	KindIndexOutOfRange
	KindUpstreamFetch
)

var kindNames = map[Kind]string{
	KindInvalidPattern:      "invalid_pattern",
	KindInvalidSkip:         "invalid_skip",
	KindMissingBoundaryData: "missing_boundary_data",
	KindIndexOutOfRange:     "index_out_of_range",
	KindUpstreamFetch:       "upstream_fetch_failure",
}

// String returns the wire name of the kind.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

func (k Kind) sentinel() error {
	switch k {
	case KindInvalidPattern:
		return ErrInvalidPattern
	case KindInvalidSkip:
		return ErrInvalidSkip
	case KindMissingBoundaryData:
		return ErrMissingBoundaryData
	case KindIndexOutOfRange:
		return ErrIndexOutOfRange
	case KindUpstreamFetch:
		return ErrUpstreamFetch
	}
	return ErrInternal
}

// SearchError is an engine failure with a machine-readable kind.
type SearchError struct {
	Kind   Kind   // Failure class
	Detail string // Human-readable context
	Err    error  // Underlying error, if any
}

func (e *SearchError) Error() string {
	msg := e.Kind.sentinel().Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is.
func (e *SearchError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind.sentinel(), e.Err}
	}
	return []error{e.Kind.sentinel()}
}

// NotFoundError represents a resource not found error with context
type NotFoundError struct {
	Resource string // Type of resource (e.g., "session", "verse", "query")
	ID       string // Identifier of the resource
	Err      error  // Underlying error, if any
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotFound
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string // Field name that failed validation
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// IOError represents an I/O operation error with context
type IOError struct {
	Operation string // Operation being performed (e.g., "read", "write", "open")
	Path      string // File/resource path involved
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ParseError represents a parsing or deserialization error
type ParseError struct {
	Format  string // Format being parsed (e.g., "OSIS", "reference", "snapshot")
	Path    string // File path, if applicable
	Message string // Error details
	Err     error  // Underlying error, if any
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to parse %s at %s: %s", e.Format, e.Path, e.Message)
	}
	return fmt.Sprintf("failed to parse %s: %s", e.Format, e.Message)
}

func (e *ParseError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidInput, e.Err}
	}
	return []error{ErrInvalidInput}
}

// UnsupportedError represents an unsupported feature or format
type UnsupportedError struct {
	Feature string // Feature or format that is unsupported
	Reason  string // Why it's not supported
}

func (e *UnsupportedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported %s: %s", e.Feature, e.Reason)
	}
	return fmt.Sprintf("unsupported %s", e.Feature)
}

func (e *UnsupportedError) Unwrap() error {
	return ErrUnsupported
}

// NewSearch creates a SearchError without a cause.
func NewSearch(kind Kind, detail string) *SearchError {
	return &SearchError{Kind: kind, Detail: detail}
}

// NewSearchf creates a SearchError with a formatted detail.
func NewSearchf(kind Kind, format string, args ...any) *SearchError {
	return &SearchError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Upstream wraps a fetch failure. If err is nil, returns nil.
func Upstream(detail string, err error) error {
	if err == nil {
		return nil
	}
	var se *SearchError
	if errors.As(err, &se) && se.Kind == KindUpstreamFetch {
		return err
	}
	return &SearchError{Kind: KindUpstreamFetch, Detail: detail, Err: err}
}

// KindOf returns the kind of the first SearchError in err's chain.
func KindOf(err error) (Kind, bool) {
	var se *SearchError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return 0, false
}

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// NewValidation creates a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewIO creates an IOError
func NewIO(operation, path string, err error) *IOError {
	return &IOError{
		Operation: operation,
		Path:      path,
		Err:       err,
	}
}

// NewParse creates a ParseError
func NewParse(format, path, message string) *ParseError {
	return &ParseError{
		Format:  format,
		Path:    path,
		Message: message,
	}
}

// NewUnsupported creates an UnsupportedError
func NewUnsupported(feature, reason string) *UnsupportedError {
	return &UnsupportedError{
		Feature: feature,
		Reason:  reason,
	}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target any) bool {
	return errors.As(err, target)
}

package search

import (
	"fmt"

	gerrors "github.com/FocuswithJustin/guematrix/core/errors"
	"github.com/FocuswithJustin/guematrix/core/hebrew"
)

// Mode names a search mode on the wire.
type Mode string

const (
	ModeELS        Mode = "els"
	ModeELSAuto    Mode = "els_auto"
	ModeTevotFirst Mode = "tevot_first"
	ModeTevotLast  Mode = "tevot_last"
)

const (
	DefaultMinSkip = 1
	DefaultMaxSkip = 100
	// DefaultMaxResults caps the matches returned by one search.
	DefaultMaxResults = 200
)

// Query is one of FixedELS, AutoELS, AcrosticFirst or AcrosticLast.
type Query interface {
	Mode() Mode
	isQuery()
}

// FixedELS matches letters at a constant distance. Skip may be negative.
type FixedELS struct {
	Skip int
}

// AutoELS tries every skip in [MinSkip, MaxSkip] and keeps the best one.
// Zero values select the defaults 1 and 100.
type AutoELS struct {
	MinSkip int
	MaxSkip int
}

// AcrosticFirst matches the first letters of words taken Skip words apart.
type AcrosticFirst struct {
	Skip int
}

// AcrosticLast matches the last letters of words taken Skip words apart.
type AcrosticLast struct {
	Skip int
}

func (FixedELS) Mode() Mode      { return ModeELS }
func (AutoELS) Mode() Mode       { return ModeELSAuto }
func (AcrosticFirst) Mode() Mode { return ModeTevotFirst }
func (AcrosticLast) Mode() Mode  { return ModeTevotLast }

func (FixedELS) isQuery()      {}
func (AutoELS) isQuery()       {}
func (AcrosticFirst) isQuery() {}
func (AcrosticLast) isQuery()  {}

// Range returns the skip range with defaults applied.
func (q AutoELS) Range() (int, int, error) {
	lo, hi := q.MinSkip, q.MaxSkip
	if lo < 0 || hi < 0 {
		return 0, 0, gerrors.NewSearchf(gerrors.KindInvalidSkip, "skip range %d..%d", lo, hi)
	}
	if lo == 0 {
		lo = DefaultMinSkip
	}
	if hi == 0 {
		hi = DefaultMaxSkip
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi, nil
}

// Spec is the serializable form of a Query.
type Spec struct {
	Mode    Mode `json:"mode" yaml:"mode"`
	Skip    int  `json:"skip,omitempty" yaml:"skip,omitempty"`
	MinSkip int  `json:"minSkip,omitempty" yaml:"minSkip,omitempty"`
	MaxSkip int  `json:"maxSkip,omitempty" yaml:"maxSkip,omitempty"`
}

// Query converts s back into a Query.
func (s Spec) Query() (Query, error) {
	switch s.Mode {
	case ModeELS, "":
		return FixedELS{Skip: s.Skip}, nil
	case ModeELSAuto:
		return AutoELS{MinSkip: s.MinSkip, MaxSkip: s.MaxSkip}, nil
	case ModeTevotFirst:
		return AcrosticFirst{Skip: s.Skip}, nil
	case ModeTevotLast:
		return AcrosticLast{Skip: s.Skip}, nil
	}
	return nil, gerrors.NewValidation("mode", fmt.Sprintf("unknown search mode %q", s.Mode))
}

// Capped applies ceiling to an auto ELS spec: an unset MaxSkip becomes
// ceiling, and a range reaching past it is an InvalidSkip error. Other modes
// and a ceiling below one are returned unchanged.
func (s Spec) Capped(ceiling int) (Spec, error) {
	if s.Mode != ModeELSAuto || ceiling < 1 {
		return s, nil
	}
	if s.MaxSkip == 0 {
		s.MaxSkip = ceiling
	}
	if s.MaxSkip > ceiling || s.MinSkip > ceiling {
		return Spec{}, gerrors.NewSearchf(gerrors.KindInvalidSkip, "skip range %d..%d exceeds the limit of %d", s.MinSkip, s.MaxSkip, ceiling)
	}
	return s, nil
}

// SpecOf returns the serializable form of q.
func SpecOf(q Query) Spec {
	switch q := q.(type) {
	case FixedELS:
		return Spec{Mode: ModeELS, Skip: q.Skip}
	case AutoELS:
		return Spec{Mode: ModeELSAuto, MinSkip: q.MinSkip, MaxSkip: q.MaxSkip}
	case AcrosticFirst:
		return Spec{Mode: ModeTevotFirst, Skip: q.Skip}
	case AcrosticLast:
		return Spec{Mode: ModeTevotLast, Skip: q.Skip}
	}
	return Spec{}
}

// NormalizePattern reduces raw input to the letters a query searches for.
// Acrostic queries turn multi-word input into its first or last letters.
func NormalizePattern(raw string, q Query) string {
	switch q.(type) {
	case AcrosticFirst:
		return hebrew.AcrosticPattern(raw, hebrew.EdgeFirst)
	case AcrosticLast:
		return hebrew.AcrosticPattern(raw, hebrew.EdgeLast)
	}
	return hebrew.Letters(raw)
}

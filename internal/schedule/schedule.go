// Package schedule parses and evaluates piecewise-linear weight schedules.
//
// A schedule is either a constant weight or a list of control points
// written as "weight@position" pairs, e.g. "0@0,1@0.5,0.2@1". Positions up
// to 1 are fractions of the run; larger positions are absolute step numbers.
package schedule

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// DefaultStepOffset is the number of trailing steps excluded from the
// progress denominator.
const DefaultStepOffset = 2

var ErrParse = errors.New("schedule: parse error")

// ParseError reports a weight specification that could not be parsed.
type ParseError struct {
	Input   string
	Segment string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Segment != "" {
		return fmt.Sprintf("schedule: invalid segment %q in %q: %v", e.Segment, e.Input, e.Err)
	}
	return fmt.Sprintf("schedule: invalid spec %q: %v", e.Input, e.Err)
}

func (e *ParseError) Unwrap() []error {
	return []error{ErrParse, e.Err}
}

var (
	segmentSep = regexp.MustCompile(`[,;]`)
	pointSep   = regexp.MustCompile(`[@~]`)
)

// Schedule is a constant weight (Positions == nil) or parallel control point
// slices sorted by position.
type Schedule struct {
	Weights   []float64
	Positions []float64
}

// Constant returns a schedule that always evaluates to v.
func Constant(v float64) Schedule {
	return Schedule{Weights: []float64{v}}
}

// Points builds a control point schedule from parallel slices. The slices
// are used as given; no sorting or length check is performed.
func Points(weights, positions []float64) Schedule {
	if positions == nil {
		positions = []float64{}
	}
	return Schedule{Weights: weights, Positions: positions}
}

// IsConstant reports whether s is a bare scalar.
func (s Schedule) IsConstant() bool {
	return s.Positions == nil
}

// IsZero reports whether s was never set.
func (s Schedule) IsZero() bool {
	return len(s.Weights) == 0 && s.Positions == nil
}

// Equal reports whether two schedules have identical points.
func (s Schedule) Equal(o Schedule) bool {
	if s.IsConstant() != o.IsConstant() {
		return false
	}
	return slices.Equal(s.Weights, o.Weights) && slices.Equal(s.Positions, o.Positions)
}

type point struct {
	weight   float64
	position float64
}

// Parse converts a raw weight specification into a Schedule.
func Parse(raw string) (Schedule, error) {
	if strings.TrimSpace(raw) == "" {
		return Schedule{}, &ParseError{Input: raw, Err: errors.New("empty weight spec")}
	}

	segments := segmentSep.Split(raw, -1)
	points := make([]point, 0, len(segments))
	positioned := false
	for _, seg := range segments {
		tokens := pointSep.Split(seg, -1)
		if len(tokens) > 2 {
			return Schedule{}, &ParseError{Input: raw, Segment: seg, Err: errors.New("expected weight or weight@position")}
		}
		w, err := parseToken(tokens[0])
		if err != nil {
			return Schedule{}, &ParseError{Input: raw, Segment: seg, Err: err}
		}
		p := point{weight: w, position: 1}
		if len(tokens) == 2 {
			if p.position, err = parseToken(tokens[1]); err != nil {
				return Schedule{}, &ParseError{Input: raw, Segment: seg, Err: err}
			}
			positioned = true
		}
		points = append(points, p)
	}

	if len(points) == 1 && !positioned {
		return Constant(points[0].weight), nil
	}

	slices.SortStableFunc(points, func(a, b point) int {
		switch {
		case a.position < b.position:
			return -1
		case a.position > b.position:
			return 1
		}
		return 0
	})

	s := Schedule{
		Weights:   make([]float64, len(points)),
		Positions: make([]float64, len(points)),
	}
	for i, p := range points {
		s.Weights[i] = p.weight
		s.Positions[i] = p.position
	}
	return s, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level defaults.
func MustParse(raw string) Schedule {
	s, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return s
}

func parseToken(tok string) (float64, error) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return 0, errors.New("missing number")
	}
	return strconv.ParseFloat(tok, 64)
}

// String renders s in the same syntax Parse accepts.
func (s Schedule) String() string {
	if s.IsZero() {
		return ""
	}
	if s.IsConstant() {
		return formatFloat(s.Weights[0])
	}
	var b strings.Builder
	for i, w := range s.Weights {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(formatFloat(w))
		if i < len(s.Positions) {
			b.WriteByte('@')
			b.WriteString(formatFloat(s.Positions[i]))
		}
	}
	return b.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func (s Schedule) MarshalYAML() (any, error) {
	return s.String(), nil
}

func (s Schedule) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(s.String())), nil
}

// UnmarshalText parses the Parse syntax. An empty text leaves s zero.
func (s *Schedule) UnmarshalText(text []byte) error {
	if len(strings.TrimSpace(string(text))) == 0 {
		*s = Schedule{}
		return nil
	}
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// UnmarshalJSON accepts a quoted spec or a bare number.
func (s *Schedule) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}
	return s.UnmarshalText([]byte(raw))
}

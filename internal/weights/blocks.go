package weights

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

var ErrBlockSpec = errors.New("weights: invalid block spec")

// BlockSpecError reports a block clause whose value is not a number.
type BlockSpecError struct {
	Clause string
	Err    error
}

func (e *BlockSpecError) Error() string {
	return fmt.Sprintf("weights: invalid block clause %q: %v", e.Clause, e.Err)
}

func (e *BlockSpecError) Unwrap() []error {
	return []error{ErrBlockSpec, e.Err}
}

// Range scales every block from its start key up to and including End.
type Range struct {
	End    string  `yaml:"end" json:"end"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// Blocks holds per-block ratios applied on top of the UNet weight.
type Blocks struct {
	Weights map[string]float64 `yaml:"weights,omitempty" json:"weights,omitempty"`
	Ranges  map[string]Range   `yaml:"ranges,omitempty" json:"ranges,omitempty"`
}

// IsZero reports whether no block override is set.
func (b Blocks) IsZero() bool {
	return len(b.Weights) == 0 && len(b.Ranges) == 0
}

// blockOrder is the canonical UNet block sequence ranges are resolved
// against.
var blockOrder = func() []string {
	out := make([]string, 0, 25)
	for i := range 12 {
		out = append(out, fmt.Sprintf("IN%02d", i))
	}
	out = append(out, "M00")
	for i := range 12 {
		out = append(out, fmt.Sprintf("OUT%02d", i))
	}
	return out
}()

// BlockNames returns the canonical block names in order.
func BlockNames() []string {
	return slices.Clone(blockOrder)
}

func blockIndex(name string) int {
	return slices.Index(blockOrder, name)
}

// Ratio returns the multiplier for a block. Explicit block weights win over
// ranges; among covering ranges the one with the latest start wins.
// Blocks with no override, or outside the canonical order, return 1.
func (b Blocks) Ratio(block string) float64 {
	block = strings.ToUpper(block)
	if w, ok := b.Weights[block]; ok {
		return w
	}
	idx := blockIndex(block)
	if idx < 0 {
		return 1
	}
	ratio, bestStart := 1.0, -1
	for _, start := range slices.Sorted(maps.Keys(b.Ranges)) {
		r := b.Ranges[start]
		lo, hi := blockIndex(start), blockIndex(r.End)
		if lo < 0 || hi < 0 {
			continue
		}
		if lo <= idx && idx <= hi && lo > bestStart {
			ratio, bestStart = r.Weight, lo
		}
	}
	return ratio
}

// ParseBlocks parses a block weight spec such as "IN01-OUT11=0.5;M00=0.2".
//
// Blank clauses and clauses without '=' are skipped. A clause with a
// non-numeric value stops parsing; the entries parsed before it are
// returned together with a *BlockSpecError.
func ParseBlocks(raw string) (Blocks, error) {
	var b Blocks
	for _, clause := range strings.Split(raw, ";") {
		if strings.TrimSpace(clause) == "" {
			continue
		}
		name, value, ok := strings.Cut(clause, "=")
		if !ok {
			continue
		}
		name = strings.ToUpper(strings.TrimSpace(name))
		w, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return b, &BlockSpecError{Clause: clause, Err: err}
		}
		if start, end, isRange := strings.Cut(name, "-"); isRange {
			if b.Ranges == nil {
				b.Ranges = make(map[string]Range)
			}
			b.Ranges[strings.TrimSpace(start)] = Range{End: strings.TrimSpace(end), Weight: w}
			continue
		}
		if b.Weights == nil {
			b.Weights = make(map[string]float64)
		}
		b.Weights[name] = w
	}
	return b, nil
}

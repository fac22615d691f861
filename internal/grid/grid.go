// Package grid expands a declarative parameter grid into the ordered set of
// concrete run specifications and derives their unique run names.
package grid

import (
	"fmt"

	"github.com/astrolabhq/stargrid/internal/config"
)

// MaxCombinations caps the size of an expanded grid. Anything past this is
// almost certainly a mistyped axis rather than a real simulation campaign.
const MaxCombinations = 1_000_000

// Param is one axis/value pair of a run, in axis declaration order.
type Param struct {
	Axis  string
	Value any
	// Varying is true when the axis has more than one value across the grid.
	Varying bool
}

// RunSpec is one concrete point of the grid. Ordinal is the run's position
// in the Cartesian enumeration; Name and JobID are derived later and are
// immutable once set.
type RunSpec struct {
	Ordinal int
	Name    string
	JobID   int
	Params  []Param
}

// Value returns the value of the named axis, or nil when absent.
func (r *RunSpec) Value(axis string) any {
	for _, p := range r.Params {
		if p.Axis == axis {
			return p.Value
		}
	}
	return nil
}

// SpecError reports a malformed or degenerate grid specification.
type SpecError struct {
	Reason string
}

func (e *SpecError) Error() string {
	return "grid spec: " + e.Reason
}

// Expand produces every combination of the given axes as RunSpecs, in the
// standard odometer order: axes iterate outer-to-inner following declaration
// order, with the last-declared axis varying fastest. Scalar axes act as
// length-1 sequences. The result is a pure function of the input.
func Expand(axes []config.Axis) ([]RunSpec, error) {
	if len(axes) == 0 {
		return nil, &SpecError{Reason: "no axes declared"}
	}

	seen := make(map[string]struct{}, len(axes))
	total := 1
	for _, axis := range axes {
		if _, dup := seen[axis.Name]; dup {
			return nil, &SpecError{Reason: fmt.Sprintf("duplicate axis %q", axis.Name)}
		}
		seen[axis.Name] = struct{}{}

		if len(axis.Values) == 0 {
			return nil, &SpecError{Reason: fmt.Sprintf("axis %q has no values", axis.Name)}
		}
		total *= len(axis.Values)
		if total > MaxCombinations {
			return nil, &SpecError{Reason: fmt.Sprintf("grid would exceed %d combinations", MaxCombinations)}
		}
	}

	runs := make([]RunSpec, 0, total)
	indices := make([]int, len(axes))
	for ordinal := 0; ordinal < total; ordinal++ {
		params := make([]Param, len(axes))
		for i, axis := range axes {
			params[i] = Param{
				Axis:    axis.Name,
				Value:   axis.Values[indices[i]],
				Varying: len(axis.Values) > 1,
			}
		}
		runs = append(runs, RunSpec{Ordinal: ordinal, Params: params})

		// advance the odometer, last axis fastest
		for i := len(axes) - 1; i >= 0; i-- {
			indices[i]++
			if indices[i] < len(axes[i].Values) {
				break
			}
			indices[i] = 0
		}
	}

	return runs, nil
}

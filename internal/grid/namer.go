package grid

import (
	"fmt"
	"strconv"
	"strings"
)

// nameSeparator joins axis/value fragments in run names.
const nameSeparator = "_"

// CollisionError reports two distinct combinations mapping to the same run
// name. The usual fix is another distinguishing axis or more precision.
type CollisionError struct {
	Name     string
	Ordinals [2]int
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("run name %q produced by both ordinal %d and ordinal %d",
		e.Name, e.Ordinals[0], e.Ordinals[1])
}

// NameRuns derives a unique, filesystem-safe name for every run in place.
// Names concatenate each varying axis's name and value in declaration order;
// scalar axes do not distinguish runs and are left out. The whole name set
// is built first and checked for collisions before any RunSpec is touched.
func NameRuns(runs []RunSpec) error {
	names := make(map[string]int, len(runs))
	for i := range runs {
		name := runName(&runs[i])
		if prev, ok := names[name]; ok {
			return &CollisionError{Name: name, Ordinals: [2]int{prev, runs[i].Ordinal}}
		}
		names[name] = runs[i].Ordinal
	}

	for i := range runs {
		runs[i].Name = runName(&runs[i])
	}
	return nil
}

func runName(run *RunSpec) string {
	var parts []string
	for _, p := range run.Params {
		if !p.Varying {
			continue
		}
		parts = append(parts, p.Axis+nameSeparator+FormatValue(p.Value))
	}
	if len(parts) == 0 {
		// single-run grid of scalars only
		return fmt.Sprintf("run%s%d", nameSeparator, run.Ordinal)
	}
	return strings.Join(parts, nameSeparator)
}

// FormatValue renders a parameter value in a canonical textual form that is
// stable across platforms and repeated invocations.
func FormatValue(v any) string {
	switch x := v.(type) {
	case string:
		return sanitize(x)
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		return sanitize(fmt.Sprintf("%v", x))
	}
}

// sanitize keeps names usable as directory entries.
func sanitize(s string) string {
	replacer := strings.NewReplacer("/", "-", " ", "-", "\t", "-")
	return replacer.Replace(s)
}

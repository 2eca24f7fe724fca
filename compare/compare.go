package compare

import (
	"fmt"

	"github.com/theory/jsonpath"

	"github.com/roach88/golden/canon"
	"github.com/roach88/golden/transform"
)

// Status classifies a comparison.
type Status string

const (
	StatusMatch    Status = "MATCH"
	StatusMismatch Status = "MISMATCH"
	StatusNew      Status = "NEW"
)

// DiffKind classifies a single discrepancy.
type DiffKind string

const (
	DiffChanged       DiffKind = "changed"
	DiffTypeChanged   DiffKind = "type_changed"
	DiffRemoved       DiffKind = "removed"
	DiffAdded         DiffKind = "added"
	DiffLengthChanged DiffKind = "length_changed"
)

// Discrepancy is one difference between expected and actual. Removed
// entries carry only Expected, Added entries only Actual. For
// DiffLengthChanged both hold the complete arrays.
type Discrepancy struct {
	Path     canon.Path
	Kind     DiffKind
	Expected any
	Actual   any
}

// HasExpected reports whether the discrepancy carries an expected value.
func (d Discrepancy) HasExpected() bool {
	return d.Kind != DiffAdded
}

// HasActual reports whether the discrepancy carries an actual value.
func (d Discrepancy) HasActual() bool {
	return d.Kind != DiffRemoved
}

// Result is the outcome of comparing one snapshot entry.
type Result struct {
	Key           string
	Status        Status
	Discrepancies []Discrepancy
	Expected      any
	Actual        any
}

// Passed reports whether the entry matched its recorded value.
func (r *Result) Passed() bool {
	return r.Status == StatusMatch
}

// Option configures Compare.
type Option func(*options)

type options struct {
	ignore []*jsonpath.Path
}

// IgnorePaths removes the nodes selected by paths from both sides before
// they are compared.
func IgnorePaths(paths ...*jsonpath.Path) Option {
	return func(o *options) { o.ignore = append(o.ignore, paths...) }
}

// ParseIgnorePaths parses JSONPath expressions for IgnorePaths. Member names
// containing dots must be quoted: $..b['a.aa'].
func ParseIgnorePaths(exprs ...string) ([]*jsonpath.Path, error) {
	paths := make([]*jsonpath.Path, 0, len(exprs))
	for _, expr := range exprs {
		p, err := jsonpath.Parse(expr)
		if err != nil {
			return nil, fmt.Errorf("ignore path %q: %w", expr, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// NewEntry returns the result for a key that has no recorded value.
func NewEntry(key string, actual any) *Result {
	return &Result{Key: key, Status: StatusNew, Actual: actual}
}

// Compare diffs a recorded value against an actual one. Neither input is
// modified.
func Compare(key string, expected, actual any, opts ...Option) *Result {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if len(o.ignore) > 0 {
		expected = transform.RemovePaths(expected, o.ignore...)
		actual = transform.RemovePaths(actual, o.ignore...)
	}

	r := &Result{Key: key, Expected: expected, Actual: actual}
	r.Discrepancies = diff(nil, expected, actual, nil)
	if len(r.Discrepancies) == 0 {
		r.Status = StatusMatch
	} else {
		r.Status = StatusMismatch
	}
	return r
}

func diff(path canon.Path, expected, actual any, out []Discrepancy) []Discrepancy {
	ek, ak := canon.KindOf(expected), canon.KindOf(actual)
	if ek != ak && !(canon.IsNumber(expected) && canon.IsNumber(actual)) {
		return append(out, Discrepancy{Path: path, Kind: DiffTypeChanged, Expected: expected, Actual: actual})
	}

	switch e := expected.(type) {
	case map[string]any:
		a := actual.(map[string]any)
		for _, k := range unionKeys(e, a) {
			ev, inE := e[k]
			av, inA := a[k]
			switch {
			case !inA:
				out = append(out, Discrepancy{Path: path.Key(k), Kind: DiffRemoved, Expected: ev})
			case !inE:
				out = append(out, Discrepancy{Path: path.Key(k), Kind: DiffAdded, Actual: av})
			default:
				out = diff(path.Key(k), ev, av, out)
			}
		}
		return out
	case []any:
		a := actual.([]any)
		if len(e) != len(a) {
			out = append(out, Discrepancy{Path: path, Kind: DiffLengthChanged, Expected: e, Actual: a})
		}
		for i := 0; i < len(e) && i < len(a); i++ {
			out = diff(path.Index(i), e[i], a[i], out)
		}
		return out
	default:
		if !canon.Equal(expected, actual) {
			out = append(out, Discrepancy{Path: path, Kind: DiffChanged, Expected: expected, Actual: actual})
		}
		return out
	}
}

func unionKeys(a, b map[string]any) []string {
	merged := make(map[string]any, len(a)+len(b))
	for k := range a {
		merged[k] = nil
	}
	for k := range b {
		merged[k] = nil
	}
	return canon.SortedKeys(merged)
}

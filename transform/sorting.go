package transform

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/roach88/golden/canon"
)

type sorting struct {
	key     string
	compare func(a, b any) int
	label   string
}

// Sorting stably sorts the lists stored under key, anywhere in the document,
// with compare. Lists nested inside them are visited first. A value under
// key that is not a list fails the capture.
func Sorting(key string, compare func(a, b any) int) Transformer {
	return &sorting{key: key, compare: compare, label: key}
}

// SortingBy sorts the lists under key by the field of their object
// elements, using CompareValues on the field values.
func SortingBy(key, field string) Transformer {
	return &sorting{
		key: key,
		compare: func(a, b any) int {
			return CompareValues(fieldOf(a, field), fieldOf(b, field))
		},
		label: key + " by " + field,
	}
}

func fieldOf(v any, field string) any {
	if m, ok := v.(map[string]any); ok {
		return m[field]
	}
	return nil
}

func (t *sorting) sealed() {}

func (t *sorting) Name() string {
	return "sorting(" + t.label + ")"
}

func (t *sorting) Apply(_ *Context, v any) (any, error) {
	return t.walk(v, nil)
}

func (t *sorting) walk(v any, path canon.Path) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		for _, k := range sortedKeys(val) {
			out, err := t.walk(val[k], path.Key(k))
			if err != nil {
				return nil, err
			}
			if k == t.key {
				list, ok := out.([]any)
				if !ok {
					return nil, transformErrorf(t.Name(), path.Key(k), "expected a list, got %s", canon.KindOf(out))
				}
				slices.SortStableFunc(list, t.compare)
			}
			val[k] = out
		}
		return val, nil
	case []any:
		for i, elem := range val {
			out, err := t.walk(elem, path.Index(i))
			if err != nil {
				return nil, err
			}
			val[i] = out
		}
		return val, nil
	default:
		return v, nil
	}
}

// CompareValues orders canonical values: null, booleans, numbers, strings,
// arrays, objects. Values of the same kind compare naturally; arrays and
// objects by their compact canonical encoding.
func CompareValues(a, b any) int {
	ka, kb := rank(a), rank(b)
	if ka != kb {
		return cmp.Compare(ka, kb)
	}
	switch av := a.(type) {
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		}
		return 1
	case int64, float64:
		return cmp.Compare(toFloat(a), toFloat(b))
	case string:
		return cmp.Compare(av, b.(string))
	case nil:
		return 0
	}
	return cmp.Compare(canon.Compact(a), canon.Compact(b))
}

func rank(v any) int {
	switch canon.KindOf(v) {
	case canon.KindNull:
		return 0
	case canon.KindBool:
		return 1
	case canon.KindInt, canon.KindFloat:
		return 2
	case canon.KindString:
		return 3
	case canon.KindArray:
		return 4
	case canon.KindObject:
		return 5
	}
	return 6
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case float64:
		return n
	}
	panic(fmt.Sprintf("not a number: %T", v))
}

func sortedKeys(m map[string]any) []string {
	return canon.SortedKeys(m)
}

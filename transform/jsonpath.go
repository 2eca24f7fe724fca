package transform

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/theory/jsonpath"
	"github.com/theory/jsonpath/spec"

	"github.com/roach88/golden/canon"
)

type jsonPath struct {
	expr        string
	path        *jsonpath.Path
	replacement string
	opts        options
}

// JSONPath replaces the values selected by an RFC 9535 JSONPath expression.
// Reference and Direct modes behave as for KeyValue. It panics if expr does
// not parse; use ParseJSONPath for expressions that come from configuration.
func JSONPath(expr, replacement string, opts ...Option) Transformer {
	t, err := ParseJSONPath(expr, replacement, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseJSONPath is JSONPath returning an error for invalid expressions.
func ParseJSONPath(expr, replacement string, opts ...Option) (Transformer, error) {
	p, err := jsonpath.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("jsonpath %q: %w", expr, err)
	}
	return &jsonPath{expr: expr, path: p, replacement: replacement, opts: buildOptions(opts)}, nil
}

func (t *jsonPath) sealed() {}

func (t *jsonPath) Name() string {
	return "jsonpath(" + t.expr + ")"
}

func (t *jsonPath) Apply(ctx *Context, v any) (any, error) {
	located := selectSorted(t.path, v)
	if len(located) == 0 {
		ctx.Logger().Debug("no match for jsonpath", "path", t.expr)
		return v, nil
	}

	if !t.opts.direct {
		for _, node := range located {
			switch val := node.value.(type) {
			case nil:
			case string:
				ctx.Reference(val, t.replacement)
			default:
				return nil, &TransformError{
					Transformer: t.Name(),
					Path:        node.path,
					Err: fmt.Errorf("%w: %s is %s; use Direct() for %q",
						ErrNotString, canon.Compact(val), canon.KindOf(val), t.replacement),
				}
			}
		}
		return v, nil
	}

	ctx.Logger().Debug("replacing jsonpath matches",
		"path", t.expr,
		"matches", len(located),
		"replacement", t.replacement)
	for _, node := range located {
		v = setAt(v, node.path, t.replacement)
	}
	return v, nil
}

type locatedNode struct {
	path  canon.Path
	value any
}

// selectSorted returns the nodes p selects in document order with object
// members visited in canonical key order, so results do not depend on map
// iteration order.
func selectSorted(p *jsonpath.Path, v any) []locatedNode {
	var nodes []locatedNode
	for _, ln := range p.SelectLocated(v) {
		nodes = append(nodes, locatedNode{path: toCanonPath(ln.Path), value: ln.Node})
	}
	slices.SortStableFunc(nodes, func(a, b locatedNode) int {
		return comparePaths(a.path, b.path)
	})
	return nodes
}

func comparePaths(a, b canon.Path) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		sa, sb := a[i], b[i]
		switch {
		case sa.IsIndex && sb.IsIndex:
			if sa.Index != sb.Index {
				return cmp.Compare(sa.Index, sb.Index)
			}
		case !sa.IsIndex && !sb.IsIndex:
			if c := canon.CompareKeys(sa.Key, sb.Key); c != 0 {
				return c
			}
		case sa.IsIndex:
			return -1
		default:
			return 1
		}
	}
	return cmp.Compare(len(a), len(b))
}

func toCanonPath(np spec.NormalizedPath) canon.Path {
	var p canon.Path
	for _, sel := range np {
		switch s := sel.(type) {
		case spec.Name:
			p = p.Key(string(s))
		case spec.Index:
			p = p.Index(int(s))
		}
	}
	return p
}

// setAt replaces the node at path. Paths that no longer resolve, because an
// ancestor was replaced first, are ignored.
func setAt(root any, path canon.Path, value any) any {
	if len(path) == 0 {
		return value
	}

	parent, ok := resolve(root, path[:len(path)-1])
	if !ok {
		return root
	}

	last := path[len(path)-1]
	switch p := parent.(type) {
	case map[string]any:
		if _, ok := p[last.Key]; ok && !last.IsIndex {
			p[last.Key] = value
		}
	case []any:
		if last.IsIndex && last.Index >= 0 && last.Index < len(p) {
			p[last.Index] = value
		}
	}
	return root
}

// deleteAt removes the node at path from its parent. Array elements are
// removed by index, shifting later elements.
func deleteAt(root any, path canon.Path) any {
	if len(path) == 0 {
		return nil
	}

	parentPath := path[:len(path)-1]
	parent, ok := resolve(root, parentPath)
	if !ok {
		return root
	}

	last := path[len(path)-1]
	switch p := parent.(type) {
	case map[string]any:
		if !last.IsIndex {
			delete(p, last.Key)
		}
	case []any:
		if last.IsIndex && last.Index >= 0 && last.Index < len(p) {
			return setAt(root, parentPath, slices.Delete(p, last.Index, last.Index+1))
		}
	}
	return root
}

func resolve(v any, path canon.Path) (any, bool) {
	for _, seg := range path {
		next, ok := child(v, seg)
		if !ok {
			return nil, false
		}
		v = next
	}
	return v, true
}

func child(v any, seg canon.Segment) (any, bool) {
	switch c := v.(type) {
	case map[string]any:
		if seg.IsIndex {
			return nil, false
		}
		next, ok := c[seg.Key]
		return next, ok
	case []any:
		if !seg.IsIndex || seg.Index < 0 || seg.Index >= len(c) {
			return nil, false
		}
		return c[seg.Index], true
	}
	return nil, false
}

// RemovePaths deletes every node selected by the given JSONPath expressions
// from a copy of v. Nodes are removed deepest and last first so array
// indices selected by one expression stay valid while it is applied.
func RemovePaths(v any, paths ...*jsonpath.Path) any {
	out := canon.Clone(v)
	for _, p := range paths {
		located := selectSorted(p, out)
		for i := len(located) - 1; i >= 0; i-- {
			out = deleteAt(out, located[i].path)
		}
	}
	return out
}

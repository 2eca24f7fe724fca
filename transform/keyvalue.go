package transform

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/roach88/golden/canon"
)

type keyValue struct {
	key         string
	replacement string
	opts        options
}

// KeyValue replaces the values stored under key, anywhere in the document.
//
// In reference mode (the default) each distinct value becomes <replacement:N>
// and every other occurrence of it is rewritten too. With Direct only the
// value under key is replaced, by the bare replacement string. An empty
// replacement defaults to the key in hyphen case (ResourceName becomes
// resource-name). Null and empty values never match.
func KeyValue(key, replacement string, opts ...Option) Transformer {
	if replacement == "" {
		replacement = HyphenCase(key)
	}
	return &keyValue{key: key, replacement: replacement, opts: buildOptions(opts)}
}

func (t *keyValue) sealed() {}

func (t *keyValue) Name() string {
	return "key_value(" + t.key + ")"
}

func (t *keyValue) match(k string, v any) (string, bool) {
	if t.opts.matchFn != nil {
		return t.opts.matchFn(k, v)
	}
	if k != t.key || v == nil || v == "" {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return canon.Compact(v), true
}

func (t *keyValue) replacementFor(k string, v any) string {
	if t.opts.replaceFn != nil {
		return t.opts.replaceFn(k, v)
	}
	return t.replacement
}

func (t *keyValue) Apply(ctx *Context, v any) (any, error) {
	return t.walk(ctx, v, nil)
}

func (t *keyValue) walk(ctx *Context, v any, path canon.Path) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		for _, k := range canon.SortedKeys(val) {
			elem := val[k]
			if matched, ok := t.match(k, elem); ok {
				out, err := t.replace(ctx, k, elem, matched, path.Key(k))
				if err != nil {
					return nil, err
				}
				val[k] = out
				continue
			}
			out, err := t.walk(ctx, elem, path.Key(k))
			if err != nil {
				return nil, err
			}
			val[k] = out
		}
		return val, nil
	case []any:
		for i, elem := range val {
			out, err := t.walk(ctx, elem, path.Index(i))
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

func (t *keyValue) replace(ctx *Context, k string, v any, matched string, path canon.Path) (any, error) {
	name := t.replacementFor(k, v)
	if !t.opts.direct {
		if _, ok := v.(string); !ok {
			return nil, &TransformError{
				Transformer: t.Name(),
				Path:        path,
				Err: fmt.Errorf("%w: %s is %s; use Direct() for %q",
					ErrNotString, canon.Compact(v), canon.KindOf(v), name),
			}
		}
		ctx.Reference(matched, name)
		return v, nil
	}

	ctx.Logger().Debug("replacing value",
		"key", k,
		"replacement", name,
		"path", path.String())
	if s, ok := v.(string); ok {
		if IsPlaceholder(s) {
			return s, nil
		}
		return strings.ReplaceAll(s, matched, name), nil
	}
	return name, nil
}

// HyphenCase converts a camel-case key to lower-case words joined by
// hyphens: "ResourceName" becomes "resource-name".
func HyphenCase(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsUpper(r) {
			b.WriteByte('-')
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return strings.Trim(b.String(), "-")
}

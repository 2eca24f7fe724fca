package transform

import (
	"strings"

	"github.com/roach88/golden/canon"
)

type jsonString struct {
	key string
}

// JSONString parses JSON object and array strings stored under key,
// anywhere in the document, and then any JSON strings nested inside the
// parsed result. Strings that are not valid JSON are left as they are.
func JSONString(key string) Transformer {
	return &jsonString{key: key}
}

func (t *jsonString) sealed() {}

func (t *jsonString) Name() string {
	return "json_string(" + t.key + ")"
}

func (t *jsonString) Apply(ctx *Context, v any) (any, error) {
	return t.walk(ctx, v), nil
}

func (t *jsonString) walk(ctx *Context, v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, elem := range val {
			if s, ok := elem.(string); ok && k == t.key {
				if parsed, ok := parseJSONText(s); ok {
					ctx.Logger().Debug("parsed JSON string", "key", k)
					val[k] = expandNested(parsed)
				} else if looksLikeJSON(s) {
					ctx.Logger().Debug("value is not a valid JSON string", "key", k, "value", truncate(s, 200))
				}
				continue
			}
			val[k] = t.walk(ctx, elem)
		}
		return val
	case []any:
		for i, elem := range val {
			val[i] = t.walk(ctx, elem)
		}
		return val
	default:
		return v
	}
}

// expandNested parses every JSON object or array string inside v.
func expandNested(v any) any {
	switch val := v.(type) {
	case string:
		if parsed, ok := parseJSONText(val); ok {
			return expandNested(parsed)
		}
		return val
	case []any:
		for i, elem := range val {
			val[i] = expandNested(elem)
		}
		return val
	case map[string]any:
		for k, elem := range val {
			val[k] = expandNested(elem)
		}
		return val
	default:
		return v
	}
}

func looksLikeJSON(s string) bool {
	trimmed := strings.TrimSpace(s)
	return strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")
}

// parseJSONText decodes s if it holds a JSON object or array.
func parseJSONText(s string) (any, bool) {
	if !looksLikeJSON(s) {
		return nil, false
	}
	parsed, err := canon.Unmarshal([]byte(s))
	if err != nil {
		return nil, false
	}
	normalized, err := canon.FromGo(parsed)
	if err != nil {
		return nil, false
	}
	return normalized, true
}

// ExpandJSONObjects replaces string values that hold a JSON object with the
// parsed object. Only values of object members and objects directly inside
// lists are inspected, and only strings starting with '{'. Sessions apply it
// to every capture before the pipeline runs.
func ExpandJSONObjects(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, elem := range val {
			switch e := elem.(type) {
			case string:
				if !strings.HasPrefix(e, "{") {
					continue
				}
				if parsed, ok := parseJSONText(e); ok {
					val[k] = ExpandJSONObjects(parsed)
				}
			case map[string]any:
				val[k] = ExpandJSONObjects(e)
			case []any:
				for i, item := range e {
					if m, ok := item.(map[string]any); ok {
						e[i] = ExpandJSONObjects(m)
					}
				}
			}
		}
		return val
	case []any:
		for i, item := range val {
			if m, ok := item.(map[string]any); ok {
				val[i] = ExpandJSONObjects(m)
			}
		}
		return val
	default:
		return v
	}
}

package transform

import (
	"fmt"
	"regexp"
	"strings"
)

type regex struct {
	re          *regexp.Regexp
	replacement string
}

// Regex replaces every match of pattern in keys and string values.
// replacement may use $1 style group references. It panics if pattern does
// not compile; use ParseRegex for patterns from configuration.
func Regex(pattern, replacement string) Transformer {
	t, err := ParseRegex(pattern, replacement)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseRegex is Regex returning an error for invalid patterns.
func ParseRegex(pattern, replacement string) (Transformer, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("regex %q: %w", pattern, err)
	}
	return &regex{re: re, replacement: replacement}, nil
}

// RegexFrom is Regex for an already compiled expression.
func RegexFrom(re *regexp.Regexp, replacement string) Transformer {
	return &regex{re: re, replacement: replacement}
}

func (t *regex) sealed() {}

func (t *regex) Name() string {
	return "regex(" + truncate(t.re.String(), 200) + ")"
}

func (t *regex) Apply(ctx *Context, v any) (any, error) {
	ctx.Logger().Debug("registering regex replacement",
		"pattern", truncate(t.re.String(), 200),
		"replacement", t.replacement)
	ctx.Replace(func(s string) string {
		return t.re.ReplaceAllString(s, t.replacement)
	})
	return v, nil
}

type text struct {
	text        string
	replacement string
}

// Text replaces every literal occurrence of s in keys and string values.
// Unlike Regex, characters such as '+' or '(' need no escaping.
func Text(s, replacement string) Transformer {
	return &text{text: s, replacement: replacement}
}

func (t *text) sealed() {}

func (t *text) Name() string {
	return "text(" + truncate(t.text, 200) + ")"
}

func (t *text) Apply(ctx *Context, v any) (any, error) {
	if t.text == "" {
		return v, nil
	}
	ctx.Logger().Debug("registering text replacement",
		"text", truncate(t.text, 200),
		"replacement", t.replacement)
	ctx.Replace(func(s string) string {
		return strings.ReplaceAll(s, t.text, t.replacement)
	})
	return v, nil
}

package transform

import (
	"regexp"
	"time"

	"github.com/araddon/dateparse"
)

// ReferenceDate is the instant timestamp placeholders are rendered with.
var ReferenceDate = time.Date(2022, time.July, 13, 13, 48, 1, 0, time.UTC)

type timestampMatcher struct {
	re             *regexp.Regexp
	representation string
}

// Matchers are tried in order; each is anchored at the start of the string.
var timestampMatchers = []timestampMatcher{
	{
		re:             regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z`),
		representation: ReferenceDate.Format("2006-01-02T15:04:05.000Z"),
	},
	{
		re:             regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}\+\d{4}`),
		representation: ReferenceDate.Format("2006-01-02T15:04:05.000-0700"),
	},
	{
		re:             regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{6}[+-]\d{2}:\d{2}`),
		representation: ReferenceDate.Format("2006-01-02T15:04:05.000000-07:00"),
	},
	{
		re:             regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z`),
		representation: ReferenceDate.Format("2006-01-02T15:04:05Z"),
	},
}

type timestamp struct{}

// Timestamp replaces string values that start with one of the common ISO
// 8601 layouts by <timestamp:R>, where R is ReferenceDate in the same
// layout. Keys are left alone.
func Timestamp() Transformer {
	return timestamp{}
}

func (timestamp) sealed() {}

func (timestamp) Name() string { return "timestamp" }

func (timestamp) Apply(_ *Context, v any) (any, error) {
	return mapStrings(v, func(s string) string {
		for _, m := range timestampMatchers {
			if m.re.MatchString(s) {
				return "<timestamp:" + m.representation + ">"
			}
		}
		return s
	}), nil
}

// yearPattern and clockPattern preselect strings worth handing to the date parser: a
// four-digit year somewhere and a clock time.
var (
	yearPattern  = regexp.MustCompile(`(^|\D)(19|20)\d{2}(\D|$)`)
	clockPattern = regexp.MustCompile(`\d{1,2}:\d{2}`)
)

type datetime struct {
	replacement string
}

// Datetime replaces string values holding a complete date and time in any
// layout the date parser recognizes (RFC 1123 headers, "2006-01-02
// 15:04:05", ISO 8601 with arbitrary precision) by <replacement>. An empty
// replacement defaults to "timestamp".
func Datetime(replacement string) Transformer {
	if replacement == "" {
		replacement = "timestamp"
	}
	return &datetime{replacement: replacement}
}

func (t *datetime) sealed() {}

func (t *datetime) Name() string { return "datetime" }

func (t *datetime) Apply(ctx *Context, v any) (any, error) {
	token := "<" + t.replacement + ">"
	return mapStrings(v, func(s string) string {
		if len(s) < 10 || IsPlaceholder(s) || !yearPattern.MatchString(s) || !clockPattern.MatchString(s) {
			return s
		}
		if _, err := dateparse.ParseStrict(s); err != nil {
			return s
		}
		ctx.Logger().Debug("replacing datetime", "value", s, "replacement", token)
		return token
	}), nil
}

// mapStrings applies fn to every string value (not keys) in place.
func mapStrings(v any, fn func(string) string) any {
	switch val := v.(type) {
	case string:
		return fn(val)
	case []any:
		for i, elem := range val {
			val[i] = mapStrings(elem, fn)
		}
		return val
	case map[string]any:
		for k, elem := range val {
			val[k] = mapStrings(elem, fn)
		}
		return val
	default:
		return v
	}
}

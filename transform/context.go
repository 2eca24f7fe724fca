package transform

import (
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"github.com/roach88/golden/canon"
)

// placeholderPattern matches normalized tokens such as <uuid:3>,
// <timestamp:2022-07-13T13:48:01Z> or <account>.
var placeholderPattern = regexp.MustCompile(`<[A-Za-z][^<>\s]*>`)

// IsPlaceholder reports whether s is exactly one placeholder token.
func IsPlaceholder(s string) bool {
	loc := placeholderPattern.FindStringIndex(s)
	return loc != nil && loc[0] == 0 && loc[1] == len(s)
}

// Placeholder formats a numbered placeholder token.
func Placeholder(name string, n int) string {
	return fmt.Sprintf("<%s:%d>", name, n)
}

type rewrite struct {
	owner string
	fn    func(string) string
	// whole rewrites see the complete string, placeholders included.
	whole bool
}

// Context is the state shared by the transformers of one Pipeline.Apply
// call: the reference table, per-name counters and the deferred rewrites.
// It is not safe for concurrent use.
type Context struct {
	logger   *slog.Logger
	refs     map[string]string
	counters map[string]int
	rewrites []rewrite
	current  string

	refSlot  bool
	replacer *strings.Replacer
	// spanning replaces references that contain a placeholder-shaped
	// token themselves, such as "<Code>x</Code>".
	spanning *strings.Replacer
}

// NewContext returns an empty context. A nil logger discards output.
func NewContext(logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Context{
		logger:   logger,
		refs:     make(map[string]string),
		counters: make(map[string]int),
	}
}

// Logger returns the logger transformers should report through.
func (c *Context) Logger() *slog.Logger {
	return c.logger
}

// Next returns the next sequence number for name, starting at 1.
func (c *Context) Next(name string) int {
	c.counters[name]++
	return c.counters[name]
}

// Reference registers value for replacement everywhere in the document and
// returns its placeholder. Registering the same value again returns the
// placeholder assigned the first time, whatever name is passed. Values that
// are already placeholders are returned unchanged.
//
// All references are replaced in a single rewrite, positioned where the
// first one was registered. At each position the longest registered value
// wins, so "x1" is not split by an earlier reference to "1".
func (c *Context) Reference(value, name string) string {
	if value == "" || IsPlaceholder(value) {
		return value
	}
	if p, ok := c.refs[value]; ok {
		return p
	}

	p := Placeholder(name, c.Next(name))
	c.alias(value, p)
	return p
}

// alias makes value rewrite to an existing placeholder p.
func (c *Context) alias(value, p string) {
	if value == "" || IsPlaceholder(value) {
		return
	}
	if _, ok := c.refs[value]; ok {
		return
	}
	c.refs[value] = p
	c.logger.Debug("registered reference replacement",
		"value", truncate(value, 200),
		"placeholder", p)
	c.replacer, c.spanning = nil, nil
	if !c.refSlot {
		c.refSlot = true
		c.rewrites = append(c.rewrites, rewrite{owner: c.current, fn: c.replaceReferences, whole: true})
	}
}

// replaceReferences first replaces the references containing
// placeholder-shaped tokens over the whole string, then the others outside
// placeholders.
func (c *Context) replaceReferences(s string) string {
	if c.replacer == nil {
		var plain, spanning []string
		for v := range c.refs {
			if placeholderPattern.MatchString(v) {
				spanning = append(spanning, v)
			} else {
				plain = append(plain, v)
			}
		}
		c.replacer = c.newReplacer(plain)
		c.spanning = c.newReplacer(spanning)
	}
	return outsidePlaceholders(c.spanning.Replace(s), c.replacer.Replace)
}

// newReplacer returns a replacer trying longer values first.
func (c *Context) newReplacer(values []string) *strings.Replacer {
	slices.SortFunc(values, func(a, b string) int {
		if len(a) != len(b) {
			return len(b) - len(a)
		}
		return strings.Compare(a, b)
	})
	pairs := make([]string, 0, 2*len(values))
	for _, v := range values {
		pairs = append(pairs, v, c.refs[v])
	}
	return strings.NewReplacer(pairs...)
}

// Replace registers a rewrite applied to every key and string value after
// all transformers ran. Rewrites run in registration order and never see the
// inside of placeholder tokens.
func (c *Context) Replace(fn func(string) string) {
	c.rewrites = append(c.rewrites, rewrite{owner: c.current, fn: fn})
}

// Rewrite applies the registered rewrites to a single string.
func (c *Context) Rewrite(s string) string {
	for _, r := range c.rewrites {
		var out string
		if r.whole {
			out = r.fn(s)
		} else {
			out = outsidePlaceholders(s, r.fn)
		}
		if out != s {
			c.logger.Debug("rewrote string", "transformer", r.owner, "result", truncate(out, 200))
		}
		s = out
	}
	return s
}

// applyRewrites runs the deferred rewrites over keys and string values.
func (c *Context) applyRewrites(v any, path canon.Path) (any, error) {
	if len(c.rewrites) == 0 {
		return v, nil
	}

	switch val := v.(type) {
	case string:
		return c.Rewrite(val), nil
	case []any:
		for i, elem := range val {
			out, err := c.applyRewrites(elem, path.Index(i))
			if err != nil {
				return nil, err
			}
			val[i] = out
		}
		return val, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for _, k := range canon.SortedKeys(val) {
			nk := c.Rewrite(k)
			if _, dup := out[nk]; dup {
				return nil, transformErrorf("rewrite", path, "keys %q collide after replacement as %q", k, nk)
			}
			elem, err := c.applyRewrites(val[k], path.Key(k))
			if err != nil {
				return nil, err
			}
			out[nk] = elem
		}
		return out, nil
	default:
		return v, nil
	}
}

// outsidePlaceholders applies fn to the parts of s that are not placeholder
// tokens.
func outsidePlaceholders(s string, fn func(string) string) string {
	locs := placeholderPattern.FindAllStringIndex(s, -1)
	if len(locs) == 0 {
		return fn(s)
	}

	var b strings.Builder
	prev := 0
	for _, loc := range locs {
		if loc[0] > prev {
			b.WriteString(fn(s[prev:loc[0]]))
		}
		b.WriteString(s[loc[0]:loc[1]])
		prev = loc[1]
	}
	if prev < len(s) {
		b.WriteString(fn(s[prev:]))
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

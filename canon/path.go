package canon

import (
	"strconv"
	"strings"
	"unicode"
)

// Segment is one step of a Path: an object key or an array index.
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

// Path locates a value inside a canonical document. The zero value is the
// document root.
type Path []Segment

// Key returns a new path extended with an object key.
func (p Path) Key(k string) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, Segment{Key: k})
}

// Index returns a new path extended with an array index.
func (p Path) Index(i int) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, Segment{Index: i, IsIndex: true})
}

// Clone returns a copy of p that does not share its backing array.
func (p Path) Clone() Path {
	if p == nil {
		return nil
	}
	out := make(Path, len(p))
	copy(out, p)
	return out
}

// String renders p as a JSONPath expression selecting exactly this node,
// e.g. $.users[0]['first.name'].
func (p Path) String() string {
	var b strings.Builder
	b.WriteByte('$')
	for _, s := range p {
		if s.IsIndex {
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(s.Index))
			b.WriteByte(']')
			continue
		}
		if isShorthandName(s.Key) {
			b.WriteByte('.')
			b.WriteString(s.Key)
			continue
		}
		b.WriteString("['")
		writeQuoted(&b, s.Key)
		b.WriteString("']")
	}
	return b.String()
}

// DeepDiff renders p in the root['key'][0] form used by legacy reports.
func (p Path) DeepDiff() string {
	var b strings.Builder
	b.WriteString("root")
	for _, s := range p {
		b.WriteByte('[')
		if s.IsIndex {
			b.WriteString(strconv.Itoa(s.Index))
		} else {
			b.WriteByte('\'')
			writeQuoted(&b, s.Key)
			b.WriteByte('\'')
		}
		b.WriteByte(']')
	}
	return b.String()
}

// IgnorePath renders p as a descendant-segment JSONPath ($..a..b) that drops
// array indices. Pasting it into an ignore list skips the node in every
// element of the enclosing arrays. Names that need quoting keep the
// bracket form.
func (p Path) IgnorePath() string {
	var b strings.Builder
	b.WriteString("$..")
	first := true
	afterIndex := false
	for _, s := range p {
		if s.IsIndex {
			afterIndex = true
			continue
		}
		switch {
		case !isShorthandName(s.Key):
			if afterIndex && !first {
				b.WriteString("..")
			}
			b.WriteString("['")
			writeQuoted(&b, s.Key)
			b.WriteString("']")
		case first:
		case afterIndex:
			b.WriteString("..")
		default:
			b.WriteByte('.')
		}
		if isShorthandName(s.Key) {
			b.WriteString(s.Key)
		}
		first = false
		afterIndex = false
	}
	return b.String()
}

// isShorthandName reports whether name can be written as .name in JSONPath.
func isShorthandName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 0x80, r < 0x80 && unicode.IsLetter(r):
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

func writeQuoted(b *strings.Builder, s string) {
	for _, r := range s {
		switch r {
		case '\'', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
}

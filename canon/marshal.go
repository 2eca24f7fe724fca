package canon

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

const indentUnit = "  "

// Marshal encodes a canonical value as indented canonical JSON followed by a
// newline. It is the only encoding used for snapshot files.
func Marshal(v any) ([]byte, error) {
	e := &encoder{indent: true}
	if err := e.encode(v, nil, 0); err != nil {
		return nil, err
	}
	e.buf.WriteByte('\n')
	return e.buf.Bytes(), nil
}

// MarshalCompact encodes a canonical value on a single line with the same
// ordering and number rules as Marshal. Reports use it to print values.
func MarshalCompact(v any) ([]byte, error) {
	e := &encoder{}
	if err := e.encode(v, nil, 0); err != nil {
		return nil, err
	}
	return e.buf.Bytes(), nil
}

// Compact is MarshalCompact for values already known to be canonical. Values
// outside the model are rendered with %v.
func Compact(v any) string {
	data, err := MarshalCompact(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

type encoder struct {
	buf    bytes.Buffer
	indent bool
}

func (e *encoder) encode(v any, path Path, level int) error {
	switch val := v.(type) {
	case nil:
		e.buf.WriteString("null")
	case bool:
		if val {
			e.buf.WriteString("true")
		} else {
			e.buf.WriteString("false")
		}
	case int64:
		e.buf.WriteString(strconv.FormatInt(val, 10))
	case float64:
		s, err := formatFloat(val)
		if err != nil {
			return serializationErrorf(path, "%v", err)
		}
		e.buf.WriteString(s)
	case string:
		writeString(&e.buf, val)
	case []any:
		return e.encodeArray(val, path, level)
	case map[string]any:
		return e.encodeObject(val, path, level)
	default:
		return serializationErrorf(path, "unsupported type %T", v)
	}
	return nil
}

func (e *encoder) encodeArray(arr []any, path Path, level int) error {
	if len(arr) == 0 {
		e.buf.WriteString("[]")
		return nil
	}
	e.buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		e.newline(level + 1)
		if err := e.encode(elem, path.Index(i), level+1); err != nil {
			return err
		}
	}
	e.newline(level)
	e.buf.WriteByte(']')
	return nil
}

func (e *encoder) encodeObject(obj map[string]any, path Path, level int) error {
	if len(obj) == 0 {
		e.buf.WriteString("{}")
		return nil
	}
	e.buf.WriteByte('{')
	for i, k := range SortedKeys(obj) {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		e.newline(level + 1)
		writeString(&e.buf, k)
		e.buf.WriteByte(':')
		if e.indent {
			e.buf.WriteByte(' ')
		}
		if err := e.encode(obj[k], path.Key(k), level+1); err != nil {
			return err
		}
	}
	e.newline(level)
	e.buf.WriteByte('}')
	return nil
}

func (e *encoder) newline(level int) {
	if !e.indent {
		return
	}
	e.buf.WriteByte('\n')
	for i := 0; i < level; i++ {
		e.buf.WriteString(indentUnit)
	}
}

// formatFloat renders the shortest decimal that parses back to f. Integral
// values keep a ".0" suffix so they decode as floats again.
func formatFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("non-finite number %v", f)
	}
	abs := math.Abs(f)
	format := byte('f')
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		format = 'e'
	}
	s := strconv.FormatFloat(f, format, -1, 64)
	if format == 'f' && !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s, nil
}

const hexDigits = "0123456789abcdef"

// writeString escapes only the quote, the backslash and control characters.
// HTML characters and U+2028/U+2029 are written literally.
func writeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x20 && c != '"' && c != '\\' {
			continue
		}
		buf.WriteString(s[start:i])
		switch c {
		case '"', '\\':
			buf.WriteByte('\\')
			buf.WriteByte(c)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		default:
			buf.WriteString(`\u00`)
			buf.WriteByte(hexDigits[c>>4])
			buf.WriteByte(hexDigits[c&0xf])
		}
		start = i + 1
	}
	buf.WriteString(s[start:])
	buf.WriteByte('"')
}

// Unmarshal decodes JSON into the canonical value model. Integer literals
// become int64 (float64 when out of range), all other numbers float64.
func Unmarshal(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after top-level value")
	}
	return fromDecoded(raw, nil)
}

func fromDecoded(v any, path Path) (any, error) {
	switch val := v.(type) {
	case json.Number:
		return numberValue(string(val), path)
	case []any:
		for i, elem := range val {
			c, err := fromDecoded(elem, path.Index(i))
			if err != nil {
				return nil, err
			}
			val[i] = c
		}
		return val, nil
	case map[string]any:
		for k, elem := range val {
			c, err := fromDecoded(elem, path.Key(k))
			if err != nil {
				return nil, err
			}
			val[k] = c
		}
		return val, nil
	default:
		return v, nil
	}
}

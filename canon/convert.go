package canon

import (
	"encoding"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"reflect"
	"strconv"
	"time"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/text/unicode/norm"
)

// MaxDepth bounds the nesting of converted values.
const MaxDepth = 512

// TimeLayout is how time.Time values are rendered.
const TimeLayout = "2006-01-02T15:04:05.000Z"

var structJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// FromGo converts an arbitrary Go value into the canonical value model.
//
// Integers become int64, floats float64, []byte a string (base64 when it is
// not valid UTF-8), time.Time a UTC millisecond timestamp and io.Reader its
// content. Structs and json.Marshaler implementations go through their JSON
// encoding, so json struct tags apply. Strings are NFC-normalized.
//
// Channels, functions, complex numbers, NaN, infinities, integers outside
// the int64 range and cycles deeper than MaxDepth fail with a
// *SerializationError naming the offending path.
func FromGo(v any) (any, error) {
	return fromGo(v, nil, 0)
}

func fromGo(v any, path Path, depth int) (any, error) {
	if depth > MaxDepth {
		return nil, serializationErrorf(path, "nesting deeper than %d levels", MaxDepth)
	}

	switch val := v.(type) {
	case nil:
		return nil, nil
	case bool:
		return val, nil
	case string:
		return normString(val, path)
	case int:
		return int64(val), nil
	case int8:
		return int64(val), nil
	case int16:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case int64:
		return val, nil
	case uint:
		return uintValue(uint64(val), path)
	case uint8:
		return int64(val), nil
	case uint16:
		return int64(val), nil
	case uint32:
		return int64(val), nil
	case uint64:
		return uintValue(val, path)
	case float32:
		// Shortest float32 text keeps 0.1 as 0.1 instead of 0.10000000149.
		f, _ := strconv.ParseFloat(strconv.FormatFloat(float64(val), 'g', -1, 32), 64)
		return floatValue(f, path)
	case float64:
		return floatValue(val, path)
	case json.Number:
		return numberValue(string(val), path)
	case json.RawMessage:
		parsed, err := Unmarshal(val)
		if err != nil {
			return nil, serializationErrorf(path, "raw JSON: %v", err)
		}
		return fromGo(parsed, path, depth+1)
	case []byte:
		return bytesValue(val, path)
	case time.Time:
		return val.UTC().Format(TimeLayout), nil
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			c, err := fromGo(elem, path.Index(i), depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			key, err := normString(k, path)
			if err != nil {
				return nil, err
			}
			c, err := fromGo(elem, path.Key(k), depth+1)
			if err != nil {
				return nil, err
			}
			if _, dup := out[key]; dup {
				return nil, serializationErrorf(path, "keys collide after normalization: %q", key)
			}
			out[key] = c
		}
		return out, nil
	case io.Reader:
		data, err := io.ReadAll(val)
		if err != nil {
			return nil, serializationErrorf(path, "read stream: %v", err)
		}
		return bytesValue(data, path)
	case json.Marshaler:
		return marshalerValue(val, path, depth)
	case encoding.TextMarshaler:
		text, err := val.MarshalText()
		if err != nil {
			return nil, serializationErrorf(path, "marshal text: %v", err)
		}
		return normString(string(text), path)
	}

	return reflectValue(reflect.ValueOf(v), path, depth)
}

func reflectValue(rv reflect.Value, path Path, depth int) (any, error) {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return fromGo(rv.Elem().Interface(), path, depth+1)
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.String:
		return normString(rv.String(), path)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return uintValue(rv.Uint(), path)
	case reflect.Float32, reflect.Float64:
		return floatValue(rv.Float(), path)
	case reflect.Slice:
		if rv.IsNil() {
			return nil, nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return bytesValue(rv.Bytes(), path)
		}
		return listValue(rv, path, depth)
	case reflect.Array:
		return listValue(rv, path, depth)
	case reflect.Map:
		if rv.IsNil() {
			return nil, nil
		}
		return mapValue(rv, path, depth)
	case reflect.Struct:
		return marshalerValue(rv.Interface(), path, depth)
	default:
		return nil, serializationErrorf(path, "unsupported type %s", rv.Type())
	}
}

func listValue(rv reflect.Value, path Path, depth int) (any, error) {
	out := make([]any, rv.Len())
	for i := range out {
		c, err := fromGo(rv.Index(i).Interface(), path.Index(i), depth+1)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

func mapValue(rv reflect.Value, path Path, depth int) (any, error) {
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k, err := mapKey(iter.Key(), path)
		if err != nil {
			return nil, err
		}
		c, err := fromGo(iter.Value().Interface(), path.Key(k), depth+1)
		if err != nil {
			return nil, err
		}
		if _, dup := out[k]; dup {
			return nil, serializationErrorf(path, "keys collide after normalization: %q", k)
		}
		out[k] = c
	}
	return out, nil
}

func mapKey(k reflect.Value, path Path) (string, error) {
	if tm, ok := k.Interface().(encoding.TextMarshaler); ok {
		text, err := tm.MarshalText()
		if err != nil {
			return "", serializationErrorf(path, "marshal map key: %v", err)
		}
		return normString(string(text), path)
	}
	switch k.Kind() {
	case reflect.String:
		return normString(k.String(), path)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(k.Uint(), 10), nil
	default:
		return "", serializationErrorf(path, "unsupported map key type %s", k.Type())
	}
}

// marshalerValue converts v through its JSON encoding.
func marshalerValue(v any, path Path, depth int) (any, error) {
	data, err := structJSON.Marshal(v)
	if err != nil {
		return nil, serializationErrorf(path, "%T: %v", v, err)
	}
	parsed, err := Unmarshal(data)
	if err != nil {
		return nil, serializationErrorf(path, "%T: %v", v, err)
	}
	return fromGo(parsed, path, depth+1)
}

func normString(s string, path Path) (string, error) {
	if !utf8.ValidString(s) {
		return "", serializationErrorf(path, "invalid UTF-8 in string %q", s)
	}
	return norm.NFC.String(s), nil
}

func bytesValue(b []byte, path Path) (any, error) {
	if utf8.Valid(b) {
		return normString(string(b), path)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func uintValue(u uint64, path Path) (any, error) {
	if u > math.MaxInt64 {
		return nil, serializationErrorf(path, "integer %d overflows int64", u)
	}
	return int64(u), nil
}

func floatValue(f float64, path Path) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, serializationErrorf(path, "non-finite number %v", f)
	}
	return f, nil
}

func numberValue(s string, path Path) (any, error) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, serializationErrorf(path, "invalid number %q", s)
	}
	return floatValue(f, path)
}

// MustFromGo is FromGo for values known to be convertible, such as literals
// in tests. It panics on error.
func MustFromGo(v any) any {
	c, err := FromGo(v)
	if err != nil {
		panic(fmt.Sprintf("canon: %v", err))
	}
	return c
}

// Package canon defines the value model snapshots are made of and its
// canonical JSON encoding.
//
// A canonical value is one of:
//
//	nil, bool, int64, float64, string, []any, map[string]any
//
// Strings are valid UTF-8 in NFC form. FromGo converts arbitrary Go values
// into this model; everything downstream (transformers, comparison, storage)
// only ever sees canonical values.
//
// Marshal is deterministic: equal values produce byte-identical output.
// Object keys are ordered by UTF-16 code units (RFC 8785 order), the output
// is indented with two spaces and ends with a newline so snapshot files diff
// cleanly under version control.
package canon

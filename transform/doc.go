// Package transform normalizes captured values before they are compared or
// stored.
//
// A Pipeline holds an ordered set of transformers. Apply runs them by
// ascending priority (registration order breaks ties) over a private copy of
// the input, then applies the string rewrites they registered: reference
// replacements, regular expressions and literal text. Rewrites reach both
// map keys and string values.
//
// Reference replacement is what keeps snapshots stable across runs. A value
// such as a generated id is registered once and every occurrence, including
// substrings of other values, becomes a numbered placeholder:
//
//	{"id": "req-abc123", "url": "/r/req-abc123"}
//	{"id": "<req-id:1>", "url": "/r/<req-id:1>"}
//
// Placeholder tokens are never rewritten again, which makes applying a
// pipeline to its own output a no-op.
package transform

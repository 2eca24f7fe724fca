package store

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/roach88/golden/canon"
)

const (
	// Ext is the extension of snapshot files.
	Ext = ".snapshot.json"

	// RawExt is the extension of the raw sibling file.
	RawExt = ".raw.snapshot.json"

	// DateLayout is the layout of the recorded-date field.
	DateLayout = "02-01-2006, 15:04:05"

	fieldDate    = "recorded-date"
	fieldContent = "recorded-content"
)

// ID identifies a snapshot file by its path without extension, e.g.
// testdata/snapshots/users_test.
type ID string

// FileID returns the ID of the snapshot file for a Go source file stored
// under dir: users_test.go becomes <dir>/users_test.
func FileID(dir, sourceFile string) ID {
	base := strings.TrimSuffix(filepath.Base(sourceFile), filepath.Ext(sourceFile))
	return ID(filepath.Join(dir, base))
}

// ParseID returns the ID of a snapshot or raw snapshot file path.
func ParseID(path string) (ID, error) {
	switch {
	case strings.HasSuffix(path, RawExt):
		return ID(strings.TrimSuffix(path, RawExt)), nil
	case strings.HasSuffix(path, Ext):
		return ID(strings.TrimSuffix(path, Ext)), nil
	}
	return "", fmt.Errorf("%s: not a snapshot file (want *%s)", path, Ext)
}

// Path returns the snapshot file path.
func (id ID) Path() string { return string(id) + Ext }

// RawPath returns the raw sibling file path.
func (id ID) RawPath() string { return string(id) + RawExt }

// Key identifies one entry: the scope (test name) and the entry name
// within it.
type Key struct {
	Scope string
	Name  string
}

func (k Key) String() string {
	return k.Scope + "::" + k.Name
}

// CompareKeys orders keys by scope, then name, in canonical key order.
func CompareKeys(a, b Key) int {
	if c := canon.CompareKeys(a.Scope, b.Scope); c != 0 {
		return c
	}
	return canon.CompareKeys(a.Name, b.Name)
}

// Scope holds the entries recorded for one test.
type Scope struct {
	RecordedDate string
	Content      map[string]any
}

// File is the decoded content of a snapshot file and its raw sibling.
// Raw is nil when the sibling does not exist.
type File struct {
	Scopes map[string]*Scope
	Raw    map[string]*Scope
}

// NewFile returns an empty file.
func NewFile() *File {
	return &File{Scopes: make(map[string]*Scope)}
}

// Lookup returns the recorded value for k.
func (f *File) Lookup(k Key) (any, bool) {
	return lookup(f.Scopes, k)
}

// LookupRaw returns the raw value recorded for k.
func (f *File) LookupRaw(k Key) (any, bool) {
	return lookup(f.Raw, k)
}

func lookup(scopes map[string]*Scope, k Key) (any, bool) {
	s, ok := scopes[k.Scope]
	if !ok {
		return nil, false
	}
	v, ok := s.Content[k.Name]
	return v, ok
}

// Keys returns all entry keys in canonical order.
func (f *File) Keys() []Key {
	var keys []Key
	for scope, s := range f.Scopes {
		for name := range s.Content {
			keys = append(keys, Key{Scope: scope, Name: name})
		}
	}
	slices.SortFunc(keys, CompareKeys)
	return keys
}

// ScopeNames returns the scope names in canonical order.
func (f *File) ScopeNames() []string {
	names := make([]string, 0, len(f.Scopes))
	for name := range f.Scopes {
		names = append(names, name)
	}
	slices.SortFunc(names, canon.CompareKeys)
	return names
}

// Delete removes k from the file and its raw values. A scope left without
// entries is removed. It reports whether k was present.
func (f *File) Delete(k Key) bool {
	found := remove(f.Scopes, k)
	remove(f.Raw, k)
	return found
}

// Prune deletes every entry for which keep returns false and returns the
// deleted keys in canonical order.
func (f *File) Prune(keep func(Key) bool) []Key {
	var removed []Key
	for _, k := range f.Keys() {
		if !keep(k) {
			f.Delete(k)
			removed = append(removed, k)
		}
	}
	return removed
}

func remove(scopes map[string]*Scope, k Key) bool {
	s, ok := scopes[k.Scope]
	if !ok {
		return false
	}
	if _, ok := s.Content[k.Name]; !ok {
		return false
	}
	delete(s.Content, k.Name)
	if len(s.Content) == 0 {
		delete(scopes, k.Scope)
	}
	return true
}

// Clone returns a deep copy of f.
func (f *File) Clone() *File {
	return &File{Scopes: cloneScopes(f.Scopes), Raw: cloneScopes(f.Raw)}
}

func cloneScopes(scopes map[string]*Scope) map[string]*Scope {
	if scopes == nil {
		return nil
	}
	out := make(map[string]*Scope, len(scopes))
	for name, s := range scopes {
		content, _ := canon.Clone(s.Content).(map[string]any)
		out[name] = &Scope{RecordedDate: s.RecordedDate, Content: content}
	}
	return out
}

// EncodeScopes renders scopes in the snapshot file format. Equal content
// always encodes to identical bytes.
func EncodeScopes(scopes map[string]*Scope) ([]byte, error) {
	doc := make(map[string]any, len(scopes))
	for name, s := range scopes {
		content := s.Content
		if content == nil {
			content = map[string]any{}
		}
		doc[name] = map[string]any{
			fieldDate:    s.RecordedDate,
			fieldContent: content,
		}
	}
	return canon.Marshal(doc)
}

// DecodeScopes parses the snapshot file format. Empty input decodes to no
// scopes.
func DecodeScopes(data []byte) (map[string]*Scope, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return make(map[string]*Scope), nil
	}

	v, err := canon.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	doc, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("top level is %s, want object", canon.KindOf(v))
	}

	scopes := make(map[string]*Scope, len(doc))
	for name, raw := range doc {
		s, err := decodeScope(raw)
		if err != nil {
			return nil, fmt.Errorf("scope %q: %w", name, err)
		}
		scopes[name] = s
	}
	return scopes, nil
}

func decodeScope(raw any) (*Scope, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("is %s, want object", canon.KindOf(raw))
	}

	s := &Scope{}
	for field, v := range obj {
		switch field {
		case fieldDate:
			date, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("%s is %s, want string", fieldDate, canon.KindOf(v))
			}
			s.RecordedDate = date
		case fieldContent:
			content, ok := v.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%s is %s, want object", fieldContent, canon.KindOf(v))
			}
			s.Content = content
		default:
			return nil, fmt.Errorf("unknown field %q", field)
		}
	}
	if s.Content == nil {
		return nil, errors.New("missing " + fieldContent)
	}
	return s, nil
}

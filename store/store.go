package store

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// pathLocks serializes Update calls on the same snapshot file within the
// process, across Store values.
var pathLocks sync.Map // map[string]*sync.Mutex

func pathMutex(path string) *sync.Mutex {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	mu, _ := pathLocks.LoadOrStore(path, new(sync.Mutex))
	return mu.(*sync.Mutex)
}

// Store reads and writes snapshot files.
type Store struct {
	locking bool
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLocking makes Update take an advisory lock on <file>.lock so that
// several processes may update the same snapshot file.
func WithLocking(enabled bool) Option {
	return func(s *Store) { s.locking = enabled }
}

// WithLogger sets the logger. The default discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New returns a Store.
func New(opts ...Option) *Store {
	s := &Store{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Read loads the snapshot file id and its raw sibling when present. A
// missing snapshot file is a *NotFoundError.
func (s *Store) Read(id ID) (*File, error) {
	scopes, err := readScopes(id.Path())
	if err != nil {
		return nil, err
	}
	f := &File{Scopes: scopes}

	raw, err := readScopes(id.RawPath())
	switch {
	case err == nil:
		f.Raw = raw
	case IsNotFound(err):
	default:
		return nil, err
	}
	return f, nil
}

func readScopes(path string) (map[string]*Scope, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &NotFoundError{Path: path}
	}
	if err != nil {
		return nil, err
	}
	scopes, err := DecodeScopes(data)
	if err != nil {
		return nil, &FormatError{Path: path, Err: err}
	}
	return scopes, nil
}

// Write replaces the content of snapshot file id with f. A file without
// scopes is removed. The raw sibling is written when f.Raw is not nil and
// removed when f.Raw is empty. Files whose content would not change are
// not touched.
func (s *Store) Write(id ID, f *File) error {
	if err := s.writeScopes(id.Path(), f.Scopes); err != nil {
		return err
	}
	if f.Raw != nil {
		return s.writeScopes(id.RawPath(), f.Raw)
	}
	return nil
}

func (s *Store) writeScopes(path string, scopes map[string]*Scope) error {
	if len(scopes) == 0 {
		err := os.Remove(path)
		if err == nil {
			s.logger.Debug("removed empty snapshot file", "path", path)
			return nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return &WriteError{Path: path, Op: "remove", Err: err}
	}

	data, err := EncodeScopes(scopes)
	if err != nil {
		return &WriteError{Path: path, Op: "encode", Err: err}
	}
	if current, err := os.ReadFile(path); err == nil && bytes.Equal(current, data) {
		return nil
	}
	if err := writeAtomic(path, data); err != nil {
		return err
	}
	s.logger.Debug("wrote snapshot file", "path", path, "scopes", len(scopes))
	return nil
}

// writeAtomic writes data to a temporary file next to path, syncs it and
// renames it over path. On failure the temporary file is removed.
func writeAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &WriteError{Path: path, Op: "mkdir", Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return &WriteError{Path: path, Op: "create", Err: err}
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return &WriteError{Path: path, Op: "write", Err: err}
	}
	if err := tmp.Chmod(0o644); err != nil {
		return &WriteError{Path: path, Op: "write", Err: err}
	}
	if err := tmp.Sync(); err != nil {
		return &WriteError{Path: path, Op: "sync", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &WriteError{Path: path, Op: "sync", Err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return &WriteError{Path: path, Op: "rename", Err: err}
	}
	return nil
}

// Update reads snapshot file id (an empty file when it does not exist),
// passes it to fn and writes the result. Nothing is written when fn
// returns an error. Concurrent updates of the same file are serialized.
func (s *Store) Update(id ID, fn func(*File) error) error {
	unlock, err := s.lock(id)
	if err != nil {
		return err
	}
	defer unlock()

	f, err := s.Read(id)
	if IsNotFound(err) {
		f, err = NewFile(), nil
	}
	if err != nil {
		return err
	}

	if err := fn(f); err != nil {
		return err
	}
	return s.Write(id, f)
}

// UpdateRaw is Update restricted to the raw sibling of id: the snapshot
// file itself is neither read nor written.
func (s *Store) UpdateRaw(id ID, fn func(raw map[string]*Scope) error) error {
	unlock, err := s.lock(id)
	if err != nil {
		return err
	}
	defer unlock()

	raw, err := readScopes(id.RawPath())
	if IsNotFound(err) {
		raw, err = make(map[string]*Scope), nil
	}
	if err != nil {
		return err
	}

	if err := fn(raw); err != nil {
		return err
	}
	return s.writeScopes(id.RawPath(), raw)
}

// lock serializes writers of id within the process and, with locking
// enabled, across processes.
func (s *Store) lock(id ID) (func(), error) {
	mu := pathMutex(id.Path())
	mu.Lock()
	if !s.locking {
		return mu.Unlock, nil
	}
	unlock, err := lockFile(id.Path())
	if err != nil {
		mu.Unlock()
		return nil, err
	}
	return func() {
		unlock()
		mu.Unlock()
	}, nil
}

func lockFile(path string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &WriteError{Path: path, Op: "mkdir", Err: err}
	}
	fl := flock.New(path + ".lock")
	if err := fl.Lock(); err != nil {
		return nil, &WriteError{Path: path, Op: "lock", Err: err}
	}
	return func() { _ = fl.Unlock() }, nil
}

// Prune removes every entry of snapshot file id that is not in referenced
// and returns the removed keys. The file is only rewritten when something
// was removed.
func (s *Store) Prune(id ID, referenced []Key) ([]Key, error) {
	keep := make(map[Key]bool, len(referenced))
	for _, k := range referenced {
		keep[k] = true
	}

	var removed []Key
	err := s.Update(id, func(f *File) error {
		removed = f.Prune(func(k Key) bool { return keep[k] })
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(removed) > 0 {
		s.logger.Info("pruned stale snapshot entries", "path", id.Path(), "count", len(removed))
	}
	return removed, nil
}

// Canonicalize rewrites the snapshot file at path in canonical form and
// reports whether it was not canonical. With check set the file is left
// untouched.
func (s *Store) Canonicalize(path string, check bool) (bool, error) {
	mu := pathMutex(path)
	mu.Lock()
	defer mu.Unlock()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, &NotFoundError{Path: path}
	}
	if err != nil {
		return false, err
	}
	scopes, err := DecodeScopes(data)
	if err != nil {
		return false, &FormatError{Path: path, Err: err}
	}
	out, err := EncodeScopes(scopes)
	if err != nil {
		return false, &WriteError{Path: path, Op: "encode", Err: err}
	}
	if bytes.Equal(data, out) {
		return false, nil
	}
	if check {
		return true, nil
	}
	if err := writeAtomic(path, out); err != nil {
		return false, err
	}
	s.logger.Debug("rewrote snapshot file in canonical form", "path", path)
	return true, nil
}

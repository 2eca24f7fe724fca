package store

import (
	"errors"
	"fmt"
	"io/fs"
)

// NotFoundError reports a snapshot file that does not exist yet. Callers
// usually treat it as an empty baseline.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("snapshot file %s not found", e.Path)
}

func (e *NotFoundError) Unwrap() error {
	return fs.ErrNotExist
}

// IsNotFound reports whether err is or wraps a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// FormatError reports a snapshot file that exists but does not have the
// expected shape.
type FormatError struct {
	Path string
	Err  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed snapshot file %s: %v", e.Path, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// WriteError reports a failure while persisting a snapshot file. Op names
// the step that failed (mkdir, lock, encode, create, write, sync, rename,
// remove). The previous content of the file is left in place.
type WriteError struct {
	Path string
	Op   string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write snapshot file %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

package transform

import (
	"errors"
	"fmt"

	"github.com/roach88/golden/canon"
)

// ErrNotString is returned when a reference replacement matches a value
// that is not a string.
var ErrNotString = errors.New("reference replacement requires a string value")

// TransformError reports a transformer that could not process a value.
type TransformError struct {
	Transformer string
	Path        canon.Path
	Err         error
}

func (e *TransformError) Error() string {
	if len(e.Path) > 0 {
		return fmt.Sprintf("transformer %s at %s: %v", e.Transformer, e.Path, e.Err)
	}
	return fmt.Sprintf("transformer %s: %v", e.Transformer, e.Err)
}

func (e *TransformError) Unwrap() error {
	return e.Err
}

// IsTransformError reports whether err is or wraps a *TransformError.
func IsTransformError(err error) bool {
	var te *TransformError
	return errors.As(err, &te)
}

func transformErrorf(name string, path canon.Path, format string, args ...any) *TransformError {
	return &TransformError{Transformer: name, Path: path.Clone(), Err: fmt.Errorf(format, args...)}
}

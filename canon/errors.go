package canon

import "fmt"

// SerializationError reports a value that cannot be represented in the
// canonical value model.
type SerializationError struct {
	Path   Path
	Reason string
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialize %s: %s", e.Path, e.Reason)
}

func serializationErrorf(path Path, format string, args ...any) *SerializationError {
	return &SerializationError{Path: path.Clone(), Reason: fmt.Sprintf(format, args...)}
}

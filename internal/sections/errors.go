package sections

import "errors"

var (
	// ErrNotFound means the document, or the requested section, does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable means the document exists but cannot be parsed.
	ErrUnavailable = errors.New("document unavailable")
	// ErrIOFailure wraps read and write errors from the underlying storage.
	ErrIOFailure = errors.New("storage i/o failure")
	// ErrIndexOutOfRange is returned when a save targets a missing position.
	ErrIndexOutOfRange = errors.New("section index out of range")
)

// IsNoData reports whether err means "nothing stored yet" to a caller.
func IsNoData(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnavailable)
}

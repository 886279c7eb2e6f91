package replay

import (
	"errors"
	"fmt"
)

// ErrorKind categorises a persistence failure.
type ErrorKind int

const (
	// KindNotFound means the recording file does not exist
	KindNotFound ErrorKind = iota
	// KindMalformed means the file exists but cannot be parsed
	KindMalformed
	// KindIO covers every other filesystem failure
	KindIO
)

// Sentinels matched by errors.Is against a *StoreError.
var (
	ErrNotFound  = errors.New("recording not found")
	ErrMalformed = errors.New("recording malformed")
)

// String returns a human-readable name for the kind
func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindMalformed:
		return "malformed"
	case KindIO:
		return "i/o error"
	default:
		return fmt.Sprintf("ErrorKind(%d)", k)
	}
}

// StoreError reports a failure to save or load a recording.
type StoreError struct {
	Kind ErrorKind
	Op   string // "load" or "save"
	Path string
	Err  error
}

// Error implements the error interface
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s recording %s: %s: %v", e.Op, e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s recording %s: %s", e.Op, e.Path, e.Kind)
}

// Unwrap returns the underlying error for error chain inspection
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is matches ErrNotFound and ErrMalformed by kind.
func (e *StoreError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrMalformed:
		return e.Kind == KindMalformed
	}
	return false
}

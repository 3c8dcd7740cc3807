package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrLengthMismatch is returned when a buffer or code does not have the
	// exact size of the structure being encoded or decoded.
	ErrLengthMismatch = errors.New("length mismatch")

	// ErrInvalidCode is returned by NewCode for symbols that are not printable ASCII.
	ErrInvalidCode = errors.New("invalid instrument code")
)

// LengthError describes which field had the wrong size.
type LengthError struct {
	Field string
	Want  int
	Got   int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("%s: %s: want %d bytes, got %d", ErrLengthMismatch, e.Field, e.Want, e.Got)
}

// Is reports ErrLengthMismatch as a match so callers can use errors.Is.
func (e *LengthError) Is(target error) bool {
	return target == ErrLengthMismatch
}

func checkLen(field string, b []byte, want int) error {
	if len(b) != want {
		return &LengthError{Field: field, Want: want, Got: len(b)}
	}
	return nil
}

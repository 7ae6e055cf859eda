package codec

import (
	"errors"
	"fmt"
)

// Common codec errors
var (
	// ErrInvalidCursor is matched by every decode failure. Callers map it to a
	// "restart from the first page" response.
	ErrInvalidCursor = errors.New("invalid cursor")

	// ErrUnsupportedValue is returned when a value cannot be captured in a cursor.
	ErrUnsupportedValue = errors.New("unsupported cursor value")

	// ErrMissingValue is returned when a boundary row lacks a cursor field.
	ErrMissingValue = errors.New("missing cursor value")
)

// Decode failure reasons
const (
	ReasonEmpty         = "empty"
	ReasonTooLarge      = "too_large"
	ReasonMalformed     = "malformed_base64"
	ReasonPayload       = "malformed_payload"
	ReasonShape         = "not_a_flat_mapping"
	ReasonUnknownField  = "unknown_field"
	ReasonMissingField  = "missing_field"
	ReasonUnknownFormat = "unknown_format"
)

// InvalidCursorError describes why a client supplied token was rejected. It
// is a recoverable input error, distinct from programming errors.
type InvalidCursorError struct {
	Format Format
	Reason string
	Err    error
}

// Error implements error.
func (e *InvalidCursorError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("invalid cursor (format=%s, reason=%s)", e.Format, e.Reason)
	}
	return fmt.Sprintf("invalid cursor (format=%s, reason=%s): %v", e.Format, e.Reason, e.Err)
}

// Unwrap returns the underlying cause.
func (e *InvalidCursorError) Unwrap() error {
	return e.Err
}

// Is reports ErrInvalidCursor as a match.
func (e *InvalidCursorError) Is(target error) bool {
	return target == ErrInvalidCursor
}

func invalid(format Format, reason string, err error) *InvalidCursorError {
	return &InvalidCursorError{Format: format, Reason: reason, Err: err}
}

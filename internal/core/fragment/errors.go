// Package fragment models the reusable service templates a compose document is
// assembled from. This is part of the Functional Core - all functions are pure
// with no I/O; reading template files is the shell's job.
package fragment

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Input validation errors
	ErrEmptyInput   = errors.New("fragment is empty")
	ErrInvalidYAML  = errors.New("invalid YAML syntax")
	ErrInvalidName  = errors.New("invalid fragment name")
	ErrMissingImage = errors.New("fragment must define an image")

	// Field validation errors
	ErrInvalidImage   = errors.New("invalid image reference")
	ErrInvalidPort    = errors.New("invalid port configuration")
	ErrInvalidRestart = errors.New("invalid restart policy")
	ErrInvalidEnv     = errors.New("invalid environment entry")

	// Registry errors
	ErrDuplicateFragment = errors.New("duplicate fragment name")
)

// ParseError wraps errors with context about where parsing failed.
type ParseError struct {
	Fragment string
	Field    string // e.g., "ports[0]"
	Message  string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("fragment %s: %s: %s", e.Fragment, e.Field, e.Message)
	}
	return fmt.Sprintf("fragment %s: %s", e.Fragment, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError.
func NewParseError(fragment, field, message string, err error) *ParseError {
	return &ParseError{
		Fragment: fragment,
		Field:    field,
		Message:  message,
		Err:      err,
	}
}

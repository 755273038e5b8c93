// Package compose assembles resolved services into a docker-compose document,
// serialises it deterministically and verifies the result.
// This is part of the Functional Core - all functions are pure with no I/O.
package compose

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Assembly errors
	ErrMissingVersion    = errors.New("no version decided for service")
	ErrMissingPort       = errors.New("no host port allocated for request")
	ErrUnknownService    = errors.New("service not in fragment registry")
	ErrForeignDependency = errors.New("dependency outside the resolved selection")

	// Verification errors
	ErrEmptyInput      = errors.New("compose document is empty")
	ErrInvalidYAML     = errors.New("invalid YAML syntax")
	ErrInvalidDocument = errors.New("compose document failed validation")
	ErrServiceMissing  = errors.New("compose document is missing a resolved service")
)

// ParseError wraps errors with context about where validation failed.
type ParseError struct {
	Field   string // e.g., "services.web.depends_on"
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError.
func NewParseError(field, message string, err error) *ParseError {
	return &ParseError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}

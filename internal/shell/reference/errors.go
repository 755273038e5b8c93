package reference

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	ErrFeedUnreachable = errors.New("reference feed unreachable")
	ErrFeedStatus      = errors.New("reference feed returned an error status")
	ErrInvalidFeed     = errors.New("reference feed returned invalid data")
	ErrFilterFailed    = errors.New("reference filter failed")
	ErrEnvRequired     = errors.New("reference url needs an environment but none was given")
)

// FeedError wraps errors with the URL that produced them.
type FeedError struct {
	URL     string
	Status  int // HTTP status if one was received
	Message string
	Err     error
}

func (e *FeedError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("GET %s: status %d: %s", e.URL, e.Status, e.Message)
	}
	return fmt.Sprintf("GET %s: %s", e.URL, e.Message)
}

func (e *FeedError) Unwrap() error {
	return e.Err
}

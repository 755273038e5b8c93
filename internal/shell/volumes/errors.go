package volumes

import (
	"errors"
	"fmt"
)

var (
	ErrUnsetVariable = errors.New("environment variable not set")
	ErrInvalidSource = errors.New("invalid volume source")
	ErrFetchFailed   = errors.New("volume source download failed")
	ErrUnsafeArchive = errors.New("archive entry escapes target directory")
	ErrNoObjectStore = errors.New("s3 source used but no object store configured")
)

// VolumeError wraps errors with the volume entry they belong to.
type VolumeError struct {
	Name    string
	Op      string // expand, fetch, extract
	Message string
	Err     error
}

func (e *VolumeError) Error() string {
	return fmt.Sprintf("volume %s: %s: %s", e.Name, e.Op, e.Message)
}

func (e *VolumeError) Unwrap() error {
	return e.Err
}

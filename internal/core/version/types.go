// Package version decides which image tag each selected service runs.
//
// Sources, in strict priority order:
//  1. the freshest locally built image within the "since" window
//  2. the reference feed for the target environment
//  3. the tag written in the fragment's image
//
// Both external sources arrive as immutable snapshots fetched once per run.
package version

import (
	"errors"
	"fmt"
	"time"
)

// VersionRecord is one locally built image.
type VersionRecord struct {
	Service    string // short repository name, e.g. "contentrepo"
	Repository string
	Tag        string
	BuiltAt    time.Time
}

// ReferenceMap maps a service name to the version the reference environment
// runs.
type ReferenceMap map[string]string

// Source identifies where a decision came from.
type Source string

const (
	SourceLocal     Source = "local"
	SourceReference Source = "reference"
	SourceDefault   Source = "default"
)

// Decision is the chosen tag for one service.
type Decision struct {
	Service string
	Tag     string
	Source  Source
	// BuiltAt is set for local decisions only.
	BuiltAt time.Time
}

// =============================================================================
// Error Types
// =============================================================================

var (
	ErrUnresolvableVersion = errors.New("no version available")
	ErrExternalSource      = errors.New("external version source failed")
	ErrInvalidSince        = errors.New("invalid since value")
)

// UnresolvableVersionError is returned when no source yields a tag.
type UnresolvableVersionError struct {
	Service string
	Image   string
}

func (e *UnresolvableVersionError) Error() string {
	return fmt.Sprintf("service %s: no recent local build, no reference version and no tag in image %q", e.Service, e.Image)
}

func (e *UnresolvableVersionError) Unwrap() error {
	return ErrUnresolvableVersion
}

// ExternalSourceError is returned when a version source cannot be read.
// An unreachable source is distinct from a source that does not list a
// service.
type ExternalSourceError struct {
	Source string // e.g. "local images", "reference feed"
	Err    error
}

func (e *ExternalSourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *ExternalSourceError) Unwrap() []error {
	return []error{ErrExternalSource, e.Err}
}

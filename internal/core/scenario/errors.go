// Package scenario expands named scenarios into the set of fragments they
// select. Scenarios may nest other scenarios; expansion detects cycles and
// unknown names before anything else runs.
package scenario

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownName       = errors.New("unknown scenario or service")
	ErrNamespaceConflict = errors.New("name defined as both scenario and fragment")
	ErrInvalidScenario   = errors.New("invalid scenario definition")
)

// UnknownNameError is returned when a name is neither a scenario nor a
// fragment. Scenario is the scenario that listed it, empty for the root.
type UnknownNameError struct {
	Name     string
	Scenario string
}

func (e *UnknownNameError) Error() string {
	if e.Scenario == "" {
		return fmt.Sprintf("%q is neither a scenario nor a service", e.Name)
	}
	return fmt.Sprintf("scenario %s: member %q is neither a scenario nor a service", e.Scenario, e.Name)
}

func (e *UnknownNameError) Unwrap() error {
	return ErrUnknownName
}

// NamespaceConflictError lists names defined in both namespaces.
type NamespaceConflictError struct {
	Names []string
}

func (e *NamespaceConflictError) Error() string {
	return fmt.Sprintf("names defined as both scenario and fragment: %s", strings.Join(e.Names, ", "))
}

func (e *NamespaceConflictError) Unwrap() error {
	return ErrNamespaceConflict
}

// Package dependency computes the transitive depends_on closure of a service
// selection and the order services should start in.
package dependency

import (
	"errors"
	"fmt"

	"github.com/artpar/handel/internal/core/graph"
)

var (
	ErrUnknownDependency = errors.New("unknown dependency")
	ErrUnknownService    = errors.New("unknown service")
)

// UnknownDependencyError is returned when Service lists Missing in its
// depends_on but no fragment called Missing exists.
type UnknownDependencyError struct {
	Service string
	Missing string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("service %s depends on unknown service %q", e.Service, e.Missing)
}

func (e *UnknownDependencyError) Unwrap() error {
	return ErrUnknownDependency
}

// Lookup is the view of the fragment registry the closure needs.
type Lookup interface {
	Dependencies(name string) ([]string, bool)
}

// Closure is the dependency-closed selection.
type Closure struct {
	Services graph.Set
	// Cycles lists each distinct depends_on cycle among Services. Cycles do
	// not stop resolution; they are surfaced as warnings.
	Cycles []*graph.CycleError
}

// Warnings returns the cycles as errors for reporting.
func (c *Closure) Warnings() []error {
	out := make([]error, 0, len(c.Cycles))
	for _, ce := range c.Cycles {
		out = append(out, ce)
	}
	return out
}

// Close returns the smallest superset of initial that contains the
// depends_on targets of all its members.
//
// Each round walks the current set in sorted order and adds missing
// dependencies, until a round adds nothing. Membership is checked before
// insertion, so depends_on cycles cannot make it loop.
//
// Example:
//
//	// app → [mysql, kafka], kafka → [zookeeper]
//	Close(reg, graph.NewSet("app")) // {app, kafka, mysql, zookeeper}
func Close(lookup Lookup, initial graph.Set) (*Closure, error) {
	result := initial.Clone()

	for _, name := range result.Sorted() {
		if _, ok := lookup.Dependencies(name); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownService, name)
		}
	}

	for {
		added := false
		for _, name := range result.Sorted() {
			deps, _ := lookup.Dependencies(name)
			for _, dep := range deps {
				if result.Has(dep) {
					continue
				}
				if _, ok := lookup.Dependencies(dep); !ok {
					return nil, &UnknownDependencyError{Service: name, Missing: dep}
				}
				result.Add(dep)
				added = true
			}
		}
		if !added {
			break
		}
	}

	closure := &Closure{Services: result}
	paths := graph.FindCycles(result.Sorted(), func(n string) []string {
		deps, _ := lookup.Dependencies(n)
		return deps
	})
	for _, p := range paths {
		closure.Cycles = append(closure.Cycles, &graph.CycleError{Kind: "dependency", Path: p})
	}
	return closure, nil
}

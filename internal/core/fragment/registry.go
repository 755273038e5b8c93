package fragment

import (
	"fmt"
	"sort"
)

// Registry is an immutable, name-indexed snapshot of fragments, built once
// per run.
type Registry struct {
	byName map[string]Fragment
	names  []string
}

// NewRegistry indexes fragments by name. Two fragments with the same name
// are rejected.
func NewRegistry(fragments []Fragment) (*Registry, error) {
	r := &Registry{byName: make(map[string]Fragment, len(fragments))}
	for _, f := range fragments {
		if _, exists := r.byName[f.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateFragment, f.Name)
		}
		r.byName[f.Name] = f
		r.names = append(r.names, f.Name)
	}
	sort.Strings(r.names)
	return r, nil
}

// Get returns the fragment called name.
func (r *Registry) Get(name string) (Fragment, bool) {
	f, ok := r.byName[name]
	return f, ok
}

// Has reports whether a fragment called name exists.
func (r *Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Dependencies returns the depends_on names of fragment name.
func (r *Registry) Dependencies(name string) ([]string, bool) {
	f, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return f.DependsOn, true
}

// Names returns every fragment name, sorted.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Len returns the number of fragments.
func (r *Registry) Len() int {
	return len(r.names)
}

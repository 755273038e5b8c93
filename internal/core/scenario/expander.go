package scenario

import (
	"github.com/artpar/handel/internal/core/graph"
)

// Fragments is the view of the fragment registry the expander needs.
type Fragments interface {
	Has(name string) bool
}

// Expander resolves scenario names to the fragments they select.
type Expander struct {
	scenarios *Graph
	fragments Fragments
}

// NewExpander pairs a scenario graph with a fragment registry. Both share one
// identifier space, so a name defined in both is rejected here with a
// NamespaceConflictError rather than silently shadowed later.
func NewExpander(scenarios *Graph, fragments Fragments) (*Expander, error) {
	var conflicts []string
	for _, name := range scenarios.Names() {
		if fragments.Has(name) {
			conflicts = append(conflicts, name)
		}
	}
	if len(conflicts) > 0 {
		return nil, &NamespaceConflictError{Names: conflicts}
	}
	return &Expander{scenarios: scenarios, fragments: fragments}, nil
}

type kind int

const (
	kindUnknown kind = iota
	kindScenario
	kindFragment
)

// classify looks name up as a scenario first and as a fragment second.
func (e *Expander) classify(name string) kind {
	switch {
	case e.scenarios.Has(name):
		return kindScenario
	case e.fragments.Has(name):
		return kindFragment
	default:
		return kindUnknown
	}
}

// Expand returns the set of fragment names reachable from root.
//
// A name is looked up as a scenario first and as a fragment second. A bare
// fragment name expands to itself. Members reached along several nesting
// paths appear once. A scenario reachable from itself yields a CycleError
// whose Path runs from root to the repeated scenario.
//
// Example:
//
//	// scenarios: full = [core, kafka], core = [mysql, redis]
//	e.Expand("full") // {kafka, mysql, redis}
func (e *Expander) Expand(root string) (graph.Set, error) {
	result := graph.NewSet()

	switch e.classify(root) {
	case kindFragment:
		result.Add(root)
		return result, nil
	case kindUnknown:
		return nil, &UnknownNameError{Name: root}
	}

	type frame struct {
		name    string
		members []string
		next    int
	}

	start, _ := e.scenarios.Get(root)
	stack := []*frame{{name: root, members: start.Members}}
	onPath := map[string]bool{root: true}
	done := make(map[string]bool)

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.next == len(top.members) {
			stack = stack[:len(stack)-1]
			delete(onPath, top.name)
			done[top.name] = true
			continue
		}
		member := top.members[top.next]
		top.next++

		switch e.classify(member) {
		case kindScenario:
			if onPath[member] {
				path := make([]string, 0, len(stack)+1)
				for _, f := range stack {
					path = append(path, f.name)
				}
				return nil, &graph.CycleError{Kind: "scenario", Path: append(path, member)}
			}
			if done[member] {
				continue
			}
			s, _ := e.scenarios.Get(member)
			onPath[member] = true
			stack = append(stack, &frame{name: member, members: s.Members})
		case kindFragment:
			result.Add(member)
		default:
			return nil, &UnknownNameError{Name: member, Scenario: top.name}
		}
	}

	return result, nil
}

package scenario

import (
	"fmt"
	"sort"
	"strings"
)

// Scenario is a named, ordered list of members. A member is either another
// scenario or a fragment.
type Scenario struct {
	Name    string
	Members []string
}

// Graph is the immutable set of scenario definitions for a project.
type Graph struct {
	scenarios map[string]Scenario
	names     []string
}

// NewGraph builds a Graph from name → members. Blank names are rejected;
// member lists are copied so later changes to the input have no effect.
func NewGraph(definitions map[string][]string) (*Graph, error) {
	g := &Graph{scenarios: make(map[string]Scenario, len(definitions))}
	for name, members := range definitions {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("%w: blank scenario name", ErrInvalidScenario)
		}
		copied := make([]string, 0, len(members))
		for i, m := range members {
			if strings.TrimSpace(m) == "" {
				return nil, fmt.Errorf("%w: scenario %s: member %d is blank", ErrInvalidScenario, name, i)
			}
			copied = append(copied, strings.TrimSpace(m))
		}
		g.scenarios[name] = Scenario{Name: name, Members: copied}
		g.names = append(g.names, name)
	}
	sort.Strings(g.names)
	return g, nil
}

// Get returns the scenario called name.
func (g *Graph) Get(name string) (Scenario, bool) {
	s, ok := g.scenarios[name]
	return s, ok
}

// Has reports whether a scenario called name exists.
func (g *Graph) Has(name string) bool {
	_, ok := g.scenarios[name]
	return ok
}

// Names returns all scenario names, sorted.
func (g *Graph) Names() []string {
	return append([]string(nil), g.names...)
}

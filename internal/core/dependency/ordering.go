package dependency

import (
	"sort"

	"github.com/artpar/handel/internal/core/graph"
)

// =============================================================================
// Service Ordering Functions
// =============================================================================

// StartOrder sorts services by their dependencies using Kahn's algorithm.
// Services with no dependencies come first; services at the same depth are
// ordered by name so the result is stable.
//
// Dependencies outside services are ignored. If a cycle exists, the services
// caught in it are appended in name order as a fallback.
//
// Example:
//
//	// web → api → db
//	StartOrder(reg, graph.NewSet("web", "api", "db"))
//	// Result: [db, api, web]
func StartOrder(lookup Lookup, services graph.Set) []string {
	names := services.Sorted()
	if len(names) == 0 {
		return names
	}

	// Build dependency graph
	inDegree := make(map[string]int, len(names))
	dependents := make(map[string][]string)
	for _, name := range names {
		deps, _ := lookup.Dependencies(name)
		for _, dep := range deps {
			if !services.Has(dep) || dep == name {
				continue
			}
			inDegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	// Start with services that have no dependencies
	var queue []string
	for _, name := range names {
		if inDegree[name] == 0 {
			queue = append(queue, name)
		}
	}

	result := make([]string, 0, len(names))
	placed := make(map[string]bool, len(names))
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		result = append(result, name)
		placed[name] = true

		var ready []string
		for _, dep := range dependents[name] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
		sort.Strings(ready)
		queue = append(queue, ready...)
	}

	for _, name := range names {
		if !placed[name] {
			result = append(result, name)
		}
	}
	return result
}

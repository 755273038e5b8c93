package graph

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrCycle is matched by every CycleError.
var ErrCycle = errors.New("cycle detected")

// CycleError describes a closed walk through a graph.
// Path starts and ends with the same name, e.g. [a b c a].
type CycleError struct {
	Kind string // "scenario" or "dependency"
	Path []string
}

func (e *CycleError) Error() string {
	kind := e.Kind
	if kind == "" {
		kind = "graph"
	}
	return fmt.Sprintf("%s cycle: %s", kind, strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error {
	return ErrCycle
}

// =============================================================================
// Cycle Detection
// =============================================================================

const (
	stateNew = iota
	stateVisiting
	stateDone
)

// FindCycles returns the cycles closed by back edges of a depth-first walk
// over nodes, one per back edge. It does not enumerate every elementary
// cycle: a graph where cycles share edges may report fewer. edges returns the successors of a node; successors outside
// nodes are ignored. Each cycle is rotated to start at its smallest name and
// cycles are returned sorted, so the result is stable for identical input.
//
// Example:
//
//	edges := map[string][]string{"a": {"b"}, "b": {"a"}, "c": nil}
//	FindCycles([]string{"a", "b", "c"}, func(n string) []string { return edges[n] })
//	// [[a b a]]
func FindCycles(nodes []string, edges func(string) []string) [][]string {
	inGraph := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		inGraph[n] = true
	}

	state := make(map[string]int, len(nodes))
	var stack []string
	seen := make(map[string]bool)
	var cycles [][]string

	var visit func(n string)
	visit = func(n string) {
		state[n] = stateVisiting
		stack = append(stack, n)

		succ := append([]string(nil), edges(n)...)
		sort.Strings(succ)
		for _, m := range succ {
			if !inGraph[m] {
				continue
			}
			switch state[m] {
			case stateNew:
				visit(m)
			case stateVisiting:
				cycle := closeCycle(stack, m)
				key := strings.Join(cycle, "\x00")
				if !seen[key] {
					seen[key] = true
					cycles = append(cycles, cycle)
				}
			}
		}

		stack = stack[:len(stack)-1]
		state[n] = stateDone
	}

	sorted := append([]string(nil), nodes...)
	sort.Strings(sorted)
	for _, n := range sorted {
		if state[n] == stateNew {
			visit(n)
		}
	}

	sort.Slice(cycles, func(i, j int) bool {
		return strings.Join(cycles[i], " ") < strings.Join(cycles[j], " ")
	})
	return cycles
}

// closeCycle cuts the stack at target and rotates the loop so that it begins
// with its lexicographically smallest member.
func closeCycle(stack []string, target string) []string {
	start := 0
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == target {
			start = i
			break
		}
	}
	loop := stack[start:]

	lo := 0
	for i := range loop {
		if loop[i] < loop[lo] {
			lo = i
		}
	}
	out := make([]string, 0, len(loop)+1)
	out = append(out, loop[lo:]...)
	out = append(out, loop[:lo]...)
	return append(out, out[0])
}

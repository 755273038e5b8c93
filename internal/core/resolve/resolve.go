// Package resolve runs the resolution pipeline over in-memory snapshots:
// scenario expansion, dependency closure, version reconciliation, port
// allocation and compose assembly. It performs no I/O; the engine fetches
// the snapshots and writes the result.
package resolve

import (
	"fmt"
	"time"

	"github.com/artpar/handel/internal/core/compose"
	"github.com/artpar/handel/internal/core/dependency"
	"github.com/artpar/handel/internal/core/fragment"
	"github.com/artpar/handel/internal/core/graph"
	"github.com/artpar/handel/internal/core/ports"
	"github.com/artpar/handel/internal/core/scenario"
	"github.com/artpar/handel/internal/core/version"
)

// Selection is the structural half of a resolution: which services a root
// name selects. It needs no external data, so it can be computed while the
// version sources are still being fetched.
type Selection struct {
	Root      string
	Requested graph.Set // direct expansion of Root
	Services  graph.Set // Requested closed over depends_on
	Order     []string  // Services in start order
	Warnings  []error   // dependency cycles
	fragments *fragment.Registry
}

// Snapshot holds the external inputs of one run.
type Snapshot struct {
	Local     []version.VersionRecord
	Reference version.ReferenceMap
	Since     time.Duration
	Now       time.Time
	Pool      *ports.Range
}

// Result is a fully resolved run.
type Result struct {
	*Selection
	Decisions map[string]version.Decision
	Ports     ports.Allocation
	Resolved  []compose.ResolvedService
	Document  *compose.Document
	Recent    []version.VersionRecord
}

// Select expands root and closes the result over depends_on.
func Select(fragments *fragment.Registry, scenarios *scenario.Graph, root string) (*Selection, error) {
	expander, err := scenario.NewExpander(scenarios, fragments)
	if err != nil {
		return nil, err
	}

	requested, err := expander.Expand(root)
	if err != nil {
		return nil, fmt.Errorf("expand %s: %w", root, err)
	}

	closure, err := dependency.Close(fragments, requested)
	if err != nil {
		return nil, fmt.Errorf("close %s: %w", root, err)
	}

	return &Selection{
		Root:      root,
		Requested: requested,
		Services:  closure.Services,
		Order:     dependency.StartOrder(fragments, closure.Services),
		Warnings:  closure.Warnings(),
		fragments: fragments,
	}, nil
}

// Complete reconciles versions, allocates ports and assembles the document
// for sel. Any error leaves nothing behind: the result is all or nothing.
func Complete(sel *Selection, snap Snapshot) (*Result, error) {
	reconciler := version.NewReconciler(snap.Local, snap.Reference, snap.Now)
	decisions, err := reconciler.Reconcile(sel.fragments, sel.Services, snap.Since)
	if err != nil {
		return nil, err
	}

	alloc, err := ports.Allocate(PortRequests(sel.fragments, sel.Services), snap.Pool)
	if err != nil {
		return nil, err
	}

	versions := make(map[string]string, len(decisions))
	for name, d := range decisions {
		versions[name] = d.Tag
	}

	resolved, err := compose.ResolveServices(sel.fragments, sel.Services, versions, alloc)
	if err != nil {
		return nil, err
	}
	doc, err := compose.Merge(sel.fragments, resolved)
	if err != nil {
		return nil, err
	}

	return &Result{
		Selection: sel,
		Decisions: decisions,
		Ports:     alloc,
		Resolved:  resolved,
		Document:  doc,
		Recent:    reconciler.Recent(snap.Since),
	}, nil
}

// Resolve runs Select and Complete back to back.
func Resolve(fragments *fragment.Registry, scenarios *scenario.Graph, root string, snap Snapshot) (*Result, error) {
	sel, err := Select(fragments, scenarios, root)
	if err != nil {
		return nil, err
	}
	return Complete(sel, snap)
}

// PortRequests lists the port requests of services in allocation order:
// services by name, then each fragment's ports in declaration order.
func PortRequests(fragments *fragment.Registry, services graph.Set) []ports.Request {
	var reqs []ports.Request
	for _, name := range services.Sorted() {
		f, ok := fragments.Get(name)
		if !ok {
			continue
		}
		for _, p := range f.Ports {
			reqs = append(reqs, ports.Request{Service: name, Port: p})
		}
	}
	return reqs
}

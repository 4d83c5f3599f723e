// Package inspector defines the contract between the analysis engine and the pluggable
// analyzers that decorate graph nodes.
package inspector

import (
	"context"

	"archscan/internal/graph"
)

// Identity is the stable key of an inspector implementation. It is the unit of
// dependency declaration, caching and run bookkeeping.
type Identity string

func (id Identity) String() string { return string(id) }

// Inspector analyzes nodes of one type.
type Inspector interface {
	// Identity returns the inspector's stable key.
	Identity() Identity
	// Target returns the node type the inspector is registered for.
	Target() graph.NodeType
	// Descriptor returns the declared dependencies.
	Descriptor() Descriptor
	// Supports is the type-specific predicate evaluated after tag requirements are met.
	Supports(n *graph.Node) bool
}

// NodeInspector runs once per eligible node during the converging phase.
type NodeInspector interface {
	Inspector
	Inspect(ctx context.Context, n *graph.Node, d *graph.Decorator) error
}

// GlobalInspector runs once per node type after the converging phase reached a fixed
// point, with visibility over every node of its target type.
type GlobalInspector interface {
	Inspector
	InspectAll(ctx context.Context, scope *Scope) error
}

// IsGlobal reports whether i implements the global entry point.
func IsGlobal(i Inspector) bool {
	_, ok := i.(GlobalInspector)
	return ok
}

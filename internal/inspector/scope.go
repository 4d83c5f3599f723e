package inspector

import (
	"sync"

	scanerrors "archscan/internal/errors"
	"archscan/internal/graph"
)

// Scope is what a global inspector sees: the whole population of its target type, a
// read-only snapshot of the graph, and decorators attributed to the inspector.
type Scope struct {
	target    graph.NodeType
	g         *graph.Graph
	inspector Identity
	required  []string
	supports  func(*graph.Node) bool
	sink      graph.ErrorSink

	mu         sync.Mutex
	decorators []*graph.Decorator
	errs       []error
	sealed     bool
}

// NewScope builds the scope for one global invocation. required are the inspector's
// resolved tags; supports may be nil.
func NewScope(g *graph.Graph, target graph.NodeType, inspector Identity, required []string, supports func(*graph.Node) bool, sink graph.ErrorSink) *Scope {
	return &Scope{
		target:    target,
		g:         g,
		inspector: inspector,
		required:  required,
		supports:  supports,
		sink:      sink,
	}
}

// Target returns the node type of the phase.
func (s *Scope) Target() graph.NodeType { return s.target }

// Snapshot returns the read-only graph.
func (s *Scope) Snapshot() graph.Snapshot { return s.g }

// Nodes returns every node of the target type.
func (s *Scope) Nodes() []*graph.Node { return s.g.Nodes(s.target) }

// Eligible returns the nodes of the target type that carry every required tag and
// pass the inspector's support predicate.
func (s *Scope) Eligible() []*graph.Node {
	var out []*graph.Node
	for _, n := range s.g.Nodes(s.target) {
		if !n.HasAllTags(s.required) {
			continue
		}
		if s.supports != nil && !s.supports(n) {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Decorate returns a decorator for any node on behalf of the global inspector.
func (s *Scope) Decorate(n *graph.Node) *graph.Decorator {
	d := s.g.Decorate(n, string(s.inspector))
	if s.sink != nil {
		d = d.WithErrorSink(s.sink)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		d.Seal()
	}
	s.decorators = append(s.decorators, d)
	return d
}

// AddEdge links two nodes on behalf of the global inspector.
func (s *Scope) AddEdge(source, target, edgeType string) error {
	if s.Sealed() {
		return nil
	}
	n, ok := s.g.Node(source)
	if !ok {
		return scanerrors.Newf(scanerrors.NodeNotFound, "edge source %q not found", source)
	}
	return s.Decorate(n).AddEdge(target, edgeType)
}

// ReportError records a failure that is not attributable to a single node.
func (s *Scope) ReportError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return
	}
	s.errs = append(s.errs, err)
}

// Errors returns the scope-level errors.
func (s *Scope) Errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]error, len(s.errs))
	copy(out, s.errs)
	return out
}

// Writes sums effective writes and new edges across all decorators handed out.
func (s *Scope) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, d := range s.decorators {
		total += d.Writes() + d.EdgesAdded()
	}
	return total
}

// Seal drops every later write through the scope, including writes through decorators
// handed out after the call.
func (s *Scope) Seal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sealed = true
	for _, d := range s.decorators {
		d.Seal()
	}
}

// Sealed reports whether Seal has been called.
func (s *Scope) Sealed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sealed
}

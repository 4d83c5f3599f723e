package graph

import (
	"math"
	"sync"

	scanerrors "archscan/internal/errors"
)

// ErrorSink receives errors reported through a Decorator.
type ErrorSink func(node *Node, e AnalysisError)

// Decorator is the only way to mutate a node. It acts on behalf of a single inspector
// and counts the effective writes it applies so the engine can detect convergence.
//
// Writes are append-or-overwrite; nothing written is rolled back when the inspector
// later reports an error.
type Decorator struct {
	graph     *Graph
	node      *Node
	inspector string
	sink      ErrorSink

	mu     sync.Mutex
	writes int
	edges  int
	errs   []AnalysisError
	sealed bool
}

func newDecorator(g *Graph, n *Node, inspector string) *Decorator {
	return &Decorator{graph: g, node: n, inspector: inspector}
}

// WithErrorSink returns d after registering sink for reported errors.
func (d *Decorator) WithErrorSink(sink ErrorSink) *Decorator {
	d.sink = sink
	return d
}

// Node returns the decorated node for reading.
func (d *Decorator) Node() *Node { return d.node }

// Snapshot returns a read-only view of the whole graph, so node inspectors can read
// neighbors without mutating them.
func (d *Decorator) Snapshot() Snapshot { return d.graph }

// Inspector returns the identity writes are attributed to.
func (d *Decorator) Inspector() string { return d.inspector }

// SetProperty stores value under key, replacing any previous value. Supported values
// are strings, numbers, booleans, []string, []any and string-keyed maps of those.
func (d *Decorator) SetProperty(key string, value any) error {
	if key == "" {
		return scanerrors.Newf(scanerrors.InvalidValue, "property key must not be empty")
	}
	nv, err := normalizeValue(value)
	if err != nil {
		return err
	}
	d.apply(func() bool { return d.node.setProperty(key, nv) })
	return nil
}

// EnableTag sets tag on the node. Setting a present tag is a no-op.
func (d *Decorator) EnableTag(tag string) {
	if tag == "" {
		return
	}
	d.apply(func() bool { return d.node.enableTag(tag) })
}

// EnableTags sets every tag in tags.
func (d *Decorator) EnableTags(tags ...string) {
	for _, t := range tags {
		d.EnableTag(t)
	}
}

// SetMetric writes a numeric metric combined with earlier writes by mode. NaN and
// infinite values, or an aggregate that overflows, are reported as INVALID_VALUE
// errors and leave the metric unchanged.
func (d *Decorator) SetMetric(key string, value float64, mode Aggregation) {
	if key == "" {
		return
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		d.ReportError(scanerrors.Newf(scanerrors.InvalidValue, "metric %s: non-finite value %v", key, value))
		return
	}
	var rejected error
	d.apply(func() bool {
		changed, err := d.node.setMetric(key, value, mode)
		rejected = err
		return changed
	})
	if rejected != nil {
		d.ReportError(rejected)
	}
}

// AddEdge links the decorated node to target. Edges are never removed during a run.
func (d *Decorator) AddEdge(target, edgeType string) error {
	return d.AddEdgeFrom(d.node.ID(), target, edgeType)
}

// AddEdgeFrom links source to target on behalf of the inspector. Global inspectors use
// it to relate arbitrary nodes.
func (d *Decorator) AddEdgeFrom(source, target, edgeType string) error {
	d.mu.Lock()
	if d.sealed {
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()

	added, err := d.graph.addEdge(Edge{Source: source, Target: target, Type: edgeType}, d.inspector)
	if err != nil {
		return err
	}
	if added {
		d.mu.Lock()
		d.edges++
		d.mu.Unlock()
	}
	return nil
}

// ReportError records a non-fatal failure for this inspector and node. It never counts
// as a change.
func (d *Decorator) ReportError(cause error) {
	if cause == nil {
		return
	}
	e := AnalysisError{Inspector: d.inspector, Message: cause.Error()}
	if code := scanerrors.CodeOf(cause); code != "" {
		e.Code = string(code)
	}

	d.mu.Lock()
	if d.sealed {
		d.mu.Unlock()
		return
	}
	d.errs = append(d.errs, e)
	d.mu.Unlock()

	d.node.recordError(e)
	if d.sink != nil {
		d.sink(d.node, e)
	}
}

// Writes returns the number of effective tag, property and metric writes.
func (d *Decorator) Writes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writes
}

// EdgesAdded returns the number of new edges created.
func (d *Decorator) EdgesAdded() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.edges
}

// Changed reports whether any write changed node state.
func (d *Decorator) Changed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writes > 0 || d.edges > 0
}

// Errors returns the errors reported through this decorator.
func (d *Decorator) Errors() []AnalysisError {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]AnalysisError, len(d.errs))
	copy(out, d.errs)
	return out
}

// Seal drops every later write. The engine seals the decorator of an invocation it has
// abandoned after a timeout.
func (d *Decorator) Seal() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sealed = true
}

func (d *Decorator) apply(write func() bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sealed {
		return
	}
	if write() {
		d.writes++
	}
}

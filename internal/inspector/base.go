package inspector

import (
	"context"

	"archscan/internal/graph"
)

// Base carries the static parts of an inspector. Implementations embed it and add
// Inspect or InspectAll.
type Base struct {
	ID   Identity
	Type graph.NodeType
	Desc Descriptor
}

// Identity implements Inspector.
func (b Base) Identity() Identity { return b.ID }

// Target implements Inspector.
func (b Base) Target() graph.NodeType { return b.Type }

// Descriptor implements Inspector.
func (b Base) Descriptor() Descriptor { return b.Desc }

// Supports accepts every node; embedders override it when they need a predicate.
func (b Base) Supports(*graph.Node) bool { return true }

// InspectFunc is the body of a node inspector.
type InspectFunc func(ctx context.Context, n *graph.Node, d *graph.Decorator) error

// GlobalFunc is the body of a global inspector.
type GlobalFunc func(ctx context.Context, scope *Scope) error

// Func adapts plain functions into a NodeInspector.
type Func struct {
	Base
	SupportsFn func(*graph.Node) bool
	Fn         InspectFunc
}

// NewFunc builds a function-backed node inspector.
func NewFunc(id Identity, target graph.NodeType, desc Descriptor, fn InspectFunc) *Func {
	return &Func{Base: Base{ID: id, Type: target, Desc: desc}, Fn: fn}
}

// WithSupports sets the support predicate and returns f.
func (f *Func) WithSupports(pred func(*graph.Node) bool) *Func {
	f.SupportsFn = pred
	return f
}

// Supports implements Inspector.
func (f *Func) Supports(n *graph.Node) bool {
	if f.SupportsFn == nil {
		return true
	}
	return f.SupportsFn(n)
}

// Inspect implements NodeInspector.
func (f *Func) Inspect(ctx context.Context, n *graph.Node, d *graph.Decorator) error {
	return f.Fn(ctx, n, d)
}

// Global adapts a plain function into a GlobalInspector.
type Global struct {
	Base
	SupportsFn func(*graph.Node) bool
	Fn         GlobalFunc
}

// NewGlobal builds a function-backed global inspector. The descriptor is flagged as
// requiring all nodes.
func NewGlobal(id Identity, target graph.NodeType, desc Descriptor, fn GlobalFunc) *Global {
	return &Global{Base: Base{ID: id, Type: target, Desc: desc.Global()}, Fn: fn}
}

// Supports implements Inspector.
func (g *Global) Supports(n *graph.Node) bool {
	if g.SupportsFn == nil {
		return true
	}
	return g.SupportsFn(n)
}

// InspectAll implements GlobalInspector.
func (g *Global) InspectAll(ctx context.Context, scope *Scope) error {
	return g.Fn(ctx, scope)
}

var (
	_ NodeInspector   = (*Func)(nil)
	_ GlobalInspector = (*Global)(nil)
)

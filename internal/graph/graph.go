package graph

import (
	"sort"
	"sync"

	scanerrors "archscan/internal/errors"
)

// Snapshot is the read-only view of a graph handed to global inspectors, the engine's
// callers and the persistence layer.
type Snapshot interface {
	// Node returns the node with the given id.
	Node(id string) (*Node, bool)
	// Nodes returns all nodes of a type in registration order.
	Nodes(t NodeType) []*Node
	// AllNodes returns every node in registration order.
	AllNodes() []*Node
	// Edges returns the edges matching filter in creation order.
	Edges(filter EdgeFilter) []Edge
	// OutEdges returns edges leaving id, optionally restricted to one type.
	OutEdges(id, edgeType string) []Edge
	// InEdges returns edges entering id, optionally restricted to one type.
	InEdges(id, edgeType string) []Edge
	// Count returns the number of nodes of a type.
	Count(t NodeType) int
}

// NodeSpec describes a node at discovery time.
type NodeSpec struct {
	ID         string
	Type       NodeType
	Name       string
	Properties map[string]any
}

// Graph stores nodes in a flat arena keyed by id, with typed directed edges.
type Graph struct {
	mu     sync.RWMutex
	nodes  []*Node
	index  map[string]int
	byType map[NodeType][]int

	edges     []Edge
	edgeIndex map[Edge]int
	// edgeOrigin records which inspector created an edge; discovery edges have none.
	edgeOrigin map[Edge]string
	outEdges   map[string][]int
	inEdges    map[string][]int
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		index:      make(map[string]int),
		byType:     make(map[NodeType][]int),
		edgeIndex:  make(map[Edge]int),
		edgeOrigin: make(map[Edge]string),
		outEdges:   make(map[string][]int),
		inEdges:    make(map[string][]int),
	}
}

// AddNode registers a node. Ids are unique across all node types.
func (g *Graph) AddNode(spec NodeSpec) (*Node, error) {
	if spec.ID == "" {
		return nil, scanerrors.Newf(scanerrors.InvalidValue, "node id must not be empty")
	}
	if !spec.Type.Valid() {
		return nil, scanerrors.Newf(scanerrors.InvalidValue, "node %q has invalid type %d", spec.ID, int(spec.Type))
	}

	seed := make(map[string]any, len(spec.Properties))
	for k, v := range spec.Properties {
		nv, err := normalizeValue(v)
		if err != nil {
			return nil, scanerrors.NewScanError(scanerrors.InvalidValue, "property "+k+" of node "+spec.ID, err, nil)
		}
		seed[k] = nv
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.index[spec.ID]; ok {
		return nil, scanerrors.Newf(scanerrors.DuplicateNode, "node %q already registered", spec.ID)
	}

	name := spec.Name
	if name == "" {
		name = spec.ID
	}
	idx := len(g.nodes)
	n := newNode(spec.ID, spec.Type, name, idx, seed)
	g.nodes = append(g.nodes, n)
	g.index[spec.ID] = idx
	g.byType[spec.Type] = append(g.byType[spec.Type], idx)
	return n, nil
}

// MustAddNode is AddNode for fixtures; it panics on error.
func (g *Graph) MustAddNode(id string, t NodeType) *Node {
	n, err := g.AddNode(NodeSpec{ID: id, Type: t})
	if err != nil {
		panic(err)
	}
	return n
}

// AddEdge adds a discovery edge. It reports whether the edge is new.
func (g *Graph) AddEdge(source, target, edgeType string) (bool, error) {
	return g.addEdge(Edge{Source: source, Target: target, Type: edgeType}, "")
}

func (g *Graph) addEdge(e Edge, origin string) (bool, error) {
	if e.Type == "" {
		return false, scanerrors.Newf(scanerrors.InvalidValue, "edge %s -> %s has no type", e.Source, e.Target)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.index[e.Source]; !ok {
		return false, scanerrors.Newf(scanerrors.NodeNotFound, "edge source %q not found", e.Source)
	}
	if _, ok := g.index[e.Target]; !ok {
		return false, scanerrors.Newf(scanerrors.NodeNotFound, "edge target %q not found", e.Target)
	}
	if _, ok := g.edgeIndex[e]; ok {
		return false, nil
	}

	idx := len(g.edges)
	g.edges = append(g.edges, e)
	g.edgeIndex[e] = idx
	if origin != "" {
		g.edgeOrigin[e] = origin
	}
	g.outEdges[e.Source] = append(g.outEdges[e.Source], idx)
	g.inEdges[e.Target] = append(g.inEdges[e.Target], idx)
	return true, nil
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	idx, ok := g.index[id]
	if !ok {
		return nil, false
	}
	return g.nodes[idx], true
}

// Nodes returns all nodes of a type in registration order.
func (g *Graph) Nodes(t NodeType) []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	idxs := g.byType[t]
	out := make([]*Node, len(idxs))
	for i, idx := range idxs {
		out[i] = g.nodes[idx]
	}
	return out
}

// AllNodes returns every node in registration order.
func (g *Graph) AllNodes() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Count returns the number of nodes of a type.
func (g *Graph) Count(t NodeType) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.byType[t])
}

// Len returns the total number of nodes.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// NodeTypes returns the types that have at least one node, in declaration order.
func (g *Graph) NodeTypes() []NodeType {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []NodeType
	for _, t := range AllNodeTypes() {
		if len(g.byType[t]) > 0 {
			out = append(out, t)
		}
	}
	return out
}

// Edges returns the edges matching filter in creation order.
func (g *Graph) Edges(filter EdgeFilter) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	switch {
	case filter.Source != "":
		return g.collect(g.outEdges[filter.Source], filter)
	case filter.Target != "":
		return g.collect(g.inEdges[filter.Target], filter)
	}

	var out []Edge
	for _, e := range g.edges {
		if filter.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

// OutEdges returns edges leaving id, optionally restricted to one type.
func (g *Graph) OutEdges(id, edgeType string) []Edge {
	return g.Edges(EdgeFilter{Source: id, Type: edgeType})
}

// InEdges returns edges entering id, optionally restricted to one type.
func (g *Graph) InEdges(id, edgeType string) []Edge {
	return g.Edges(EdgeFilter{Target: id, Type: edgeType})
}

// HasEdge reports whether the exact edge exists.
func (g *Graph) HasEdge(source, target, edgeType string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.edgeIndex[Edge{Source: source, Target: target, Type: edgeType}]
	return ok
}

// EdgeOrigin returns the inspector that created an edge, or "" for discovery edges.
func (g *Graph) EdgeOrigin(e Edge) string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edgeOrigin[e]
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

func (g *Graph) collect(idxs []int, filter EdgeFilter) []Edge {
	var out []Edge
	for _, idx := range idxs {
		if e := g.edges[idx]; filter.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

// Decorate returns the mutation surface for node on behalf of inspector.
func (g *Graph) Decorate(n *Node, inspector string) *Decorator {
	return newDecorator(g, n, inspector)
}

// ClearAnnotations is an administrative reset: it drops every tag, metric, error,
// run marker and inspector-created edge, restoring properties to their discovery
// values. It is not part of the analysis protocol.
func (g *Graph) ClearAnnotations() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, n := range g.nodes {
		n.clear()
	}

	kept := make([]Edge, 0, len(g.edges))
	for _, e := range g.edges {
		if g.edgeOrigin[e] == "" {
			kept = append(kept, e)
		}
	}
	g.edges = kept
	g.edgeOrigin = make(map[Edge]string)
	g.reindexEdges()
}

// SortEdgesFrom orders the edges created at or after position from by source, target
// and type. The engine calls it after each pass so edge order does not depend on how
// workers were scheduled.
func (g *Graph) SortEdgesFrom(from int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if from < 0 || from >= len(g.edges)-1 {
		return
	}
	tail := g.edges[from:]
	sort.Slice(tail, func(i, j int) bool {
		if tail[i].Source != tail[j].Source {
			return tail[i].Source < tail[j].Source
		}
		if tail[i].Target != tail[j].Target {
			return tail[i].Target < tail[j].Target
		}
		return tail[i].Type < tail[j].Type
	})
	g.reindexEdges()
}

func (g *Graph) reindexEdges() {
	g.edgeIndex = make(map[Edge]int, len(g.edges))
	g.outEdges = make(map[string][]int)
	g.inEdges = make(map[string][]int)
	for idx, e := range g.edges {
		g.edgeIndex[e] = idx
		g.outEdges[e.Source] = append(g.outEdges[e.Source], idx)
		g.inEdges[e.Target] = append(g.inEdges[e.Target], idx)
	}
}

// TagCounts returns how many nodes of type t carry each tag.
func (g *Graph) TagCounts(t NodeType) map[string]int {
	counts := make(map[string]int)
	for _, n := range g.Nodes(t) {
		for _, tag := range n.Tags() {
			counts[tag]++
		}
	}
	return counts
}

// SortedIDs returns node ids of type t sorted lexically.
func SortedIDs(nodes []*Node) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID()
	}
	sort.Strings(ids)
	return ids
}

var _ Snapshot = (*Graph)(nil)

// Package resolver turns inspectors' declarative dependency descriptors into the
// normalized tag sets the engine checks per node, and rejects malformed declarations
// before any analysis starts.
package resolver

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	scanerrors "archscan/internal/errors"
	"archscan/internal/graph"
	"archscan/internal/inspector"
)

// RequiredTags is the sorted, deduplicated set of tags that must all be present on a
// node before an inspector may run against it.
type RequiredTags []string

// SatisfiedBy reports whether n carries every required tag.
func (r RequiredTags) SatisfiedBy(n *graph.Node) bool {
	return n.HasAllTags(r)
}

// Contains reports whether tag is required.
func (r RequiredTags) Contains(tag string) bool {
	i := sort.SearchStrings(r, tag)
	return i < len(r) && r[i] == tag
}

func (r RequiredTags) String() string {
	return "[" + strings.Join(r, ", ") + "]"
}

// Resolver validates a set of inspectors and memoizes their required tags. The cache
// lives as long as the resolver; there is no re-registration.
type Resolver struct {
	inspectors []inspector.Inspector
	byID       map[inspector.Identity]inspector.Inspector
	position   map[inspector.Identity]int
	order      []inspector.Identity

	mu     sync.Mutex
	cache  map[inspector.Identity]RequiredTags
	hits   int
	misses int
}

// New validates inspectors and builds a resolver. Every error it returns is a
// configuration error.
func New(inspectors []inspector.Inspector) (*Resolver, error) {
	r := &Resolver{
		inspectors: make([]inspector.Inspector, 0, len(inspectors)),
		byID:       make(map[inspector.Identity]inspector.Inspector, len(inspectors)),
		position:   make(map[inspector.Identity]int, len(inspectors)),
		cache:      make(map[inspector.Identity]RequiredTags, len(inspectors)),
	}

	for _, insp := range inspectors {
		if err := validateShape(insp); err != nil {
			return nil, err
		}
		id := insp.Identity()
		if _, dup := r.byID[id]; dup {
			return nil, scanerrors.Newf(scanerrors.DuplicateInspector, "inspector %q registered twice", id)
		}
		r.position[id] = len(r.inspectors)
		r.byID[id] = insp
		r.inspectors = append(r.inspectors, insp)
	}

	if err := r.validatePrerequisites(); err != nil {
		return nil, err
	}
	if err := r.detectCycles(); err != nil {
		return nil, err
	}
	r.order = r.topologicalOrder()

	for _, insp := range r.inspectors {
		if _, err := r.Resolve(insp.Identity()); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func validateShape(insp inspector.Inspector) error {
	if insp == nil {
		return scanerrors.Newf(scanerrors.MalformedDescriptor, "nil inspector")
	}
	id := insp.Identity()
	if strings.TrimSpace(string(id)) == "" {
		return scanerrors.Newf(scanerrors.MalformedDescriptor, "inspector with empty identity")
	}
	if !insp.Target().Valid() {
		return scanerrors.Newf(scanerrors.MalformedDescriptor, "inspector %q targets unknown node type %d", id, int(insp.Target()))
	}

	desc := insp.Descriptor()
	_, isNode := insp.(inspector.NodeInspector)
	_, isGlobal := insp.(inspector.GlobalInspector)
	switch {
	case desc.RequiresAllNodes && !isGlobal:
		return scanerrors.Newf(scanerrors.MalformedDescriptor, "inspector %q requires all nodes but has no InspectAll entry point", id)
	case !desc.RequiresAllNodes && !isNode:
		return scanerrors.Newf(scanerrors.MalformedDescriptor, "inspector %q has no Inspect entry point", id)
	}

	for _, f := range desc.Fragments {
		for _, tag := range f.Requires {
			if strings.TrimSpace(tag) == "" {
				return scanerrors.Newf(scanerrors.MalformedDescriptor, "inspector %q requires an empty tag (level %q)", id, f.Level)
			}
		}
		for _, tag := range f.Produces {
			if strings.TrimSpace(tag) == "" {
				return scanerrors.Newf(scanerrors.MalformedDescriptor, "inspector %q produces an empty tag (level %q)", id, f.Level)
			}
		}
	}
	return nil
}

func (r *Resolver) validatePrerequisites() error {
	for _, insp := range r.inspectors {
		id := insp.Identity()
		for _, pre := range insp.Descriptor().After() {
			if pre == id {
				return scanerrors.Newf(scanerrors.DependencyCycle, "inspector %q names itself as prerequisite", id)
			}
			dep, ok := r.byID[pre]
			if !ok {
				return scanerrors.Newf(scanerrors.UnknownPrerequisite, "inspector %q requires unknown inspector %q", id, pre)
			}
			if len(dep.Descriptor().Produces()) == 0 {
				return scanerrors.Newf(scanerrors.MissingProduces, "inspector %q requires %q, which declares no produced tags", id, pre)
			}
			if dep.Target() == insp.Target() && dep.Descriptor().RequiresAllNodes && !insp.Descriptor().RequiresAllNodes {
				return scanerrors.Newf(scanerrors.MalformedDescriptor,
					"inspector %q cannot run before global prerequisite %q on %s nodes", id, pre, insp.Target())
			}
		}
	}
	return nil
}

// detectCycles runs a three-colour depth-first search over the prerequisite graph.
func (r *Resolver) detectCycles() error {
	const (
		white = iota
		grey
		black
	)
	color := make(map[inspector.Identity]int, len(r.inspectors))
	var stack []inspector.Identity

	var visit func(id inspector.Identity) error
	visit = func(id inspector.Identity) error {
		color[id] = grey
		stack = append(stack, id)
		for _, pre := range r.byID[id].Descriptor().After() {
			switch color[pre] {
			case grey:
				return scanerrors.Newf(scanerrors.DependencyCycle, "prerequisite cycle: %s", cyclePath(stack, pre))
			case white:
				if err := visit(pre); err != nil {
					return err
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return nil
	}

	for _, insp := range r.inspectors {
		if color[insp.Identity()] == white {
			if err := visit(insp.Identity()); err != nil {
				return err
			}
		}
	}
	return nil
}

func cyclePath(stack []inspector.Identity, back inspector.Identity) string {
	start := 0
	for i, id := range stack {
		if id == back {
			start = i
			break
		}
	}
	parts := make([]string, 0, len(stack)-start+1)
	for _, id := range stack[start:] {
		parts = append(parts, string(id))
	}
	parts = append(parts, string(back))
	return strings.Join(parts, " -> ")
}

// topologicalOrder orders inspectors so prerequisites come first; registration order
// breaks ties.
func (r *Resolver) topologicalOrder() []inspector.Identity {
	indegree := make(map[inspector.Identity]int, len(r.inspectors))
	dependents := make(map[inspector.Identity][]inspector.Identity)
	for _, insp := range r.inspectors {
		id := insp.Identity()
		pres := insp.Descriptor().After()
		indegree[id] = len(pres)
		for _, pre := range pres {
			dependents[pre] = append(dependents[pre], id)
		}
	}

	var ready []inspector.Identity
	for _, insp := range r.inspectors {
		if indegree[insp.Identity()] == 0 {
			ready = append(ready, insp.Identity())
		}
	}

	order := make([]inspector.Identity, 0, len(r.inspectors))
	for len(ready) > 0 {
		sort.SliceStable(ready, func(i, j int) bool {
			return r.position[ready[i]] < r.position[ready[j]]
		})
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)
		for _, dep := range dependents[next] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}
	return order
}

// Resolve returns the required tags of an inspector: every fragment's own requires plus
// the produced tags of each directly named prerequisite that targets the same node
// type. A prerequisite's own requirements are not inherited. Results are memoized.
func (r *Resolver) Resolve(id inspector.Identity) (RequiredTags, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tags, ok := r.cache[id]; ok {
		r.hits++
		return tags, nil
	}
	insp, ok := r.byID[id]
	if !ok {
		return nil, scanerrors.Newf(scanerrors.UnknownPrerequisite, "inspector %q is not registered", id)
	}
	r.misses++

	desc := insp.Descriptor()
	tags := append([]string(nil), desc.Requires()...)
	for _, pre := range desc.After() {
		dep := r.byID[pre]
		if dep.Target() != insp.Target() {
			continue
		}
		tags = append(tags, dep.Descriptor().Produces()...)
	}

	resolved := normalize(tags)
	r.cache[id] = resolved
	return resolved, nil
}

// MustResolve is Resolve for identities known to be registered.
func (r *Resolver) MustResolve(id inspector.Identity) RequiredTags {
	tags, err := r.Resolve(id)
	if err != nil {
		panic(err)
	}
	return tags
}

func normalize(tags []string) RequiredTags {
	seen := make(map[string]bool, len(tags))
	out := make(RequiredTags, 0, len(tags))
	for _, t := range tags {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

// Order returns every inspector in dependency order.
func (r *Resolver) Order() []inspector.Inspector {
	out := make([]inspector.Inspector, len(r.order))
	for i, id := range r.order {
		out[i] = r.byID[id]
	}
	return out
}

// Lookup returns the inspector registered under id.
func (r *Resolver) Lookup(id inspector.Identity) (inspector.Inspector, bool) {
	insp, ok := r.byID[id]
	return insp, ok
}

// Len returns the number of registered inspectors.
func (r *Resolver) Len() int { return len(r.inspectors) }

// CheckTypeOrder verifies that every cross-type prerequisite targets a node type that
// is analyzed earlier than its dependent.
func (r *Resolver) CheckTypeOrder(order []graph.NodeType) error {
	rank := make(map[graph.NodeType]int, len(order))
	for i, t := range order {
		rank[t] = i
	}
	for _, insp := range r.inspectors {
		own, ok := rank[insp.Target()]
		if !ok {
			continue
		}
		for _, pre := range insp.Descriptor().After() {
			dep := r.byID[pre]
			if dep.Target() == insp.Target() {
				continue
			}
			depRank, ok := rank[dep.Target()]
			if !ok || depRank > own {
				return scanerrors.Newf(scanerrors.MalformedDescriptor,
					"inspector %q (%s) requires %q (%s), which is not analyzed before it",
					insp.Identity(), insp.Target(), pre, dep.Target())
			}
		}
	}
	return nil
}

// CacheStats returns memoization hits and misses.
func (r *Resolver) CacheStats() (hits, misses int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hits, r.misses
}

// Describe returns one line per inspector with its resolved requirements, in order.
func (r *Resolver) Describe() []string {
	lines := make([]string, 0, len(r.order))
	for _, insp := range r.Order() {
		kind := "node"
		if insp.Descriptor().RequiresAllNodes {
			kind = "global"
		}
		lines = append(lines, fmt.Sprintf("%s (%s, %s) requires %s produces %v",
			insp.Identity(), insp.Target(), kind, r.MustResolve(insp.Identity()), insp.Descriptor().Produces()))
	}
	return lines
}

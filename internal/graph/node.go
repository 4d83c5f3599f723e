package graph

import (
	"math"
	"sort"
	"sync"

	scanerrors "archscan/internal/errors"
)

// Node is one entity of the graph. Identity and type never change after creation.
// Annotation state (tags, properties, metrics) is only written through a Decorator.
type Node struct {
	id       string
	nodeType NodeType
	name     string
	index    int

	mu           sync.RWMutex
	tags         map[string]struct{}
	properties   map[string]any
	metrics      map[string]float64
	accumulators map[string]*Accumulator
	errors       []AnalysisError
	seed         map[string]any

	// revision counts effective writes; tagRevision counts tag insertions only.
	revision    uint64
	tagRevision uint64
	processed   map[string]uint64
}

func newNode(id string, nodeType NodeType, name string, index int, seed map[string]any) *Node {
	n := &Node{
		id:           id,
		nodeType:     nodeType,
		name:         name,
		index:        index,
		tags:         make(map[string]struct{}),
		metrics:      make(map[string]float64),
		accumulators: make(map[string]*Accumulator),
		processed:    make(map[string]uint64),
		seed:         seed,
	}
	n.properties = n.seedProperties()
	return n
}

func (n *Node) seedProperties() map[string]any {
	props := make(map[string]any, len(n.seed))
	for k, v := range n.seed {
		props[k] = cloneValue(v)
	}
	return props
}

// ID returns the stable identity of the node.
func (n *Node) ID() string { return n.id }

// Type returns the node type discriminator.
func (n *Node) Type() NodeType { return n.nodeType }

// Name returns the display name (for files, the base name).
func (n *Node) Name() string { return n.name }

// Index returns the node's position in the graph's arena.
func (n *Node) Index() int { return n.index }

// HasTag reports whether tag is set.
func (n *Node) HasTag(tag string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	_, ok := n.tags[tag]
	return ok
}

// HasAllTags reports whether every tag in tags is set.
func (n *Node) HasAllTags(tags []string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, t := range tags {
		if _, ok := n.tags[t]; !ok {
			return false
		}
	}
	return true
}

// MissingTags returns the tags from want that are not set, in order.
func (n *Node) MissingTags(want []string) []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	var missing []string
	for _, t := range want {
		if _, ok := n.tags[t]; !ok {
			missing = append(missing, t)
		}
	}
	return missing
}

// Tags returns the sorted tag set.
func (n *Node) Tags() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return sortedKeys(n.tags)
}

// Property returns a copy of the value stored under key.
func (n *Node) Property(key string) (any, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	v, ok := n.properties[key]
	if !ok {
		return nil, false
	}
	return cloneValue(v), true
}

// StringProperty returns the property under key if it is a string.
func (n *Node) StringProperty(key string) (string, bool) {
	v, ok := n.Property(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// NumberProperty returns the property under key if it is numeric.
func (n *Node) NumberProperty(key string) (float64, bool) {
	v, ok := n.Property(key)
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

// StringsProperty returns a list property as strings, skipping non-string items.
func (n *Node) StringsProperty(key string) []string {
	v, ok := n.Property(key)
	if !ok {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Properties returns a copy of all properties.
func (n *Node) Properties() map[string]any {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make(map[string]any, len(n.properties))
	for k, v := range n.properties {
		out[k] = cloneValue(v)
	}
	return out
}

// Metric returns the metric stored under key.
func (n *Node) Metric(key string) (float64, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	v, ok := n.metrics[key]
	return v, ok
}

// Metrics returns a copy of all metrics.
func (n *Node) Metrics() map[string]float64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make(map[string]float64, len(n.metrics))
	for k, v := range n.metrics {
		out[k] = v
	}
	return out
}

// Accumulator returns a copy of the running aggregate behind a metric.
func (n *Node) Accumulator(key string) (Accumulator, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	acc, ok := n.accumulators[key]
	if !ok {
		return Accumulator{}, false
	}
	return *acc, true
}

// Errors returns the analysis errors recorded on the node.
func (n *Node) Errors() []AnalysisError {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]AnalysisError, len(n.errors))
	copy(out, n.errors)
	return out
}

// Revision counts effective writes applied to the node.
func (n *Node) Revision() uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.revision
}

// TagRevision counts tag insertions applied to the node.
func (n *Node) TagRevision() uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.tagRevision
}

// NeedsRun reports whether inspector has not yet run against the node's current tag
// state. Eligibility is purely tag based, so only tag insertions made after the
// inspector's last run make it due again.
func (n *Node) NeedsRun(inspector string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	last, ok := n.processed[inspector]
	return !ok || n.tagRevision > last
}

// MarkRun records that inspector has run against the node's current tag state.
func (n *Node) MarkRun(inspector string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.processed[inspector] = n.tagRevision
}

// LastRun returns the tag revision recorded for inspector's last run.
func (n *Node) LastRun(inspector string) (uint64, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	v, ok := n.processed[inspector]
	return v, ok
}

// ProcessedBy returns the inspectors that have run against the node, sorted.
func (n *Node) ProcessedBy() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]string, 0, len(n.processed))
	for k := range n.processed {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (n *Node) enableTag(tag string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.tags[tag]; ok {
		return false
	}
	n.tags[tag] = struct{}{}
	n.revision++
	n.tagRevision++
	return true
}

func (n *Node) setProperty(key string, value any) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if old, ok := n.properties[key]; ok && valuesEqual(old, value) {
		return false
	}
	n.properties[key] = value
	n.revision++
	return true
}

func (n *Node) setMetric(key string, value float64, mode Aggregation) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	next := value
	if mode == Overwrite {
		delete(n.accumulators, key)
	} else {
		acc, ok := n.accumulators[key]
		if !ok || acc.Mode != mode {
			acc = &Accumulator{Mode: mode}
		}
		trial := *acc
		next = trial.add(value)
		if math.IsInf(next, 0) {
			return false, scanerrors.Newf(scanerrors.InvalidValue, "metric %s: %s aggregate overflows", key, mode)
		}
		*acc = trial
		n.accumulators[key] = acc
	}

	if old, ok := n.metrics[key]; ok && valuesEqual(old, next) {
		return false, nil
	}
	n.metrics[key] = next
	n.revision++
	return true, nil
}

func (n *Node) recordError(e AnalysisError) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, e)
}

func (n *Node) clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tags = make(map[string]struct{})
	n.properties = n.seedProperties()
	n.metrics = make(map[string]float64)
	n.accumulators = make(map[string]*Accumulator)
	n.processed = make(map[string]uint64)
	n.errors = nil
	n.revision = 0
	n.tagRevision = 0
}

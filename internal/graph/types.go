// Package graph holds the typed entity graph that inspectors decorate: nodes keyed by a
// stable id, directed typed edges, and the Decorator through which every node mutation
// is made.
package graph

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	scanerrors "archscan/internal/errors"
)

// NodeType discriminates the closed set of entity kinds held by the graph.
type NodeType int

const (
	NodeFile NodeType = iota
	NodeClass
	NodePackage
)

var nodeTypeNames = map[NodeType]string{
	NodeFile:    "file",
	NodeClass:   "class",
	NodePackage: "package",
}

// AllNodeTypes returns the node types in their default analysis order.
func AllNodeTypes() []NodeType {
	return []NodeType{NodeFile, NodeClass, NodePackage}
}

func (t NodeType) String() string {
	if name, ok := nodeTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("NodeType(%d)", int(t))
}

// MarshalText encodes the type by name.
func (t NodeType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid node type %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText decodes a type name.
func (t *NodeType) UnmarshalText(text []byte) error {
	parsed, err := ParseNodeType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Valid reports whether t is one of the declared node types.
func (t NodeType) Valid() bool {
	_, ok := nodeTypeNames[t]
	return ok
}

// ParseNodeType converts a node type name ("file", "class", "package") to a NodeType.
func ParseNodeType(s string) (NodeType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for t, n := range nodeTypeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown node type %q", s)
}

// ParseNodeTypes parses an ordered list of node type names, rejecting duplicates.
func ParseNodeTypes(names []string) ([]NodeType, error) {
	seen := make(map[NodeType]bool, len(names))
	out := make([]NodeType, 0, len(names))
	for _, name := range names {
		t, err := ParseNodeType(name)
		if err != nil {
			return nil, err
		}
		if seen[t] {
			return nil, fmt.Errorf("node type %q listed twice", name)
		}
		seen[t] = true
		out = append(out, t)
	}
	return out, nil
}

// Common edge types.
const (
	EdgeContains = "contains"
	EdgeDeclares = "declares"
	EdgeImports  = "imports"
)

// Edge is a directed, typed relationship. (Source, Target, Type) is its identity.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// EdgeFilter selects edges. Empty fields match anything.
type EdgeFilter struct {
	Type   string
	Source string
	Target string
}

// Match reports whether e satisfies the filter.
func (f EdgeFilter) Match(e Edge) bool {
	if f.Type != "" && f.Type != e.Type {
		return false
	}
	if f.Source != "" && f.Source != e.Source {
		return false
	}
	if f.Target != "" && f.Target != e.Target {
		return false
	}
	return true
}

// AnalysisError is a non-fatal failure recorded on a node for one inspector.
type AnalysisError struct {
	Inspector string `json:"inspector"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message"`
}

// normalizeValue converts a property value into its canonical representation:
// string, float64, bool, map[string]any or []any. Integers become float64.
func normalizeValue(v any) (any, error) {
	switch val := v.(type) {
	case string, bool:
		return val, nil
	case float64:
		return finiteValue(val)
	case float32:
		return finiteValue(float64(val))
	case int:
		return float64(val), nil
	case int8:
		return float64(val), nil
	case int16:
		return float64(val), nil
	case int32:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case uint:
		return float64(val), nil
	case uint8:
		return float64(val), nil
	case uint16:
		return float64(val), nil
	case uint32:
		return float64(val), nil
	case uint64:
		return float64(val), nil
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			n, err := normalizeValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case map[string]string:
		out := make(map[string]any, len(val))
		for k, s := range val {
			out[k] = s
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			n, err := normalizeValue(item)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case nil:
		return nil, scanerrors.Newf(scanerrors.InvalidValue, "nil property value")
	default:
		return nil, scanerrors.Newf(scanerrors.InvalidValue, "unsupported property value of type %T", v)
	}
}

func finiteValue(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, scanerrors.Newf(scanerrors.InvalidValue, "non-finite property value %v", f)
	}
	return f, nil
}

// cloneValue deep-copies a normalized value so callers cannot mutate node state.
func cloneValue(v any) any {
	switch val := v.(type) {
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

func valuesEqual(a, b any) bool {
	if fa, ok := a.(float64); ok {
		if fb, ok := b.(float64); ok {
			return fa == fb || (math.IsNaN(fa) && math.IsNaN(fb))
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package rules

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"sort"

	scanerrors "archscan/internal/errors"
	"archscan/internal/graph"
	"archscan/internal/inspector"
)

// pathKeys are the properties the path pattern is matched against, by node type.
var pathKeys = map[graph.NodeType]string{
	graph.NodeFile:    "file.path",
	graph.NodePackage: "package.path",
	graph.NodeClass:   "class.file",
}

// Inspector is a compiled rule.
type Inspector struct {
	inspector.Base
	rule   Rule
	pathRe *regexp.Regexp
}

// Rule returns the declaration the inspector was compiled from.
func (i *Inspector) Rule() Rule { return i.rule }

// Supports applies the rule's match block.
func (i *Inspector) Supports(n *graph.Node) bool {
	m := i.rule.Match
	if m.Name != "" {
		if ok, _ := path.Match(m.Name, n.Name()); !ok {
			return false
		}
	}
	if i.pathRe != nil {
		subject, ok := n.StringProperty(pathKeys[n.Type()])
		if !ok {
			subject = n.ID()
		}
		if !i.pathRe.MatchString(subject) {
			return false
		}
	}
	for key, want := range m.Properties {
		got, ok := n.Property(key)
		if !ok || fmt.Sprint(got) != want {
			return false
		}
	}
	return true
}

// Inspect writes the rule's tags and properties.
func (i *Inspector) Inspect(_ context.Context, _ *graph.Node, d *graph.Decorator) error {
	for _, key := range sortedKeys(i.rule.Set.Properties) {
		if err := d.SetProperty(key, i.rule.Set.Properties[key]); err != nil {
			return err
		}
	}
	d.EnableTags(i.rule.Set.Tags...)
	return nil
}

// Compile validates the rules of f and builds one node inspector per rule, in file
// order.
func Compile(f *File) ([]inspector.Inspector, error) {
	byID := make(map[string]*Rule, len(f.Rules))
	for idx := range f.Rules {
		r := &f.Rules[idx]
		if r.ID == "" {
			return nil, invalid("rule %d has no id", idx+1)
		}
		if _, dup := byID[r.ID]; dup {
			return nil, invalid("rule %q declared twice", r.ID)
		}
		byID[r.ID] = r
	}

	descs := make(map[string]inspector.Descriptor, len(byID))
	var describe func(id string, visiting map[string]bool) (inspector.Descriptor, error)
	describe = func(id string, visiting map[string]bool) (inspector.Descriptor, error) {
		if d, ok := descs[id]; ok {
			return d, nil
		}
		if visiting[id] {
			return inspector.Descriptor{}, invalid("rule %q extends itself through a cycle", id)
		}
		visiting[id] = true
		r := byID[id]

		own := inspector.Fragment{
			Level:    id,
			Requires: r.Requires,
			After:    identities(r.After),
			Produces: union(r.Produces, r.Set.Tags),
		}
		desc := inspector.Descriptor{Fragments: []inspector.Fragment{own}}
		if r.Extends != "" {
			parent, ok := byID[r.Extends]
			if !ok {
				return inspector.Descriptor{}, invalid("rule %q extends unknown rule %q", id, r.Extends)
			}
			if parent.Target != r.Target {
				return inspector.Descriptor{}, invalid("rule %q targets %s but extends %q targeting %s", id, r.Target, r.Extends, parent.Target)
			}
			pd, err := describe(r.Extends, visiting)
			if err != nil {
				return inspector.Descriptor{}, err
			}
			desc = inspector.Extend(pd, own)
		}
		descs[id] = desc
		return desc, nil
	}

	out := make([]inspector.Inspector, 0, len(f.Rules))
	for _, r := range f.Rules {
		target, err := graph.ParseNodeType(r.Target)
		if err != nil {
			return nil, invalid("rule %q: %v", r.ID, err)
		}
		var re *regexp.Regexp
		if r.Match.Path != "" {
			if re, err = regexp.Compile(r.Match.Path); err != nil {
				return nil, invalid("rule %q: bad path pattern: %v", r.ID, err)
			}
		}
		if r.Match.Name != "" {
			if _, err := path.Match(r.Match.Name, ""); err != nil {
				return nil, invalid("rule %q: bad name pattern %q", r.ID, r.Match.Name)
			}
		}
		if len(r.Set.Tags) == 0 && len(r.Set.Properties) == 0 {
			return nil, invalid("rule %q sets nothing", r.ID)
		}
		desc, err := describe(r.ID, map[string]bool{})
		if err != nil {
			return nil, err
		}
		out = append(out, &Inspector{
			Base:   inspector.Base{ID: inspector.Identity(r.ID), Type: target, Desc: desc},
			rule:   r,
			pathRe: re,
		})
	}
	return out, nil
}

// LoadInspectors loads and compiles a rules file.
func LoadInspectors(path string) ([]inspector.Inspector, error) {
	f, err := Load(path)
	if err != nil {
		return nil, err
	}
	return Compile(f)
}

func invalid(format string, args ...any) error {
	return scanerrors.Newf(scanerrors.ConfigInvalid, format, args...)
}

func identities(ids []string) []inspector.Identity {
	if len(ids) == 0 {
		return nil
	}
	out := make([]inspector.Identity, len(ids))
	for i, id := range ids {
		out[i] = inspector.Identity(id)
	}
	return out
}

func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string{}, a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var _ inspector.NodeInspector = (*Inspector)(nil)

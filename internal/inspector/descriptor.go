package inspector

import (
	"sort"
)

// Fragment is one level of declared dependencies. An inspector that refines another
// carries the parent's fragments followed by its own.
type Fragment struct {
	// Level names where the fragment comes from, for diagnostics.
	Level string
	// Requires lists tags that must be present on a node.
	Requires []string
	// After names inspectors whose produced tags must be present on a node.
	After []Identity
	// Produces lists tags the inspector may set.
	Produces []string
}

// Descriptor is the declarative dependency metadata of an inspector.
type Descriptor struct {
	Fragments []Fragment
	// RequiresAllNodes marks a global inspector: it runs once after every node of its
	// target type finished the converging phase.
	RequiresAllNodes bool
}

// Declare builds a single-fragment descriptor.
func Declare(requires []string, after []Identity, produces []string) Descriptor {
	return Descriptor{Fragments: []Fragment{{Requires: requires, After: after, Produces: produces}}}
}

// Extend returns a descriptor carrying parent's fragments followed by own.
func Extend(parent Descriptor, own Fragment) Descriptor {
	frags := make([]Fragment, 0, len(parent.Fragments)+1)
	frags = append(frags, parent.Fragments...)
	frags = append(frags, own)
	return Descriptor{Fragments: frags, RequiresAllNodes: parent.RequiresAllNodes}
}

// Global returns a copy of d flagged as requiring all nodes.
func (d Descriptor) Global() Descriptor {
	d.RequiresAllNodes = true
	return d
}

// Requires returns the deduplicated, sorted union of every fragment's required tags.
func (d Descriptor) Requires() []string {
	var all []string
	for _, f := range d.Fragments {
		all = append(all, f.Requires...)
	}
	return dedupe(all)
}

// Produces returns the deduplicated, sorted union of every fragment's produced tags.
func (d Descriptor) Produces() []string {
	var all []string
	for _, f := range d.Fragments {
		all = append(all, f.Produces...)
	}
	return dedupe(all)
}

// After returns the deduplicated prerequisites in declaration order.
func (d Descriptor) After() []Identity {
	seen := make(map[Identity]bool)
	var out []Identity
	for _, f := range d.Fragments {
		for _, id := range f.After {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

func dedupe(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

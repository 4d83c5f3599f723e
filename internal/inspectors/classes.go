package inspectors

import (
	"context"
	"regexp"
	"strings"

	"archscan/internal/discovery"
	"archscan/internal/graph"
	"archscan/internal/inspector"
)

var (
	testClassPattern       = regexp.MustCompile(`(Test|Tests|IT|Spec)$`)
	interfacePrefixPattern = regexp.MustCompile(`^I[A-Z][a-z]`)
)

// ClassNaming classifies classes by naming convention.
type ClassNaming struct {
	inspector.Base
}

// NewClassNaming creates the class-naming inspector. It has no dependencies.
func NewClassNaming() *ClassNaming {
	return &ClassNaming{Base: inspector.Base{
		ID:   ClassNamingID,
		Type: graph.NodeClass,
		Desc: inspector.Declare(nil, nil, []string{TagClassNamed, TagClassTest, TagClassInterfaceLike}),
	}}
}

// Inspect implements inspector.NodeInspector.
func (c *ClassNaming) Inspect(_ context.Context, n *graph.Node, d *graph.Decorator) error {
	simple := n.Name()
	if err := d.SetProperty(PropClassSimple, simple); err != nil {
		return err
	}

	file, _ := n.StringProperty(discovery.PropClassFile)
	if testClassPattern.MatchString(simple) || strings.Contains("/"+file, "/test/") {
		d.EnableTag(TagClassTest)
	}
	kind, _ := n.StringProperty(discovery.PropClassKind)
	if kind == "interface" || interfacePrefixPattern.MatchString(simple) {
		d.EnableTag(TagClassInterfaceLike)
	}
	d.EnableTag(TagClassNamed)
	return nil
}

var _ inspector.NodeInspector = (*ClassNaming)(nil)

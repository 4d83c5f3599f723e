package inspector

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"archscan/internal/graph"
)

func TestDescriptorMergesFragments(t *testing.T) {
	parent := Declare([]string{"lang.java"}, []Identity{"language"}, []string{"java.packaged"})
	child := Extend(parent, Fragment{
		Level:    "spring",
		Requires: []string{"java.packaged", "lang.java"},
		After:    []Identity{"language", "java-package"},
		Produces: []string{"framework.spring"},
	})

	if got, want := child.Requires(), []string{"java.packaged", "lang.java"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Requires = %v, want %v", got, want)
	}
	if got, want := child.Produces(), []string{"framework.spring", "java.packaged"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Produces = %v, want %v", got, want)
	}
	if got, want := child.After(), []Identity{"language", "java-package"}; !reflect.DeepEqual(got, want) {
		t.Errorf("After = %v, want %v", got, want)
	}
	if len(parent.Fragments) != 1 {
		t.Error("Extend must not modify the parent")
	}
}

func TestDescriptorGlobalFlagSurvivesExtend(t *testing.T) {
	d := Extend(Declare(nil, nil, []string{"x"}).Global(), Fragment{Produces: []string{"y"}})
	if !d.RequiresAllNodes {
		t.Error("global flag should be inherited")
	}
}

func TestEmptyDescriptor(t *testing.T) {
	var d Descriptor
	if d.Requires() != nil || d.Produces() != nil || d.After() != nil {
		t.Error("empty descriptor should have no dependencies")
	}
}

func TestFuncAdapters(t *testing.T) {
	f := NewFunc("f", graph.NodeFile, Descriptor{}, func(context.Context, *graph.Node, *graph.Decorator) error {
		return nil
	}).WithSupports(func(n *graph.Node) bool { return n.ID() == "yes" })

	g := graph.New()
	if !f.Supports(g.MustAddNode("yes", graph.NodeFile)) || f.Supports(g.MustAddNode("no", graph.NodeFile)) {
		t.Error("support predicate not applied")
	}
	if IsGlobal(f) {
		t.Error("Func is not global")
	}

	gl := NewGlobal("g", graph.NodeFile, Descriptor{}, func(context.Context, *Scope) error { return nil })
	if !IsGlobal(gl) || !gl.Descriptor().RequiresAllNodes {
		t.Error("NewGlobal should produce a flagged global inspector")
	}
}

func TestScopeEligible(t *testing.T) {
	g := graph.New()
	for _, id := range []string{"a", "b", "c"} {
		g.MustAddNode(id, graph.NodeFile)
	}
	g.MustAddNode("pkg:x", graph.NodePackage)
	a, _ := g.Node("a")
	b, _ := g.Node("b")
	g.Decorate(a, "t").EnableTag("ready")
	g.Decorate(b, "t").EnableTag("ready")

	scope := NewScope(g, graph.NodeFile, "global", []string{"ready"}, func(n *graph.Node) bool {
		return n.ID() != "b"
	}, nil)

	if got := len(scope.Nodes()); got != 3 {
		t.Errorf("Nodes = %d, want 3", got)
	}
	eligible := scope.Eligible()
	if len(eligible) != 1 || eligible[0].ID() != "a" {
		t.Errorf("Eligible = %v, want [a]", graph.SortedIDs(eligible))
	}
}

func TestScopeWritesAndErrors(t *testing.T) {
	g := graph.New()
	a := g.MustAddNode("a", graph.NodeFile)
	g.MustAddNode("b", graph.NodeFile)

	scope := NewScope(g, graph.NodeFile, "linker", nil, nil, nil)
	scope.Decorate(a).EnableTag("linked")
	if err := scope.AddEdge("a", "b", graph.EdgeImports); err != nil {
		t.Fatal(err)
	}
	if err := scope.AddEdge("missing", "b", graph.EdgeImports); err == nil {
		t.Error("unknown source should fail")
	}
	scope.ReportError(errors.New("partial"))

	if scope.Writes() != 2 {
		t.Errorf("Writes = %d, want 2", scope.Writes())
	}
	if len(scope.Errors()) != 1 {
		t.Errorf("Errors = %d, want 1", len(scope.Errors()))
	}
	if g.EdgeOrigin(graph.Edge{Source: "a", Target: "b", Type: graph.EdgeImports}) != "linker" {
		t.Error("edge should be attributed to the global inspector")
	}
}

func TestScopeSealCoversLaterDecorators(t *testing.T) {
	g := graph.New()
	a := g.MustAddNode("a", graph.NodeFile)
	g.MustAddNode("b", graph.NodeFile)

	scope := NewScope(g, graph.NodeFile, "slow", nil, nil, nil)
	early := scope.Decorate(a)
	scope.Seal()
	if !scope.Sealed() {
		t.Fatal("Sealed should be true after Seal")
	}

	early.EnableTag("early")
	scope.Decorate(a).EnableTag("late")
	if err := scope.AddEdge("a", "b", graph.EdgeImports); err != nil {
		t.Fatal(err)
	}
	scope.ReportError(errors.New("late"))

	if a.HasTag("early") || a.HasTag("late") {
		t.Errorf("tags = %v, want none after Seal", a.Tags())
	}
	if g.EdgeCount() != 0 {
		t.Errorf("EdgeCount = %d, want 0", g.EdgeCount())
	}
	if scope.Writes() != 0 || len(scope.Errors()) != 0 {
		t.Errorf("Writes = %d, Errors = %v", scope.Writes(), scope.Errors())
	}
}

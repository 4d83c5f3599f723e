package resolver

import (
	"context"
	"reflect"
	"strings"
	"testing"

	scanerrors "archscan/internal/errors"
	"archscan/internal/graph"
	"archscan/internal/inspector"
)

func nodeInsp(id string, target graph.NodeType, desc inspector.Descriptor) inspector.Inspector {
	return inspector.NewFunc(inspector.Identity(id), target, desc, func(context.Context, *graph.Node, *graph.Decorator) error {
		return nil
	})
}

func globalInsp(id string, target graph.NodeType, desc inspector.Descriptor) inspector.Inspector {
	return inspector.NewGlobal(inspector.Identity(id), target, desc, func(context.Context, *inspector.Scope) error {
		return nil
	})
}

func after(ids ...string) []inspector.Identity {
	out := make([]inspector.Identity, len(ids))
	for i, id := range ids {
		out[i] = inspector.Identity(id)
	}
	return out
}

func TestResolveOwnAndPrerequisiteTags(t *testing.T) {
	r, err := New([]inspector.Inspector{
		nodeInsp("language", graph.NodeFile, inspector.Declare(nil, nil, []string{"source.code"})),
		nodeInsp("java-package", graph.NodeFile, inspector.Declare([]string{"lang.java"}, nil, []string{"java.packaged"})),
		nodeInsp("spring", graph.NodeFile, inspector.Declare([]string{"lang.java"}, after("java-package"), []string{"framework.spring"})),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got := r.MustResolve("spring")
	want := RequiredTags{"java.packaged", "lang.java"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve(spring) = %v, want %v", got, want)
	}
	if !got.Contains("lang.java") || got.Contains("source.code") {
		t.Errorf("Contains misbehaves on %v", got)
	}
}

func TestResolveIsNotTransitive(t *testing.T) {
	// c names b; b requires "t". c must require b's produced tag but not "t".
	r, err := New([]inspector.Inspector{
		nodeInsp("a", graph.NodeFile, inspector.Declare(nil, nil, []string{"t"})),
		nodeInsp("b", graph.NodeFile, inspector.Declare(nil, after("a"), []string{"b.done"})),
		nodeInsp("c", graph.NodeFile, inspector.Declare(nil, after("b"), []string{"c.done"})),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if got := r.MustResolve("b"); !reflect.DeepEqual(got, RequiredTags{"t"}) {
		t.Errorf("Resolve(b) = %v, want [t]", got)
	}
	if got := r.MustResolve("c"); !reflect.DeepEqual(got, RequiredTags{"b.done"}) {
		t.Errorf("Resolve(c) = %v, want [b.done]", got)
	}
}

func TestResolveMergesFragments(t *testing.T) {
	base := inspector.Declare([]string{"lang.java"}, nil, []string{"framework"})
	child := inspector.Extend(base, inspector.Fragment{Level: "child", Requires: []string{"java.packaged", "lang.java"}})

	r, err := New([]inspector.Inspector{nodeInsp("child", graph.NodeFile, child)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := r.MustResolve("child"); !reflect.DeepEqual(got, RequiredTags{"java.packaged", "lang.java"}) {
		t.Errorf("Resolve(child) = %v", got)
	}
}

func TestResolveMemoizes(t *testing.T) {
	r, err := New([]inspector.Inspector{
		nodeInsp("a", graph.NodeFile, inspector.Declare([]string{"x"}, nil, []string{"y"})),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, missesAfterBuild := r.CacheStats()

	for range 3 {
		r.MustResolve("a")
	}
	hits, misses := r.CacheStats()
	if misses != missesAfterBuild {
		t.Errorf("misses grew from %d to %d; results should be cached", missesAfterBuild, misses)
	}
	if hits != 3 {
		t.Errorf("hits = %d, want 3", hits)
	}

	if _, err := r.Resolve("missing"); err == nil {
		t.Error("unknown identity should fail")
	}
}

func TestConfigurationErrors(t *testing.T) {
	tests := []struct {
		name       string
		inspectors []inspector.Inspector
		wantCode   scanerrors.ErrorCode
		wantInMsg  string
	}{
		{
			name: "cycle",
			inspectors: []inspector.Inspector{
				nodeInsp("a", graph.NodeFile, inspector.Declare(nil, after("c"), []string{"a"})),
				nodeInsp("b", graph.NodeFile, inspector.Declare(nil, after("a"), []string{"b"})),
				nodeInsp("c", graph.NodeFile, inspector.Declare(nil, after("b"), []string{"c"})),
			},
			wantCode:  scanerrors.DependencyCycle,
			wantInMsg: "a -> c -> b -> a",
		},
		{
			name: "self prerequisite",
			inspectors: []inspector.Inspector{
				nodeInsp("a", graph.NodeFile, inspector.Declare(nil, after("a"), []string{"a"})),
			},
			wantCode: scanerrors.DependencyCycle,
		},
		{
			name: "prerequisite without produces",
			inspectors: []inspector.Inspector{
				nodeInsp("a", graph.NodeFile, inspector.Declare(nil, nil, nil)),
				nodeInsp("b", graph.NodeFile, inspector.Declare(nil, after("a"), []string{"b"})),
			},
			wantCode:  scanerrors.MissingProduces,
			wantInMsg: `"a"`,
		},
		{
			name: "unknown prerequisite",
			inspectors: []inspector.Inspector{
				nodeInsp("b", graph.NodeFile, inspector.Declare(nil, after("ghost"), []string{"b"})),
			},
			wantCode: scanerrors.UnknownPrerequisite,
		},
		{
			name: "duplicate identity",
			inspectors: []inspector.Inspector{
				nodeInsp("a", graph.NodeFile, inspector.Descriptor{}),
				nodeInsp("a", graph.NodeClass, inspector.Descriptor{}),
			},
			wantCode: scanerrors.DuplicateInspector,
		},
		{
			name: "empty tag",
			inspectors: []inspector.Inspector{
				nodeInsp("a", graph.NodeFile, inspector.Declare([]string{""}, nil, nil)),
			},
			wantCode: scanerrors.MalformedDescriptor,
		},
		{
			name: "global flag without entry point",
			inspectors: []inspector.Inspector{
				nodeInsp("a", graph.NodeFile, inspector.Descriptor{RequiresAllNodes: true}),
			},
			wantCode: scanerrors.MalformedDescriptor,
		},
		{
			name: "node inspector after global of same type",
			inspectors: []inspector.Inspector{
				globalInsp("g", graph.NodeFile, inspector.Declare(nil, nil, []string{"g"})),
				nodeInsp("n", graph.NodeFile, inspector.Declare(nil, after("g"), []string{"n"})),
			},
			wantCode: scanerrors.MalformedDescriptor,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.inspectors)
			if err == nil {
				t.Fatal("expected configuration error")
			}
			if code := scanerrors.CodeOf(err); code != tt.wantCode {
				t.Errorf("code = %v, want %v (%v)", code, tt.wantCode, err)
			}
			if !scanerrors.IsConfiguration(err) {
				t.Errorf("%v should be a configuration error", err)
			}
			if tt.wantInMsg != "" && !strings.Contains(err.Error(), tt.wantInMsg) {
				t.Errorf("error %q should mention %q", err.Error(), tt.wantInMsg)
			}
		})
	}
}

func TestOrderPutsPrerequisitesFirst(t *testing.T) {
	r, err := New([]inspector.Inspector{
		nodeInsp("c", graph.NodeFile, inspector.Declare(nil, after("b"), []string{"c"})),
		nodeInsp("x", graph.NodeFile, inspector.Declare(nil, nil, []string{"x"})),
		nodeInsp("b", graph.NodeFile, inspector.Declare(nil, after("a"), []string{"b"})),
		nodeInsp("a", graph.NodeFile, inspector.Declare(nil, nil, []string{"a"})),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var got []string
	for _, insp := range r.Order() {
		got = append(got, string(insp.Identity()))
	}
	want := []string{"x", "a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Order = %v, want %v", got, want)
	}
}

func TestCrossTypePrerequisites(t *testing.T) {
	r, err := New([]inspector.Inspector{
		nodeInsp("file-metrics", graph.NodeFile, inspector.Declare(nil, nil, []string{"metrics.done"})),
		nodeInsp("rollup", graph.NodePackage, inspector.Declare(nil, after("file-metrics"), []string{"rollup.done"})),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Tags of another node type are never required on this node type.
	if got := r.MustResolve("rollup"); len(got) != 0 {
		t.Errorf("Resolve(rollup) = %v, want none", got)
	}

	if err := r.CheckTypeOrder([]graph.NodeType{graph.NodeFile, graph.NodePackage}); err != nil {
		t.Errorf("file before package should be accepted: %v", err)
	}
	err = r.CheckTypeOrder([]graph.NodeType{graph.NodePackage, graph.NodeFile})
	if scanerrors.CodeOf(err) != scanerrors.MalformedDescriptor {
		t.Errorf("package before file should be rejected, got %v", err)
	}
}

func TestDescribe(t *testing.T) {
	r, err := New([]inspector.Inspector{
		nodeInsp("a", graph.NodeFile, inspector.Declare(nil, nil, []string{"a"})),
		globalInsp("g", graph.NodeFile, inspector.Declare(nil, after("a"), []string{"g"})),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	lines := r.Describe()
	if len(lines) != 2 || !strings.Contains(lines[1], "global") || !strings.Contains(lines[1], "[a]") {
		t.Errorf("Describe = %v", lines)
	}
}

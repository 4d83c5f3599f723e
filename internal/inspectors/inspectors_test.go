package inspectors

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"archscan/internal/discovery"
	"archscan/internal/engine"
	"archscan/internal/graph"
	"archscan/internal/resolver"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

var sampleTree = map[string]string{
	"README.md": "# demo\n",
	"app/main.go": `package main

import (
	"fmt"

	"example.com/demo/lib"
)

func main() { fmt.Println(lib.Name) }
`,
	"lib/lib.go":  "package lib\n\nconst Name = \"lib\"\n",
	"lib/util.go": "package lib\n\nimport \"strings\"\n\nvar upper = strings.ToUpper\n",
	"web/index.ts": `import { a } from './util';
import React from 'react';
`,
	"web/util.ts": "export const a = 1;\n",
	"src/com/acme/Orders.java": `package com.acme;

import com.acme.model.Item;
import org.springframework.stereotype.Service;

public class Orders {}
`,
	"src/com/acme/OrdersTest.java": `package com.acme;

import org.junit.Test;
import com.acme.model.Item;
import com.acme.Orders;

public class OrdersTest {}
`,
	"src/com/acme/model/Item.java": "package com.acme.model;\n\npublic interface Item {}\n",
}

func analyze(t *testing.T, files map[string]string) (*graph.Graph, *engine.Report) {
	t.Helper()
	root := writeTree(t, files)
	g, err := discovery.NewScanner(discovery.Options{}, nil).Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	eng, err := engine.New(engine.DefaultConfig(), Builtins(Options{}, nil))
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	rep, err := eng.Run(context.Background(), g)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return g, rep
}

func mustNode(t *testing.T, g *graph.Graph, id string) *graph.Node {
	t.Helper()
	n, ok := g.Node(id)
	if !ok {
		t.Fatalf("node %s not found", id)
	}
	return n
}

func TestBuiltins_EndToEnd(t *testing.T) {
	g, rep := analyze(t, sampleTree)

	if !rep.Converged() {
		t.Errorf("run did not converge: %+v", rep.Warnings)
	}
	if len(rep.Errors) != 0 {
		t.Errorf("unexpected errors: %v", rep.Errors)
	}

	t.Run("languages", func(t *testing.T) {
		main := mustNode(t, g, "app/main.go")
		if !main.HasAllTags([]string{TagSourceCode, "lang.go", TagImportsScanned, TagImportsLinked}) {
			t.Errorf("main.go tags = %v", main.Tags())
		}
		if got := main.StringsProperty(PropImports); !reflect.DeepEqual(got, []string{"fmt", "example.com/demo/lib"}) {
			t.Errorf("imports = %v", got)
		}
		if v, _ := main.Metric(MetricImports); v != 2 {
			t.Errorf("imports.count = %v", v)
		}
		if tags := mustNode(t, g, "README.md").Tags(); len(tags) != 0 {
			t.Errorf("README tags = %v", tags)
		}
	})

	t.Run("links", func(t *testing.T) {
		edges := []struct{ from, to string }{
			{"app/main.go", "lib/lib.go"},
			{"app/main.go", "lib/util.go"},
			{"web/index.ts", "web/util.ts"},
			{"src/com/acme/Orders.java", "src/com/acme/model/Item.java"},
			{"src/com/acme/OrdersTest.java", "src/com/acme/Orders.java"},
		}
		for _, e := range edges {
			if !g.HasEdge(e.from, e.to, graph.EdgeImports) {
				t.Errorf("missing imports edge %s -> %s", e.from, e.to)
			}
		}
		if origin := g.EdgeOrigin(graph.Edge{Source: "app/main.go", Target: "lib/lib.go", Type: graph.EdgeImports}); origin != string(ImportLinkerID) {
			t.Errorf("edge origin = %q", origin)
		}
	})

	t.Run("java", func(t *testing.T) {
		orders := mustNode(t, g, "src/com/acme/Orders.java")
		if pkg, _ := orders.StringProperty(PropJavaPackage); pkg != "com.acme" {
			t.Errorf("package = %q", pkg)
		}
		if !orders.HasTag(FrameworkTag("spring")) || !orders.HasTag(TagJavaPackaged) {
			t.Errorf("Orders.java tags = %v", orders.Tags())
		}
		if !mustNode(t, g, "src/com/acme/OrdersTest.java").HasTag(FrameworkTag("junit")) {
			t.Error("OrdersTest.java should use junit")
		}
		if !mustNode(t, g, "web/index.ts").HasTag(FrameworkTag("react")) {
			t.Error("index.ts should use react")
		}
	})

	t.Run("coupling", func(t *testing.T) {
		item := mustNode(t, g, "src/com/acme/model/Item.java")
		if v, _ := item.Metric(MetricFanIn); v != 2 {
			t.Errorf("Item fanIn = %v", v)
		}
		main := mustNode(t, g, "app/main.go")
		if v, _ := main.Metric(MetricInstability); v != 1 {
			t.Errorf("main instability = %v", v)
		}
		if _, ok := item.Metric(MetricCentrality); !ok {
			t.Error("Item should be ranked")
		}
		if !item.HasTag(TagCentral) {
			t.Error("Item should be among the central files")
		}
	})

	t.Run("classes", func(t *testing.T) {
		test := mustNode(t, g, "class:com.acme.OrdersTest")
		if !test.HasTag(TagClassTest) || test.HasTag(TagClassInterfaceLike) {
			t.Errorf("OrdersTest tags = %v", test.Tags())
		}
		if !mustNode(t, g, "class:com.acme.model.Item").HasTag(TagClassInterfaceLike) {
			t.Error("Item is an interface")
		}
		if name, _ := test.StringProperty(PropClassSimple); name != "OrdersTest" {
			t.Errorf("simple name = %q", name)
		}
	})

	t.Run("packages", func(t *testing.T) {
		lib := mustNode(t, g, discovery.PackageID("lib"))
		if v, _ := lib.Metric(MetricPkgFiles); v != 2 {
			t.Errorf("lib files = %v", v)
		}
		if v, _ := lib.Metric(MetricPkgFanIn); v != 2 {
			t.Errorf("lib fanIn = %v", v)
		}
		if v, _ := lib.Metric(MetricPkgImports); v != 1 {
			t.Errorf("lib imports = %v", v)
		}
		if got := lib.StringsProperty(PropPkgLanguages); !reflect.DeepEqual(got, []string{"go"}) {
			t.Errorf("lib languages = %v", got)
		}

		tests := []struct {
			pkg       string
			category  string
			candidate bool
		}{
			{"lib", CategoryStandard, true},
			{"app", CategoryLeaf, true},
			{"src/com/acme/model", CategoryStandard, true},
		}
		for _, tt := range tests {
			n := mustNode(t, g, discovery.PackageID(tt.pkg))
			if cat, _ := n.StringProperty(PropMigrationCat); cat != tt.category {
				t.Errorf("%s category = %q, want %q", tt.pkg, cat, tt.category)
			}
			if n.HasTag(TagMigrationCandidate) != tt.candidate {
				t.Errorf("%s candidate = %v", tt.pkg, !tt.candidate)
			}
		}
	})
}

func TestBuiltins_Deterministic(t *testing.T) {
	g1, _ := analyze(t, sampleTree)
	g2, _ := analyze(t, sampleTree)
	if g1.EdgeCount() != g2.EdgeCount() {
		t.Fatalf("edge counts differ: %d vs %d", g1.EdgeCount(), g2.EdgeCount())
	}
	a := g1.Edges(graph.EdgeFilter{})
	b := g2.Edges(graph.EdgeFilter{})
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("edge %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestBuiltins_ResolveAndDisable(t *testing.T) {
	r, err := resolver.New(Builtins(Options{}, nil))
	if err != nil {
		t.Fatalf("resolver.New: %v", err)
	}
	req, err := r.Resolve(CouplingID)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual([]string(req), []string{TagImportsLinked}) {
		t.Errorf("coupling requires %v", req)
	}
	req, _ = r.Resolve(FrameworkID)
	if !req.Contains(TagImportsScanned) {
		t.Errorf("framework requires %v", req)
	}

	trimmed := Builtins(Options{Disabled: []string{string(CentralityID), string(FrameworkID)}}, nil)
	for _, insp := range trimmed {
		if insp.Identity() == CentralityID || insp.Identity() == FrameworkID {
			t.Errorf("%s should be disabled", insp.Identity())
		}
	}
	if _, err := resolver.New(trimmed); err != nil {
		t.Errorf("disabling leaves must keep the registry valid: %v", err)
	}

	// Disabling a prerequisite breaks its dependents.
	if _, err := resolver.New(Builtins(Options{Disabled: []string{string(ImportsID)}}, nil)); err == nil {
		t.Error("expected unknown prerequisite error")
	}
}

func TestScanImports(t *testing.T) {
	tests := []struct {
		name string
		lang string
		src  string
		want []string
	}{
		{"go single", "go", "package a\nimport \"fmt\"\n", []string{"fmt"}},
		{"go block", "go", "package a\nimport (\n\t\"fmt\"\n\tx \"example.com/x\"\n)\nvar s = \"not an import\"\n", []string{"fmt", "example.com/x"}},
		{"java", "java", "import java.util.List;\nimport static org.junit.Assert.assertEquals;\nimport java.util.List;\n", []string{"java.util.List", "org.junit.Assert.assertEquals"}},
		{"kotlin", "kotlin", "import kotlinx.coroutines.*\n", []string{"kotlinx.coroutines.*"}},
		{"typescript", "typescript", "import a from './a';\nconst b = require(\"b\");\nimport './side';\n", []string{"./a", "b", "./side"}},
		{"python", "python", "from os import path\nimport sys\n", []string{"os", "sys"}},
		{"rust", "rust", "use std::io;\nextern crate serde;\n", []string{"std::io", "serde"}},
		{"unknown", "cobol", "COPY X.\n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ScanImports(tt.lang, []byte(tt.src))
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ScanImports = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetectFrameworks(t *testing.T) {
	got := DetectFrameworks([]string{"org.springframework.boot.SpringApplication", "junit.framework.TestCase", "reactive"})
	if !reflect.DeepEqual(got, []string{"junit", "spring"}) {
		t.Errorf("DetectFrameworks = %v", got)
	}
	if got := DetectFrameworks(nil); got != nil {
		t.Errorf("DetectFrameworks(nil) = %v", got)
	}
}

func TestInstability(t *testing.T) {
	tests := []struct {
		in, out int
		want    float64
	}{
		{0, 0, 0},
		{0, 3, 1},
		{3, 0, 0},
		{1, 3, 0.75},
	}
	for _, tt := range tests {
		if got := Instability(tt.in, tt.out); got != tt.want {
			t.Errorf("Instability(%d, %d) = %v, want %v", tt.in, tt.out, got, tt.want)
		}
	}
}

func TestMigrationClassify(t *testing.T) {
	m := NewMigration(10, 5)
	tests := []struct {
		cmax, fanIn float64
		want        string
	}{
		{25, 0, CategoryHotspot},
		{20, 9, CategoryHotspot},
		{3, 5, CategoryCore},
		{3, 0, CategoryLeaf},
		{3, 2, CategoryStandard},
	}
	for _, tt := range tests {
		if got := m.Classify(tt.cmax, tt.fanIn); got != tt.want {
			t.Errorf("Classify(%v, %v) = %q, want %q", tt.cmax, tt.fanIn, got, tt.want)
		}
	}
}

func TestPackageRollup_FoldsOnce(t *testing.T) {
	g := graph.New()
	pkg := g.MustAddNode("pkg:a", graph.NodePackage)
	for _, id := range []string{"a/x.go", "a/y.go"} {
		n := g.MustAddNode(id, graph.NodeFile)
		g.Decorate(n, "seed").SetMetric(MetricImports, 3, graph.Overwrite)
		if _, err := g.AddEdge("pkg:a", id, graph.EdgeContains); err != nil {
			t.Fatal(err)
		}
	}

	rollup := NewPackageRollup()
	for range 2 {
		if err := rollup.Inspect(context.Background(), pkg, g.Decorate(pkg, string(PackageRollupID))); err != nil {
			t.Fatal(err)
		}
	}
	if v, _ := pkg.Metric(MetricPkgImports); v != 6 {
		t.Errorf("package.imports = %v, want 6", v)
	}
	if v, _ := pkg.Metric(MetricPkgFiles); v != 2 {
		t.Errorf("package.files = %v", v)
	}
}

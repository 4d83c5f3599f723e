package rules

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"archscan/internal/engine"
	scanerrors "archscan/internal/errors"
	"archscan/internal/graph"
	"archscan/internal/inspector"
)

const tomlRules = `
version = 1

[[rule]]
id = "test-source"
target = "file"
requires = ["source.code"]
match = { path = "(^|/)test/" }
set = { tags = ["source.test"] }

[[rule]]
id = "java-test"
target = "file"
extends = "test-source"
requires = ["lang.java"]
set = { tags = ["source.test.java"], properties = { kind = "unit", weight = 2 } }

[[rule]]
id = "big-package"
target = "package"
match = { name = "core*", properties = { tier = "1" } }
set = { tags = ["package.big"] }
`

const yamlRules = `
version: 1
rules:
  - id: test-source
    target: file
    requires: [source.code]
    match:
      path: "(^|/)test/"
    set:
      tags: [source.test]
  - id: java-test
    target: file
    extends: test-source
    requires: [lang.java]
    set:
      tags: [source.test.java]
      properties:
        kind: unit
        weight: 2
  - id: big-package
    target: package
    match:
      name: "core*"
      properties:
        tier: "1"
    set:
      tags: [package.big]
`

func TestParse_FormatsAgree(t *testing.T) {
	fromTOML, err := Parse([]byte(tomlRules), FormatTOML)
	if err != nil {
		t.Fatalf("toml: %v", err)
	}
	fromYAML, err := Parse([]byte(yamlRules), FormatYAML)
	if err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if len(fromTOML.Rules) != 3 || len(fromYAML.Rules) != 3 {
		t.Fatalf("rule counts: toml %d, yaml %d", len(fromTOML.Rules), len(fromYAML.Rules))
	}
	for i := range fromTOML.Rules {
		a, b := fromTOML.Rules[i], fromYAML.Rules[i]
		if a.ID != b.ID || a.Target != b.Target || a.Extends != b.Extends ||
			!reflect.DeepEqual(a.Requires, b.Requires) || !reflect.DeepEqual(a.Set.Tags, b.Set.Tags) ||
			a.Match.Path != b.Match.Path || a.Match.Name != b.Match.Name {
			t.Errorf("rule %d differs:\n toml %+v\n yaml %+v", i, a, b)
		}
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format Format
	}{
		{"unknown toml key", "[[rule]]\nid = \"a\"\ncolour = \"red\"\n", FormatTOML},
		{"unknown yaml key", "rules:\n  - id: a\n    colour: red\n", FormatYAML},
		{"future version", "version = 9\n", FormatTOML},
		{"bad syntax", "[[rule]\n", FormatTOML},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.data), tt.format); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	f, err := Parse(nil, FormatYAML)
	if err != nil || len(f.Rules) != 0 {
		t.Errorf("empty yaml = %+v, %v", f, err)
	}
}

func TestCompile_Extends(t *testing.T) {
	f, _ := Parse([]byte(tomlRules), FormatTOML)
	insps, err := Compile(f)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	javaTest := insps[1]
	desc := javaTest.Descriptor()
	if len(desc.Fragments) != 2 || desc.Fragments[0].Level != "test-source" || desc.Fragments[1].Level != "java-test" {
		t.Fatalf("fragments = %+v", desc.Fragments)
	}
	if got := desc.Requires(); !reflect.DeepEqual(got, []string{"lang.java", "source.code"}) {
		t.Errorf("requires = %v", got)
	}
	if got := desc.Produces(); !reflect.DeepEqual(got, []string{"source.test", "source.test.java"}) {
		t.Errorf("produces = %v", got)
	}
	if javaTest.Target() != graph.NodeFile || insps[2].Target() != graph.NodePackage {
		t.Error("targets not parsed")
	}
}

func TestCompile_Errors(t *testing.T) {
	set := Set{Tags: []string{"x"}}
	tests := []struct {
		name  string
		rules []Rule
	}{
		{"missing id", []Rule{{Target: "file", Set: set}}},
		{"duplicate", []Rule{{ID: "a", Target: "file", Set: set}, {ID: "a", Target: "file", Set: set}}},
		{"unknown target", []Rule{{ID: "a", Target: "module", Set: set}}},
		{"unknown parent", []Rule{{ID: "a", Target: "file", Extends: "b", Set: set}}},
		{"cycle", []Rule{{ID: "a", Target: "file", Extends: "b", Set: set}, {ID: "b", Target: "file", Extends: "a", Set: set}}},
		{"target mismatch", []Rule{{ID: "a", Target: "file", Set: set}, {ID: "b", Target: "class", Extends: "a", Set: set}}},
		{"bad regex", []Rule{{ID: "a", Target: "file", Match: Match{Path: "("}, Set: set}}},
		{"bad glob", []Rule{{ID: "a", Target: "file", Match: Match{Name: "[a"}, Set: set}}},
		{"sets nothing", []Rule{{ID: "a", Target: "file"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(&File{Rules: tt.rules})
			if err == nil {
				t.Fatal("expected error")
			}
			if scanerrors.CodeOf(err) != scanerrors.ConfigInvalid {
				t.Errorf("code = %q", scanerrors.CodeOf(err))
			}
		})
	}
}

func TestRules_RunInEngine(t *testing.T) {
	g := graph.New()
	for _, id := range []string{"src/test/FooTest.java", "src/main/Foo.java", "test/helper.go"} {
		if _, err := g.AddNode(graph.NodeSpec{ID: id, Type: graph.NodeFile, Properties: map[string]any{"file.path": id}}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := g.AddNode(graph.NodeSpec{ID: "pkg:core", Type: graph.NodePackage, Name: "core", Properties: map[string]any{"tier": 1}}); err != nil {
		t.Fatal(err)
	}
	if _, err := g.AddNode(graph.NodeSpec{ID: "pkg:util", Type: graph.NodePackage, Name: "util", Properties: map[string]any{"tier": 1}}); err != nil {
		t.Fatal(err)
	}

	lang := inspector.NewFunc("lang", graph.NodeFile, inspector.Declare(nil, nil, []string{"source.code", "lang.java"}),
		func(_ context.Context, n *graph.Node, d *graph.Decorator) error {
			d.EnableTag("source.code")
			if strings.HasSuffix(n.ID(), ".java") {
				d.EnableTag("lang.java")
			}
			return nil
		})

	f, _ := Parse([]byte(tomlRules), FormatTOML)
	compiled, err := Compile(f)
	if err != nil {
		t.Fatal(err)
	}
	eng, err := engine.New(engine.DefaultConfig(), append([]inspector.Inspector{lang}, compiled...))
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	if _, err := eng.Run(context.Background(), g); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		id   string
		tags []string
	}{
		{"src/test/FooTest.java", []string{"lang.java", "source.code", "source.test", "source.test.java"}},
		{"src/main/Foo.java", []string{"lang.java", "source.code", "source.test.java"}},
		{"test/helper.go", []string{"source.code", "source.test"}},
		{"pkg:core", []string{"package.big"}},
		{"pkg:util", nil},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			n, _ := g.Node(tt.id)
			got := n.Tags()
			if len(got) == 0 && len(tt.tags) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.tags) {
				t.Errorf("tags = %v, want %v", got, tt.tags)
			}
		})
	}

	foo, _ := g.Node("src/test/FooTest.java")
	if kind, _ := foo.StringProperty("kind"); kind != "unit" {
		t.Errorf("kind = %q", kind)
	}
	if w, _ := foo.NumberProperty("weight"); w != 2 {
		t.Errorf("weight = %v", w)
	}
}

func TestStarter_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteStarter(&buf); err != nil {
		t.Fatal(err)
	}
	f, err := Parse(buf.Bytes(), FormatTOML)
	if err != nil {
		t.Fatalf("starter does not parse: %v\n%s", err, buf.String())
	}
	if len(f.Rules) != len(Starter().Rules) {
		t.Errorf("rules = %d", len(f.Rules))
	}
	if _, err := Compile(f); err != nil {
		t.Errorf("starter does not compile: %v", err)
	}
}

func TestInitFileAndLoad(t *testing.T) {
	p := filepath.Join(t.TempDir(), ".archscan", "rules.toml")
	if err := InitFile(p, false); err != nil {
		t.Fatal(err)
	}
	if err := InitFile(p, false); err == nil {
		t.Error("expected refusal to overwrite")
	}
	if err := InitFile(p, true); err != nil {
		t.Errorf("force: %v", err)
	}
	insps, err := LoadInspectors(p)
	if err != nil {
		t.Fatal(err)
	}
	if insps[0].Identity() != "test-source" {
		t.Errorf("first = %s", insps[0].Identity())
	}

	yml := filepath.Join(t.TempDir(), "rules.yml")
	if err := os.WriteFile(yml, []byte(yamlRules), 0o644); err != nil {
		t.Fatal(err)
	}
	if insps, err := LoadInspectors(yml); err != nil || len(insps) != 3 {
		t.Errorf("yaml load = %d, %v", len(insps), err)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "rules.json")); scanerrors.CodeOf(err) != scanerrors.ConfigInvalid {
		t.Errorf("json rules err = %v", err)
	}
}

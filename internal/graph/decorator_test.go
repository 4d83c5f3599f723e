package graph

import (
	"errors"
	"math"
	"testing"
)

func TestDecoratorWritesCountOnlyEffectiveChanges(t *testing.T) {
	g := New()
	n := g.MustAddNode("a", NodeFile)
	d := g.Decorate(n, "lang")

	d.EnableTag("lang.java")
	d.EnableTag("lang.java")
	if err := d.SetProperty("kind", "source"); err != nil {
		t.Fatal(err)
	}
	if err := d.SetProperty("kind", "source"); err != nil {
		t.Fatal(err)
	}

	if d.Writes() != 2 {
		t.Errorf("Writes = %d, want 2", d.Writes())
	}
	if !d.Changed() {
		t.Error("Changed should be true")
	}
	if n.TagRevision() != 1 {
		t.Errorf("TagRevision = %d, want 1", n.TagRevision())
	}
	if n.Revision() != 2 {
		t.Errorf("Revision = %d, want 2", n.Revision())
	}
}

func TestDecoratorSetPropertyOverwrites(t *testing.T) {
	g := New()
	n := g.MustAddNode("a", NodeFile)
	d := g.Decorate(n, "x")

	if err := d.SetProperty("java.packageName", "com.a"); err != nil {
		t.Fatal(err)
	}
	if err := d.SetProperty("java.packageName", "com.b"); err != nil {
		t.Fatal(err)
	}
	if v, _ := n.StringProperty("java.packageName"); v != "com.b" {
		t.Errorf("java.packageName = %q, want com.b", v)
	}
}

func TestDecoratorPropertyValues(t *testing.T) {
	g := New()
	n := g.MustAddNode("a", NodeFile)
	d := g.Decorate(n, "x")

	valid := map[string]any{
		"s":      "str",
		"i":      3,
		"f":      1.5,
		"b":      true,
		"list":   []string{"x", "y"},
		"nested": map[string]any{"k": []any{1, "two"}},
	}
	for k, v := range valid {
		if err := d.SetProperty(k, v); err != nil {
			t.Errorf("SetProperty(%s): %v", k, err)
		}
	}
	if got := n.StringsProperty("list"); len(got) != 2 || got[1] != "y" {
		t.Errorf("list = %v", got)
	}

	if err := d.SetProperty("bad", struct{}{}); err == nil {
		t.Error("struct values should be rejected")
	}
	if err := d.SetProperty("", "x"); err == nil {
		t.Error("empty key should be rejected")
	}

	// Returned values are copies.
	v, _ := n.Property("nested")
	v.(map[string]any)["k"] = "mutated"
	again, _ := n.Property("nested")
	if _, ok := again.(map[string]any)["k"].([]any); !ok {
		t.Error("node state was mutated through a returned value")
	}
}

func TestAggregationLaws(t *testing.T) {
	orders := [][]float64{{3, 7, 5}, {7, 3, 5}, {5, 7, 3}}
	tests := []struct {
		mode Aggregation
		want float64
	}{
		{Max, 7},
		{Sum, 15},
		{Average, 5},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			for _, order := range orders {
				g := New()
				n := g.MustAddNode("f", NodeFile)
				for _, v := range order {
					g.Decorate(n, "complexity").SetMetric("m", v, tt.mode)
				}
				got, _ := n.Metric("m")
				if got != tt.want {
					t.Errorf("%v over %v = %v, want %v", tt.mode, order, got, tt.want)
				}
				if Fold(tt.mode, order...) != tt.want {
					t.Errorf("Fold(%v, %v) = %v, want %v", tt.mode, order, Fold(tt.mode, order...), tt.want)
				}
			}
		})
	}
}

func TestAverageTracksCount(t *testing.T) {
	g := New()
	n := g.MustAddNode("f", NodeFile)
	d := g.Decorate(n, "x")

	d.SetMetric("avg", 2, Average)
	d.SetMetric("avg", 4, Average)
	d.SetMetric("avg", 9, Average)

	acc, ok := n.Accumulator("avg")
	if !ok {
		t.Fatal("accumulator missing")
	}
	if acc.Count != 3 || acc.Sum != 15 || acc.Max != 9 {
		t.Errorf("accumulator = %+v", acc)
	}
	if v, _ := n.Metric("avg"); v != 5 {
		t.Errorf("avg = %v, want 5", v)
	}
}

func TestOverwriteResetsAccumulator(t *testing.T) {
	g := New()
	n := g.MustAddNode("f", NodeFile)
	d := g.Decorate(n, "x")

	d.SetMetric("m", 10, Sum)
	d.SetMetric("m", 1, Overwrite)
	d.SetMetric("m", 2, Sum)

	if v, _ := n.Metric("m"); v != 2 {
		t.Errorf("m = %v, want 2 after overwrite reset", v)
	}
}

func TestReportErrorIsNotAChange(t *testing.T) {
	g := New()
	n := g.MustAddNode("a", NodeFile)

	var sunk []AnalysisError
	d := g.Decorate(n, "broken").WithErrorSink(func(_ *Node, e AnalysisError) {
		sunk = append(sunk, e)
	})

	d.EnableTag("partial")
	d.ReportError(errors.New("boom"))

	if d.Writes() != 1 {
		t.Errorf("Writes = %d, want 1 (the partial tag)", d.Writes())
	}
	if !n.HasTag("partial") {
		t.Error("partial writes are not rolled back")
	}
	errs := n.Errors()
	if len(errs) != 1 || errs[0].Inspector != "broken" || errs[0].Message != "boom" {
		t.Errorf("node errors = %+v", errs)
	}
	if len(sunk) != 1 {
		t.Errorf("sink received %d errors, want 1", len(sunk))
	}

	clean := g.Decorate(g.MustAddNode("b", NodeFile), "broken")
	clean.ReportError(errors.New("only an error"))
	if clean.Changed() {
		t.Error("error-only invocation must not count as change")
	}
}

func TestSealedDecoratorDropsWrites(t *testing.T) {
	g := New()
	n := g.MustAddNode("a", NodeFile)
	g.MustAddNode("b", NodeFile)
	d := g.Decorate(n, "slow")
	d.Seal()

	d.EnableTag("late")
	d.SetMetric("m", 1, Overwrite)
	_ = d.AddEdge("b", EdgeImports)
	d.ReportError(errors.New("late"))

	if n.HasTag("late") || len(n.Metrics()) != 0 || g.EdgeCount() != 0 || len(n.Errors()) != 0 {
		t.Error("sealed decorator applied a write")
	}
}

func TestNeedsRunTracksTagRevision(t *testing.T) {
	g := New()
	n := g.MustAddNode("a", NodeFile)

	if !n.NeedsRun("i") {
		t.Fatal("fresh node should need a run")
	}

	g.Decorate(n, "i").EnableTag("own")
	n.MarkRun("i")
	if n.NeedsRun("i") {
		t.Error("own writes must not make the inspector due again")
	}

	if err := g.Decorate(n, "other").SetProperty("p", 1); err != nil {
		t.Fatal(err)
	}
	if n.NeedsRun("i") {
		t.Error("property writes do not affect eligibility")
	}

	g.Decorate(n, "other").EnableTag("new")
	if !n.NeedsRun("i") {
		t.Error("a new tag from another inspector should make it due again")
	}
}

func TestDecoratorRejectsNonFiniteValues(t *testing.T) {
	g := New()
	n := g.MustAddNode("a", NodeFile)

	var sunk []AnalysisError
	d := g.Decorate(n, "ratio").WithErrorSink(func(_ *Node, e AnalysisError) {
		sunk = append(sunk, e)
	})

	d.SetMetric("ratio", 0.5, Overwrite)
	d.SetMetric("ratio", math.NaN(), Overwrite)
	d.SetMetric("ratio", math.Inf(1), Max)
	d.SetMetric("total", math.MaxFloat64, Sum)
	d.SetMetric("total", math.MaxFloat64, Sum)

	if v, _ := n.Metric("ratio"); v != 0.5 {
		t.Errorf("ratio = %v, want 0.5", v)
	}
	if v, _ := n.Metric("total"); v != math.MaxFloat64 {
		t.Errorf("total = %v, want the last finite sum", v)
	}
	if acc, _ := n.Accumulator("total"); acc.Count != 1 {
		t.Errorf("overflowing write folded into accumulator: %+v", acc)
	}
	if d.Writes() != 2 {
		t.Errorf("Writes = %d, want 2", d.Writes())
	}

	errs := n.Errors()
	if len(errs) != 3 || len(sunk) != 3 {
		t.Fatalf("errors = %+v, sunk = %d", errs, len(sunk))
	}
	for _, e := range errs {
		if e.Code != "INVALID_VALUE" || e.Inspector != "ratio" {
			t.Errorf("error = %+v", e)
		}
	}

	for _, v := range []any{math.NaN(), math.Inf(-1), float32(math.Inf(1)), []any{1, math.NaN()}, map[string]any{"k": math.Inf(1)}} {
		if err := d.SetProperty("p", v); err == nil {
			t.Errorf("SetProperty(%v) should be rejected", v)
		}
	}
	if _, ok := n.Property("p"); ok {
		t.Error("non-finite property was stored")
	}
	if _, err := g.AddNode(NodeSpec{ID: "b", Type: NodeFile, Properties: map[string]any{"x": math.NaN()}}); err == nil {
		t.Error("AddNode should reject non-finite seed properties")
	}
}

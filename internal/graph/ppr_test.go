package graph

import (
	"context"
	"testing"
)

func rankFixture(t *testing.T, ids []string, edges [][2]string) *Graph {
	t.Helper()
	g := New()
	for _, id := range ids {
		g.MustAddNode(id, NodeFile)
	}
	for _, e := range edges {
		if _, err := g.AddEdge(e[0], e[1], EdgeImports); err != nil {
			t.Fatalf("AddEdge(%s, %s): %v", e[0], e[1], err)
		}
	}
	return g
}

func TestPPRBasic(t *testing.T) {
	// A -> B -> C, A -> D, B -> D
	g := rankFixture(t, []string{"A", "B", "C", "D"}, [][2]string{
		{"A", "B"}, {"B", "C"}, {"A", "D"}, {"B", "D"},
	})

	rg := NewRankGraph(g, NodeFile, EdgeImports)
	opts := DefaultPPROptions()
	opts.TopK = 10

	result, err := rg.PPR(context.Background(), []string{"A"}, opts)
	if err != nil {
		t.Fatalf("PPR failed: %v", err)
	}
	if len(result.Results) == 0 {
		t.Fatal("Expected some results")
	}

	foundA := false
	for _, r := range result.Results {
		if r.NodeID == "A" {
			foundA = true
		}
	}
	if !foundA {
		t.Error("Expected seed node A in results")
	}
	if result.TotalNodes != 4 {
		t.Errorf("Expected 4 nodes, got %d", result.TotalNodes)
	}
	if result.TotalEdges != 4 {
		t.Errorf("Expected 4 edges, got %d", result.TotalEdges)
	}
}

func TestPPRGlobalRankFavoursImportedNodes(t *testing.T) {
	// Everything imports "core".
	g := rankFixture(t, []string{"core", "a", "b", "c"}, [][2]string{
		{"a", "core"}, {"b", "core"}, {"c", "core"},
	})

	result, err := NewRankGraph(g, NodeFile, EdgeImports).PPR(context.Background(), nil, DefaultPPROptions())
	if err != nil {
		t.Fatalf("PPR failed: %v", err)
	}
	if result.Results[0].NodeID != "core" {
		t.Errorf("top node = %s, want core", result.Results[0].NodeID)
	}
	if len(result.SeedNodes) != 4 {
		t.Errorf("seeds = %d, want every node", len(result.SeedNodes))
	}

	total := 0.0
	for _, r := range result.Results {
		total += r.Score
	}
	if total < 0.99 || total > 1.01 {
		t.Errorf("scores should sum to ~1, got %f", total)
	}
}

func TestPPRConvergence(t *testing.T) {
	g := rankFixture(t, []string{"main", "engine", "graph", "resolver", "storage"}, [][2]string{
		{"main", "engine"}, {"engine", "graph"}, {"engine", "resolver"},
		{"resolver", "graph"}, {"main", "storage"}, {"storage", "graph"},
	})

	opts := DefaultPPROptions()
	opts.MaxIterations = 100
	result, err := NewRankGraph(g, NodeFile, EdgeImports).PPR(context.Background(), []string{"main"}, opts)
	if err != nil {
		t.Fatalf("PPR failed: %v", err)
	}
	if !result.Converged {
		t.Errorf("expected convergence within %d iterations", opts.MaxIterations)
	}
}

func TestPPRIgnoresOtherTypesAndEdges(t *testing.T) {
	g := rankFixture(t, []string{"a", "b"}, [][2]string{{"a", "b"}})
	g.MustAddNode("pkg:x", NodePackage)
	if _, err := g.AddEdge("pkg:x", "a", EdgeContains); err != nil {
		t.Fatal(err)
	}

	rg := NewRankGraph(g, NodeFile, EdgeImports)
	if rg.NumNodes() != 2 {
		t.Errorf("NumNodes = %d, want 2", rg.NumNodes())
	}
	if rg.NumEdges() != 1 {
		t.Errorf("NumEdges = %d, want 1", rg.NumEdges())
	}
}

func TestPPRNonexistentSeeds(t *testing.T) {
	g := rankFixture(t, []string{"A", "B"}, [][2]string{{"A", "B"}})

	_, err := NewRankGraph(g, NodeFile, EdgeImports).PPR(context.Background(), []string{"X"}, DefaultPPROptions())
	if err == nil {
		t.Error("expected error when no seed exists")
	}
}

func TestPPREmptyGraph(t *testing.T) {
	result, err := NewRankGraph(New(), NodeFile, EdgeImports).PPR(context.Background(), nil, DefaultPPROptions())
	if err != nil {
		t.Fatalf("PPR failed: %v", err)
	}
	if len(result.Results) != 0 {
		t.Errorf("expected no results, got %d", len(result.Results))
	}
}

package graph

import (
	"context"
	"fmt"
	"sort"
)

// PPROptions configures Personalized PageRank computation.
type PPROptions struct {
	// Damping is the probability of following an edge vs teleporting (default: 0.85)
	Damping float64

	// MaxIterations is the maximum number of power iterations (default: 20)
	MaxIterations int

	// Tolerance for convergence detection (default: 1e-6)
	Tolerance float64

	// TopK is the number of top results to return (0 returns every ranked node)
	TopK int
}

// DefaultPPROptions returns sensible defaults for PPR.
func DefaultPPROptions() PPROptions {
	return PPROptions{
		Damping:       0.85,
		MaxIterations: 20,
		Tolerance:     1e-6,
	}
}

// PPRResult represents a ranked node from PPR computation.
type PPRResult struct {
	NodeID string  `json:"nodeId"`
	Score  float64 `json:"score"`
}

// PPROutput contains the full PPR computation result.
type PPROutput struct {
	Results    []PPRResult `json:"results"`
	Iterations int         `json:"iterations"`
	Converged  bool        `json:"converged"`
	SeedNodes  []string    `json:"seedNodes"`
	TotalNodes int         `json:"totalNodes"`
	TotalEdges int         `json:"totalEdges"`
}

// RankGraph is a sparse weighted projection of a Snapshot used for ranking.
type RankGraph struct {
	nodes    []string
	nodeIdx  map[string]int
	outEdges [][]edgeEntry
}

type edgeEntry struct {
	target int
	weight float64
}

// NewRankGraph projects the nodes of type t and the edges of edgeType between them.
// Edges leaving the node set are ignored.
func NewRankGraph(snap Snapshot, t NodeType, edgeType string) *RankGraph {
	rg := &RankGraph{nodeIdx: make(map[string]int)}
	for _, n := range snap.Nodes(t) {
		rg.addNode(n.ID())
	}
	for _, e := range snap.Edges(EdgeFilter{Type: edgeType}) {
		src, okSrc := rg.nodeIdx[e.Source]
		dst, okDst := rg.nodeIdx[e.Target]
		if !okSrc || !okDst || src == dst {
			continue
		}
		rg.outEdges[src] = append(rg.outEdges[src], edgeEntry{target: dst, weight: 1.0})
	}
	return rg
}

func (g *RankGraph) addNode(id string) int {
	if idx, ok := g.nodeIdx[id]; ok {
		return idx
	}
	idx := len(g.nodes)
	g.nodes = append(g.nodes, id)
	g.nodeIdx[id] = idx
	g.outEdges = append(g.outEdges, nil)
	return idx
}

// NumNodes returns the number of nodes in the graph.
func (g *RankGraph) NumNodes() int {
	return len(g.nodes)
}

// NumEdges returns the total number of edges.
func (g *RankGraph) NumEdges() int {
	total := 0
	for _, edges := range g.outEdges {
		total += len(edges)
	}
	return total
}

// PPR computes Personalized PageRank with the given seed nodes. With no seeds every
// node is a seed, which yields plain PageRank.
func (g *RankGraph) PPR(ctx context.Context, seeds []string, opts PPROptions) (*PPROutput, error) {
	if len(seeds) == 0 {
		seeds = g.nodes
	}
	numNodes := len(g.nodes)
	if numNodes == 0 {
		return &PPROutput{Results: []PPRResult{}, SeedNodes: seeds}, nil
	}

	// Apply defaults
	if opts.Damping <= 0 || opts.Damping >= 1 {
		opts.Damping = 0.85
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 20
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = 1e-6
	}

	seedIndices := make([]int, 0, len(seeds))
	validSeeds := make([]string, 0, len(seeds))
	for _, s := range seeds {
		if idx, ok := g.nodeIdx[s]; ok {
			seedIndices = append(seedIndices, idx)
			validSeeds = append(validSeeds, s)
		}
	}
	if len(seedIndices) == 0 {
		return nil, fmt.Errorf("none of %d seed nodes are in the graph", len(seeds))
	}

	// Initialize teleport vector (uniform over seeds)
	teleport := make([]float64, numNodes)
	teleportWeight := 1.0 / float64(len(seedIndices))
	for _, idx := range seedIndices {
		teleport[idx] = teleportWeight
	}

	scores := make([]float64, numNodes)
	copy(scores, teleport)

	outDegree := make([]float64, numNodes)
	for i, edges := range g.outEdges {
		for _, e := range edges {
			outDegree[i] += e.weight
		}
	}

	newScores := make([]float64, numNodes)
	var iterations int
	var converged bool

	for iter := range opts.MaxIterations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		iterations = iter + 1

		for i := range newScores {
			newScores[i] = 0
		}

		// Dangling nodes hand their score back to the seeds.
		dangling := 0.0
		for i, edges := range g.outEdges {
			if len(edges) == 0 || outDegree[i] == 0 {
				dangling += scores[i]
				continue
			}
			contrib := scores[i] / outDegree[i]
			for _, e := range edges {
				newScores[e.target] += contrib * e.weight
			}
		}

		maxDiff := 0.0
		for i := range newScores {
			newScores[i] = opts.Damping*(newScores[i]+dangling*teleport[i]) + (1-opts.Damping)*teleport[i]
			diff := abs(newScores[i] - scores[i])
			if diff > maxDiff {
				maxDiff = diff
			}
		}

		scores, newScores = newScores, scores

		if maxDiff < opts.Tolerance {
			converged = true
			break
		}
	}

	ranked := make([]PPRResult, 0, numNodes)
	for i, s := range scores {
		if s > 0 {
			ranked = append(ranked, PPRResult{NodeID: g.nodes[i], Score: s})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].NodeID < ranked[j].NodeID
	})
	if opts.TopK > 0 && len(ranked) > opts.TopK {
		ranked = ranked[:opts.TopK]
	}

	return &PPROutput{
		Results:    ranked,
		Iterations: iterations,
		Converged:  converged,
		SeedNodes:  validSeeds,
		TotalNodes: numNodes,
		TotalEdges: g.NumEdges(),
	}, nil
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

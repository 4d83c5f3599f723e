package inspectors

import (
	"context"

	"archscan/internal/graph"
	"archscan/internal/inspector"
)

// Coupling derives afferent and efferent coupling from the imports edges.
type Coupling struct {
	inspector.Base
	hubFanIn int
}

// NewCoupling creates the global coupling inspector. Files imported by at least
// hubFanIn other files are tagged coupling.hub.
func NewCoupling(hubFanIn int) *Coupling {
	return &Coupling{
		Base: inspector.Base{
			ID:   CouplingID,
			Type: graph.NodeFile,
			Desc: inspector.Declare(nil, []inspector.Identity{ImportLinkerID},
				[]string{TagCouplingMeasured, TagCouplingHub}).Global(),
		},
		hubFanIn: hubFanIn,
	}
}

// Instability is fanOut / (fanIn + fanOut), or zero for an isolated file.
func Instability(fanIn, fanOut int) float64 {
	if fanIn+fanOut == 0 {
		return 0
	}
	return float64(fanOut) / float64(fanIn+fanOut)
}

// InspectAll implements inspector.GlobalInspector.
func (c *Coupling) InspectAll(ctx context.Context, scope *inspector.Scope) error {
	snap := scope.Snapshot()
	for _, n := range scope.Eligible() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fanIn := len(snap.InEdges(n.ID(), graph.EdgeImports))
		fanOut := len(snap.OutEdges(n.ID(), graph.EdgeImports))

		d := scope.Decorate(n)
		d.SetMetric(MetricFanIn, float64(fanIn), graph.Overwrite)
		d.SetMetric(MetricFanOut, float64(fanOut), graph.Overwrite)
		d.SetMetric(MetricInstability, Instability(fanIn, fanOut), graph.Overwrite)
		if fanIn >= c.hubFanIn {
			d.EnableTag(TagCouplingHub)
		}
		d.EnableTag(TagCouplingMeasured)
	}
	return nil
}

// Centrality ranks files by PageRank over the imports edges.
type Centrality struct {
	inspector.Base
	topK int
}

// NewCentrality creates the global centrality inspector. The topK highest ranked files
// are tagged graph.central.
func NewCentrality(topK int) *Centrality {
	return &Centrality{
		Base: inspector.Base{
			ID:   CentralityID,
			Type: graph.NodeFile,
			Desc: inspector.Declare(nil, []inspector.Identity{ImportLinkerID}, []string{TagCentral}).Global(),
		},
		topK: topK,
	}
}

// InspectAll implements inspector.GlobalInspector. Graphs without imports edges are
// left unranked.
func (c *Centrality) InspectAll(ctx context.Context, scope *inspector.Scope) error {
	rg := graph.NewRankGraph(scope.Snapshot(), graph.NodeFile, graph.EdgeImports)
	if rg.NumEdges() == 0 {
		return nil
	}
	out, err := rg.PPR(ctx, nil, graph.DefaultPPROptions())
	if err != nil {
		return err
	}

	eligible := make(map[string]*graph.Node)
	for _, n := range scope.Eligible() {
		eligible[n.ID()] = n
	}
	ranked := 0
	for _, r := range out.Results {
		n, ok := eligible[r.NodeID]
		if !ok {
			continue
		}
		d := scope.Decorate(n)
		d.SetMetric(MetricCentrality, r.Score, graph.Overwrite)
		if ranked < c.topK {
			d.EnableTag(TagCentral)
		}
		ranked++
	}
	return nil
}

var (
	_ inspector.GlobalInspector = (*Coupling)(nil)
	_ inspector.GlobalInspector = (*Centrality)(nil)
)

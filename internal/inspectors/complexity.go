package inspectors

import (
	"context"

	"archscan/internal/complexity"
	"archscan/internal/discovery"
	"archscan/internal/graph"
	"archscan/internal/inspector"
)

// Complexity measures per-function cyclomatic complexity with tree-sitter and folds it
// into file metrics: the maximum, the total and the mean.
type Complexity struct {
	inspector.Base
	analyzer  *complexity.Analyzer
	threshold int
}

// NewComplexity creates the complexity inspector. Files whose most complex function
// exceeds threshold are tagged complexity.high.
func NewComplexity(threshold int) *Complexity {
	return &Complexity{
		Base: inspector.Base{
			ID:   ComplexityID,
			Type: graph.NodeFile,
			Desc: inspector.Declare([]string{TagSourceCode}, nil, []string{TagComplexityMeasured, TagComplexityHigh}),
		},
		analyzer:  complexity.NewAnalyzer(),
		threshold: threshold,
	}
}

// Supports accepts files in a language with a complexity grammar.
func (c *Complexity) Supports(n *graph.Node) bool {
	p, _ := n.StringProperty(discovery.PropPath)
	_, ok := complexity.LanguageForPath(p)
	return ok && complexity.Available()
}

// Inspect implements inspector.NodeInspector. A file is measured once; later runs
// triggered by unrelated tags leave the accumulated metrics alone.
func (c *Complexity) Inspect(ctx context.Context, n *graph.Node, d *graph.Decorator) error {
	if n.HasTag(TagComplexityMeasured) {
		return nil
	}
	p, _ := n.StringProperty(discovery.PropAbsPath)
	res, err := c.analyzer.AnalyzeFile(ctx, p)
	if err != nil {
		return err
	}

	highest := 0
	for _, fn := range res.Functions {
		cc := float64(fn.Cyclomatic)
		d.SetMetric(MetricComplexMax, cc, graph.Max)
		d.SetMetric(MetricComplexSum, cc, graph.Sum)
		d.SetMetric(MetricComplexAvg, cc, graph.Average)
		d.SetMetric(MetricCognitive, float64(fn.Cognitive), graph.Max)
		highest = max(highest, fn.Cyclomatic)
	}
	d.SetMetric(MetricFunctions, float64(len(res.Functions)), graph.Overwrite)

	if highest > c.threshold {
		d.EnableTag(TagComplexityHigh)
	}
	d.EnableTag(TagComplexityMeasured)
	return nil
}

var _ inspector.NodeInspector = (*Complexity)(nil)

package inspectors

import (
	"context"
	"path"
	"sort"

	"archscan/internal/graph"
	"archscan/internal/inspector"
)

// PackageRollup folds the metrics of the files a package contains.
type PackageRollup struct {
	inspector.Base
}

// NewPackageRollup creates the package-rollup inspector.
func NewPackageRollup() *PackageRollup {
	return &PackageRollup{Base: inspector.Base{
		ID:   PackageRollupID,
		Type: graph.NodePackage,
		Desc: inspector.Declare(nil, nil, []string{TagPackageRolledUp}),
	}}
}

// Inspect implements inspector.NodeInspector. Summed metrics are only folded once per
// package.
func (p *PackageRollup) Inspect(ctx context.Context, n *graph.Node, d *graph.Decorator) error {
	if n.HasTag(TagPackageRolledUp) {
		return nil
	}
	snap := d.Snapshot()

	files := 0
	languages := make(map[string]bool)
	for _, e := range snap.OutEdges(n.ID(), graph.EdgeContains) {
		if err := ctx.Err(); err != nil {
			return err
		}
		f, ok := snap.Node(e.Target)
		if !ok || f.Type() != graph.NodeFile {
			continue
		}
		files++
		if lang, ok := f.StringProperty(PropLanguage); ok {
			languages[lang] = true
		}
		if v, ok := f.Metric(MetricImports); ok {
			d.SetMetric(MetricPkgImports, v, graph.Sum)
		}
		if v, ok := f.Metric(MetricComplexMax); ok {
			d.SetMetric(MetricComplexMax, v, graph.Max)
		}
		if v, ok := f.Metric(MetricComplexSum); ok {
			d.SetMetric(MetricComplexSum, v, graph.Sum)
		}

		fanIn, fanOut := crossPackageEdges(snap, f.ID())
		d.SetMetric(MetricPkgFanIn, float64(fanIn), graph.Sum)
		d.SetMetric(MetricPkgFanOut, float64(fanOut), graph.Sum)
	}

	d.SetMetric(MetricPkgFiles, float64(files), graph.Overwrite)
	langs := make([]string, 0, len(languages))
	for l := range languages {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	if err := d.SetProperty(PropPkgLanguages, langs); err != nil {
		return err
	}
	d.EnableTag(TagPackageRolledUp)
	return nil
}

// crossPackageEdges counts the imports edges of a file that cross its directory.
func crossPackageEdges(snap graph.Snapshot, file string) (fanIn, fanOut int) {
	dir := path.Dir(file)
	for _, e := range snap.InEdges(file, graph.EdgeImports) {
		if path.Dir(e.Source) != dir {
			fanIn++
		}
	}
	for _, e := range snap.OutEdges(file, graph.EdgeImports) {
		if path.Dir(e.Target) != dir {
			fanOut++
		}
	}
	return fanIn, fanOut
}

// Migration categories.
const (
	CategoryLeaf     = "leaf"
	CategoryCore     = "core"
	CategoryHotspot  = "hotspot"
	CategoryStandard = "standard"
)

// Migration classifies packages as migration candidates from their rolled-up metrics.
type Migration struct {
	inspector.Base
	threshold int
	hubFanIn  int
}

// NewMigration creates the migration inspector. It runs after package-rollup.
func NewMigration(complexityThreshold, hubFanIn int) *Migration {
	return &Migration{
		Base: inspector.Base{
			ID:   MigrationID,
			Type: graph.NodePackage,
			Desc: inspector.Declare(nil, []inspector.Identity{PackageRollupID}, []string{TagMigrationCandidate}),
		},
		threshold: complexityThreshold,
		hubFanIn:  hubFanIn,
	}
}

// Classify picks the category of a package. Complexity dominates coupling.
func (m *Migration) Classify(maxComplexity, fanIn float64) string {
	switch {
	case maxComplexity >= float64(2*m.threshold):
		return CategoryHotspot
	case fanIn >= float64(m.hubFanIn):
		return CategoryCore
	case fanIn == 0:
		return CategoryLeaf
	default:
		return CategoryStandard
	}
}

// Inspect implements inspector.NodeInspector.
func (m *Migration) Inspect(_ context.Context, n *graph.Node, d *graph.Decorator) error {
	cmax, _ := n.Metric(MetricComplexMax)
	fanIn, _ := n.Metric(MetricPkgFanIn)

	category := m.Classify(cmax, fanIn)
	if err := d.SetProperty(PropMigrationCat, category); err != nil {
		return err
	}
	if (category == CategoryLeaf || category == CategoryStandard) && cmax < float64(m.threshold) {
		d.EnableTag(TagMigrationCandidate)
	}
	return nil
}

var (
	_ inspector.NodeInspector = (*PackageRollup)(nil)
	_ inspector.NodeInspector = (*Migration)(nil)
)

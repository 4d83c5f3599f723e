// Package inspectors provides the built-in analyzers registered with the engine: language
// and import detection for files, import linking and coupling metrics across files,
// class naming conventions, and package rollups with migration classification.
package inspectors

import (
	"log/slog"
	"os"

	"archscan/internal/complexity"
	"archscan/internal/config"
	"archscan/internal/discovery"
	"archscan/internal/graph"
	"archscan/internal/inspector"
	"archscan/internal/slogutil"
)

// Identities of the built-in inspectors.
const (
	LanguageID      inspector.Identity = "language"
	JavaPackageID   inspector.Identity = "java-package"
	ImportsID       inspector.Identity = "imports"
	FrameworkID     inspector.Identity = "framework"
	ComplexityID    inspector.Identity = "complexity"
	ImportLinkerID  inspector.Identity = "import-linker"
	CouplingID      inspector.Identity = "coupling"
	CentralityID    inspector.Identity = "centrality"
	ClassNamingID   inspector.Identity = "class-naming"
	PackageRollupID inspector.Identity = "package-rollup"
	MigrationID     inspector.Identity = "migration"
)

// Tags written by the built-in inspectors.
const (
	TagSourceCode         = "source.code"
	TagJavaPackaged       = "java.packaged"
	TagImportsScanned     = "imports.scanned"
	TagComplexityMeasured = "complexity.measured"
	TagComplexityHigh     = "complexity.high"
	TagImportsLinked      = "imports.linked"
	TagCouplingMeasured   = "coupling.measured"
	TagCouplingHub        = "coupling.hub"
	TagCentral            = "graph.central"
	TagClassNamed         = "class.named"
	TagClassTest          = "class.test"
	TagClassInterfaceLike = "class.interfaceLike"
	TagPackageRolledUp    = "package.rolledUp"
	TagMigrationCandidate = "migration.candidate"
)

// Property and metric keys written by the built-in inspectors.
const (
	PropLanguage      = "file.language"
	PropJavaPackage   = "java.packageName"
	PropImports       = "imports"
	PropFrameworks    = "frameworks"
	PropClassSimple   = "class.simpleName"
	PropPkgLanguages  = "package.languages"
	PropMigrationCat  = "migration.category"
	MetricImports     = "imports.count"
	MetricResolved    = "imports.resolved"
	MetricFunctions   = "complexity.functions"
	MetricComplexMax  = "complexity.max"
	MetricComplexSum  = "complexity.total"
	MetricComplexAvg  = "complexity.average"
	MetricCognitive   = "complexity.cognitiveMax"
	MetricFanIn       = "coupling.fanIn"
	MetricFanOut      = "coupling.fanOut"
	MetricInstability = "coupling.instability"
	MetricCentrality  = "graph.centrality"
	MetricPkgFiles    = "package.files"
	MetricPkgImports  = "package.imports"
	MetricPkgFanIn    = "package.fanIn"
	MetricPkgFanOut   = "package.fanOut"
)

// Options tunes the built-in inspectors.
type Options struct {
	ComplexityThreshold int
	HubFanIn            int
	CentralityTopK      int
	Disabled            []string
}

// OptionsFromConfig maps the inspectors configuration section.
func OptionsFromConfig(cfg config.InspectorsConfig) Options {
	return Options{
		ComplexityThreshold: cfg.ComplexityThreshold,
		HubFanIn:            cfg.HubFanIn,
		CentralityTopK:      cfg.CentralityTopK,
		Disabled:            cfg.Disabled,
	}
}

func (o Options) withDefaults() Options {
	if o.ComplexityThreshold <= 0 {
		o.ComplexityThreshold = 10
	}
	if o.HubFanIn <= 0 {
		o.HubFanIn = 5
	}
	if o.CentralityTopK <= 0 {
		o.CentralityTopK = 10
	}
	return o
}

// Builtins returns the built-in inspectors in registration order, minus the disabled
// ones. The complexity inspector is only registered when tree-sitter is compiled in.
func Builtins(opts Options, logger *slog.Logger) []inspector.Inspector {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	opts = opts.withDefaults()

	all := []inspector.Inspector{
		NewLanguage(),
		NewJavaPackage(),
		NewImports(),
		NewFramework(),
	}
	if complexity.Available() {
		all = append(all, NewComplexity(opts.ComplexityThreshold))
	} else {
		logger.Debug("complexity inspector unavailable", "reason", "built without cgo")
	}
	all = append(all,
		NewImportLinker(),
		NewCoupling(opts.HubFanIn),
		NewCentrality(opts.CentralityTopK),
		NewClassNaming(),
		NewPackageRollup(),
		NewMigration(opts.ComplexityThreshold, opts.HubFanIn),
	)

	disabled := make(map[string]bool, len(opts.Disabled))
	for _, id := range opts.Disabled {
		disabled[id] = true
	}
	out := make([]inspector.Inspector, 0, len(all))
	for _, insp := range all {
		if disabled[string(insp.Identity())] {
			logger.Debug("inspector disabled", "inspector", insp.Identity())
			continue
		}
		out = append(out, insp)
	}
	return out
}

// readSource returns the contents of a file node.
func readSource(n *graph.Node) ([]byte, error) {
	p, ok := n.StringProperty(discovery.PropAbsPath)
	if !ok {
		return nil, os.ErrNotExist
	}
	return os.ReadFile(p)
}

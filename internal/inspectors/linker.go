package inspectors

import (
	"context"
	"path"
	"sort"
	"strings"

	"archscan/internal/discovery"
	"archscan/internal/graph"
	"archscan/internal/inspector"
)

// ImportLinker turns the recorded imports of each file into imports edges between
// file nodes. Imports of code outside the tree are left unresolved.
type ImportLinker struct {
	inspector.Base
}

// NewImportLinker creates the global import-linker inspector. It runs after imports.
func NewImportLinker() *ImportLinker {
	return &ImportLinker{Base: inspector.Base{
		ID:   ImportLinkerID,
		Type: graph.NodeFile,
		Desc: inspector.Declare(nil, []inspector.Identity{ImportsID}, []string{TagImportsLinked}).Global(),
	}}
}

// InspectAll implements inspector.GlobalInspector.
func (l *ImportLinker) InspectAll(ctx context.Context, scope *inspector.Scope) error {
	idx := newFileIndex(scope.Snapshot(), scope.Nodes())
	for _, n := range scope.Eligible() {
		if err := ctx.Err(); err != nil {
			return err
		}
		d := scope.Decorate(n)
		lang, _ := n.StringProperty(PropLanguage)

		targets := idx.resolveAll(n.ID(), lang, n.StringsProperty(PropImports))
		for _, target := range targets {
			if err := d.AddEdge(target, graph.EdgeImports); err != nil {
				d.ReportError(err)
			}
		}
		d.SetMetric(MetricResolved, float64(len(targets)), graph.Overwrite)
		d.EnableTag(TagImportsLinked)
	}
	return nil
}

var relativeSuffixes = []string{"", ".ts", ".tsx", ".js", ".jsx", ".mjs", ".dart", "/index.ts", "/index.tsx", "/index.js"}

type fileIndex struct {
	snap  graph.Snapshot
	files map[string]bool
	// dirs maps a directory to its files, grouped by language.
	dirs     map[string]map[string][]string
	dirNames []string
}

func newFileIndex(snap graph.Snapshot, files []*graph.Node) *fileIndex {
	idx := &fileIndex{
		snap:  snap,
		files: make(map[string]bool, len(files)),
		dirs:  make(map[string]map[string][]string),
	}
	for _, n := range files {
		idx.files[n.ID()] = true
		lang, ok := n.StringProperty(PropLanguage)
		if !ok {
			continue
		}
		dir := path.Dir(n.ID())
		if idx.dirs[dir] == nil {
			idx.dirs[dir] = make(map[string][]string)
			idx.dirNames = append(idx.dirNames, dir)
		}
		idx.dirs[dir][lang] = append(idx.dirs[dir][lang], n.ID())
	}
	// Longest directory first so the most specific suffix match wins.
	sort.Slice(idx.dirNames, func(i, j int) bool {
		if len(idx.dirNames[i]) != len(idx.dirNames[j]) {
			return len(idx.dirNames[i]) > len(idx.dirNames[j])
		}
		return idx.dirNames[i] < idx.dirNames[j]
	})
	return idx
}

// resolveAll returns the sorted, distinct file ids the imports of from refer to.
func (idx *fileIndex) resolveAll(from, lang string, imports []string) []string {
	seen := make(map[string]bool)
	for _, imp := range imports {
		for _, target := range idx.resolve(from, lang, imp) {
			if target != from {
				seen[target] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (idx *fileIndex) resolve(from, lang, imp string) []string {
	if strings.HasPrefix(imp, "./") || strings.HasPrefix(imp, "../") {
		base := path.Join(path.Dir(from), imp)
		for _, suffix := range relativeSuffixes {
			if idx.files[base+suffix] {
				return []string{base + suffix}
			}
		}
		return nil
	}

	switch lang {
	case "java", "kotlin":
		return idx.resolveJVM(imp)
	case "go":
		return idx.resolveGo(imp)
	case "python":
		return idx.resolvePython(from, imp)
	}
	return nil
}

func (idx *fileIndex) resolveJVM(imp string) []string {
	if pkg, ok := strings.CutSuffix(imp, ".*"); ok {
		var out []string
		for _, c := range idx.snap.Nodes(graph.NodeClass) {
			if p, _ := c.StringProperty(discovery.PropClassPackage); p == pkg {
				out = append(out, idx.declaringFiles(c.ID())...)
			}
		}
		return out
	}
	// Static imports name a member; fall back to the enclosing class.
	for name := imp; name != ""; {
		if _, ok := idx.snap.Node(discovery.ClassID(name)); ok {
			return idx.declaringFiles(discovery.ClassID(name))
		}
		i := strings.LastIndex(name, ".")
		if i < 0 {
			break
		}
		name = name[:i]
	}
	return nil
}

func (idx *fileIndex) declaringFiles(classID string) []string {
	var out []string
	for _, e := range idx.snap.InEdges(classID, graph.EdgeDeclares) {
		out = append(out, e.Source)
	}
	return out
}

func (idx *fileIndex) resolveGo(imp string) []string {
	for _, dir := range idx.dirNames {
		if dir == "." {
			continue
		}
		if imp == dir || strings.HasSuffix(imp, "/"+dir) {
			var out []string
			for _, f := range idx.dirs[dir]["go"] {
				if !strings.HasSuffix(f, "_test.go") {
					out = append(out, f)
				}
			}
			return out
		}
	}
	return nil
}

func (idx *fileIndex) resolvePython(from, imp string) []string {
	rel := strings.ReplaceAll(strings.TrimLeft(imp, "."), ".", "/")
	if rel == "" {
		return nil
	}
	bases := []string{rel}
	if strings.HasPrefix(imp, ".") {
		bases = []string{path.Join(path.Dir(from), rel)}
	} else if dir := path.Dir(from); dir != "." {
		bases = append(bases, path.Join(dir, rel))
	}
	for _, base := range bases {
		for _, candidate := range []string{base + ".py", base + "/__init__.py"} {
			if idx.files[candidate] {
				return []string{candidate}
			}
		}
	}
	return nil
}

var _ inspector.GlobalInspector = (*ImportLinker)(nil)

// Package discovery builds the initial graph from a source tree: one node per file, one
// per directory, and class nodes found in JVM sources or a SCIP index.
package discovery

import (
	"bufio"
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"archscan/internal/config"
	scanerrors "archscan/internal/errors"
	"archscan/internal/graph"
	"archscan/internal/paths"
	"archscan/internal/slogutil"
)

// Property keys seeded at discovery time.
const (
	PropPath      = "file.path"
	PropAbsPath   = "file.absPath"
	PropExtension = "file.extension"
	PropSize      = "file.size"

	PropPackagePath = "package.path"

	PropClassKind    = "class.kind"
	PropClassFile    = "class.file"
	PropClassPackage = "class.package"
	PropClassSource  = "class.source"
)

// PackagePrefix is prepended to directory paths to form package node ids.
const PackagePrefix = "pkg:"

// ClassPrefix is prepended to fully qualified class names to form class node ids.
const ClassPrefix = "class:"

// PackageID returns the node id of the package for a slash-separated directory.
func PackageID(dir string) string { return PackagePrefix + dir }

// ClassID returns the node id of a fully qualified class name.
func ClassID(fqcn string) string { return ClassPrefix + fqcn }

// Options controls which files become nodes.
type Options struct {
	// Ignore holds glob patterns matched against every path component and against the
	// full slash-separated relative path.
	Ignore []string
	// MaxFileSizeBytes skips larger files; zero disables the limit.
	MaxFileSizeBytes int64
	// ScipIndexPath is resolved against the root; empty disables SCIP loading.
	ScipIndexPath string
}

// OptionsFromConfig maps the discovery configuration section.
func OptionsFromConfig(cfg config.DiscoveryConfig) Options {
	return Options{
		Ignore:           cfg.Ignore,
		MaxFileSizeBytes: cfg.MaxFileSizeBytes,
		ScipIndexPath:    cfg.ScipIndexPath,
	}
}

// Stats summarizes one scan.
type Stats struct {
	Files       int `json:"files"`
	Packages    int `json:"packages"`
	Classes     int `json:"classes"`
	ScipClasses int `json:"scipClasses"`
	Skipped     int `json:"skipped"`
}

// Scanner walks a source tree into a graph.
type Scanner struct {
	opts   Options
	logger *slog.Logger
	stats  Stats
}

// NewScanner creates a scanner. A nil logger discards output.
func NewScanner(opts Options, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	return &Scanner{opts: opts, logger: logger}
}

// Stats returns the counters of the last Scan.
func (s *Scanner) Stats() Stats { return s.stats }

var (
	jvmPackagePattern = regexp.MustCompile(`^\s*package\s+([\w.]+)`)
	jvmTypePattern    = regexp.MustCompile(`^\s*(?:(?:public|private|protected|abstract|final|static|sealed|data|open|internal|enum|annotation|inner|value)\s+)*(class|interface|enum|record|object)\s+([A-Za-z_]\w*)`)
)

type fileEntry struct {
	rel  string
	abs  string
	size int64
}

// Scan walks root and returns the discovered graph. Nodes are registered in lexical
// path order so that repeated scans of the same tree produce identical graphs.
func (s *Scanner) Scan(ctx context.Context, root string) (*graph.Graph, error) {
	s.stats = Stats{}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, scanerrors.Wrap(scanerrors.InternalError, "resolve root", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, scanerrors.Wrap(scanerrors.InternalError, "stat root", err)
	}
	if !info.IsDir() {
		return nil, scanerrors.Newf(scanerrors.ConfigInvalid, "%s is not a directory", abs)
	}

	files, err := s.walk(ctx, abs)
	if err != nil {
		return nil, err
	}

	g := graph.New()
	if err := s.addFiles(g, files); err != nil {
		return nil, err
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if isJVMSource(f.rel) {
			s.addJVMClasses(g, f)
		}
	}

	if s.opts.ScipIndexPath != "" {
		indexPath := paths.Resolve(abs, s.opts.ScipIndexPath)
		if _, err := os.Stat(indexPath); err == nil {
			index, err := LoadIndex(indexPath)
			if err != nil {
				s.logger.Warn("skipping SCIP index", "path", indexPath, "error", err)
			} else {
				s.stats.ScipClasses = addSCIPClasses(g, index, s.logger)
				s.stats.Classes += s.stats.ScipClasses
			}
		}
	}

	s.logger.Info("discovery complete",
		"root", abs,
		"files", s.stats.Files,
		"packages", s.stats.Packages,
		"classes", s.stats.Classes,
		"skipped", s.stats.Skipped,
	)
	return g, nil
}

func (s *Scanner) walk(ctx context.Context, root string) ([]fileEntry, error) {
	var files []fileEntry
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Debug("walk error", "path", p, "error", err)
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if s.ignored(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			s.stats.Skipped++
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if s.opts.MaxFileSizeBytes > 0 && info.Size() > s.opts.MaxFileSizeBytes {
			s.logger.Debug("skipping file: too large", "file", rel, "size", info.Size())
			s.stats.Skipped++
			return nil
		}
		files = append(files, fileEntry{rel: rel, abs: p, size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].rel < files[j].rel })
	return files, nil
}

func (s *Scanner) ignored(rel string) bool {
	for _, pattern := range s.opts.Ignore {
		if ok, _ := path.Match(pattern, rel); ok {
			return true
		}
		for _, part := range strings.Split(rel, "/") {
			if ok, _ := path.Match(pattern, part); ok {
				return true
			}
		}
	}
	return false
}

func (s *Scanner) addFiles(g *graph.Graph, files []fileEntry) error {
	for _, f := range files {
		_, err := g.AddNode(graph.NodeSpec{
			ID:   f.rel,
			Type: graph.NodeFile,
			Name: path.Base(f.rel),
			Properties: map[string]any{
				PropPath:      f.rel,
				PropAbsPath:   f.abs,
				PropExtension: strings.ToLower(path.Ext(f.rel)),
				PropSize:      f.size,
			},
		})
		if err != nil {
			return err
		}
		s.stats.Files++
	}

	// Packages are registered after files so that file nodes keep the leading arena slots.
	dirs := make(map[string]bool)
	var order []string
	for _, f := range files {
		dir := path.Dir(f.rel)
		if !dirs[dir] {
			dirs[dir] = true
			order = append(order, dir)
		}
	}
	sort.Strings(order)
	for _, dir := range order {
		name := path.Base(dir)
		if dir == "." {
			name = "(root)"
		}
		if _, err := g.AddNode(graph.NodeSpec{
			ID:         PackageID(dir),
			Type:       graph.NodePackage,
			Name:       name,
			Properties: map[string]any{PropPackagePath: dir},
		}); err != nil {
			return err
		}
		s.stats.Packages++
	}
	for _, f := range files {
		if _, err := g.AddEdge(PackageID(path.Dir(f.rel)), f.rel, graph.EdgeContains); err != nil {
			return err
		}
	}
	return nil
}

func isJVMSource(rel string) bool {
	switch strings.ToLower(path.Ext(rel)) {
	case ".java", ".kt", ".kts":
		return true
	}
	return false
}

// addJVMClasses declares the types found in a Java or Kotlin source. Read failures and
// duplicate declarations are logged and skipped.
func (s *Scanner) addJVMClasses(g *graph.Graph, f fileEntry) {
	file, err := os.Open(f.abs)
	if err != nil {
		s.logger.Debug("cannot read source", "file", f.rel, "error", err)
		return
	}
	defer func() { _ = file.Close() }()

	var pkg string
	sc := bufio.NewScanner(file)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if pkg == "" {
			if m := jvmPackagePattern.FindStringSubmatch(line); m != nil {
				pkg = m[1]
				continue
			}
		}
		m := jvmTypePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		fqcn := m[2]
		if pkg != "" {
			fqcn = pkg + "." + m[2]
		}
		if declareClass(g, fqcn, m[2], m[1], pkg, f.rel, "source", s.logger) {
			s.stats.Classes++
		}
	}
	if err := sc.Err(); err != nil {
		s.logger.Debug("source scan failed", "file", f.rel, "error", err)
	}
}

func declareClass(g *graph.Graph, fqcn, simple, kind, pkg, file, source string, logger *slog.Logger) bool {
	id := ClassID(fqcn)
	if _, exists := g.Node(id); exists {
		logger.Debug("class already declared", "class", fqcn, "file", file)
		return false
	}
	props := map[string]any{
		PropClassKind:    kind,
		PropClassPackage: pkg,
		PropClassSource:  source,
	}
	if file != "" {
		props[PropClassFile] = file
	}
	if _, err := g.AddNode(graph.NodeSpec{ID: id, Type: graph.NodeClass, Name: simple, Properties: props}); err != nil {
		logger.Debug("cannot add class", "class", fqcn, "error", err)
		return false
	}
	if file != "" {
		if _, ok := g.Node(file); ok {
			_, _ = g.AddEdge(file, id, graph.EdgeDeclares)
		}
	}
	return true
}

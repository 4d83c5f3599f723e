package inspectors

import (
	"bufio"
	"bytes"
	"context"
	"regexp"
	"sort"
	"strings"

	"archscan/internal/graph"
	"archscan/internal/inspector"
)

var (
	jsImportPatterns = []*regexp.Regexp{
		regexp.MustCompile(`import\s+.*?from\s+['"]([^'"]+)['"]`),
		regexp.MustCompile(`export\s+.*?from\s+['"]([^'"]+)['"]`),
		regexp.MustCompile(`require\s*\(\s*['"]([^'"]+)['"]\s*\)`),
		regexp.MustCompile(`import\s*\(\s*['"]([^'"]+)['"]\s*\)`),
		regexp.MustCompile(`^\s*import\s+['"]([^'"]+)['"]`),
	}

	importPatterns = map[string][]*regexp.Regexp{
		"typescript": jsImportPatterns,
		"javascript": jsImportPatterns,
		"java": {
			regexp.MustCompile(`^\s*import\s+(?:static\s+)?([\w.*]+)\s*;`),
		},
		"kotlin": {
			regexp.MustCompile(`^\s*import\s+([\w.*]+)`),
		},
		"python": {
			regexp.MustCompile(`^\s*from\s+([\w.]+)\s+import`),
			regexp.MustCompile(`^\s*import\s+([\w.]+)`),
		},
		"rust": {
			regexp.MustCompile(`^\s*use\s+([^;{]+)`),
			regexp.MustCompile(`^\s*extern\s+crate\s+([^;]+)`),
		},
		"dart": {
			regexp.MustCompile(`^\s*(?:import|export)\s+['"]([^'"]+)['"]`),
		},
	}

	goImportSingle = regexp.MustCompile(`^\s*import\s+(?:[\w.]+\s+)?"([^"]+)"`)
	goImportOpen   = regexp.MustCompile(`^\s*import\s*\(`)
	goImportLine   = regexp.MustCompile(`^\s*(?:[\w.]+\s+)?"([^"]+)"`)
)

// ScanImports extracts the imports of a source in declaration order, without duplicates.
func ScanImports(lang string, src []byte) ([]string, error) {
	var found []string
	seen := make(map[string]bool)
	add := func(imp string) {
		imp = strings.TrimSpace(imp)
		if imp != "" && !seen[imp] {
			seen[imp] = true
			found = append(found, imp)
		}
	}

	sc := bufio.NewScanner(bytes.NewReader(src))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if lang == "go" {
		inBlock := false
		for sc.Scan() {
			line := sc.Text()
			switch {
			case inBlock:
				if strings.HasPrefix(strings.TrimSpace(line), ")") {
					inBlock = false
				} else if m := goImportLine.FindStringSubmatch(line); m != nil {
					add(m[1])
				}
			case goImportOpen.MatchString(line):
				inBlock = true
			default:
				if m := goImportSingle.FindStringSubmatch(line); m != nil {
					add(m[1])
				}
			}
		}
		return found, sc.Err()
	}

	patterns := importPatterns[lang]
	for sc.Scan() {
		line := sc.Text()
		for _, re := range patterns {
			for _, m := range re.FindAllStringSubmatch(line, -1) {
				if len(m) > 1 {
					add(m[1])
				}
			}
		}
	}
	return found, sc.Err()
}

// Imports records the imports of every source file.
type Imports struct {
	inspector.Base
}

// NewImports creates the imports inspector. It requires the source.code tag.
func NewImports() *Imports {
	return &Imports{Base: inspector.Base{
		ID:   ImportsID,
		Type: graph.NodeFile,
		Desc: inspector.Declare([]string{TagSourceCode}, nil, []string{TagImportsScanned}),
	}}
}

// Inspect implements inspector.NodeInspector.
func (i *Imports) Inspect(_ context.Context, n *graph.Node, d *graph.Decorator) error {
	lang, _ := n.StringProperty(PropLanguage)
	src, err := readSource(n)
	if err != nil {
		return err
	}
	imports, err := ScanImports(lang, src)
	if err != nil {
		return err
	}
	if imports == nil {
		imports = []string{}
	}
	if err := d.SetProperty(PropImports, imports); err != nil {
		return err
	}
	d.SetMetric(MetricImports, float64(len(imports)), graph.Overwrite)
	d.EnableTag(TagImportsScanned)
	return nil
}

// frameworks maps a framework name to the import prefixes that reveal it.
var frameworks = map[string][]string{
	"spring":    {"org.springframework"},
	"junit":     {"org.junit", "junit."},
	"jakartaee": {"javax.ejb", "jakarta.ejb", "javax.persistence", "jakarta.persistence", "javax.servlet", "jakarta.servlet"},
	"hibernate": {"org.hibernate"},
	"grpc":      {"io.grpc", "google.golang.org/grpc", "grpc"},
	"react":     {"react"},
	"express":   {"express"},
	"django":    {"django"},
	"flask":     {"flask"},
	"gin":       {"github.com/gin-gonic/gin"},
	"cobra":     {"github.com/spf13/cobra"},
}

// FrameworkTag returns the tag set for files using a framework.
func FrameworkTag(name string) string { return "framework." + name }

// DetectFrameworks returns the sorted frameworks revealed by imports.
func DetectFrameworks(imports []string) []string {
	var out []string
	for name, prefixes := range frameworks {
		if usesAny(imports, prefixes) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func usesAny(imports, prefixes []string) bool {
	for _, imp := range imports {
		for _, p := range prefixes {
			if strings.HasSuffix(p, ".") {
				if strings.HasPrefix(imp, p) {
					return true
				}
				continue
			}
			if imp == p || strings.HasPrefix(imp, p+".") || strings.HasPrefix(imp, p+"/") {
				return true
			}
		}
	}
	return false
}

// Framework tags files whose imports reveal a known framework.
type Framework struct {
	inspector.Base
}

// NewFramework creates the framework inspector. It runs after imports.
func NewFramework() *Framework {
	var produces []string
	for name := range frameworks {
		produces = append(produces, FrameworkTag(name))
	}
	sort.Strings(produces)
	return &Framework{Base: inspector.Base{
		ID:   FrameworkID,
		Type: graph.NodeFile,
		Desc: inspector.Declare(nil, []inspector.Identity{ImportsID}, produces),
	}}
}

// Supports accepts files with at least one import.
func (f *Framework) Supports(n *graph.Node) bool {
	return len(n.StringsProperty(PropImports)) > 0
}

// Inspect implements inspector.NodeInspector.
func (f *Framework) Inspect(_ context.Context, n *graph.Node, d *graph.Decorator) error {
	found := DetectFrameworks(n.StringsProperty(PropImports))
	if len(found) == 0 {
		return nil
	}
	if err := d.SetProperty(PropFrameworks, found); err != nil {
		return err
	}
	for _, name := range found {
		d.EnableTag(FrameworkTag(name))
	}
	return nil
}

var (
	_ inspector.NodeInspector = (*Imports)(nil)
	_ inspector.NodeInspector = (*Framework)(nil)
)

package inspectors

import (
	"bufio"
	"bytes"
	"context"
	"regexp"
	"sort"

	"archscan/internal/discovery"
	"archscan/internal/graph"
	"archscan/internal/inspector"
)

var languageByExt = map[string]string{
	".go":   "go",
	".java": "java",
	".kt":   "kotlin",
	".kts":  "kotlin",
	".ts":   "typescript",
	".tsx":  "typescript",
	".js":   "javascript",
	".jsx":  "javascript",
	".mjs":  "javascript",
	".cjs":  "javascript",
	".py":   "python",
	".pyx":  "python",
	".rs":   "rust",
	".dart": "dart",
}

// LanguageTag returns the tag set for files of a language.
func LanguageTag(lang string) string { return "lang." + lang }

func languageTags() []string {
	seen := make(map[string]bool)
	var tags []string
	for _, lang := range languageByExt {
		if !seen[lang] {
			seen[lang] = true
			tags = append(tags, LanguageTag(lang))
		}
	}
	sort.Strings(tags)
	return tags
}

func fileLanguage(n *graph.Node) (string, bool) {
	ext, _ := n.StringProperty(discovery.PropExtension)
	lang, ok := languageByExt[ext]
	return lang, ok
}

// Language tags source files with their language.
type Language struct {
	inspector.Base
}

// NewLanguage creates the language inspector. It has no dependencies.
func NewLanguage() *Language {
	produces := append([]string{TagSourceCode}, languageTags()...)
	return &Language{Base: inspector.Base{
		ID:   LanguageID,
		Type: graph.NodeFile,
		Desc: inspector.Declare(nil, nil, produces),
	}}
}

// Supports accepts files with a known source extension.
func (l *Language) Supports(n *graph.Node) bool {
	_, ok := fileLanguage(n)
	return ok
}

// Inspect implements inspector.NodeInspector.
func (l *Language) Inspect(_ context.Context, n *graph.Node, d *graph.Decorator) error {
	lang, _ := fileLanguage(n)
	if err := d.SetProperty(PropLanguage, lang); err != nil {
		return err
	}
	d.EnableTags(TagSourceCode, LanguageTag(lang))
	return nil
}

var javaPackagePattern = regexp.MustCompile(`^\s*package\s+([\w.]+)\s*;`)

// JavaPackage records the declared package of Java sources.
type JavaPackage struct {
	inspector.Base
}

// NewJavaPackage creates the java-package inspector. It requires the lang.java tag.
func NewJavaPackage() *JavaPackage {
	return &JavaPackage{Base: inspector.Base{
		ID:   JavaPackageID,
		Type: graph.NodeFile,
		Desc: inspector.Declare([]string{LanguageTag("java")}, nil, []string{TagJavaPackaged}),
	}}
}

// Inspect implements inspector.NodeInspector. Files in the default package get no tag.
func (j *JavaPackage) Inspect(_ context.Context, n *graph.Node, d *graph.Decorator) error {
	src, err := readSource(n)
	if err != nil {
		return err
	}
	sc := bufio.NewScanner(bytes.NewReader(src))
	for sc.Scan() {
		if m := javaPackagePattern.FindStringSubmatch(sc.Text()); m != nil {
			if err := d.SetProperty(PropJavaPackage, m[1]); err != nil {
				return err
			}
			d.EnableTag(TagJavaPackaged)
			return nil
		}
	}
	return sc.Err()
}

var (
	_ inspector.NodeInspector = (*Language)(nil)
	_ inspector.NodeInspector = (*JavaPackage)(nil)
)

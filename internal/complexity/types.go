// Package complexity computes per-function cyclomatic and cognitive complexity with
// tree-sitter. Without cgo the analyzer reports ErrNoCGO.
package complexity

import (
	"errors"
	"path/filepath"
	"strings"
)

// Language identifies a tree-sitter grammar.
type Language string

const (
	LangGo         Language = "go"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangTSX        Language = "tsx"
	LangPython     Language = "python"
	LangRust       Language = "rust"
	LangJava       Language = "java"
	LangKotlin     Language = "kotlin"
)

// ErrUnsupportedLanguage is returned for files no grammar covers.
var ErrUnsupportedLanguage = errors.New("no complexity grammar for file")

// Function is the complexity of one function, method or closure.
type Function struct {
	Name       string `json:"name"`
	StartLine  int    `json:"startLine"`
	EndLine    int    `json:"endLine"`
	Lines      int    `json:"lines"`
	Cyclomatic int    `json:"cyclomatic"`
	Cognitive  int    `json:"cognitive"`
}

// Result holds every function found in one file.
type Result struct {
	Path      string     `json:"path"`
	Language  Language   `json:"language"`
	Functions []Function `json:"functions"`
}

// Cyclomatic returns the cyclomatic value of each function in source order.
func (r *Result) Cyclomatic() []float64 {
	out := make([]float64, len(r.Functions))
	for i, f := range r.Functions {
		out[i] = float64(f.Cyclomatic)
	}
	return out
}

// Cognitive returns the cognitive value of each function in source order.
func (r *Result) Cognitive() []float64 {
	out := make([]float64, len(r.Functions))
	for i, f := range r.Functions {
		out[i] = float64(f.Cognitive)
	}
	return out
}

var extensions = map[string]Language{
	".go":   LangGo,
	".js":   LangJavaScript,
	".mjs":  LangJavaScript,
	".cjs":  LangJavaScript,
	".jsx":  LangJavaScript,
	".ts":   LangTypeScript,
	".mts":  LangTypeScript,
	".cts":  LangTypeScript,
	".tsx":  LangTSX,
	".py":   LangPython,
	".pyw":  LangPython,
	".rs":   LangRust,
	".java": LangJava,
	".kt":   LangKotlin,
	".kts":  LangKotlin,
}

// LanguageFromExtension maps an extension such as ".java" to its grammar.
func LanguageFromExtension(ext string) (Language, bool) {
	lang, ok := extensions[strings.ToLower(ext)]
	return lang, ok
}

// LanguageForPath maps a file path to its grammar.
func LanguageForPath(path string) (Language, bool) {
	return LanguageFromExtension(filepath.Ext(path))
}

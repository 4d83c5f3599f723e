//go:build cgo

package complexity

import (
	"context"
	"fmt"
	"os"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/kotlin"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

func sitterLanguage(lang Language) *sitter.Language {
	switch lang {
	case LangGo:
		return golang.GetLanguage()
	case LangJavaScript:
		return javascript.GetLanguage()
	case LangTypeScript:
		return typescript.GetLanguage()
	case LangTSX:
		return tsx.GetLanguage()
	case LangPython:
		return python.GetLanguage()
	case LangRust:
		return rust.GetLanguage()
	case LangJava:
		return java.GetLanguage()
	case LangKotlin:
		return kotlin.GetLanguage()
	}
	return nil
}

// Analyzer is safe for concurrent use; tree-sitter parsers are pooled.
type Analyzer struct {
	parsers sync.Pool
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{parsers: sync.Pool{New: func() any { return sitter.NewParser() }}}
}

// Available reports whether tree-sitter is compiled in.
func Available() bool { return true }

// AnalyzeFile reads path and analyzes it.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string) (*Result, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return a.Analyze(ctx, path, source)
}

// Analyze measures every function in source. The language comes from path's extension.
func (a *Analyzer) Analyze(ctx context.Context, path string, source []byte) (*Result, error) {
	lang, ok := LanguageForPath(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, path)
	}
	sets, _ := compiled(lang)

	parser := a.parsers.Get().(*sitter.Parser)
	defer a.parsers.Put(parser)
	parser.SetLanguage(sitterLanguage(lang))

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	defer tree.Close()

	res := &Result{Path: path, Language: lang, Functions: []Function{}}
	walk(tree.RootNode(), func(n *sitter.Node) {
		if sets.functions[n.Type()] {
			res.Functions = append(res.Functions, measure(n, source, lang, sets))
		}
	})
	return res, nil
}

func walk(n *sitter.Node, visit func(*sitter.Node)) {
	if n == nil {
		return
	}
	visit(n)
	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), visit)
	}
}

func measure(fn *sitter.Node, source []byte, lang Language, sets nodeSets) Function {
	start := int(fn.StartPoint().Row) + 1
	end := int(fn.EndPoint().Row) + 1

	cyclomatic := 1
	walk(fn, func(n *sitter.Node) {
		if countsAsDecision(n, source, sets) {
			cyclomatic++
		}
	})

	return Function{
		Name:       functionName(fn, source, lang),
		StartLine:  start,
		EndLine:    end,
		Lines:      end - start + 1,
		Cyclomatic: cyclomatic,
		Cognitive:  cognitive(fn, source, sets, 0),
	}
}

func cognitive(n *sitter.Node, source []byte, sets nodeSets, depth int) int {
	total := 0
	if countsAsDecision(n, source, sets) {
		total += 1 + depth
	}
	if sets.nesting[n.Type()] {
		depth++
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if child := n.Child(i); child != nil {
			total += cognitive(child, source, sets, depth)
		}
	}
	return total
}

func countsAsDecision(n *sitter.Node, source []byte, sets nodeSets) bool {
	t := n.Type()
	if !sets.decisions[t] {
		return false
	}
	if t != "binary_expression" && t != "boolean_operator" {
		return true
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		if sets.wordOperators {
			if ct := child.Type(); ct == "and" || ct == "or" {
				return true
			}
			continue
		}
		if op := child.Content(source); op == "&&" || op == "||" {
			return true
		}
	}
	return false
}

func functionName(fn *sitter.Node, source []byte, lang Language) string {
	name := fn.ChildByFieldName("name")
	if name == nil {
		want := "identifier"
		if lang == LangKotlin {
			want = "simple_identifier"
		}
		for i := 0; i < int(fn.ChildCount()); i++ {
			if child := fn.Child(i); child != nil && child.Type() == want {
				name = child
				break
			}
		}
	}
	if name != nil {
		return name.Content(source)
	}
	if anonymousKinds[fn.Type()] {
		return "<anonymous>"
	}
	return "<unknown>"
}

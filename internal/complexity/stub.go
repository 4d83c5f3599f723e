//go:build !cgo

package complexity

import (
	"context"
	"errors"
)

// ErrNoCGO is returned when the binary was built without cgo.
var ErrNoCGO = errors.New("complexity analysis requires cgo (tree-sitter)")

// Analyzer is unavailable without cgo.
type Analyzer struct{}

// NewAnalyzer returns nil without cgo.
func NewAnalyzer() *Analyzer { return nil }

// Available reports whether tree-sitter is compiled in.
func Available() bool { return false }

// AnalyzeFile always fails without cgo.
func (a *Analyzer) AnalyzeFile(context.Context, string) (*Result, error) {
	return nil, ErrNoCGO
}

// Analyze always fails without cgo.
func (a *Analyzer) Analyze(context.Context, string, []byte) (*Result, error) {
	return nil, ErrNoCGO
}

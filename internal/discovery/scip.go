package discovery

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	scippb "github.com/sourcegraph/scip/bindings/go/scip"
	"google.golang.org/protobuf/proto"

	scanerrors "archscan/internal/errors"
	"archscan/internal/graph"
)

// LoadIndex reads and decodes a SCIP index file.
func LoadIndex(path string) (*scippb.Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, scanerrors.NewScanError(scanerrors.InternalError,
			fmt.Sprintf("failed to read SCIP index from %s", path), err, nil)
	}
	var index scippb.Index
	if err := proto.Unmarshal(data, &index); err != nil {
		return nil, scanerrors.NewScanError(scanerrors.InternalError,
			fmt.Sprintf("failed to parse SCIP index from %s", path), err,
			[]scanerrors.FixAction{{
				Type:        scanerrors.RunCommand,
				Command:     "scip print --index=" + path,
				Safe:        true,
				Description: "Verify SCIP index is valid",
			}})
	}
	return &index, nil
}

// TypeSymbol is a type declared in a SCIP document.
type TypeSymbol struct {
	FQCN    string
	Simple  string
	Package string
}

// ParseTypeSymbol extracts the qualified name of a SCIP type symbol such as
// "scip-java maven com.acme 1.0 com/acme/Orders#". Locals and non-type descriptors
// are rejected.
func ParseTypeSymbol(symbol string) (TypeSymbol, bool) {
	if strings.HasPrefix(symbol, "local ") || !strings.HasSuffix(symbol, "#") {
		return TypeSymbol{}, false
	}
	fields := strings.SplitN(symbol, " ", 5)
	if len(fields) != 5 {
		return TypeSymbol{}, false
	}
	desc := strings.TrimSuffix(fields[4], "#")
	if desc == "" || strings.ContainsAny(desc, "()[]:") {
		return TypeSymbol{}, false
	}

	var pkg string
	if i := strings.LastIndex(desc, "/"); i >= 0 {
		pkg = strings.ReplaceAll(strings.ReplaceAll(desc[:i], "`", ""), "/", ".")
		desc = desc[i+1:]
	}
	parts := strings.Split(desc, "#")
	simple := parts[len(parts)-1]
	if simple == "" {
		return TypeSymbol{}, false
	}
	fqcn := strings.Join(parts, ".")
	if pkg != "" {
		fqcn = pkg + "." + fqcn
	}
	return TypeSymbol{FQCN: fqcn, Simple: strings.Trim(simple, "`"), Package: pkg}, true
}

// addSCIPClasses declares one class node per type symbol defined in the index and
// returns how many were new.
func addSCIPClasses(g *graph.Graph, index *scippb.Index, logger *slog.Logger) int {
	added := 0
	for _, doc := range index.Documents {
		for _, sym := range doc.Symbols {
			ts, ok := ParseTypeSymbol(sym.Symbol)
			if !ok {
				continue
			}
			if declareClass(g, ts.FQCN, ts.Simple, "class", ts.Package, doc.RelativePath, "scip", logger) {
				added++
			}
		}
	}
	logger.Debug("loaded SCIP classes", "documents", len(index.Documents), "classes", added)
	return added
}

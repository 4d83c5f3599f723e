package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
)

// FormatResponse formats a response according to the specified format
func FormatResponse(resp interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatHuman:
		return formatHuman(resp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// formatJSON formats the response as JSON
func formatJSON(resp interface{}) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

// formatHuman formats the response in human-readable format
func formatHuman(resp interface{}) (string, error) {
	var buf bytes.Buffer
	switch v := resp.(type) {
	case *AnalyzeResponseCLI:
		formatAnalyzeHuman(&buf, v)
	case *InspectorsResponseCLI:
		formatInspectorsHuman(&buf, v)
	case *RunsResponseCLI:
		formatRunsHuman(&buf, v)
	case *RunDetailResponseCLI:
		formatRunDetailHuman(&buf, v)
	default:
		// For unknown types, fall back to JSON
		return formatJSON(resp)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

var (
	headerColor = color.New(color.Bold, color.FgCyan)
	okColor     = color.New(color.FgGreen)
	warnColor   = color.New(color.FgYellow)
	errColor    = color.New(color.FgRed)
	dimColor    = color.New(color.FgHiBlack)
)

func formatAnalyzeHuman(w io.Writer, r *AnalyzeResponseCLI) {
	headerColor.Fprintf(w, "Analysis %s\n", r.RunID)
	fmt.Fprintf(w, "Root: %s\n", r.Root)
	fmt.Fprintf(w, "Discovered %d files, %d classes, %d packages", r.Discovery.Files, r.Discovery.Classes, r.Discovery.Packages)
	if r.Discovery.Skipped > 0 {
		dimColor.Fprintf(w, " (%d skipped)", r.Discovery.Skipped)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)

	table := newTable(w, "TYPE", "NODES", "PASSES", "INVOCATIONS", "STATUS")
	for _, t := range r.Types {
		status := okColor.Sprint("converged")
		if !t.Converged {
			status = warnColor.Sprintf("not converged (%d skipped)", t.Skipped)
		}
		table.addRow(t.Type.String(), fmt.Sprint(t.Nodes), fmt.Sprint(t.Passes),
			fmt.Sprint(t.NodeInvocations+t.GlobalInvocations), status)
	}
	table.render()

	if len(r.Tags) > 0 {
		fmt.Fprintln(w)
		headerColor.Fprintln(w, "Tags")
		for _, tc := range r.Tags {
			fmt.Fprintf(w, "  %-8s %-28s %d\n", tc.Type, tc.Tag, tc.Count)
		}
	}

	if len(r.Warnings) > 0 {
		fmt.Fprintln(w)
		for _, warn := range r.Warnings {
			warnColor.Fprintf(w, "warning: %s\n", warn.Message)
		}
	}
	if len(r.Errors) > 0 {
		fmt.Fprintln(w)
		errColor.Fprintf(w, "%d inspector errors\n", len(r.Errors))
		for i, e := range r.Errors {
			if i == maxHumanErrors {
				dimColor.Fprintf(w, "  ... %d more\n", len(r.Errors)-maxHumanErrors)
				break
			}
			fmt.Fprintf(w, "  %s\n", e.String())
		}
	}

	fmt.Fprintln(w)
	if r.Stored {
		dimColor.Fprintf(w, "Stored run in %s (%s)\n", r.StorePath, r.Duration)
	} else {
		dimColor.Fprintf(w, "Finished in %s\n", r.Duration)
	}
}

const maxHumanErrors = 20

func formatInspectorsHuman(w io.Writer, r *InspectorsResponseCLI) {
	table := newTable(w, "ORDER", "INSPECTOR", "TYPE", "KIND", "REQUIRES", "PRODUCES")
	for _, insp := range r.Inspectors {
		kind := "node"
		if insp.Global {
			kind = "global"
		}
		table.addRow(fmt.Sprint(insp.Order), insp.ID, insp.Type, kind,
			joinOrDash(insp.Requires), joinOrDash(insp.Produces))
	}
	table.render()
}

func formatRunsHuman(w io.Writer, r *RunsResponseCLI) {
	if len(r.Runs) == 0 {
		fmt.Fprintln(w, "No stored runs")
		return
	}
	table := newTable(w, "RUN", "STARTED", "NODES", "EDGES", "ERRORS", "STATUS")
	for _, run := range r.Runs {
		status := okColor.Sprint("converged")
		if !run.Converged {
			status = warnColor.Sprint("not converged")
		}
		table.addRow(run.RunID, run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			fmt.Sprint(run.Nodes), fmt.Sprint(run.Edges), fmt.Sprint(run.Errors), status)
	}
	table.render()
}

func formatRunDetailHuman(w io.Writer, r *RunDetailResponseCLI) {
	headerColor.Fprintf(w, "Run %s\n", r.Run.RunID)
	fmt.Fprintf(w, "Root: %s\n", r.Run.Root)
	fmt.Fprintf(w, "Started: %s  Finished: %s\n\n",
		r.Run.StartedAt.Local().Format("2006-01-02 15:04:05"),
		r.Run.FinishedAt.Local().Format("2006-01-02 15:04:05"))

	for _, n := range r.Nodes {
		okColor.Fprintf(w, "%s", n.ID)
		dimColor.Fprintf(w, " [%s]\n", n.Type)
		if len(n.Tags) > 0 {
			fmt.Fprintf(w, "  tags: %s\n", strings.Join(n.Tags, ", "))
		}
		for _, k := range sortedMetricKeys(n.Metrics) {
			fmt.Fprintf(w, "  %s = %g\n", k, n.Metrics[k])
		}
		for _, e := range n.Errors {
			errColor.Fprintf(w, "  error (%s): %s\n", e.Inspector, e.Message)
		}
	}
}

func sortedMetricKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ",")
}

// table renders left-aligned columns with a colored header. Cell widths ignore color
// escape sequences.
type table struct {
	w       io.Writer
	headers []string
	rows    [][]string
}

func newTable(w io.Writer, headers ...string) *table {
	return &table{w: w, headers: headers}
}

func (t *table) addRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *table) render() {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = len(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && visibleLen(cell) > widths[i] {
				widths[i] = visibleLen(cell)
			}
		}
	}

	for i, h := range t.headers {
		headerColor.Fprint(t.w, pad(h, widths[i]))
		if i < len(t.headers)-1 {
			fmt.Fprint(t.w, "  ")
		}
	}
	fmt.Fprintln(t.w)
	for _, row := range t.rows {
		for i, cell := range row {
			if i >= len(widths) {
				break
			}
			if i == len(row)-1 {
				fmt.Fprint(t.w, cell)
				break
			}
			fmt.Fprint(t.w, pad(cell, widths[i]), "  ")
		}
		fmt.Fprintln(t.w)
	}
}

func pad(s string, width int) string {
	if n := visibleLen(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

// visibleLen counts runes outside ANSI escape sequences.
func visibleLen(s string) int {
	n := 0
	inEscape := false
	for _, r := range s {
		switch {
		case inEscape:
			if r == 'm' {
				inEscape = false
			}
		case r == '\x1b':
			inEscape = true
		default:
			n++
		}
	}
	return n
}

package engine

import (
	"fmt"
	"sort"
	"sync"
	"time"

	scanerrors "archscan/internal/errors"
	"archscan/internal/graph"
	"archscan/internal/inspector"
)

// TypeSummary is the outcome of both phases for one node type.
type TypeSummary struct {
	Type           graph.NodeType `json:"type"`
	Nodes          int            `json:"nodes"`
	Passes         int            `json:"passes"`
	ChangingPasses int            `json:"changingPasses"`
	Converged      bool           `json:"converged"`
	// Skipped counts node/inspector pairs still due when the pass limit was hit.
	Skipped           int `json:"skipped"`
	GlobalInspectors  int `json:"globalInspectors"`
	NodeInvocations   int `json:"nodeInvocations"`
	GlobalInvocations int `json:"globalInvocations"`
}

// Warning is a run-level condition that did not stop the run.
type Warning struct {
	Code    scanerrors.ErrorCode `json:"code"`
	Type    graph.NodeType       `json:"type"`
	Message string               `json:"message"`
	Skipped int                  `json:"skipped,omitempty"`
}

// InvocationError is a failure scoped to one inspector and, outside the global phase,
// one node.
type InvocationError struct {
	Inspector inspector.Identity `json:"inspector"`
	NodeID    string             `json:"nodeId,omitempty"`
	Type      graph.NodeType     `json:"type"`
	Phase     Phase              `json:"phase"`
	Pass      int                `json:"pass"`
	Code      string             `json:"code"`
	Message   string             `json:"message"`
}

func (e InvocationError) String() string {
	if e.NodeID == "" {
		return fmt.Sprintf("%s (%s %s): %s", e.Inspector, e.Type, e.Phase, e.Message)
	}
	return fmt.Sprintf("%s on %s (pass %d): %s", e.Inspector, e.NodeID, e.Pass, e.Message)
}

// Report accumulates everything a run observed. Runtime failures land here instead of
// aborting the run.
type Report struct {
	RunID      string            `json:"runId"`
	StartedAt  time.Time         `json:"startedAt"`
	FinishedAt time.Time         `json:"finishedAt"`
	TypeOrder  []graph.NodeType  `json:"typeOrder"`
	Types      []TypeSummary     `json:"types"`
	Passes     []PassStats       `json:"passes"`
	Warnings   []Warning         `json:"warnings"`
	Errors     []InvocationError `json:"errors"`

	mu          sync.Mutex
	invocations map[inspector.Identity]int
}

func newReport(runID string, order []graph.NodeType, started time.Time) *Report {
	return &Report{
		RunID:       runID,
		StartedAt:   started,
		TypeOrder:   append([]graph.NodeType(nil), order...),
		invocations: make(map[inspector.Identity]int),
	}
}

func (r *Report) countInvocation(id inspector.Identity) {
	r.mu.Lock()
	r.invocations[id]++
	r.mu.Unlock()
}

func (r *Report) addError(e InvocationError) {
	r.mu.Lock()
	r.Errors = append(r.Errors, e)
	r.mu.Unlock()
}

func (r *Report) addWarning(w Warning) {
	r.mu.Lock()
	r.Warnings = append(r.Warnings, w)
	r.mu.Unlock()
}

// sortErrors orders errors found by parallel workers deterministically.
func (r *Report) sortErrors(from int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tail := r.Errors[from:]
	sort.SliceStable(tail, func(i, j int) bool {
		if tail[i].NodeID != tail[j].NodeID {
			return tail[i].NodeID < tail[j].NodeID
		}
		return tail[i].Inspector < tail[j].Inspector
	})
}

func (r *Report) errorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Errors)
}

// Invocations returns how often the inspector was invoked during the run. A global
// inspector counts one invocation per phase.
func (r *Report) Invocations(id inspector.Identity) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.invocations[id]
}

// InvocationCounts returns a copy of every inspector's invocation count.
func (r *Report) InvocationCounts() map[inspector.Identity]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[inspector.Identity]int, len(r.invocations))
	for k, v := range r.invocations {
		out[k] = v
	}
	return out
}

// Summary returns the outcome for node type t.
func (r *Report) Summary(t graph.NodeType) (TypeSummary, bool) {
	for _, s := range r.Types {
		if s.Type == t {
			return s, true
		}
	}
	return TypeSummary{}, false
}

// Converged reports whether every node type reached a fixed point.
func (r *Report) Converged() bool {
	for _, s := range r.Types {
		if !s.Converged {
			return false
		}
	}
	return true
}

// ErrorsFor returns the errors reported by one inspector.
func (r *Report) ErrorsFor(id inspector.Identity) []InvocationError {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []InvocationError
	for _, e := range r.Errors {
		if e.Inspector == id {
			out = append(out, e)
		}
	}
	return out
}

// Duration returns the wall time of the run.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

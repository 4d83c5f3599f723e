package engine

import (
	"fmt"
	"time"

	"archscan/internal/graph"
)

// Phase is a state of the engine's run state machine.
type Phase int

const (
	// Discovering is the state before any analysis; the graph is populated.
	Discovering Phase = iota
	// PerTypeConverging runs node inspectors of one type until a fixed point.
	PerTypeConverging
	// GlobalPhase runs the global inspectors of one type once each.
	GlobalPhase
	// Done is the terminal state.
	Done
)

func (p Phase) String() string {
	switch p {
	case Discovering:
		return "discovering"
	case PerTypeConverging:
		return "converging"
	case GlobalPhase:
		return "global"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// PassStats describes one converging pass or one global phase.
type PassStats struct {
	Type  graph.NodeType `json:"type"`
	Phase Phase          `json:"phase"`
	// Pass is 1-based for converging passes and 0 for the global phase.
	Pass        int           `json:"pass"`
	Nodes       int           `json:"nodes"`
	Invocations int           `json:"invocations"`
	Writes      int           `json:"writes"`
	Errors      int           `json:"errors"`
	Changed     bool          `json:"changed"`
	Duration    time.Duration `json:"duration"`
}

// Observer receives progress from a run. Calls are made from the goroutine driving
// Run, never concurrently.
type Observer interface {
	PhaseStarted(phase Phase, t graph.NodeType)
	PassCompleted(stats PassStats)
}

// ObserverFuncs adapts optional callbacks into an Observer.
type ObserverFuncs struct {
	OnPhase func(phase Phase, t graph.NodeType)
	OnPass  func(stats PassStats)
}

// PhaseStarted implements Observer.
func (o ObserverFuncs) PhaseStarted(phase Phase, t graph.NodeType) {
	if o.OnPhase != nil {
		o.OnPhase(phase, t)
	}
}

// PassCompleted implements Observer.
func (o ObserverFuncs) PassCompleted(stats PassStats) {
	if o.OnPass != nil {
		o.OnPass(stats)
	}
}

type nopObserver struct{}

func (nopObserver) PhaseStarted(Phase, graph.NodeType) {}
func (nopObserver) PassCompleted(PassStats)            {}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name written by MarshalText.
func (p *Phase) UnmarshalText(text []byte) error {
	for _, candidate := range []Phase{Discovering, PerTypeConverging, GlobalPhase, Done} {
		if candidate.String() == string(text) {
			*p = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}

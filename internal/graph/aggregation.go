package graph

import (
	"fmt"
	"strings"
)

// Aggregation selects how repeated SetMetric calls for one key combine.
type Aggregation int

const (
	// Overwrite keeps the last written value.
	Overwrite Aggregation = iota
	// Max keeps the largest value written.
	Max
	// Sum adds every written value.
	Sum
	// Average keeps the running mean of every written value.
	Average
)

func (a Aggregation) String() string {
	switch a {
	case Overwrite:
		return "overwrite"
	case Max:
		return "max"
	case Sum:
		return "sum"
	case Average:
		return "average"
	default:
		return fmt.Sprintf("Aggregation(%d)", int(a))
	}
}

// ParseAggregation converts a name ("overwrite", "max", "sum", "average"/"avg").
func ParseAggregation(s string) (Aggregation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "overwrite", "set":
		return Overwrite, nil
	case "max":
		return Max, nil
	case "sum":
		return Sum, nil
	case "average", "avg", "mean":
		return Average, nil
	}
	return Overwrite, fmt.Errorf("unknown aggregation %q", s)
}

// Accumulator is the running state persisted next to an aggregated metric.
type Accumulator struct {
	Mode  Aggregation `json:"mode"`
	Count int         `json:"count"`
	Sum   float64     `json:"sum"`
	Max   float64     `json:"max"`
}

// add folds v into the accumulator and returns the metric value it now implies.
func (a *Accumulator) add(v float64) float64 {
	if a.Count == 0 || v > a.Max {
		a.Max = v
	}
	a.Count++
	a.Sum += v

	switch a.Mode {
	case Max:
		return a.Max
	case Sum:
		return a.Sum
	case Average:
		return a.Sum / float64(a.Count)
	default:
		return v
	}
}

// Fold applies a sequence of writes with one aggregation and returns the final value.
// It is the pure form of what SetMetric does across calls.
func Fold(mode Aggregation, values ...float64) float64 {
	acc := &Accumulator{Mode: mode}
	var out float64
	for _, v := range values {
		out = acc.add(v)
	}
	return out
}

// Package splits validates and reduces intra-attempt checkpoint
// timestamps into per-phase durations.
package splits

import (
	"fmt"
	"sort"
)

// PhaseDefinition is an ordered, uniquely named phase of an attempt.
type PhaseDefinition struct {
	Name  string `json:"name"`
	Order int    `json:"order"`
}

// NormalizeDefinitions validates phase names for uniqueness, sorts by
// the declared order and reassigns strictly increasing order values
// starting at 1. The input slice is not modified.
func NormalizeDefinitions(defs []PhaseDefinition) ([]PhaseDefinition, error) {
	seen := make(map[string]struct{}, len(defs))
	for _, d := range defs {
		if d.Name == "" {
			return nil, ErrEmptyPhaseName
		}
		if _, dup := seen[d.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicatePhase, d.Name)
		}
		seen[d.Name] = struct{}{}
	}

	out := make([]PhaseDefinition, len(defs))
	copy(out, defs)
	sort.SliceStable(out, func(a, b int) bool { return out[a].Order < out[b].Order })
	for i := range out {
		out[i].Order = i + 1
	}
	return out, nil
}

// Mark is one recorded checkpoint: a phase name and its timestamp as a
// millisecond offset from the attempt start.
type Mark struct {
	Phase string `json:"phase"`
	TS    int64  `json:"ts"`
}

// Capture holds the checkpoints recorded for one attempt. At most one
// mark exists per phase; re-recording replaces in place.
type Capture struct {
	AttemptID string `json:"attempt_id"`
	Marks     []Mark `json:"marks"` // in record order
}

// NewCapture creates an empty capture for an attempt.
func NewCapture(attemptID string) *Capture {
	return &Capture{AttemptID: attemptID}
}

// Record appends or replaces the mark for a phase. A replacement only
// takes effect when the new timestamp is not older than the stored one;
// out-of-order late corrections are dropped silently. Returns whether
// the mark was recorded.
func (c *Capture) Record(phase string, ts int64) bool {
	for i, m := range c.Marks {
		if m.Phase != phase {
			continue
		}
		if ts < m.TS {
			return false
		}
		c.Marks[i].TS = ts
		return true
	}
	c.Marks = append(c.Marks, Mark{Phase: phase, TS: ts})
	return true
}

// lookup returns the recorded timestamp for a phase.
func (c *Capture) lookup(phase string) (int64, bool) {
	for _, m := range c.Marks {
		if m.Phase == phase {
			return m.TS, true
		}
	}
	return 0, false
}

// PhaseDuration is the reduced duration of one defined phase. A nil
// duration means the phase was not captured.
type PhaseDuration struct {
	Phase      string `json:"phase"`
	DurationMS *int64 `json:"duration_ms"`
}

// Reduce derives per-phase durations: a captured phase lasts until the
// next captured phase in definition order, or until totalMS when no
// later phase was captured. Phases absent from the capture get a nil
// duration.
func Reduce(defs []PhaseDefinition, c *Capture, totalMS int64) []PhaseDuration {
	out := make([]PhaseDuration, len(defs))
	for i, d := range defs {
		out[i] = PhaseDuration{Phase: d.Name}
		ts, ok := c.lookup(d.Name)
		if !ok {
			continue
		}
		end := totalMS
		for _, next := range defs[i+1:] {
			if nextTS, captured := c.lookup(next.Name); captured {
				end = nextTS
				break
			}
		}
		dur := end - ts
		out[i].DurationMS = &dur
	}
	return out
}

// Issue is a non-fatal validation finding for one capture entry.
type Issue struct {
	Phase  string `json:"phase"`
	Reason string `json:"reason"`
}

// Validation reasons.
const (
	ReasonUnknownPhase = "phase not in current definitions"
	ReasonOutOfOrder   = "recorded out of defined order"
	ReasonNonMonotonic = "timestamp decreased"
)

// Validate reports issues with a capture against the current phase
// definitions: unknown phases, phases recorded out of their defined
// order, and timestamps that decrease along the definition order.
// Issues never reject the capture; offending entries are simply
// reported.
func Validate(defs []PhaseDefinition, c *Capture) []Issue {
	var issues []Issue

	orderOf := make(map[string]int, len(defs))
	for _, d := range defs {
		orderOf[d.Name] = d.Order
	}

	prevOrder := 0
	for _, m := range c.Marks {
		order, known := orderOf[m.Phase]
		if !known {
			issues = append(issues, Issue{Phase: m.Phase, Reason: ReasonUnknownPhase})
			continue
		}
		if order < prevOrder {
			issues = append(issues, Issue{Phase: m.Phase, Reason: ReasonOutOfOrder})
		}
		prevOrder = order
	}

	// Reordered by definition order, timestamps must be non-decreasing.
	ordered := make([]Mark, 0, len(c.Marks))
	for _, m := range c.Marks {
		if _, known := orderOf[m.Phase]; known {
			ordered = append(ordered, m)
		}
	}
	sort.SliceStable(ordered, func(a, b int) bool {
		return orderOf[ordered[a].Phase] < orderOf[ordered[b].Phase]
	})
	for i := 1; i < len(ordered); i++ {
		if ordered[i].TS < ordered[i-1].TS {
			issues = append(issues, Issue{Phase: ordered[i].Phase, Reason: ReasonNonMonotonic})
		}
	}

	return issues
}

// Report bundles the reduced durations and validation issues for one
// attempt's capture.
type Report struct {
	AttemptID string          `json:"attempt_id"`
	Durations []PhaseDuration `json:"durations"`
	Issues    []Issue         `json:"issues,omitempty"`
}

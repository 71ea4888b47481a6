// Package timer implements the attempt timing state machine: raw clock
// readings plus discrete toggle events reduce to a single authoritative
// Result per attempt. Every transition is a no-op on an invalid
// precondition; input arrives from debounced hardware sources and a
// stray or duplicate event must never corrupt state.
package timer

import "github.com/okian/klepsydra/internal/domain/penalty"

// State is a closed enumeration of machine states.
type State uint8

const (
	// StateIdle is the initial state, no attempt in flight.
	StateIdle State = iota
	// StateInspection is the pre-solve countdown period.
	StateInspection
	// StateRunning is an actively timed solve.
	StateRunning
	// StateStopped holds a completed Result until the next start.
	StateStopped
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateInspection:
		return "inspection"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Machine converts toggle events and clock readings into Results.
// It is single-writer: callers must serialize access, the machine
// provides no internal locking.
type Machine struct {
	clock   Clock
	limitMS int64 // inspection limit; 0 disables inspection entirely

	state               State
	inspectionStartTS   int64
	inspectionElapsedMS int64
	inspectionPenalty   penalty.Penalty
	runStartTS          int64
	result              *Result
}

// Option applies a configuration option to the Machine.
type Option func(*Machine)

// WithInspectionLimit sets the inspection duration in milliseconds.
// A non-positive limit disables the inspection state.
func WithInspectionLimit(limitMS int64) Option {
	return func(m *Machine) {
		if limitMS > 0 {
			m.limitMS = limitMS
		} else {
			m.limitMS = 0
		}
	}
}

// NewMachine creates a Machine reading from the given clock.
func NewMachine(clock Clock, opts ...Option) *Machine {
	m := &Machine{
		clock: clock,
		state: StateIdle,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current machine state.
func (m *Machine) State() State {
	return m.state
}

// Result returns a copy of the latest completed result, or nil if no
// attempt has been stopped since the last start.
func (m *Machine) Result() *Result {
	if m.result == nil {
		return nil
	}
	r := *m.result
	return &r
}

// Start begins a new attempt. Valid only from idle or stopped; any
// prior result is discarded. With inspection enabled the machine enters
// inspection, otherwise the solve starts immediately.
func (m *Machine) Start() bool {
	if m.state != StateIdle && m.state != StateStopped {
		return false
	}
	now := m.clock.NowMS()
	m.result = nil
	m.inspectionPenalty = penalty.None
	m.inspectionElapsedMS = 0
	if m.limitMS > 0 {
		m.inspectionStartTS = now
		m.state = StateInspection
		return true
	}
	m.runStartTS = now
	m.state = StateRunning
	return true
}

// BeginSolve ends inspection and starts timing the solve. Valid only
// from inspection; derives the automatic overage penalty.
func (m *Machine) BeginSolve() bool {
	if m.state != StateInspection {
		return false
	}
	now := m.clock.NowMS()
	m.inspectionElapsedMS = now - m.inspectionStartTS
	m.inspectionPenalty = penalty.FromInspection(m.inspectionElapsedMS, m.limitMS)
	m.runStartTS = now
	m.result = nil
	m.state = StateRunning
	return true
}

// Stop ends the solve and materializes the Result. Valid only from
// running. The combined penalty folds the stored inspection penalty
// with the (initially absent) manual penalty by dominance.
func (m *Machine) Stop() bool {
	if m.state != StateRunning {
		return false
	}
	now := m.clock.NowMS()
	raw := now - m.runStartTS
	combined := penalty.Combine(m.inspectionPenalty, penalty.None)
	m.result = &Result{
		StartTS:           m.runStartTS,
		EndTS:             now,
		InspectionMS:      m.inspectionElapsedMS,
		RawMS:             raw,
		InspectionPenalty: m.inspectionPenalty,
		ManualPenalty:     penalty.None,
		Penalty:           combined,
		FinalMS:           FinalDuration(raw, combined),
	}
	m.state = StateStopped
	return true
}

// ApplyManualPenalty replaces the manual penalty of the stored result,
// recombining against the stored inspection penalty. Valid only once a
// result exists. Idempotent: the same penalty twice is a no-op.
func (m *Machine) ApplyManualPenalty(p penalty.Penalty) bool {
	if m.result == nil {
		return false
	}
	updated := m.result.WithManualPenalty(p)
	m.result = &updated
	return true
}

// Dispatch is the single entry point for one raw toggle event. The
// event maps to the transition defined for the current state; states
// with no defined transition ignore the event. Returns whether the
// state changed.
func (m *Machine) Dispatch() bool {
	switch m.state {
	case StateIdle, StateStopped:
		return m.Start()
	case StateInspection:
		return m.BeginSolve()
	case StateRunning:
		return m.Stop()
	}
	return false
}

// InspectionElapsedMS reports how long the current inspection has been
// active, or 0 outside inspection. Intended for the caller's polling
// loop (display refresh, timeout detection).
func (m *Machine) InspectionElapsedMS() int64 {
	if m.state != StateInspection {
		return 0
	}
	return m.clock.NowMS() - m.inspectionStartTS
}

// InspectionExpired reports whether inspection has overrun the point of
// no return (limit plus the Plus2 overage window). The caller's polling
// loop is expected to call ForceDNF when this turns true; the machine
// never times out on its own.
func (m *Machine) InspectionExpired() bool {
	if m.state != StateInspection {
		return false
	}
	return m.InspectionElapsedMS() > m.limitMS+penalty.OverageWindowMS
}

// ForceDNF resolves an expired inspection: equivalent to BeginSolve
// immediately followed by Stop with a DNF applied. Valid only from
// inspection.
func (m *Machine) ForceDNF() bool {
	if m.state != StateInspection {
		return false
	}
	m.BeginSolve()
	m.Stop()
	return m.ApplyManualPenalty(penalty.DNF)
}

package timer

// HoldGate implements the hold-to-start gesture as a debounce layer
// above the state machine: a press only produces a start toggle if the
// key was held for the minimum duration before release. It works purely
// off explicit timestamps from the injected clock; no internal timers.
type HoldGate struct {
	clock   Clock
	holdMS  int64
	pressed bool
	downTS  int64
}

// NewHoldGate creates a gate requiring holdMS of hold time. A
// non-positive holdMS passes every press through.
func NewHoldGate(clock Clock, holdMS int64) *HoldGate {
	if holdMS < 0 {
		holdMS = 0
	}
	return &HoldGate{clock: clock, holdMS: holdMS}
}

// Press records the key-down timestamp. Repeated presses without a
// release (keyboard auto-repeat) keep the original timestamp.
func (g *HoldGate) Press() {
	if g.pressed {
		return
	}
	g.pressed = true
	g.downTS = g.clock.NowMS()
}

// Release resolves a press: returns true when the key was held long
// enough that a toggle should fire. A release without a matching press
// is ignored.
func (g *HoldGate) Release() bool {
	if !g.pressed {
		return false
	}
	g.pressed = false
	return g.clock.NowMS()-g.downTS >= g.holdMS
}

// Pressed reports whether a press is currently being held.
func (g *HoldGate) Pressed() bool {
	return g.pressed
}

// Reset clears any in-flight press.
func (g *HoldGate) Reset() {
	g.pressed = false
	g.downTS = 0
}

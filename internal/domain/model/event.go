package model

import "fmt"

// EventKind is a closed enumeration of raw input events.
type EventKind uint8

const (
	// EventPress is a key-down or touch-down.
	EventPress EventKind = iota
	// EventRelease is the matching key-up or touch-up.
	EventRelease
	// EventToggle bypasses the hold gate and maps directly to the
	// machine's dispatch table (used by imports and tests).
	EventToggle
)

// String returns the lowercase event kind name.
func (k EventKind) String() string {
	switch k {
	case EventRelease:
		return "release"
	case EventToggle:
		return "toggle"
	default:
		return "press"
	}
}

// ParseEventKind converts an event kind name to its value.
func ParseEventKind(s string) (EventKind, error) {
	switch s {
	case "press":
		return EventPress, nil
	case "release":
		return EventRelease, nil
	case "toggle":
		return EventToggle, nil
	}
	return EventPress, fmt.Errorf("unknown event kind: %q", s)
}

// InputEvent is one raw, debounced UI event submitted by a client.
// EventID exists for idempotency; At is the client's wall-clock reading
// and is informational only, the serialized dispatcher always times
// transitions off its own monotonic clock.
type InputEvent struct {
	EventID string    `json:"event_id"`
	Kind    EventKind `json:"kind"`
	At      int64     `json:"at"`
}

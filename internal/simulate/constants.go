package simulate

import "time"

// HTTP status code constants.
const (
	StatusOK       = 200
	StatusAccepted = 202
)

// Runner configuration constants.
const (
	ProcessingDelay      = 500 * time.Millisecond
	PercentageMultiplier = 100
)

// Input mode names accepted by Config.Mode.
const (
	ModeToggle = "toggle"
	ModeHold   = "hold"
)

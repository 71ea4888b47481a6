package splits

import "errors"

// Sentinel kinds for phase definition validation.
var (
	ErrDuplicatePhase = errors.New("duplicate phase name")
	ErrEmptyPhaseName = errors.New("empty phase name")
)

package penalty

import "errors"

// Sentinel kinds for penalty parsing.
var (
	ErrUnknownPenalty = errors.New("unknown penalty")
)

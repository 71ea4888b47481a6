package timer

import "github.com/okian/klepsydra/internal/domain/penalty"

// Result is the authoritative timing outcome of one attempt. It is
// created when the machine stops; only its penalty fields may change
// afterwards (via a manual penalty edit), never its timestamps.
type Result struct {
	// StartTS and EndTS are the clock readings bounding the solve.
	StartTS int64 `json:"start_ts"`
	EndTS   int64 `json:"end_ts"`

	// InspectionMS is the measured inspection duration, 0 when
	// inspection is disabled.
	InspectionMS int64 `json:"inspection_ms"`

	// RawMS is EndTS - StartTS.
	RawMS int64 `json:"raw_ms"`

	// InspectionPenalty is the automatic penalty derived from the
	// inspection overage. It is kept so later manual edits recombine
	// against it rather than against a previous manual penalty.
	InspectionPenalty penalty.Penalty `json:"inspection_penalty"`

	// ManualPenalty is the most recent post-hoc edit, None initially.
	ManualPenalty penalty.Penalty `json:"manual_penalty"`

	// Penalty is the dominance combination of the two sources above.
	Penalty penalty.Penalty `json:"penalty"`

	// FinalMS is the effective duration: raw+2000 under Plus2, nil
	// under DNF, raw otherwise.
	FinalMS *int64 `json:"final_ms"`
}

// WithManualPenalty returns a copy of r with the manual penalty replaced
// and the combined penalty and final duration rederived. Timestamps are
// untouched. Applying the same penalty twice yields an identical result.
func (r Result) WithManualPenalty(p penalty.Penalty) Result {
	r.ManualPenalty = p
	r.Penalty = penalty.Combine(r.InspectionPenalty, p)
	r.FinalMS = FinalDuration(r.RawMS, r.Penalty)
	return r
}

// FinalDuration derives the effective duration for a raw time under a
// combined penalty. A DNF has no duration.
func FinalDuration(rawMS int64, p penalty.Penalty) *int64 {
	switch p {
	case penalty.DNF:
		return nil
	case penalty.Plus2:
		v := rawMS + penalty.Plus2OffsetMS
		return &v
	default:
		v := rawMS
		return &v
	}
}

// Package model contains domain models passed between layers.
package model

import (
	"github.com/okian/klepsydra/internal/domain/stats"
	"github.com/okian/klepsydra/internal/domain/timer"
)

// Attempt wraps one timing result with identity and chronological
// ordering. The ordering key is the wall-clock creation time in unix
// milliseconds; identifiers are opaque to the statistics engine.
type Attempt struct {
	ID          string       `json:"id"`
	OrderingKey int64        `json:"ordering_key"`
	Scramble    string       `json:"scramble,omitempty"`
	Result      timer.Result `json:"result"`
}

// Sample projects the attempt into the view the statistics engine
// consumes.
func (a Attempt) Sample() stats.Sample {
	return stats.Sample{
		ID:          a.ID,
		OrderingKey: a.OrderingKey,
		FinalMS:     a.Result.FinalMS,
	}
}

// Samples projects a chronological attempt list for the statistics
// engine.
func Samples(attempts []Attempt) []stats.Sample {
	out := make([]stats.Sample, len(attempts))
	for i, a := range attempts {
		out[i] = a.Sample()
	}
	return out
}

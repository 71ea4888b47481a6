// Package stats computes rolling aggregates and personal bests over a
// chronological attempt history. Two computations share the per-window
// evaluators here: trailing aggregates over the most recent window only,
// and a best-ever scan over every valid window offset in the history.
package stats

import (
	"math"
	"sort"
)

// Sample is the minimal attempt view the engine consumes: a stable
// identifier, a chronological ordering key and the effective duration
// (nil for a DNF).
type Sample struct {
	ID          string
	OrderingKey int64
	FinalMS     *int64
}

// WindowResult is one computed aggregate. A nil ValueMS with IsDNF false
// means insufficient history; with IsDNF true it means the window was
// invalidated by an uneliminated DNF. Indices are the positions in the
// chronological sequence that contributed to the value.
type WindowResult struct {
	Size    int    `json:"size"`
	ValueMS *int64 `json:"value_ms"`
	IsDNF   bool   `json:"is_dnf"`
	Indices []int  `json:"indices,omitempty"`
}

// roundMean averages ms values to the nearest millisecond.
func roundMean(sumMS int64, n int) *int64 {
	v := int64(math.Round(float64(sumMS) / float64(n)))
	return &v
}

// evalMean computes the untrimmed mean of history[offset:offset+size].
// Any DNF in the window invalidates it.
func evalMean(history []Sample, offset, size int) WindowResult {
	res := WindowResult{Size: size, Indices: make([]int, 0, size)}
	var sum int64
	dnf := false
	for i := offset; i < offset+size; i++ {
		res.Indices = append(res.Indices, i)
		if history[i].FinalMS == nil {
			dnf = true
			continue
		}
		sum += *history[i].FinalMS
	}
	if dnf {
		res.IsDNF = true
		return res
	}
	res.ValueMS = roundMean(sum, size)
	return res
}

// evalTrimmed computes the competition trimmed mean of
// history[offset:offset+size]: exactly one minimum and one maximum
// element are dropped, the remaining size-2 averaged. A DNF sorts as
// +infinity for the purpose of choosing what to trim, so a single DNF
// is trimmed away and tolerated; any DNF left among the kept elements
// invalidates the window. The infinity is purely a comparison trick and
// never reaches the returned value.
func evalTrimmed(history []Sample, offset, size int) WindowResult {
	res := WindowResult{Size: size}

	order := make([]int, size)
	for i := range order {
		order[i] = offset + i
	}
	sort.SliceStable(order, func(a, b int) bool {
		va, vb := history[order[a]].FinalMS, history[order[b]].FinalMS
		switch {
		case va == nil:
			return false // DNF sorts last
		case vb == nil:
			return true
		default:
			return *va < *vb
		}
	})

	// Drop one min and one max, keep the middle in chronological order.
	kept := make([]int, size-2)
	copy(kept, order[1:size-1])
	sort.Ints(kept)
	res.Indices = kept

	var sum int64
	for _, i := range kept {
		if history[i].FinalMS == nil {
			res.IsDNF = true
			return res
		}
		sum += *history[i].FinalMS
	}
	res.ValueMS = roundMean(sum, size-2)
	return res
}

// evalMeanOfAverages computes a mean of x consecutive size-5 trimmed
// windows, the first starting at offset (spanning x+4 attempts). The
// result is invalid if any contributing Ao5 is itself invalid. Indices
// are the union of the contributing trimmed subsets.
func evalMeanOfAverages(history []Sample, offset, x int) WindowResult {
	res := WindowResult{Size: x}

	seen := make(map[int]struct{})
	var sum int64
	dnf := false
	for w := 0; w < x; w++ {
		ao := evalTrimmed(history, offset+w, 5)
		for _, i := range ao.Indices {
			seen[i] = struct{}{}
		}
		if ao.ValueMS == nil {
			dnf = true
			continue
		}
		sum += *ao.ValueMS
	}

	indices := make([]int, 0, len(seen))
	for i := range seen {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	res.Indices = indices

	if dnf {
		res.IsDNF = true
		return res
	}
	res.ValueMS = roundMean(sum, x)
	return res
}

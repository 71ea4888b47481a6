package stats

import "fmt"

// Default window configuration constants.
const (
	defaultMeanSize = 3
	ao5Size         = 5
)

// Default window size sets, matching common competitive-timing displays.
var (
	defaultAverageSizes       = []int{5, 12, 50, 100, 1000}
	defaultMeanOfAverageSizes = []int{3, 12}
)

// Engine evaluates trailing aggregates and personal bests. It holds only
// configuration; every computation is a pure function of the history
// passed in, so results are reproducible given the same inputs.
//
// The best-ever scan is deliberately brute force, O(history x window)
// per category, recomputed from scratch on each call. At the scale of a
// practice session (thousands of attempts) this is cheap; incremental
// window-min maintenance would only pay off orders of magnitude beyond
// that.
type Engine struct {
	averageSizes       []int
	meanOfAverageSizes []int
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithAverageSizes sets the trimmed-window (AoN) sizes. Sizes below 3
// cannot be trimmed and are dropped.
func WithAverageSizes(sizes []int) Option {
	return func(e *Engine) {
		kept := make([]int, 0, len(sizes))
		for _, n := range sizes {
			if n >= 3 {
				kept = append(kept, n)
			}
		}
		if len(kept) > 0 {
			e.averageSizes = kept
		}
	}
}

// WithMeanOfAverageSizes sets the X values for mean-of-X-of-Ao5
// aggregates. Non-positive values are dropped.
func WithMeanOfAverageSizes(sizes []int) Option {
	return func(e *Engine) {
		kept := make([]int, 0, len(sizes))
		for _, x := range sizes {
			if x > 0 {
				kept = append(kept, x)
			}
		}
		if len(kept) > 0 {
			e.meanOfAverageSizes = kept
		}
	}
}

// NewEngine creates an Engine with the default window configuration.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		averageSizes:       defaultAverageSizes,
		meanOfAverageSizes: defaultMeanOfAverageSizes,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Aggregate is a categorized window result.
type Aggregate struct {
	Category string `json:"category"`
	WindowResult
}

// Trailing holds the live-display aggregates computed over the most
// recent window of each configured size.
type Trailing struct {
	Count      int         `json:"count"`
	Aggregates []Aggregate `json:"aggregates"`
}

// PersonalBest is the best value ever achieved for one category across
// the full history, with the attempts that produced it and the ordering
// key of the chronologically last contributing attempt.
type PersonalBest struct {
	Category   string   `json:"category"`
	ValueMS    int64    `json:"value_ms"`
	AttemptIDs []string `json:"attempt_ids"`
	AchievedAt int64    `json:"achieved_at"`
}

// Category label helpers.
func meanCategory(n int) string          { return fmt.Sprintf("mo%d", n) }
func averageCategory(n int) string       { return fmt.Sprintf("ao%d", n) }
func meanOfAverageCategory(x int) string { return fmt.Sprintf("mo%dao5", x) }

// Trailing computes the aggregates for the end of the history. Windows
// larger than the history are reported with a nil value and IsDNF false,
// which is the "insufficient history" state, distinct from a
// penalty-invalidated window.
func (e *Engine) Trailing(history []Sample) Trailing {
	n := len(history)
	out := Trailing{Count: n}

	mo := Aggregate{Category: meanCategory(defaultMeanSize), WindowResult: WindowResult{Size: defaultMeanSize}}
	if n >= defaultMeanSize {
		mo.WindowResult = evalMean(history, n-defaultMeanSize, defaultMeanSize)
	}
	out.Aggregates = append(out.Aggregates, mo)

	for _, size := range e.averageSizes {
		agg := Aggregate{Category: averageCategory(size), WindowResult: WindowResult{Size: size}}
		if n >= size {
			agg.WindowResult = evalTrimmed(history, n-size, size)
		}
		out.Aggregates = append(out.Aggregates, agg)
	}

	for _, x := range e.meanOfAverageSizes {
		span := x + ao5Size - 1
		agg := Aggregate{Category: meanOfAverageCategory(x), WindowResult: WindowResult{Size: x}}
		if n >= span {
			agg.WindowResult = evalMeanOfAverages(history, n-span, x)
		}
		out.Aggregates = append(out.Aggregates, agg)
	}

	return out
}

// PersonalBests scans every valid window offset for each category and
// keeps the minimum valid value. A candidate replaces the stored best
// only on strict improvement, so ties keep the earliest-achieved record.
// Categories with no valid value yet are omitted.
func (e *Engine) PersonalBests(history []Sample) []PersonalBest {
	out := make([]PersonalBest, 0, 2+len(e.averageSizes)+len(e.meanOfAverageSizes))

	if pb, ok := bestSingle(history); ok {
		out = append(out, pb)
	}

	eval := func(category string, span int, at func(offset int) WindowResult) {
		if pb, ok := bestWindow(history, category, span, at); ok {
			out = append(out, pb)
		}
	}

	eval(meanCategory(defaultMeanSize), defaultMeanSize, func(offset int) WindowResult {
		return evalMean(history, offset, defaultMeanSize)
	})
	for _, size := range e.averageSizes {
		size := size
		eval(averageCategory(size), size, func(offset int) WindowResult {
			return evalTrimmed(history, offset, size)
		})
	}
	for _, x := range e.meanOfAverageSizes {
		x := x
		eval(meanOfAverageCategory(x), x+ao5Size-1, func(offset int) WindowResult {
			return evalMeanOfAverages(history, offset, x)
		})
	}

	return out
}

// bestSingle finds the minimum non-DNF final duration.
func bestSingle(history []Sample) (PersonalBest, bool) {
	pb := PersonalBest{Category: "single"}
	found := false
	for _, s := range history {
		if s.FinalMS == nil {
			continue
		}
		if !found || *s.FinalMS < pb.ValueMS {
			found = true
			pb.ValueMS = *s.FinalMS
			pb.AttemptIDs = []string{s.ID}
			pb.AchievedAt = s.OrderingKey
		}
	}
	return pb, found
}

// bestWindow scans all offsets where a window of the given span fits and
// keeps the minimum valid result.
func bestWindow(history []Sample, category string, span int, at func(offset int) WindowResult) (PersonalBest, bool) {
	pb := PersonalBest{Category: category}
	found := false
	for offset := 0; offset+span <= len(history); offset++ {
		res := at(offset)
		if res.ValueMS == nil {
			continue
		}
		if found && *res.ValueMS >= pb.ValueMS {
			continue
		}
		found = true
		pb.ValueMS = *res.ValueMS
		pb.AttemptIDs = contributorIDs(history, res.Indices)
		pb.AchievedAt = achievedAt(history, res.Indices)
	}
	return pb, found
}

func contributorIDs(history []Sample, indices []int) []string {
	ids := make([]string, len(indices))
	for i, idx := range indices {
		ids[i] = history[idx].ID
	}
	return ids
}

// achievedAt is the ordering key of the chronologically last
// contributing attempt, not necessarily the most recent attempt overall.
func achievedAt(history []Sample, indices []int) int64 {
	last := 0
	for _, idx := range indices {
		if idx > last {
			last = idx
		}
	}
	return history[last].OrderingKey
}

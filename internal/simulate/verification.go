package simulate

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/okian/klepsydra/internal/domain/model"
	"github.com/okian/klepsydra/internal/domain/stats"
	"github.com/okian/klepsydra/pkg/logger"
)

// verifySession recomputes the trailing report from the fetched history
// and compares it with what the service reported.
func verifySession(ctx context.Context, config *Config, attempts []model.Attempt, reported stats.Trailing) error {
	log.Println("verifying results...")

	if len(attempts) == 0 {
		return fmt.Errorf("no attempts to verify")
	}

	if reported.Count != len(attempts) {
		return fmt.Errorf("trailing count %d does not match %d recorded attempts",
			reported.Count, len(attempts))
	}

	// Recompute with the default window set; mismatched categories are
	// skipped so a custom server window set only narrows the check.
	local := stats.NewEngine().Trailing(model.Samples(attempts))
	localByCategory := map[string]stats.Aggregate{}
	for _, agg := range local.Aggregates {
		localByCategory[agg.Category] = agg
	}

	checked := 0
	for _, agg := range reported.Aggregates {
		want, ok := localByCategory[agg.Category]
		if !ok {
			continue
		}
		checked++
		if err := compareAggregates(agg, want); err != nil {
			return err
		}
	}
	if checked == 0 {
		log.Println("warning: no overlapping categories to verify; server uses custom windows")
	} else {
		log.Printf("verified %d trailing aggregates against the fetched history", checked)
	}

	displayFastestSolves(attempts, config.Verbose)

	logger.Get().Info(ctx, "result verification completed", logger.Int("aggregatesChecked", checked))
	return nil
}

// compareAggregates compares one reported aggregate with the locally
// recomputed value.
func compareAggregates(got, want stats.Aggregate) error {
	if got.IsDNF != want.IsDNF {
		return fmt.Errorf("category %s: reported is_dnf=%v, recomputed is_dnf=%v",
			got.Category, got.IsDNF, want.IsDNF)
	}
	switch {
	case got.ValueMS == nil && want.ValueMS == nil:
		return nil
	case got.ValueMS == nil || want.ValueMS == nil:
		return fmt.Errorf("category %s: reported and recomputed values disagree on presence", got.Category)
	case *got.ValueMS != *want.ValueMS:
		return fmt.Errorf("category %s: reported %dms, recomputed %dms",
			got.Category, *got.ValueMS, *want.ValueMS)
	}
	return nil
}

// displayFastestSolves shows the fastest counting solves of the session.
func displayFastestSolves(attempts []model.Attempt, verbose bool) {
	counting := make([]model.Attempt, 0, len(attempts))
	for _, a := range attempts {
		if a.Result.FinalMS != nil {
			counting = append(counting, a)
		}
	}
	if len(counting) == 0 {
		log.Println("no counting solves in the session")
		return
	}

	sort.Slice(counting, func(i, j int) bool {
		return *counting[i].Result.FinalMS < *counting[j].Result.FinalMS
	})

	topN := 10
	if len(counting) < topN {
		topN = len(counting)
	}

	log.Printf("fastest %d solves:", topN)
	for i := 0; i < topN; i++ {
		a := counting[i]
		log.Printf("   %d. %s - %dms", i+1, a.ID, *a.Result.FinalMS)
	}

	if verbose {
		sum := int64(0)
		for _, a := range counting {
			sum += *a.Result.FinalMS
		}
		log.Printf(`session statistics:
   Counting: %d/%d
   Average: %dms
   Fastest: %dms
   Slowest: %dms
`, len(counting), len(attempts), sum/int64(len(counting)),
			*counting[0].Result.FinalMS, *counting[len(counting)-1].Result.FinalMS)
	}
}

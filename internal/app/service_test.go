package service_test

import (
	"context"
	"path/filepath"
	"testing"

	service "github.com/okian/klepsydra/internal/app"
	"github.com/okian/klepsydra/internal/domain/penalty"
	"github.com/okian/klepsydra/internal/domain/splits"
	"github.com/okian/klepsydra/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

const sessionExport = `[
	[[0, 12000], "R U R' U'", "", 1700000000],
	[[0, 11000], "L D L' D'", "", 1700000060],
	[[2000, 10000], "F B F' B'", "", 1700000120],
	[[0, 13000], "U2 D2", "", 1700000180],
	[[-1, 9000], "R2 L2", "", 1700000240]
]`

func startedService(t *testing.T, opts ...service.Option) *service.Service {
	t.Helper()
	svc := service.New(opts...)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(svc.Stop)
	return svc
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should have sensible defaults", func() {
			So(svc, ShouldNotBeNil)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithInspectionMS(0),
			service.WithHoldToStartMS(500),
			service.WithQueueSize(128),
			service.WithDedupeSize(1000),
			service.WithAverageWindows([]int{5, 12}),
			service.WithMeanOfAverageWindows([]int{3}),
		)

		Convey("Then it should be created successfully", func() {
			So(svc, ShouldNotBeNil)
		})
	})
}

func TestService_StartStop(t *testing.T) {
	Convey("Given a service", t, func() {
		svc := service.New(service.WithQueueSize(16))
		ctx := context.Background()

		Convey("When starting and stopping", func() {
			So(svc.Start(ctx), ShouldBeNil)

			Convey("Then starting again is a no-op", func() {
				So(svc.Start(ctx), ShouldBeNil)
			})

			stats := svc.GetStats()
			So(stats["started"], ShouldBeTrue)

			svc.Stop()
			stats = svc.GetStats()
			So(stats["started"], ShouldBeFalse)

			Convey("And stopping again is safe", func() {
				svc.Stop()
			})
		})
	})
}

func TestService_Dedupe(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := startedService(t)
		ctx := context.Background()

		Convey("When recording an event id twice", func() {
			So(svc.SeenAndRecord(ctx, "evt-1"), ShouldBeFalse)
			So(svc.SeenAndRecord(ctx, "evt-1"), ShouldBeTrue)

			Convey("Then unrecording allows a retry", func() {
				svc.Unrecord(ctx, "evt-1")
				So(svc.SeenAndRecord(ctx, "evt-1"), ShouldBeFalse)
			})
		})
	})
}

func TestService_ImportSession(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := startedService(t, service.WithAverageWindows([]int{5}))
		ctx := context.Background()

		Convey("When importing a session export", func() {
			count, err := svc.ImportSession(ctx, []byte(sessionExport))
			So(err, ShouldBeNil)
			So(count, ShouldEqual, 5)

			Convey("Then the history holds the solves chronologically", func() {
				attempts, err := svc.Attempts(ctx, 0, 0)
				So(err, ShouldBeNil)
				So(attempts, ShouldHaveLength, 5)
				So(attempts[0].Result.RawMS, ShouldEqual, 12000)
				So(attempts[4].Result.Penalty, ShouldEqual, penalty.DNF)
			})

			Convey("And trailing aggregates are available", func() {
				tr := svc.Trailing(ctx)
				So(tr.Count, ShouldEqual, 5)

				var ao5 *int64
				for _, agg := range tr.Aggregates {
					if agg.Category == "ao5" {
						ao5 = agg.ValueMS
					}
				}
				// Counting values: 12000, 11000, 12000(+2), 13000, DNF.
				// Trim best (11000) and worst (DNF); mean of the rest.
				So(ao5, ShouldNotBeNil)
				So(*ao5, ShouldEqual, int64(12333))
			})

			Convey("And personal bests are tracked", func() {
				bests := svc.PersonalBests(ctx)
				byCategory := map[string]int64{}
				for _, b := range bests {
					byCategory[b.Category] = b.ValueMS
				}
				So(byCategory["single"], ShouldEqual, 11000)
			})

			Convey("And re-importing the same file is a no-op", func() {
				again, err := svc.ImportSession(ctx, []byte(sessionExport))
				So(err, ShouldBeNil)
				So(again, ShouldEqual, 0)

				attempts, err := svc.Attempts(ctx, 0, 0)
				So(err, ShouldBeNil)
				So(attempts, ShouldHaveLength, 5)
			})
		})

		Convey("When importing a malformed export", func() {
			_, err := svc.ImportSession(ctx, []byte(`{"nope": true}`))
			So(err, ShouldNotBeNil)
		})
	})
}

func TestService_ImportOlderSession(t *testing.T) {
	const recentExport = `[
		[[0, 12000], "R U R' U'", "", 2000000000],
		[[0, 11000], "L D L' D'", "", 2000000060],
		[[0, 10000], "F B F' B'", "", 2000000120]
	]`
	const olderExport = `[
		[[0, 9000], "U2 D2", "", 1000000000],
		[[0, 8000], "R2 L2", "", 1000000060]
	]`

	Convey("Given a service that already holds a recent session", t, func() {
		svc := startedService(t)
		ctx := context.Background()

		count, err := svc.ImportSession(ctx, []byte(recentExport))
		So(err, ShouldBeNil)
		So(count, ShouldEqual, 3)

		Convey("When an older session is imported afterwards", func() {
			count, err := svc.ImportSession(ctx, []byte(olderExport))
			So(err, ShouldBeNil)
			So(count, ShouldEqual, 2)

			Convey("Then the history stays chronological", func() {
				attempts, err := svc.Attempts(ctx, 0, 0)
				So(err, ShouldBeNil)
				So(attempts, ShouldHaveLength, 5)
				So(attempts[0].Result.RawMS, ShouldEqual, 9000)
				So(attempts[1].Result.RawMS, ShouldEqual, 8000)
				So(attempts[4].Result.RawMS, ShouldEqual, 10000)
				for i := 1; i < len(attempts); i++ {
					So(attempts[i].OrderingKey, ShouldBeGreaterThan, attempts[i-1].OrderingKey)
				}
			})

			Convey("And trailing windows still end on the recent session", func() {
				tr := svc.Trailing(ctx)
				So(tr.Count, ShouldEqual, 5)

				var mo3 *int64
				for _, agg := range tr.Aggregates {
					if agg.Category == "mo3" {
						mo3 = agg.ValueMS
					}
				}
				// Means of the recent 12000, 11000, 10000 solves; the
				// older session must not displace them.
				So(mo3, ShouldNotBeNil)
				So(*mo3, ShouldEqual, int64(11000))
			})
		})
	})
}

func TestService_ApplyPenalty(t *testing.T) {
	Convey("Given a service with imported history", t, func() {
		svc := startedService(t, service.WithAverageWindows([]int{5}))
		ctx := context.Background()

		_, err := svc.ImportSession(ctx, []byte(sessionExport))
		So(err, ShouldBeNil)

		attempts, err := svc.Attempts(ctx, 0, 0)
		So(err, ShouldBeNil)
		best := attempts[1] // the 11000ms single

		Convey("When the best single is retroactively DNFed", func() {
			updated, err := svc.ApplyPenalty(ctx, best.ID, penalty.DNF)
			So(err, ShouldBeNil)
			So(updated.Result.FinalMS, ShouldBeNil)

			Convey("Then the personal best shifts to the next candidate", func() {
				bests := svc.PersonalBests(ctx)
				var single int64
				for _, b := range bests {
					if b.Category == "single" {
						single = b.ValueMS
					}
				}
				So(single, ShouldEqual, 12000)
			})

			Convey("And the trailing ao5 is invalidated by two DNFs", func() {
				tr := svc.Trailing(ctx)
				for _, agg := range tr.Aggregates {
					if agg.Category == "ao5" {
						So(agg.ValueMS, ShouldBeNil)
						So(agg.IsDNF, ShouldBeTrue)
					}
				}
			})
		})

		Convey("When editing an unknown attempt", func() {
			_, err := svc.ApplyPenalty(ctx, "ghost", penalty.Plus2)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestService_Splits(t *testing.T) {
	Convey("Given a service with one imported attempt", t, func() {
		svc := startedService(t)
		ctx := context.Background()

		_, err := svc.ImportSession(ctx, []byte(`[[[0, 9000], "R U", "", 1700000000]]`))
		So(err, ShouldBeNil)
		attempts, err := svc.Attempts(ctx, 0, 0)
		So(err, ShouldBeNil)
		id := attempts[0].ID

		Convey("When defining phases and recording marks", func() {
			defs, err := svc.SetSplitDefinitions(ctx, []splits.PhaseDefinition{
				{Name: "cross", Order: 10},
				{Name: "f2l", Order: 20},
				{Name: "ll", Order: 30},
			})
			So(err, ShouldBeNil)
			So(defs[0].Order, ShouldEqual, 1)

			So(svc.RecordSplits(ctx, id, []splits.Mark{
				{Phase: "cross", TS: 1000},
				{Phase: "f2l", TS: 4000},
			}), ShouldBeNil)

			report, err := svc.SplitReport(ctx, id)
			So(err, ShouldBeNil)
			So(report.Durations, ShouldHaveLength, 3)
			So(*report.Durations[0].DurationMS, ShouldEqual, 3000)
			So(*report.Durations[1].DurationMS, ShouldEqual, 5000)
			So(report.Durations[2].DurationMS, ShouldBeNil)
			So(report.Issues, ShouldBeEmpty)
		})

		Convey("When recording an unknown phase", func() {
			_, err := svc.SetSplitDefinitions(ctx, []splits.PhaseDefinition{
				{Name: "cross", Order: 1},
			})
			So(err, ShouldBeNil)
			So(svc.RecordSplits(ctx, id, []splits.Mark{
				{Phase: "oll", TS: 2000},
			}), ShouldBeNil)

			report, err := svc.SplitReport(ctx, id)
			So(err, ShouldBeNil)
			So(report.Issues, ShouldHaveLength, 1)
			So(report.Issues[0].Reason, ShouldEqual, splits.ReasonUnknownPhase)
		})

		Convey("When recording marks for an unknown attempt", func() {
			err := svc.RecordSplits(ctx, "ghost", []splits.Mark{{Phase: "cross", TS: 1}})
			So(err, ShouldNotBeNil)
		})
	})
}

func TestService_Snapshot(t *testing.T) {
	Convey("Given a service with history", t, func() {
		svc := startedService(t)
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "snapshot.json")

		_, err := svc.ImportSession(ctx, []byte(sessionExport))
		So(err, ShouldBeNil)

		Convey("When saving and restoring into a fresh service", func() {
			So(svc.SaveSnapshot(ctx, path), ShouldBeNil)

			restored := startedService(t)
			count, err := restored.LoadSnapshot(ctx, path)
			So(err, ShouldBeNil)
			So(count, ShouldEqual, 5)

			attempts, err := restored.Attempts(ctx, 0, 0)
			So(err, ShouldBeNil)
			So(attempts, ShouldHaveLength, 5)

			Convey("Then aggregates match the original service", func() {
				So(restored.Trailing(ctx).Count, ShouldEqual, svc.Trailing(ctx).Count)
			})

			Convey("And loading the same snapshot again restores nothing new", func() {
				again, err := restored.LoadSnapshot(ctx, path)
				So(err, ShouldBeNil)
				So(again, ShouldEqual, 0)
			})
		})

		Convey("When loading a missing snapshot", func() {
			_, err := svc.LoadSnapshot(ctx, filepath.Join(t.TempDir(), "none.json"))
			So(err, ShouldNotBeNil)
		})
	})
}

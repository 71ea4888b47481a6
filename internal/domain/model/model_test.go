package model_test

import (
	"testing"

	"github.com/okian/klepsydra/internal/domain/model"
	"github.com/okian/klepsydra/internal/domain/penalty"
	"github.com/okian/klepsydra/internal/domain/timer"
	. "github.com/smartystreets/goconvey/convey"
)

func TestAttempt_Sample(t *testing.T) {
	Convey("Given an attempt with a clean result", t, func() {
		final := int64(12345)
		a := model.Attempt{
			ID:          "a1",
			OrderingKey: 1700000000000,
			Result: timer.Result{
				RawMS:   12345,
				Penalty: penalty.None,
				FinalMS: &final,
			},
		}

		Convey("When projecting to a stats sample", func() {
			s := a.Sample()

			Convey("Then identity, ordering and final duration carry over", func() {
				So(s.ID, ShouldEqual, "a1")
				So(s.OrderingKey, ShouldEqual, 1700000000000)
				So(*s.FinalMS, ShouldEqual, 12345)
			})
		})
	})

	Convey("Given a DNF attempt", t, func() {
		a := model.Attempt{ID: "a2", Result: timer.Result{Penalty: penalty.DNF}}

		Convey("Then the sample carries a nil final duration", func() {
			So(a.Sample().FinalMS, ShouldBeNil)
		})
	})
}

func TestParseEventKind(t *testing.T) {
	Convey("Given event kind names", t, func() {
		Convey("When parsing the closed set", func() {
			for _, tc := range []struct {
				in   string
				want model.EventKind
			}{
				{"press", model.EventPress},
				{"release", model.EventRelease},
				{"toggle", model.EventToggle},
			} {
				got, err := model.ParseEventKind(tc.in)
				So(err, ShouldBeNil)
				So(got, ShouldEqual, tc.want)
				So(got.String(), ShouldEqual, tc.in)
			}
		})

		Convey("When parsing an unknown kind", func() {
			_, err := model.ParseEventKind("double-tap")
			So(err, ShouldNotBeNil)
		})
	})
}

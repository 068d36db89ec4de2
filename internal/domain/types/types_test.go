package types_test

import (
	"encoding/json"
	"testing"
	"time"

	types "github.com/okian/ratings/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSchedulerStatusJSON(t *testing.T) {
	Convey("Given a scheduler status", t, func() {
		next := time.Date(2025, 2, 1, 2, 0, 0, 0, time.UTC)

		Convey("When no run has completed", func() {
			b, err := json.Marshal(types.SchedulerStatus{IsRunning: true, NextScheduledRun: next})

			Convey("Then last_run is absent", func() {
				So(err, ShouldBeNil)
				So(string(b), ShouldEqual, `{"is_running":true,"next_scheduled_run":"2025-02-01T02:00:00Z"}`)
			})
		})

		Convey("When a run has completed", func() {
			last := time.Date(2025, 1, 1, 2, 5, 0, 0, time.UTC)
			b, err := json.Marshal(types.SchedulerStatus{LastRun: &last, NextScheduledRun: next})

			Convey("Then last_run is an ISO-8601 timestamp", func() {
				So(err, ShouldBeNil)
				So(string(b), ShouldContainSubstring, `"last_run":"2025-01-01T02:05:00Z"`)
				So(string(b), ShouldContainSubstring, `"is_running":false`)
			})
		})
	})
}

func TestRecalculationResultJSON(t *testing.T) {
	Convey("Given recalculation results", t, func() {
		Convey("Then success omits the error", func() {
			b, _ := json.Marshal(types.RecalculationResult{Success: true, Period: "2024-12"})
			So(string(b), ShouldEqual, `{"success":true,"period":"2024-12"}`)
		})

		Convey("Then failure carries the error detail", func() {
			b, _ := json.Marshal(types.RecalculationResult{Error: "store unavailable"})
			So(string(b), ShouldEqual, `{"success":false,"error":"store unavailable"}`)
		})
	})
}

func TestEntryJSON(t *testing.T) {
	Convey("Given a leaderboard entry", t, func() {
		e := types.Entry{Rank: 1, PlayerID: "p1", Rating: 1600.5, RD: 80, Volatility: 0.06, Period: "2024-05"}

		Convey("Then it uses snake_case keys", func() {
			b, err := json.Marshal(e)
			So(err, ShouldBeNil)
			So(string(b), ShouldContainSubstring, `"player_id":"p1"`)
			So(string(b), ShouldContainSubstring, `"period":"2024-05"`)
		})
	})
}

package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then collectors are registered under the default namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.recalcRuns.WithLabelValues("auto", "success").Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "ratings_glicko_recalculation_runs_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("sub"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithMetricsEnabled(false),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the options are applied", func() {
				So(manager.namespace, ShouldEqual, "test")
				So(manager.subsystem, ShouldEqual, "sub")
				So(manager.histogramBuckets, ShouldResemble, []float64{0.1, 0.5, 1.0})
				So(manager.enabled, ShouldBeFalse)
			})
		})

		Convey("When passing empty option values", func() {
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithHistogramBuckets(nil),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "ratings")
				So(manager.subsystem, ShouldEqual, "glicko")
				So(manager.histogramBuckets, ShouldResemble, prometheus.DefBuckets)
			})
		})
	})
}

func TestGlobalRecorders(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording a recalculation", func() {
			before := testutil.ToFloat64(globalManager.recalcRuns.WithLabelValues("manual", "failure"))
			RecordRecalculation("manual", "failure", 0.25)

			Convey("Then the labelled counter advances", func() {
				after := testutil.ToFloat64(globalManager.recalcRuns.WithLabelValues("manual", "failure"))
				So(after-before, ShouldEqual, 1)
			})
		})

		Convey("When updating scheduler gauges", func() {
			UpdateSchedulerRunning(true)
			UpdateSchedulerLastRun(1_700_000_000)

			Convey("Then gauges hold the values", func() {
				So(testutil.ToFloat64(globalManager.schedulerRunning), ShouldEqual, 1)
				So(testutil.ToFloat64(globalManager.schedulerLastRun), ShouldEqual, 1_700_000_000)
				UpdateSchedulerRunning(false)
				So(testutil.ToFloat64(globalManager.schedulerRunning), ShouldEqual, 0)
			})
		})

		Convey("When recording engine and ingestion events", func() {
			RecordEngineUpdate()
			RecordEngineInflation()
			RecordEngineSkippedSamples(0)
			RecordEngineSkippedSamples(2)
			RecordGameAccepted()
			RecordGameDuplicate()
			RecordGameRejected("invalid")
			UpdateQueueSize(3)
			UpdateQueueCapacity(10)
			UpdateWorkerCount(2)
			RecordWorkerError()
			RecordRecordLatency(1)
			UpdateTotalPlayers(5)
			RecordRepositoryQueryLatency(1)
			RecordHTTPRequest("status", "GET", "200")
			RecordHTTPRequestDuration("status", "GET", "200", 1)
			RecordErrorByComponent("scheduler", "recalculation_failed")

			Convey("Then the registry exposes them", func() {
				families, err := GetRegistry().Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				joined := strings.Join(names, ",")
				So(joined, ShouldContainSubstring, "ratings_glicko_engine_updates_total")
				So(joined, ShouldContainSubstring, "ratings_glicko_games_rejected_total")
				So(joined, ShouldContainSubstring, "ratings_glicko_http_requests_total")
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 3)
			})
		})
	})
}

package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		Convey("When initialized with stdout", func() {
			So(Init(), ShouldBeNil)

			Convey("Then Get returns a usable logger", func() {
				So(Get(), ShouldNotBeNil)
				So(Sync(), ShouldBeNil)
			})
		})

		Convey("When initialized with a nil writer", func() {
			err := InitWithWriter(nil)

			Convey("Then it should fail", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestLoggerOutput(t *testing.T) {
	Convey("Given a logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(InitWithWriter(&buf), ShouldBeNil)
		ctx := context.Background()

		Convey("When logging with fields", func() {
			Get().Info(ctx, "recalculation finished",
				String("period", "2024-01"),
				Int("players", 3),
				Bool("manual", true),
				Duration("took", time.Second),
				Error(errors.New("boom")),
			)
			out := buf.String()

			Convey("Then every field and the caller are rendered", func() {
				So(out, ShouldContainSubstring, "recalculation finished")
				So(out, ShouldContainSubstring, "period=2024-01")
				So(out, ShouldContainSubstring, "players=3")
				So(out, ShouldContainSubstring, "manual=true")
				So(out, ShouldContainSubstring, "error=boom")
				So(out, ShouldContainSubstring, "logger_test.go")
			})
		})

		Convey("When logging through a named logger", func() {
			Named("scheduler").Warn(ctx, "already running")

			Convey("Then the component is attached", func() {
				So(buf.String(), ShouldContainSubstring, "component=scheduler")
			})
		})

		Convey("When debug records are filtered by level", func() {
			So(SetLevelString("warn"), ShouldBeNil)
			Get().Debug(ctx, "hidden")
			Get().Info(ctx, "hidden too")

			Convey("Then nothing is written", func() {
				So(buf.String(), ShouldBeEmpty)
			})
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given level strings", t, func() {
		So(Init(), ShouldBeNil)

		for _, lvl := range []string{"debug", "info", "", "WARN", "warning", " error "} {
			So(SetLevelString(lvl), ShouldBeNil)
		}

		Convey("Unknown levels are rejected", func() {
			So(SetLevelString("verbose"), ShouldNotBeNil)
		})
	})
}

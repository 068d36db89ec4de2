package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	service "github.com/okian/ratings/internal/app"
	repository "github.com/okian/ratings/internal/adapters/repository"
	"github.com/okian/ratings/internal/domain/model"
	"github.com/okian/ratings/internal/scheduler"
	"github.com/okian/ratings/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func game(id, a, b string, score float64, at time.Time) model.GameResult {
	return model.GameResult{GameID: id, PlayerA: a, PlayerB: b, Score: score, Weight: 1, PlayedAt: at}
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

// slowStore delays every write so games are still queued at shutdown.
type slowStore struct {
	*repository.TreapStore
	recorded atomic.Int64
}

func (s *slowStore) RecordGame(ctx context.Context, g model.GameResult) error {
	time.Sleep(2 * time.Millisecond)
	if err := s.TreapStore.RecordGame(ctx, g); err != nil {
		return err
	}
	s.recorded.Add(1)
	return nil
}

func TestService_DrainOnCancel(t *testing.T) {
	Convey("Given a service whose start context is cancelled with games still queued", t, func() {
		store := &slowStore{TreapStore: repository.NewTreapStore()}
		svc := service.New(service.WithStore(store), service.WithIngestWorkers(1), service.WithQueueSize(200))
		ctx, cancel := context.WithCancel(context.Background())
		So(svc.Start(ctx), ShouldBeNil)

		at := time.Date(2024, time.March, 3, 12, 0, 0, 0, time.UTC)
		for i := 0; i < 100; i++ {
			_, err := svc.SubmitGame(context.Background(), game(fmt.Sprintf("g%d", i), "a", "b", 1, at))
			So(err, ShouldBeNil)
		}
		cancel()

		Convey("When the service is stopped", func() {
			svc.Stop()

			Convey("Then every accepted game is recorded", func() {
				So(store.recorded.Load(), ShouldEqual, int64(100))
			})
		})
	})
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(service.WithQueueSize(100), service.WithIngestWorkers(2))

		Convey("When it is used before Start", func() {
			_, err := svc.SubmitGame(context.Background(), game("g1", "a", "b", 1, time.Now()))

			Convey("Then calls fail with ErrNotStarted", func() {
				So(err, ShouldEqual, service.ErrNotStarted)
				_, err = svc.TopN(context.Background(), 5)
				So(err, ShouldEqual, service.ErrNotStarted)
				So(svc.TriggerRecalculation(context.Background(), nil), ShouldEqual, service.ErrNotStarted)
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})

		Convey("When it is started and stopped", func() {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)

			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, true)
			So(stats["schedule"], ShouldResemble, map[string]interface{}{
				"checkInterval": "1h0m0s",
				"runDay":        1,
				"runHour":       2,
				"location":      "UTC",
			})
			st, err := svc.SchedulerStatus(ctx)
			So(err, ShouldBeNil)
			So(st.IsRunning, ShouldBeTrue)

			svc.Stop()
			svc.Stop()

			Convey("Then it reports stopped", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
				st, _ := svc.SchedulerStatus(ctx)
				So(st.IsRunning, ShouldBeFalse)
			})
		})
	})

	Convey("Given a service with a bad scheduler setting", t, func() {
		svc := service.New(service.WithSchedulerOptions(scheduler.WithRunDay(30)))

		Convey("Then Start fails", func() {
			err := svc.Start(context.Background())
			So(errors.Is(err, scheduler.ErrInvalidConfig), ShouldBeTrue)
		})
	})
}

func TestService_EndToEnd(t *testing.T) {
	Convey("Given a started service with a clock in March 2024", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		now := func() time.Time { return time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC) }
		svc := service.New(service.WithClock(now), service.WithIngestWorkers(4))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		feb := time.Date(2024, time.February, 14, 18, 0, 0, 0, time.UTC)

		Convey("When February games are submitted", func() {
			for i, g := range []model.GameResult{
				game("g1", "alice", "bob", 1, feb),
				game("g2", "alice", "carol", 1, feb),
				game("g3", "bob", "carol", 1, feb),
			} {
				id, err := svc.SubmitGame(ctx, g)
				So(err, ShouldBeNil)
				So(id, ShouldEqual, fmt.Sprintf("g%d", i+1))
			}
			So(waitFor(func() bool { return svc.GetStats()["gamesProcessed"] == int64(3) }), ShouldBeTrue)

			Convey("And the last completed month is recalculated", func() {
				So(svc.TriggerRecalculation(ctx, nil), ShouldBeNil)

				Convey("Then the leaderboard reflects the results", func() {
					top, err := svc.TopN(ctx, 10)
					So(err, ShouldBeNil)
					So(len(top), ShouldEqual, 3)
					So(top[0].PlayerID, ShouldEqual, "alice")
					So(top[0].Rank, ShouldEqual, 1)
					So(top[0].Period, ShouldEqual, "2024-02")

					e, err := svc.Rating(ctx, "carol")
					So(err, ShouldBeNil)
					So(e.Rank, ShouldEqual, 3)
					So(e.Rating, ShouldBeLessThan, 1500)
				})

				Convey("Then a manual run leaves last_run empty", func() {
					st, _ := svc.SchedulerStatus(ctx)
					So(st.LastRun, ShouldBeNil)
					So(st.NextScheduledRun.Equal(time.Date(2024, time.April, 1, 2, 0, 0, 0, time.UTC)), ShouldBeTrue)
				})
			})

			Convey("And a game is resubmitted", func() {
				_, err := svc.SubmitGame(ctx, game("g1", "alice", "bob", 1, feb))

				Convey("Then it is reported as a duplicate", func() {
					So(err, ShouldEqual, service.ErrDuplicateGame)
				})
			})
		})

		Convey("When an invalid game is submitted", func() {
			_, err := svc.SubmitGame(ctx, game("bad", "alice", "alice", 1, feb))

			Convey("Then it is rejected", func() {
				So(errors.Is(err, repository.ErrInvalidGame), ShouldBeTrue)
				So(errors.Is(err, model.ErrSamePlayer), ShouldBeTrue)
			})
		})

		Convey("When a game has no id", func() {
			id, err := svc.SubmitGame(ctx, game("", "dave", "erin", 0, feb))

			Convey("Then one is generated", func() {
				So(err, ShouldBeNil)
				So(id, ShouldNotBeEmpty)
			})
		})

		Convey("When an unknown player is looked up", func() {
			_, err := svc.Rating(ctx, "nobody")

			Convey("Then it is not found", func() {
				So(service.IsNotFound(err), ShouldBeTrue)
			})
		})

		Convey("When a malformed period is triggered", func() {
			p := "March"
			err := svc.TriggerRecalculation(ctx, &p)

			Convey("Then the error is returned", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestService_Concurrency(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		svc := service.New(service.WithQueueSize(5000), service.WithIngestWorkers(4))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()
		at := time.Date(2024, time.January, 3, 0, 0, 0, 0, time.UTC)

		Convey("When many goroutines submit games", func() {
			var wg sync.WaitGroup
			for w := 0; w < 10; w++ {
				wg.Add(1)
				go func(w int) {
					defer wg.Done()
					for i := 0; i < 50; i++ {
						a := fmt.Sprintf("p-%d", w)
						b := fmt.Sprintf("p-%d", (w+1)%10)
						_, _ = svc.SubmitGame(ctx, game(fmt.Sprintf("g-%d-%d", w, i), a, b, 1, at))
					}
				}(w)
			}
			wg.Wait()

			Convey("Then every game is stored and January can be rated", func() {
				So(waitFor(func() bool { return svc.GetStats()["gamesProcessed"] == int64(500) }), ShouldBeTrue)
				p := "2024-01"
				So(svc.TriggerRecalculation(ctx, &p), ShouldBeNil)
				So(svc.GetStats()["totalPlayers"], ShouldEqual, 10)
			})
		})
	})
}

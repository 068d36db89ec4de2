package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/ratings/internal/adapters/mq/queue"
	"github.com/okian/ratings/internal/adapters/repository"
	worker "github.com/okian/ratings/internal/adapters/mq/worker"
	"github.com/okian/ratings/internal/domain/model"
	logging "github.com/okian/ratings/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockRecorder struct {
	mu     sync.Mutex
	games  map[string]model.GameResult
	errors map[string]error
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{
		games:  make(map[string]model.GameResult),
		errors: make(map[string]error),
	}
}

func (m *mockRecorder) RecordGame(ctx context.Context, g model.GameResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.errors[g.GameID]; ok {
		return err
	}
	m.games[g.GameID] = g
	return nil
}

func (m *mockRecorder) setError(gameID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[gameID] = err
}

func (m *mockRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.games)
}

func (m *mockRecorder) has(gameID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.games[gameID]
	return ok
}

func game(id string) model.GameResult {
	return model.GameResult{GameID: id, PlayerA: "a", PlayerB: "b", Score: 1, Weight: 1, PlayedAt: time.Now()}
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestInMemoryWorker(t *testing.T) {
	_ = logging.Init()

	convey.Convey("Given a running worker", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		rec := newMockRecorder()
		w := worker.NewInMemoryWorker(q, rec, worker.WithName("test-worker"))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a game is queued", func() {
			q.Enqueue(ctx, game("g1"))

			convey.Convey("Then it is recorded", func() {
				convey.So(waitFor(func() bool { return rec.has("g1") }), convey.ShouldBeTrue)
				convey.So(waitFor(func() bool { return w.Processed() == 1 }), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When recording fails", func() {
			rec.setError("bad", errors.New("store down"))
			rec.setError("dup", fmt.Errorf("%w: dup", repository.ErrDuplicateGame))
			q.Enqueue(ctx, game("bad"))
			q.Enqueue(ctx, game("dup"))
			q.Enqueue(ctx, game("g2"))

			convey.Convey("Then the worker keeps going", func() {
				convey.So(waitFor(func() bool { return rec.has("g2") }), convey.ShouldBeTrue)
				convey.So(rec.has("bad"), convey.ShouldBeFalse)
				convey.So(w.Processed(), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the worker is shut down", func() {
			sctx, scancel := context.WithTimeout(context.Background(), time.Second)
			defer scancel()

			convey.Convey("Then Shutdown returns without error", func() {
				convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
			})
		})
	})

	convey.Convey("Given a worker whose queue is closed", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		rec := newMockRecorder()
		w := worker.NewInMemoryWorker(q, rec)
		q.Enqueue(context.Background(), game("g1"))
		_ = q.Close()

		convey.Convey("Then Run drains and returns", func() {
			done := make(chan struct{})
			go func() {
				w.Run(context.Background())
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("worker did not stop")
			}
			convey.So(rec.has("g1"), convey.ShouldBeTrue)
		})
	})
}

func TestPool(t *testing.T) {
	_ = logging.Init()

	convey.Convey("Given a pool of four workers", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(500))
		rec := newMockRecorder()
		pool := worker.NewPool(4, q, rec)
		ctx := context.Background()
		pool.Start(ctx)

		convey.So(pool.Size(), convey.ShouldEqual, 4)

		convey.Convey("When many games are queued and the pool shuts down", func() {
			for i := 0; i < 200; i++ {
				q.Enqueue(ctx, game(fmt.Sprintf("g-%d", i)))
			}
			err := pool.Shutdown(ctx)

			convey.Convey("Then every queued game is recorded", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(rec.count(), convey.ShouldEqual, 200)
				convey.So(pool.Processed(), convey.ShouldEqual, 200)
				convey.So(q.Enqueue(ctx, game("late")), convey.ShouldBeFalse)
			})
		})
	})

	convey.Convey("Given a pool created with a non-positive count", t, func() {
		pool := worker.NewPool(0, queue.NewInMemoryQueue(), newMockRecorder())

		convey.Convey("Then it picks a CPU-based size", func() {
			convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
		})
	})
}

// Package worker drains the game queue into the repository.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/ratings/internal/adapters/mq/queue"
	"github.com/okian/ratings/internal/adapters/repository"
	"github.com/okian/ratings/pkg/logger"
	"github.com/okian/ratings/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	poolShutdownTimeout     = 30 * time.Second
)

// Game is what workers read off the queue.
type Game = queue.Item

// Queue defines how workers receive games.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Game
}

// Worker persists queued games.
type Worker interface {
	// Run starts the worker loop until ctx is canceled, Shutdown is called,
	// or the queue is closed and drained.
	Run(ctx context.Context)

	// Shutdown stops the worker without draining.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue    Queue
	recorder repository.GameRecorder
	name     string

	shutdown chan struct{}
	done     chan struct{}

	processed *atomic.Int64

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, recorder repository.GameRecorder, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		recorder:  recorder,
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		processed: &atomic.Int64{},
		logger:    logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	games := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case g, ok := <-games:
			if !ok {
				return
			}
			if err := w.processGame(ctx, g); err != nil {
				w.logger.Error(ctx, "error recording game", logger.Error(err))
			}
		}
	}
}

// Shutdown stops the worker and waits for the current game to finish.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Processed returns how many games this worker stored.
func (w *InMemoryWorker) Processed() int64 {
	return w.processed.Load()
}

func (w *InMemoryWorker) processGame(ctx context.Context, g Game) error { //nolint:gocritic // hugeParam: Game must be passed by value for channel semantics
	start := time.Now()
	defer func() {
		metrics.RecordRecordLatency(float64(time.Since(start).Milliseconds()))
	}()

	err := w.recorder.RecordGame(ctx, g)
	switch {
	case err == nil:
		w.processed.Add(1)
		metrics.RecordGameAccepted()
		return nil
	case errors.Is(err, repository.ErrDuplicateGame):
		// replays of an already stored game are expected
		metrics.RecordGameDuplicate()
		w.logger.Debug(ctx, "duplicate game ignored", logger.String("gameID", g.GameID))
		return nil
	case errors.Is(err, repository.ErrInvalidGame):
		metrics.RecordGameRejected("invalid")
		metrics.RecordWorkerError()
		return fmt.Errorf("game %s rejected: %w", g.GameID, err)
	default:
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "record_error")
		return fmt.Errorf("failed to record game %s: %w", g.GameID, err)
	}
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	logger logger.Logger
}

// NewPool creates a new worker pool. A count below one selects a multiple
// of the CPU count.
func NewPool(workerCount int, q Queue, recorder repository.GameRecorder) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(q, recorder, WithName("worker-"+strconv.Itoa(i)))
	}

	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Processed returns the number of games stored by all workers.
func (p *Pool) Processed() int64 {
	var total int64
	for _, w := range p.workers {
		total += w.Processed()
	}
	return total
}

// Start starts all workers in the pool. Workers exit without draining when
// ctx ends; callers that rely on Shutdown draining pass a context that
// outlives it.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Shutdown closes the queue and lets the workers drain it. Workers still
// busy when ctx or the pool timeout expires are stopped without draining.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker drain timed out", logger.Int("worker_id", i))
			close(w.shutdown)
		}
	}

	metrics.UpdateWorkerCount(0)
	if timedOut {
		return fmt.Errorf("worker pool drain: %w", shutdownCtx.Err())
	}
	return nil
}

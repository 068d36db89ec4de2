// Package service wires the store, the ingestion pipeline, the orchestrator
// and the scheduler behind the operations the HTTP API needs.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	gamequeue "github.com/okian/ratings/internal/adapters/mq/queue"
	workerpool "github.com/okian/ratings/internal/adapters/mq/worker"
	repository "github.com/okian/ratings/internal/adapters/repository"
	"github.com/okian/ratings/internal/domain/dedupe"
	"github.com/okian/ratings/internal/domain/glicko"
	"github.com/okian/ratings/internal/domain/model"
	"github.com/okian/ratings/internal/domain/types"
	"github.com/okian/ratings/internal/orchestrator"
	"github.com/okian/ratings/internal/scheduler"
	"github.com/okian/ratings/pkg/logger"
	"github.com/okian/ratings/pkg/metrics"
)

const stopTimeout = 10 * time.Second

// Service implements the API dependencies for the ratings system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store        repository.Store
	deduper      dedupe.Deduper
	queue        *gamequeue.InMemoryQueue
	workerPool   *workerpool.Pool
	orchestrator *orchestrator.Orchestrator
	scheduler    *scheduler.Scheduler

	// Configuration
	workerCount   int
	ingestWorkers int
	queueSize     int
	dedupeSize    int
	params        glicko.Params
	loc           *time.Location
	now           func() time.Time
	schedulerOpts []scheduler.Option

	started bool

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:   runtime.NumCPU(),
		ingestWorkers: runtime.NumCPU(),
		queueSize:     10_000,
		dedupeSize:    50_000,
		params:        glicko.DefaultParams(),
		loc:           time.UTC,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the components and launches the worker pool and the
// scheduler loop. Starting twice is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger.Info(ctx, "starting ratings service...")

	if s.store == nil {
		s.store = repository.NewTreapStore(repository.WithLocation(s.loc))
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = gamequeue.NewInMemoryQueue(gamequeue.WithCapacity(s.queueSize))

	orch, err := orchestrator.New(s.store,
		orchestrator.WithParams(s.params),
		orchestrator.WithWorkerCount(s.workerCount),
		orchestrator.WithLocation(s.loc),
		orchestrator.WithClock(s.now),
	)
	if err != nil {
		return fmt.Errorf("build orchestrator: %w", err)
	}

	schedOpts := append([]scheduler.Option{
		scheduler.WithLocation(s.loc),
		scheduler.WithClock(s.now),
	}, s.schedulerOpts...)
	sched, err := scheduler.New(orch, schedOpts...)
	if err != nil {
		return fmt.Errorf("build scheduler: %w", err)
	}

	s.orchestrator = orch
	s.scheduler = sched
	s.workerPool = workerpool.NewPool(s.ingestWorkers, s.queue, s.store)
	// workers outlive ctx so Stop can drain games already accepted
	s.workerPool.Start(context.WithoutCancel(ctx))
	s.scheduler.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "ratings service started",
		logger.Int("ingestWorkers", s.ingestWorkers),
		logger.Int("recalcWorkers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
	)
	return nil
}

// Stop halts the scheduler and drains the game queue.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping ratings service...")
	s.scheduler.Stop()
	if err := s.workerPool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "ratings service stopped")
}

// SubmitGame validates g and queues it for storage. A missing game id is
// generated. Returns the game id.
func (s *Service) SubmitGame(ctx context.Context, g model.GameResult) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return "", ErrNotStarted
	}

	if g.GameID == "" {
		g.GameID = uuid.NewString()
	}
	if err := g.Validate(); err != nil {
		metrics.RecordGameRejected("invalid")
		return "", fmt.Errorf("%w: %w", repository.ErrInvalidGame, err)
	}

	if s.deduper.SeenAndRecord(ctx, g.GameID) {
		metrics.RecordGameDuplicate()
		s.logger.Debug(ctx, "duplicate game submission", logger.String("gameID", g.GameID))
		return g.GameID, ErrDuplicateGame
	}
	if !s.queue.Enqueue(ctx, g) {
		s.deduper.Unrecord(ctx, g.GameID)
		metrics.RecordGameRejected("queue_full")
		return "", ErrQueueFull
	}
	return g.GameID, nil
}

// TopN returns the top N leaderboard entries.
func (s *Service) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	store, err := s.readyStore()
	if err != nil {
		return nil, err
	}
	entries, err := store.TopN(ctx, n)
	if err != nil {
		return nil, err
	}
	out := make([]types.Entry, len(entries))
	for i, e := range entries {
		out[i] = toEntry(e)
	}
	return out, nil
}

// Rating returns the leaderboard row of one player.
func (s *Service) Rating(ctx context.Context, playerID string) (types.Entry, error) {
	store, err := s.readyStore()
	if err != nil {
		return types.Entry{}, err
	}
	e, err := store.Rating(ctx, playerID)
	if err != nil {
		return types.Entry{}, err
	}
	return toEntry(e), nil
}

// SchedulerStatus returns the scheduler snapshot.
func (s *Service) SchedulerStatus(ctx context.Context) (types.SchedulerStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.scheduler == nil {
		return types.SchedulerStatus{}, ErrNotStarted
	}
	return s.scheduler.Status(), nil
}

// TriggerRecalculation runs a manual recalculation and waits for it.
func (s *Service) TriggerRecalculation(ctx context.Context, period *string) error {
	s.mu.RLock()
	sched := s.scheduler
	s.mu.RUnlock()
	if sched == nil {
		return ErrNotStarted
	}
	return sched.TriggerRecalculation(ctx, period)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":       s.started,
		"workerCount":   s.workerCount,
		"ingestWorkers": s.ingestWorkers,
		"queueSize":     s.queueSize,
		"dedupeSize":    s.dedupeSize,
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		totalPlayers := s.store.Count(ctx)

		stats["queueLength"] = queueLen
		stats["totalPlayers"] = totalPlayers
		stats["gamesProcessed"] = s.workerPool.Processed()
		stats["recentGameIDs"] = s.deduper.Size()
		stats["scheduler"] = s.scheduler.Status()
		cfg := s.scheduler.Config()
		stats["schedule"] = map[string]interface{}{
			"checkInterval": cfg.CheckInterval.String(),
			"runDay":        cfg.RunDay,
			"runHour":       cfg.RunHour,
			"location":      cfg.Location.String(),
		}

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateTotalPlayers(totalPlayers)
	}
	return stats
}

// IsNotFound reports whether err means an unknown player.
func IsNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}

func (s *Service) readyStore() (repository.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store, nil
}

func toEntry(e repository.Entry) types.Entry {
	return types.Entry{
		Rank:       e.Rank,
		PlayerID:   e.PlayerID,
		Rating:     e.State.Rating,
		RD:         e.State.RD,
		Volatility: e.State.Volatility,
		Period:     e.Period.String(),
	}
}

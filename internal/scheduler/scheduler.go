// Package scheduler triggers a ratings recalculation once per calendar month
// and exposes a manual trigger and a status snapshot to operators.
//
// The loop wakes every CheckInterval and asks ShouldRun. The monthly window
// is the RunHour of RunDay in Location; at most one automatic run succeeds per
// (year, month). Runs target the month that just ended.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/okian/ratings/internal/domain/period"
	"github.com/okian/ratings/internal/domain/types"
	"github.com/okian/ratings/pkg/logger"
	"github.com/okian/ratings/pkg/metrics"
)

// Default scheduler configuration constants.
const (
	DefaultCheckInterval = time.Hour
	DefaultRunHour       = 2
	DefaultRunDay        = 1

	// MaxRunDay keeps the window inside every month.
	MaxRunDay = 28

	triggerScheduled = "scheduled"
	triggerManual    = "manual"

	// leases are extended every ttl/renewDivisor while a run holds them
	renewDivisor = 3
)

// Recomputer recalculates every rating for one period. A nil period means
// the most recently completed month.
type Recomputer interface {
	Recompute(ctx context.Context, period *string) error
}

// Lease is a held run lock that expires unless extended.
type Lease interface {
	Release(ctx context.Context) error
	Extend(ctx context.Context, ttl time.Duration) error
	TTL() time.Duration
}

// RunGuard serializes recalculations across processes.
type RunGuard interface {
	// TryAcquire takes the lock named key. acquired is false when another
	// holder has it.
	TryAcquire(ctx context.Context, key string) (lease Lease, acquired bool, err error)
}

// Status is the observable scheduler snapshot.
type Status = types.SchedulerStatus

// Config holds the monthly cadence.
type Config struct {
	CheckInterval time.Duration
	RunHour       int
	RunDay        int
	Location      *time.Location
}

// Validate reports out-of-range settings.
func (c Config) Validate() error {
	switch {
	case c.CheckInterval <= 0:
		return fmt.Errorf("%w: check interval must be positive", ErrInvalidConfig)
	case c.RunHour < 0 || c.RunHour > 23:
		return fmt.Errorf("%w: run hour %d not in [0, 23]", ErrInvalidConfig, c.RunHour)
	case c.RunDay < 1 || c.RunDay > MaxRunDay:
		return fmt.Errorf("%w: run day %d not in [1, %d]", ErrInvalidConfig, c.RunDay, MaxRunDay)
	case c.Location == nil:
		return fmt.Errorf("%w: location is required", ErrInvalidConfig)
	}
	return nil
}

// Scheduler owns the monthly loop. The zero value is not usable; see New.
type Scheduler struct {
	cfg        Config
	recomputer Recomputer
	guard      RunGuard
	schedule   cron.Schedule
	now        func() time.Time
	logger     logger.Logger

	group singleflight.Group

	// mu guards the fields below. It is never held while recomputing.
	mu      sync.Mutex
	running bool
	lastRun *time.Time
	stop    chan struct{}
}

// New builds a stopped scheduler.
func New(r Recomputer, opts ...Option) (*Scheduler, error) {
	if r == nil {
		return nil, ErrNilRecomputer
	}
	s := &Scheduler{
		cfg: Config{
			CheckInterval: DefaultCheckInterval,
			RunHour:       DefaultRunHour,
			RunDay:        DefaultRunDay,
			Location:      time.UTC,
		},
		recomputer: r,
		now:        time.Now,
		logger:     logger.Get().Named("scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}

	sched, err := cron.ParseStandard(fmt.Sprintf("0 %d %d * *", s.cfg.RunHour, s.cfg.RunDay))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	s.schedule = sched
	return s, nil
}

// Config returns the effective configuration.
func (s *Scheduler) Config() Config {
	return s.cfg
}

// Start launches the loop and returns immediately. Starting a running
// scheduler only logs a warning.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn(ctx, "scheduler already running")
		return
	}
	s.running = true
	stop := make(chan struct{})
	s.stop = stop
	s.mu.Unlock()

	metrics.UpdateSchedulerRunning(true)
	metrics.UpdateSchedulerNextRun(s.nextRun(s.now()).Unix())
	s.logger.Info(ctx, "scheduler started",
		logger.Duration("checkInterval", s.cfg.CheckInterval),
		logger.Int("runDay", s.cfg.RunDay),
		logger.Int("runHour", s.cfg.RunHour),
		logger.String("location", s.cfg.Location.String()),
	)

	go s.loop(ctx, stop)
}

// Stop marks the scheduler stopped. The loop exits at its next wait; an
// in-flight recalculation runs to completion.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	close(s.stop)
	s.stop = nil
	metrics.UpdateSchedulerRunning(false)
}

func (s *Scheduler) loop(ctx context.Context, stop <-chan struct{}) {
	timer := time.NewTimer(s.cfg.CheckInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.markStopped(stop)
			return
		case <-stop:
			return
		case <-timer.C:
		}

		s.tick(ctx)
		timer.Reset(s.cfg.CheckInterval)
	}
}

// markStopped clears the running flag when the loop's context ends, unless
// a newer loop has taken over.
func (s *Scheduler) markStopped(stop <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running && s.stop != nil && (<-chan struct{})(s.stop) == stop {
		s.running = false
		close(s.stop)
		s.stop = nil
		metrics.UpdateSchedulerRunning(false)
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	now := s.now()
	metrics.UpdateSchedulerNextRun(s.nextRun(now).Unix())
	if !s.ShouldRun(now) {
		return
	}
	metrics.RecordSchedulerDue()

	target := period.LastCompleted(now.In(s.cfg.Location)).String()
	s.logger.Info(ctx, "monthly recalculation due", logger.String("period", target))

	if err := s.run(ctx, triggerScheduled, &target); err != nil {
		// no same-tick retry; the next window retries
		metrics.RecordErrorByComponent("scheduler", "recalculation_failed")
		s.logger.Error(ctx, "scheduled recalculation failed",
			logger.String("period", target),
			logger.Error(err),
		)
		return
	}

	done := s.now()
	s.mu.Lock()
	s.lastRun = &done
	s.mu.Unlock()
	metrics.UpdateSchedulerLastRun(done.Unix())
	s.logger.Info(ctx, "scheduled recalculation completed",
		logger.String("period", target),
		logger.Time("completedAt", done),
	)
}

// ShouldRun reports whether now falls in the monthly window and no automatic
// run has completed in now's month yet.
func (s *Scheduler) ShouldRun(now time.Time) bool {
	local := now.In(s.cfg.Location)
	if local.Day() != s.cfg.RunDay || local.Hour() != s.cfg.RunHour {
		return false
	}

	s.mu.Lock()
	last := s.lastRun
	s.mu.Unlock()

	if last == nil {
		return true
	}
	prev := last.In(s.cfg.Location)
	return prev.Year() != local.Year() || prev.Month() != local.Month()
}

// TriggerRecalculation recomputes period now, whatever the scheduler state.
// A nil period targets the most recently completed month. A successful
// manual run does not count as the month's automatic run.
func (s *Scheduler) TriggerRecalculation(ctx context.Context, p *string) error {
	err := s.run(ctx, triggerManual, p)
	if err != nil {
		s.logger.Warn(ctx, "manual recalculation failed", logger.Error(err))
	}
	return err
}

// Status returns a snapshot. NextScheduledRun depends on the clock only.
func (s *Scheduler) Status() Status {
	now := s.now()

	s.mu.Lock()
	st := Status{IsRunning: s.running}
	if s.lastRun != nil {
		last := *s.lastRun
		st.LastRun = &last
	}
	s.mu.Unlock()

	st.NextScheduledRun = s.nextRun(now)
	return st
}

// nextRun is the first window start strictly after now.
func (s *Scheduler) nextRun(now time.Time) time.Time {
	return s.schedule.Next(now.In(s.cfg.Location))
}

// run executes one recalculation. Calls for the same period share a single
// execution and its error.
func (s *Scheduler) run(ctx context.Context, trigger string, p *string) error {
	target, err := s.resolve(p)
	if err != nil {
		return err
	}
	key := target.String()

	// a caller going away must not abort a run others may be sharing
	runCtx := context.WithoutCancel(ctx)
	_, err, shared := s.group.Do(key, func() (any, error) {
		return nil, s.execute(runCtx, trigger, key)
	})
	if shared {
		metrics.RecordRecalculationShared()
	}
	return err
}

func (s *Scheduler) resolve(p *string) (period.Period, error) {
	if p == nil {
		return period.LastCompleted(s.now().In(s.cfg.Location)), nil
	}
	return period.Parse(*p)
}

func (s *Scheduler) execute(ctx context.Context, trigger, key string) (err error) {
	if s.guard != nil {
		lease, acquired, gerr := s.guard.TryAcquire(ctx, key)
		if gerr != nil {
			return fmt.Errorf("acquire run lock for %s: %w", key, gerr)
		}
		if !acquired {
			return fmt.Errorf("%w: %s", ErrRunInProgress, key)
		}
		stopRenewing := s.keepAlive(ctx, key, lease)
		defer func() {
			stopRenewing()
			if rerr := lease.Release(ctx); rerr != nil {
				s.logger.Warn(ctx, "run lock release failed", logger.String("period", key), logger.Error(rerr))
			}
		}()
	}

	metrics.IncRecalculationInProgress()
	start := time.Now()
	defer func() {
		metrics.DecRecalculationInProgress()
		result := "success"
		if err != nil {
			result = "failure"
		}
		metrics.RecordRecalculation(trigger, result, time.Since(start).Seconds())
	}()

	if err := s.recomputer.Recompute(ctx, &key); err != nil {
		return fmt.Errorf("recompute %s: %w", key, err)
	}
	return nil
}

// keepAlive extends lease until the returned func is called. The func
// waits for the renewer to exit, so no extension races the release.
func (s *Scheduler) keepAlive(ctx context.Context, key string, lease Lease) func() {
	ttl := lease.TTL()
	interval := ttl / renewDivisor
	if interval <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
			}
			if err := lease.Extend(ctx, ttl); err != nil {
				metrics.RecordErrorByComponent("scheduler", "lock_renew_failed")
				s.logger.Warn(ctx, "run lock renewal failed",
					logger.String("period", key),
					logger.Error(err),
				)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			wg.Wait()
		})
	}
}

package service

import (
	"time"

	repository "github.com/okian/ratings/internal/adapters/repository"
	"github.com/okian/ratings/internal/domain/glicko"
	"github.com/okian/ratings/internal/scheduler"
	"github.com/okian/ratings/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount bounds concurrent per-player updates during a recalculation.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithIngestWorkers sets the number of workers draining the game queue.
func WithIngestWorkers(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.ingestWorkers = count
		}
	}
}

// WithQueueSize sets the maximum size of the game queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many recent game ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		s.dedupeSize = size
	}
}

// WithParams sets the Glicko-2 parameters.
func WithParams(p glicko.Params) Option {
	return func(s *Service) {
		s.params = p
	}
}

// WithLocation sets the zone periods are cut in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithStore replaces the in-memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithSchedulerOptions forwards options to the scheduler.
func WithSchedulerOptions(opts ...scheduler.Option) Option {
	return func(s *Service) {
		s.schedulerOpts = append(s.schedulerOpts, opts...)
	}
}

// WithClock replaces time.Now for the scheduler and the orchestrator.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

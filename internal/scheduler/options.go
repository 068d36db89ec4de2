package scheduler

import (
	"time"

	"github.com/okian/ratings/pkg/logger"
)

// Option applies a configuration option to the Scheduler.
type Option func(*Scheduler)

// WithCheckInterval sets how long the loop sleeps between due checks.
func WithCheckInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.cfg.CheckInterval = d
		}
	}
}

// WithRunHour sets the local hour (0-23) of the monthly run window.
func WithRunHour(hour int) Option {
	return func(s *Scheduler) {
		s.cfg.RunHour = hour
	}
}

// WithRunDay sets the day of month (1-28) of the monthly run window.
func WithRunDay(day int) Option {
	return func(s *Scheduler) {
		s.cfg.RunDay = day
	}
}

// WithLocation sets the time zone the run window is evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.cfg.Location = loc
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the scheduler.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRunGuard serializes runs across instances.
func WithRunGuard(g RunGuard) Option {
	return func(s *Scheduler) {
		s.guard = g
	}
}

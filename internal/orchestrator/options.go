package orchestrator

import (
	"time"

	"github.com/okian/ratings/internal/domain/glicko"
	"github.com/okian/ratings/pkg/logger"
)

// Option applies a configuration option to the Orchestrator.
type Option func(*Orchestrator)

// WithParams sets the engine parameters.
func WithParams(p glicko.Params) Option {
	return func(o *Orchestrator) {
		o.params = p
	}
}

// WithWorkerCount bounds concurrent per-player updates.
func WithWorkerCount(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithLocation sets the zone periods are resolved and bounded in.
func WithLocation(loc *time.Location) Option {
	return func(o *Orchestrator) {
		if loc != nil {
			o.loc = loc
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

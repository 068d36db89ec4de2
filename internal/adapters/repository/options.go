// Package repository stores game results and per-period rating history.
package repository

import "time"

// Option applies a configuration option to the TreapStore.
type Option func(*TreapStore)

// WithLocation sets the time zone used to assign games to monthly periods.
func WithLocation(loc *time.Location) Option {
	return func(s *TreapStore) {
		if loc != nil {
			s.loc = loc
		}
	}
}

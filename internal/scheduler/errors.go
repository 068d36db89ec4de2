package scheduler

import "errors"

var (
	// ErrRunInProgress is returned when another instance holds the run lock
	// for the requested period.
	ErrRunInProgress = errors.New("recalculation already in progress")
	// ErrNilRecomputer is returned by New when no Recomputer is supplied.
	ErrNilRecomputer = errors.New("recomputer is required")
	// ErrInvalidConfig wraps out-of-range scheduler settings.
	ErrInvalidConfig = errors.New("invalid scheduler config")
)

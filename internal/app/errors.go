package service

import "errors"

var (
	// ErrNotStarted is returned by calls made before Start.
	ErrNotStarted = errors.New("service not started")
	// ErrQueueFull is returned when a game cannot be buffered.
	ErrQueueFull = errors.New("game queue full")
	// ErrDuplicateGame is returned for a game id that was already accepted.
	ErrDuplicateGame = errors.New("duplicate game")
)

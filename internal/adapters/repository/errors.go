package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound      = errors.New("player not found")
	ErrInvalidLimit  = errors.New("invalid leaderboard limit")
	ErrDuplicateGame = errors.New("duplicate game id")
	ErrInvalidGame   = errors.New("invalid game result")
)

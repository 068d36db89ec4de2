// Package repository stores game results and per-period rating history.
package repository

import (
	"context"

	"github.com/okian/ratings/internal/domain/glicko"
	"github.com/okian/ratings/internal/domain/model"
	"github.com/okian/ratings/internal/domain/period"
)

// Entry represents a leaderboard row.
type Entry struct {
	Rank     int
	PlayerID string
	State    glicko.RatingState
	Period   period.Period
}

// GameRecorder persists submitted game results.
type GameRecorder interface {
	// RecordGame stores g. Returns ErrDuplicateGame if the id is known and
	// ErrInvalidGame if g does not validate.
	RecordGame(ctx context.Context, g model.GameResult) error
}

// Store provides read/write access to games and ratings.
type Store interface {
	GameRecorder

	// GamesInPeriod returns every game played in p.
	GamesInPeriod(ctx context.Context, p period.Period) ([]model.GameResult, error)

	// RatingsBefore returns each player's latest rating from a period earlier
	// than p. Players first rated in p or later are absent.
	RatingsBefore(ctx context.Context, p period.Period) (map[string]model.PlayerRating, error)

	// SaveRatings stores the post-update states of period p, replacing any
	// earlier write for the same period.
	SaveRatings(ctx context.Context, p period.Period, states map[string]glicko.RatingState) error

	// Rating returns the current leaderboard row of a player.
	// Returns ErrNotFound if the player was never rated.
	Rating(ctx context.Context, playerID string) (Entry, error)

	// TopN returns the top-N entries ordered by rating desc.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Count returns the number of rated players.
	Count(ctx context.Context) int
}

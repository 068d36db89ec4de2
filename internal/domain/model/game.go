// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"strings"
	"time"

	"github.com/okian/ratings/internal/domain/glicko"
	"github.com/okian/ratings/internal/domain/period"
)

// Validation errors for game results.
var (
	ErrMissingGameID   = errors.New("missing game id")
	ErrMissingPlayer   = errors.New("missing player id")
	ErrSamePlayer      = errors.New("player cannot play themselves")
	ErrMissingPlayedAt = errors.New("missing played_at")
)

// GameResult is one finished game between two players.
type GameResult struct {
	GameID  string
	PlayerA string
	PlayerB string
	// Score from PlayerA's side: 1 win, 0.5 draw, 0 loss.
	Score float64
	// Weight scales the game's influence; 0 keeps it on record but unrated.
	Weight   float64
	PlayedAt time.Time
}

// Validate checks identifiers, score, and weight.
func (g GameResult) Validate() error {
	switch {
	case strings.TrimSpace(g.GameID) == "":
		return ErrMissingGameID
	case strings.TrimSpace(g.PlayerA) == "" || strings.TrimSpace(g.PlayerB) == "":
		return ErrMissingPlayer
	case g.PlayerA == g.PlayerB:
		return ErrSamePlayer
	case g.PlayedAt.IsZero():
		return ErrMissingPlayedAt
	}
	return glicko.OpponentSample{Score: g.Score, Weight: g.Weight}.Validate()
}

// Period returns the rating period the game belongs to, in loc.
func (g GameResult) Period(loc *time.Location) period.Period {
	if loc == nil {
		loc = time.UTC
	}
	return period.Of(g.PlayedAt.In(loc))
}

// PlayerRating is a player's rating state as of a rated period.
type PlayerRating struct {
	PlayerID string
	State    glicko.RatingState
	// Period is the last period applied to State.
	Period period.Period
}

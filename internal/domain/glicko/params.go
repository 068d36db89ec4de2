package glicko

import (
	"fmt"
	"math"
)

// Default tuning values from Glickman's paper.
const (
	DefaultRating     = 1500.0
	DefaultRD         = 350.0
	DefaultVolatility = 0.06
	DefaultTau        = 0.5

	MinTau = 0.2
	MaxTau = 1.2
)

// Params holds the immutable tuning configuration of the engine.
type Params struct {
	DefaultRating     float64
	DefaultRD         float64
	DefaultVolatility float64
	// Tau constrains volatility change; smaller values change ratings more
	// conservatively.
	Tau float64
}

// DefaultParams returns the paper's recommended configuration.
func DefaultParams() Params {
	return Params{
		DefaultRating:     DefaultRating,
		DefaultRD:         DefaultRD,
		DefaultVolatility: DefaultVolatility,
		Tau:               DefaultTau,
	}
}

// NewState returns the starting state for a player rated for the first time.
func (p Params) NewState() RatingState {
	return RatingState{
		Rating:     p.DefaultRating,
		RD:         p.DefaultRD,
		Volatility: p.DefaultVolatility,
	}
}

// Validate checks that p can drive the engine.
func (p Params) Validate() error {
	switch {
	case !finite(p.DefaultRating):
		return fmt.Errorf("%w: default rating must be finite", ErrInvalidParams)
	case !(p.DefaultRD > 0) || !finite(p.DefaultRD):
		return fmt.Errorf("%w: default rd must be > 0", ErrInvalidParams)
	case !(p.DefaultVolatility > 0) || !finite(p.DefaultVolatility):
		return fmt.Errorf("%w: default volatility must be > 0", ErrInvalidParams)
	case p.Tau < MinTau || p.Tau > MaxTau:
		return fmt.Errorf("%w: tau %.3f outside [%.1f, %.1f]", ErrInvalidParams, p.Tau, MinTau, MaxTau)
	}
	return nil
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// Package glicko implements the Glicko-2 rating period update.
//
// Variables follow Glickman's paper (https://www.glicko.net/glicko/glicko2.pdf):
//   - mu, phi: rating and deviation on the internal Glicko-2 scale.
//   - sigma: rating volatility.
//   - tau: volatility change constraint.
//   - g: weighting that reduces the influence of uncertain opponents.
//   - e: expected score against an opponent.
//   - v: estimated variance of the rating from game outcomes only.
//   - delta: estimated improvement in rating.
//
// Every function is pure; values are passed and returned by copy.
package glicko

import "math"

const (
	// scale converts between the display scale and the internal scale.
	scale = 173.7178
	// center is the display rating that maps to mu = 0.
	center = 1500.0

	bisectionIterations = 30
	bisectionEpsilon    = 1e-6
	bisectionHalfWidth  = 10.0
)

// RatingState is a player's current skill estimate on the display scale.
type RatingState struct {
	Rating     float64 `json:"rating"`
	RD         float64 `json:"rd"`
	Volatility float64 `json:"volatility"`
}

// OpponentSample is one scored interaction against one opponent.
type OpponentSample struct {
	OpponentRating float64
	OpponentRD     float64
	// 0 loss, 0.5 draw, 1 win.
	Score float64
	// Samples with Weight <= 0 are ignored.
	Weight float64
}

// Validate reports whether the sample carries a legal score and weight.
func (s OpponentSample) Validate() error {
	if !ValidScore(s.Score) {
		return ErrInvalidScore
	}
	if s.Weight < 0 || math.IsNaN(s.Weight) || math.IsInf(s.Weight, 0) {
		return ErrInvalidWeight
	}
	return nil
}

// ValidScore reports whether score is a win, draw, or loss.
func ValidScore(score float64) bool {
	return score == 0 || score == 0.5 || score == 1
}

// InflateForInactivity grows the deviation of a player who sat out
// elapsedPeriods rating periods. Rating and volatility are unchanged.
func InflateForInactivity(state RatingState, elapsedPeriods int) RatingState {
	if elapsedPeriods <= 0 {
		return state
	}
	phi := toPhi(state.RD)
	phi = math.Sqrt(pow2(phi) + pow2(state.Volatility)*float64(elapsedPeriods))
	state.RD = fromPhi(phi)
	return state
}

// UpdatePeriod applies one rating period worth of samples to state.
// With no usable samples the state is returned unchanged; inactivity is a
// separate step, see InflateForInactivity.
func UpdatePeriod(state RatingState, samples []OpponentSample, params Params) RatingState {
	if len(samples) == 0 {
		return state
	}

	// Step 2.
	mu := toMu(state.Rating)
	phi := toPhi(state.RD)
	sigma := state.Volatility

	// Step 3.
	var vInv, deltaSum float64
	for _, s := range samples {
		if s.Weight <= 0 {
			continue
		}
		oppMu := toMu(s.OpponentRating)
		g := calcG(toPhi(s.OpponentRD))
		e := calcE(mu, oppMu, g)
		vInv += s.Weight * pow2(g) * e * (1 - e)
		deltaSum += s.Weight * g * (s.Score - e)
	}

	// Step 4.
	if vInv <= 0 {
		return state
	}

	// Step 5.
	v := 1 / vInv
	delta := v * deltaSum

	// Step 6.
	sigmaPrime := solveVolatility(sigma, delta, phi, v, params.Tau)

	// Steps 7 and 8.
	phiStar := math.Sqrt(pow2(phi) + pow2(sigmaPrime))
	phiPrime := 1 / math.Sqrt(1/pow2(phiStar)+1/v)

	// Step 9.
	muPrime := mu + pow2(phiPrime)*deltaSum

	// Step 10.
	return RatingState{
		Rating:     fromMu(muPrime),
		RD:         fromPhi(phiPrime),
		Volatility: sigmaPrime,
	}
}

// solveVolatility bisects f on [a-10, a+10] and returns sigma'.
// The iteration cap and the epsilon are both honoured; extreme delta or v can
// keep the bracket wide for longer than the cap allows.
func solveVolatility(sigma, delta, phi, v, tau float64) float64 {
	a := math.Log(pow2(sigma))
	lo, hi := a-bisectionHalfWidth, a+bisectionHalfWidth
	fLo := f(lo, delta, phi, v, a, tau)

	for i := 0; i < bisectionIterations && hi-lo >= bisectionEpsilon; i++ {
		mid := (lo + hi) / 2
		fMid := f(mid, delta, phi, v, a, tau)
		if fMid == 0 {
			lo, hi = mid, mid
			break
		}
		if (fMid > 0) == (fLo > 0) {
			lo, fLo = mid, fMid
		} else {
			hi = mid
		}
	}
	return math.Exp((lo + hi) / 4)
}

func f(x, delta, phi, v, a, tau float64) float64 {
	ex := math.Exp(x)
	num := ex * (pow2(delta) - pow2(phi) - v - ex)
	den := 2 * pow2(pow2(phi)+v+ex)
	return num/den - (x-a)/pow2(tau)
}

func calcG(phi float64) float64 {
	return 1 / math.Sqrt(1+3*pow2(phi)/pow2(math.Pi))
}

func calcE(mu, oppMu, g float64) float64 {
	return 1 / (1 + math.Exp(-g*(mu-oppMu)))
}

func toMu(rating float64) float64 { return (rating - center) / scale }
func fromMu(mu float64) float64   { return mu*scale + center }
func toPhi(rd float64) float64    { return rd / scale }
func fromPhi(phi float64) float64 { return phi * scale }
func pow2(x float64) float64      { return x * x }

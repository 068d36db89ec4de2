// Package types contains read shapes shared by the service and HTTP layers.
package types

import "time"

// Entry is one leaderboard row.
type Entry struct {
	Rank       int     `json:"rank"`
	PlayerID   string  `json:"player_id"`
	Rating     float64 `json:"rating"`
	RD         float64 `json:"rd"`
	Volatility float64 `json:"volatility"`
	// Period is the last period applied to the rating, "YYYY-MM".
	Period string `json:"period"`
}

// RecalculationResult is the outcome of a manual recalculation request.
type RecalculationResult struct {
	Success bool   `json:"success"`
	Period  string `json:"period,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SchedulerStatus mirrors the scheduler snapshot on the wire.
type SchedulerStatus struct {
	IsRunning        bool       `json:"is_running"`
	LastRun          *time.Time `json:"last_run,omitempty"`
	NextScheduledRun time.Time  `json:"next_scheduled_run"`
}

package glicko

import "errors"

// Sentinel errors for input validation. The engine itself never fails.
var (
	ErrInvalidParams = errors.New("invalid glicko params")
	ErrInvalidScore  = errors.New("score must be 0, 0.5 or 1")
	ErrInvalidWeight = errors.New("weight must be a finite value >= 0")
)

package orchestrator

import "errors"

// ErrNilStore is returned by New without a store.
var ErrNilStore = errors.New("store is required")

// Package dedupe remembers recently submitted game ids so replays are
// answered before they reach the queue.
package dedupe

import (
	"context"
	"sync"
)

const defaultMaxSize = 50_000

// Deduper tracks ids that were already accepted.
type Deduper interface {
	// SeenAndRecord reports whether id was seen and records it if not.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so it can be submitted again.
	Unrecord(ctx context.Context, id string)

	// Size returns the number of remembered ids.
	Size() int64
}

// ringDeduper keeps at most maxSize ids and forgets the oldest first.
// With maxSize <= 0 nothing is ever forgotten.
type ringDeduper struct {
	mu      sync.Mutex
	maxSize int
	// seen maps an id to the sequence number it was recorded under.
	seen map[string]uint64
	ring []string
	next uint64
}

// NewInMemoryDeduper creates a Deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &ringDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]uint64)
	if d.maxSize > 0 {
		d.ring = make([]string, d.maxSize)
	}
	return d
}

func (d *ringDeduper) SeenAndRecord(ctx context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}

	if d.ring != nil {
		slot := d.next % uint64(len(d.ring))
		// the slot may hold an id that was since unrecorded and re-added
		if old := d.ring[slot]; old != "" {
			if seq, ok := d.seen[old]; ok && seq+uint64(len(d.ring)) == d.next {
				delete(d.seen, old)
			}
		}
		d.ring[slot] = id
	}
	d.seen[id] = d.next
	d.next++
	return false
}

func (d *ringDeduper) Unrecord(ctx context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, id)
}

func (d *ringDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}

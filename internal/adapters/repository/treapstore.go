// Package repository stores game results and per-period rating history.
package repository

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/okian/ratings/internal/domain/glicko"
	"github.com/okian/ratings/internal/domain/model"
	"github.com/okian/ratings/internal/domain/period"
	"github.com/okian/ratings/pkg/metrics"
)

// In-memory Store. The leaderboard is a treap ordered by rating DESC, then
// player id ASC, so an in-order walk yields the leaderboard from best to
// worst and subtree sizes give ranks in O(log n).

type node struct {
	id     string
	rating float64
	prio   uint64
	left   *node
	right  *node
	size   int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less reports whether (aRating, aID) ranks before (bRating, bID).
func less(aRating float64, aID string, bRating float64, bID string) bool {
	if aRating != bRating {
		return aRating > bRating
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id string, rating float64) *node {
	if n == nil {
		return &node{id: id, rating: rating, prio: rand.Uint64(), size: 1}
	}
	if less(rating, id, n.rating, n.id) {
		n.left = insert(n.left, id, rating)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, rating)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, rating float64) *node {
	if n == nil {
		return nil
	}
	switch {
	case rating == n.rating && id == n.id:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, rating)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, rating)
		}
	case less(rating, id, n.rating, n.id):
		n.left = deleteNode(n.left, id, rating)
	default:
		n.right = deleteNode(n.right, id, rating)
	}
	fix(n)
	return n
}

// countAbove returns how many players have a strictly higher rating.
func countAbove(n *node, rating float64) int {
	count := 0
	for n != nil {
		if n.rating > rating {
			count += nsize(n.left) + 1
			n = n.right
		} else {
			n = n.left
		}
	}
	return count
}

// collectTopN appends up to limit ids in leaderboard order.
func collectTopN(n *node, limit int, out *[]string) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n.id)
	}
	collectTopN(n.right, limit, out)
}

// TreapStore implements Store in memory.
type TreapStore struct {
	mu   sync.RWMutex
	root *node
	loc  *time.Location

	games    map[string]model.GameResult
	byPeriod map[period.Period][]string

	// history holds each player's ratings sorted by period ascending.
	history map[string][]model.PlayerRating
	current map[string]model.PlayerRating
}

// NewTreapStore constructs an empty store.
func NewTreapStore(opts ...Option) *TreapStore {
	s := &TreapStore{
		loc:      time.UTC,
		games:    make(map[string]model.GameResult),
		byPeriod: make(map[period.Period][]string),
		history:  make(map[string][]model.PlayerRating),
		current:  make(map[string]model.PlayerRating),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordGame implements GameRecorder.
func (s *TreapStore) RecordGame(ctx context.Context, g model.GameResult) error {
	if err := g.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidGame, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.games[g.GameID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateGame, g.GameID)
	}
	s.games[g.GameID] = g
	p := g.Period(s.loc)
	s.byPeriod[p] = append(s.byPeriod[p], g.GameID)
	return nil
}

// GamesInPeriod implements Store.
func (s *TreapStore) GamesInPeriod(ctx context.Context, p period.Period) ([]model.GameResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byPeriod[p]
	out := make([]model.GameResult, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.games[id])
	}
	return out, nil
}

// RatingsBefore implements Store.
func (s *TreapStore) RatingsBefore(ctx context.Context, p period.Period) (map[string]model.PlayerRating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]model.PlayerRating, len(s.history))
	for id, hist := range s.history {
		// first index whose period is not before p
		i := sort.Search(len(hist), func(i int) bool { return !hist[i].Period.Before(p) })
		if i > 0 {
			out[id] = hist[i-1]
		}
	}
	return out, nil
}

// SaveRatings implements Store.
func (s *TreapStore) SaveRatings(ctx context.Context, p period.Period, states map[string]glicko.RatingState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, st := range states {
		rec := model.PlayerRating{PlayerID: id, State: st, Period: p}
		hist := s.history[id]
		i := sort.Search(len(hist), func(i int) bool { return !hist[i].Period.Before(p) })
		if i < len(hist) && hist[i].Period == p {
			hist[i] = rec
		} else {
			hist = append(hist, model.PlayerRating{})
			copy(hist[i+1:], hist[i:])
			hist[i] = rec
		}
		s.history[id] = hist
		s.setCurrent(id, hist[len(hist)-1])
	}

	metrics.UpdateTotalPlayers(len(s.current))
	return nil
}

// setCurrent moves a player to its latest rating in the treap. Caller holds mu.
func (s *TreapStore) setCurrent(id string, latest model.PlayerRating) {
	if old, ok := s.current[id]; ok {
		s.root = deleteNode(s.root, id, old.State.Rating)
	}
	s.current[id] = latest
	s.root = insert(s.root, id, latest.State.Rating)
}

// Rating implements Store in O(log n).
func (s *TreapStore) Rating(ctx context.Context, playerID string) (Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	cur, ok := s.current[playerID]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return Entry{}, ErrNotFound
	}
	return Entry{
		Rank:     countAbove(s.root, cur.State.Rating) + 1,
		PlayerID: playerID,
		State:    cur.State,
		Period:   cur.Period,
	}, nil
}

// TopN implements Store. Players sharing a rating share a rank.
func (s *TreapStore) TopN(ctx context.Context, n int) ([]Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, min(n, len(s.current)))
	collectTopN(s.root, n, &ids)

	out := make([]Entry, len(ids))
	for i, id := range ids {
		cur := s.current[id]
		rank := i + 1
		if i > 0 && out[i-1].State.Rating == cur.State.Rating {
			rank = out[i-1].Rank
		}
		out[i] = Entry{Rank: rank, PlayerID: id, State: cur.State, Period: cur.Period}
	}
	return out, nil
}

// Count implements Store.
func (s *TreapStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.current)
}

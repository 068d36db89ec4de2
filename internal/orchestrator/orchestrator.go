// Package orchestrator recomputes every player's rating for one period.
package orchestrator

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/ratings/internal/adapters/repository"
	"github.com/okian/ratings/internal/domain/glicko"
	"github.com/okian/ratings/internal/domain/model"
	"github.com/okian/ratings/internal/domain/period"
	"github.com/okian/ratings/pkg/logger"
	"github.com/okian/ratings/pkg/metrics"
)

// Orchestrator turns a period's games into new rating states.
//
// Every player's starting point is the latest state saved for an earlier
// period, so recomputing a period twice writes the same result.
type Orchestrator struct {
	store   repository.Store
	params  glicko.Params
	workers int
	loc     *time.Location
	now     func() time.Time
	logger  logger.Logger
}

// New creates an orchestrator over store.
func New(store repository.Store, opts ...Option) (*Orchestrator, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	o := &Orchestrator{
		store:   store,
		params:  glicko.DefaultParams(),
		workers: runtime.NumCPU(),
		loc:     time.UTC,
		now:     time.Now,
		logger:  logger.Get().Named("orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	if err := o.params.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// Recompute rates period p, "YYYY-MM". A nil p means the last completed
// month.
func (o *Orchestrator) Recompute(ctx context.Context, p *string) error {
	target, err := o.resolve(p)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	log := o.logger
	start := time.Now()
	from, to := target.Bounds(o.loc)
	log.Info(ctx, "recalculation started",
		logger.String("runID", runID),
		logger.String("period", target.String()),
		logger.Time("from", from),
		logger.Time("to", to),
	)

	games, err := o.store.GamesInPeriod(ctx, target)
	if err != nil {
		return fmt.Errorf("load games for %s: %w", target, err)
	}
	prior, err := o.store.RatingsBefore(ctx, target)
	if err != nil {
		return fmt.Errorf("load ratings before %s: %w", target, err)
	}
	if len(games) == 0 {
		log.Info(ctx, "no games in period", logger.String("runID", runID), logger.String("period", target.String()))
		metrics.UpdatePlayersRated(0)
		return nil
	}

	// pre-period state of everyone who played, inflated for skipped periods
	initial := make(map[string]glicko.RatingState)
	for _, g := range games {
		for _, id := range [2]string{g.PlayerA, g.PlayerB} {
			if _, ok := initial[id]; ok {
				continue
			}
			initial[id] = o.startingState(id, prior, target)
		}
	}

	samples := make(map[string][]glicko.OpponentSample, len(initial))
	for _, g := range games {
		a, b := initial[g.PlayerA], initial[g.PlayerB]
		samples[g.PlayerA] = append(samples[g.PlayerA], glicko.OpponentSample{
			OpponentRating: b.Rating, OpponentRD: b.RD, Score: g.Score, Weight: g.Weight,
		})
		samples[g.PlayerB] = append(samples[g.PlayerB], glicko.OpponentSample{
			OpponentRating: a.Rating, OpponentRD: a.RD, Score: 1 - g.Score, Weight: g.Weight,
		})
	}

	updated, err := o.updateAll(ctx, initial, samples)
	if err != nil {
		return fmt.Errorf("update ratings for %s: %w", target, err)
	}
	if err := o.store.SaveRatings(ctx, target, updated); err != nil {
		return fmt.Errorf("save ratings for %s: %w", target, err)
	}

	metrics.UpdatePlayersRated(len(updated))
	log.Info(ctx, "recalculation completed",
		logger.String("runID", runID),
		logger.String("period", target.String()),
		logger.Int("games", len(games)),
		logger.Int("players", len(updated)),
		logger.Duration("took", time.Since(start)),
	)
	return nil
}

func (o *Orchestrator) resolve(p *string) (period.Period, error) {
	if p == nil {
		return period.LastCompleted(o.now().In(o.loc)), nil
	}
	return period.Parse(*p)
}

// startingState is id's state entering target. Unknown players start from
// the defaults; players who sat out periods have their RD grown first.
func (o *Orchestrator) startingState(id string, prior map[string]model.PlayerRating, target period.Period) glicko.RatingState {
	last, ok := prior[id]
	if !ok {
		return o.params.NewState()
	}
	if skipped := period.Between(last.Period, target) - 1; skipped > 0 {
		metrics.RecordEngineInflation()
		return glicko.InflateForInactivity(last.State, skipped)
	}
	return last.State
}

// updateAll runs the engine for every player with samples.
func (o *Orchestrator) updateAll(
	ctx context.Context,
	initial map[string]glicko.RatingState,
	samples map[string][]glicko.OpponentSample,
) (map[string]glicko.RatingState, error) {
	var (
		mu  sync.Mutex
		out = make(map[string]glicko.RatingState, len(samples))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for id, batch := range samples {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			skipped := 0
			for _, s := range batch {
				if s.Weight <= 0 {
					skipped++
				}
			}
			next := glicko.UpdatePeriod(initial[id], batch, o.params)

			metrics.RecordEngineUpdate()
			metrics.RecordEngineSkippedSamples(skipped)

			mu.Lock()
			out[id] = next
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

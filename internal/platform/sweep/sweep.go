// Package sweep drives the periodic escalation pass over open collections
// accounts. Each pass promotes eligible accounts by at most one threshold,
// so the cadence controls pacing, not correctness.
package sweep

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/emsops/emsops/internal/domain/collections"
)

const defaultBatchSize = 500

// Advancer is the slice of the collections service the sweeper needs.
type Advancer interface {
	SweepableAccounts(ctx context.Context, limit int) ([]uuid.UUID, error)
	Advance(ctx context.Context, accountID uuid.UUID, now time.Time) (*collections.CollectionsAccount, bool, error)
}

// Result summarizes one sweep pass.
type Result struct {
	Examined     int
	Transitioned int
	Skipped      int
	Failed       int
	Elapsed      time.Duration
}

type Runner struct {
	svc       Advancer
	interval  time.Duration
	workers   int
	batchSize int
	logger    zerolog.Logger
}

func NewRunner(svc Advancer, interval time.Duration, workers int, logger zerolog.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		svc:       svc,
		interval:  interval,
		workers:   workers,
		batchSize: defaultBatchSize,
		logger:    logger,
	}
}

// RunOnce executes a single sweep pass. Accounts that fail individually do
// not abort the pass; accounts frozen behind a founder decision or a pause
// count as skips.
func (r *Runner) RunOnce(ctx context.Context) (Result, error) {
	start := time.Now()

	ids, err := r.svc.SweepableAccounts(ctx, r.batchSize)
	if err != nil {
		return Result{}, err
	}

	var (
		mu  sync.Mutex
		res Result
	)
	res.Examined = len(ids)

	work := make(chan uuid.UUID)
	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range work {
				_, moved, err := r.svc.Advance(ctx, id, time.Now().UTC())
				mu.Lock()
				switch {
				case errors.Is(err, collections.ErrDecisionPending),
					errors.Is(err, collections.ErrAccountTerminal):
					res.Skipped++
				case err != nil:
					res.Failed++
					r.logger.Error().Err(err).
						Str("account_id", id.String()).
						Msg("sweep advance failed")
				case moved:
					res.Transitioned++
				default:
					res.Skipped++
				}
				mu.Unlock()
			}
		}()
	}

	for _, id := range ids {
		select {
		case work <- id:
		case <-ctx.Done():
			close(work)
			wg.Wait()
			return res, ctx.Err()
		}
	}
	close(work)
	wg.Wait()

	res.Elapsed = time.Since(start)
	r.logger.Info().
		Int("examined", res.Examined).
		Int("transitioned", res.Transitioned).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Dur("elapsed", res.Elapsed).
		Msg("collections sweep completed")
	return res, nil
}

// Run executes sweep passes on the configured interval until the context is
// cancelled. A failed pass is logged and the next tick proceeds.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info().
		Dur("interval", r.interval).
		Int("workers", r.workers).
		Msg("collections sweeper started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("collections sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Error().Err(err).Msg("sweep pass failed")
			}
		}
	}
}

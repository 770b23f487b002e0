package main

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kamalneel/rollwatch/internal/models"
)

// scanCycle runs one full pass over the open positions: evaluate each one
// concurrently, filter duplicates serially, publish what remains.
type scanCycle struct {
	engine *Engine
}

func newScanCycle(e *Engine) *scanCycle {
	return &scanCycle{engine: e}
}

// Run executes the cycle. A failure on one position skips that position only;
// a failure to read the portfolio aborts the cycle, since a partial portfolio
// would silently drop recommendations.
func (s *scanCycle) Run(ctx context.Context) {
	e := s.engine
	started := time.Now()

	positions, err := e.source.GetOpenPositions(ctx)
	if err != nil {
		e.logger.Errorf("Scan aborted, cannot read positions: %v", err)
		return
	}
	if len(positions) == 0 {
		e.logger.Info("No open positions to scan")
		return
	}
	e.logger.Infof("Scanning %d open position(s)", len(positions))

	// Results land in a fixed slot per position, preserving portfolio order
	// for the notifier regardless of evaluation completion order.
	results := make([]*models.Recommendation, len(positions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Evaluation.MaxConcurrent)
	for i := range positions {
		g.Go(func() error {
			pos := positions[i]
			rec, err := e.evaluator.Evaluate(gctx, &pos)
			if err != nil {
				e.logger.Warnf("%s: skipping position this scan: %v", pos.Key(), err)
				return nil
			}
			results[i] = rec
			return nil
		})
	}
	// Evaluation errors are absorbed per position above.
	_ = g.Wait()

	// The dedup tuple is committed when the filter accepts a recommendation,
	// before publishing: a failed publish is logged, not rolled back, so the
	// same recommendation stays suppressed until its tuple changes or the day
	// resets.
	emitted := make([]models.Recommendation, 0, len(results))
	suppressed := 0
	for i, rec := range results {
		if rec == nil {
			continue
		}
		if !e.filter.ShouldEmit(rec) {
			suppressed++
			continue
		}
		emitted = append(emitted, *rec)
		if rec.Action == models.ActionAcceptAssignment {
			s.recordAssignment(&positions[i], rec)
		}
	}

	e.logger.Infof("Scan finished in %s: %d new, %d duplicate(s) suppressed",
		time.Since(started).Round(time.Millisecond), len(emitted), suppressed)

	if len(emitted) == 0 {
		return
	}
	if err := e.notifier.Publish(ctx, emitted); err != nil {
		e.logger.Errorf("Failed to publish recommendations: %v", err)
	}
}

// recordAssignment persists an accepted assignment so the tracker can propose
// a buy-back on the next trading day. Dedup keeps this to one record per
// position per day.
func (s *scanCycle) recordAssignment(pos *models.Position, rec *models.Recommendation) {
	e := s.engine
	if rec.Assignment == nil {
		e.logger.Warnf("%s: assignment recommendation carries no cost payload, not recording", pos.Symbol)
		return
	}
	if err := e.tracker.Record(pos, rec.Assignment.UnderlyingPrice, time.Now().In(e.loc)); err != nil {
		e.logger.Errorf("%s: failed to record assignment: %v", pos.Symbol, err)
	}
}

// Package assignment records assignment events and proposes a
// buy-back-and-re-sell on the next trading day.
package assignment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kamalneel/rollwatch/internal/config"
	"github.com/kamalneel/rollwatch/internal/marketdata"
	"github.com/kamalneel/rollwatch/internal/models"
	"github.com/kamalneel/rollwatch/internal/storage"
)

// Tracker persists assignment records and, on the trading day after a Friday
// assignment, compares the current price against the assignment price to
// advise BUY_NOW, SKIP, or WAIT. A record receives at most one BUY_NOW or
// SKIP; WAIT defers the decision and keeps the record pending.
type Tracker struct {
	store    storage.Interface
	provider marketdata.Provider
	cfg      config.AssignmentConfig
	logger   *logrus.Logger
	now      func() time.Time
}

// NewTracker creates an assignment tracker.
func NewTracker(store storage.Interface, provider marketdata.Provider,
	cfg config.AssignmentConfig, logger *logrus.Logger) *Tracker {
	return &Tracker{
		store:    store,
		provider: provider,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Record persists an assignment event for later buy-back advice.
func (t *Tracker) Record(pos *models.Position, assignmentPrice float64, date time.Time) error {
	rec := models.AssignmentRecord{
		ID:              uuid.New().String(),
		Symbol:          pos.Symbol,
		Strike:          pos.Strike,
		OptionType:      pos.OptionType,
		Contracts:       pos.Contracts,
		AssignmentPrice: assignmentPrice,
		AccountType:     pos.AccountType,
		AccountName:     pos.AccountName,
		AssignmentDate:  date.UTC().Truncate(24 * time.Hour),
	}
	if err := t.store.AddAssignment(rec); err != nil {
		return fmt.Errorf("recording assignment for %s: %w", pos.Symbol, err)
	}
	t.logger.Infof("%s: recorded assignment of %d contract(s) at $%.2f on %s",
		pos.Symbol, pos.Contracts, assignmentPrice, rec.AssignmentDate.Format("2006-01-02"))
	return nil
}

// PendingFromLastFriday returns unresolved records assigned on the most
// recent Friday.
func (t *Tracker) PendingFromLastFriday() []models.AssignmentRecord {
	return t.store.PendingAssignments(lastFriday(t.now()))
}

// GenerateMondayRecommendations produces buy-back advice for every pending
// Friday assignment. A price fetch failure leaves that record pending for the
// next pass; it never aborts the batch.
func (t *Tracker) GenerateMondayRecommendations(ctx context.Context) []models.Recommendation {
	pending := t.PendingFromLastFriday()
	if len(pending) == 0 {
		return nil
	}

	recs := make([]models.Recommendation, 0, len(pending))
	for _, rec := range pending {
		quote, err := t.provider.GetQuote(ctx, rec.Symbol)
		if err != nil {
			t.logger.Warnf("%s: quote unavailable for buy-back check, leaving pending: %v",
				rec.Symbol, err)
			continue
		}

		out := t.buyBackAdvice(rec, quote.Last)
		if out.Action != models.ActionWait {
			if err := t.store.MarkBuybackCompleted(rec.ID); err != nil {
				t.logger.Warnf("%s: failed to resolve assignment record %s: %v",
					rec.Symbol, rec.ID, err)
			}
		}
		recs = append(recs, out)
	}
	return recs
}

// buyBackAdvice compares the current price against the assignment price.
// Favorable means re-establishing the position got cheaper: price falling
// after a call assignment, rising after a put assignment.
func (t *Tracker) buyBackAdvice(rec models.AssignmentRecord, currentPrice float64) models.Recommendation {
	movePct := 0.0
	if rec.AssignmentPrice > 0 {
		movePct = (currentPrice - rec.AssignmentPrice) / rec.AssignmentPrice
	}
	favorable := movePct
	if rec.OptionType == models.OptionTypeCall {
		favorable = -movePct
	}

	var action models.Action
	var priority models.Priority
	var reason string
	switch {
	case favorable >= t.cfg.BuyBackThresholdPct:
		action = models.ActionBuyNow
		priority = models.PriorityHigh
		reason = fmt.Sprintf("price moved %.1f%% in our favor since assignment; re-establish now",
			favorable*100)
	case favorable <= -t.cfg.SkipThresholdPct:
		action = models.ActionSkip
		priority = models.PriorityMedium
		reason = fmt.Sprintf("price moved %.1f%% against us since assignment; re-entry no longer attractive",
			-favorable*100)
	default:
		action = models.ActionWait
		priority = models.PriorityLow
		reason = "price near assignment level; wait one more day"
	}

	pos := models.Position{
		Symbol:      rec.Symbol,
		OptionType:  rec.OptionType,
		Strike:      rec.Strike,
		Contracts:   rec.Contracts,
		AccountType: rec.AccountType,
		AccountName: rec.AccountName,
		Expiration:  rec.AssignmentDate,
	}
	out := models.NewRecommendation(&pos, action, priority, reason)
	out.BuyBack = &models.BuyBackPayload{
		AssignmentPrice: rec.AssignmentPrice,
		CurrentPrice:    currentPrice,
		MovePct:         movePct,
	}
	return *out
}

// lastFriday returns the most recent Friday at or before now.
func lastFriday(now time.Time) time.Time {
	d := now.UTC().Truncate(24 * time.Hour)
	for d.Weekday() != time.Friday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

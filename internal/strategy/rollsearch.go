// Package strategy implements the decision core of the recommendation
// engine: the zero-cost roll searches, the assignment cost comparator, and
// the priority-ordered position evaluator.
package strategy

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kamalneel/rollwatch/internal/config"
	"github.com/kamalneel/rollwatch/internal/marketdata"
	"github.com/kamalneel/rollwatch/internal/models"
)

// Schedule is the fixed ascending set of candidate roll durations in weeks.
// Searches walk it in order and stop at the first acceptable candidate, which
// guarantees the shortest acceptable duration wins.
var Schedule = []int{1, 2, 3, 4, 6, 8, 12, 16, 24, 36, 52}

// ErrNoRollFound indicates the search exhausted the duration schedule without
// finding a cost-acceptable candidate. A valid terminal outcome, not a
// failure: callers decide what exhaustion means for them.
var ErrNoRollFound = errors.New("strategy: no acceptable roll found")

// ErrNotApplicable indicates a component's preconditions are not met and its
// ordinary alternative should proceed instead.
var ErrNotApplicable = errors.New("strategy: not applicable")

// exDividendBufferDays keeps candidate expirations clear of ex-dividend
// dates, where early exercise risk spikes for short calls.
const exDividendBufferDays = 2

// RollParams parameterizes one roll search.
type RollParams struct {
	// PriceNow is the current underlying price.
	PriceNow float64
	// BuyBackCost is the per-share cost to close the existing position.
	BuyBackCost float64
	// ProbOTMTarget is the probability-OTM target for the new strike:
	// 0.90 (Delta 10) for weekly rolls, 0.70 (Delta 30) for ITM escapes.
	ProbOTMTarget float64
	// MaxWeeks caps the duration schedule.
	MaxWeeks      int
	SkipEarnings  bool
	SkipDividends bool
}

// RollSearch finds the shortest roll duration whose net cost stays within the
// configured fraction of the original premium received.
type RollSearch struct {
	provider marketdata.Provider
	cfg      config.RollConfig
	logger   *logrus.Logger
	now      func() time.Time
}

// NewRollSearch creates a roll search against the given market-data provider.
func NewRollSearch(provider marketdata.Provider, cfg config.RollConfig, logger *logrus.Logger) *RollSearch {
	return &RollSearch{
		provider: provider,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Search walks the duration schedule and returns the first candidate meeting
// the cost rule, or ErrNoRollFound when the schedule is exhausted. Candidate
// failures (missing chain, no strike, no quote) skip that duration and
// continue; they never abort the search.
func (s *RollSearch) Search(ctx context.Context, pos *models.Position, params RollParams) (*models.RollResult, error) {
	now := s.now()
	earnings, exDiv := fetchEventDates(ctx, s.provider, pos.Symbol, params.SkipEarnings, params.SkipDividends, s.logger)

	maxCost := s.cfg.MaxCostPct * pos.OriginalPremium
	currentExp := pos.Expiration.UTC().Truncate(24 * time.Hour)

	for _, weeks := range Schedule {
		if weeks > params.MaxWeeks {
			break
		}
		exp := marketdata.ExpirationForWeeksOut(now, weeks)

		// A roll must extend; durations at or before the current
		// expiration belong to PullBackSearch.
		if !exp.After(currentExp) {
			continue
		}
		if params.SkipEarnings && inEarningsWeek(exp, earnings) {
			s.logger.Debugf("%s: skipping %dw roll, expiration %s falls in earnings week",
				pos.Symbol, weeks, exp.Format("2006-01-02"))
			continue
		}
		if params.SkipDividends && nearExDividend(exp, exDiv) {
			s.logger.Debugf("%s: skipping %dw roll, expiration %s within %d days of ex-dividend",
				pos.Symbol, weeks, exp.Format("2006-01-02"), exDividendBufferDays)
			continue
		}

		cand, netCost, err := evaluateCandidate(ctx, s.provider, pos, exp, weeks,
			params.ProbOTMTarget, params.BuyBackCost)
		if err != nil {
			s.logger.Debugf("%s: no data for %dw candidate: %v", pos.Symbol, weeks, err)
			continue
		}

		if netCost <= maxCost {
			s.logger.Infof("%s: acceptable roll at %dw to %.2f, net cost %.2f (limit %.2f)",
				pos.Symbol, weeks, cand.Strike, netCost, maxCost)
			return buildRollResult(pos, cand, params.BuyBackCost, netCost, params.PriceNow, now), nil
		}
		s.logger.Debugf("%s: %dw candidate rejected, net cost %.2f > limit %.2f",
			pos.Symbol, weeks, netCost, maxCost)
	}

	return nil, ErrNoRollFound
}

// evaluateCandidate prices one duration: fetch the recommended strike for the
// probability target, quote it in the chain, and compute the net cost against
// the baseline (buy-back cost for rolls, current value for pull-backs).
func evaluateCandidate(ctx context.Context, provider marketdata.Provider, pos *models.Position,
	expiration time.Time, weeks int, probTarget, baseline float64) (models.RollCandidate, float64, error) {

	var zero models.RollCandidate

	strike, err := provider.RecommendStrike(ctx, pos.Symbol, pos.OptionType, weeks, probTarget)
	if err != nil {
		return zero, 0, err
	}

	chain, err := provider.GetOptionChain(ctx, pos.Symbol, expiration)
	if err != nil {
		return zero, 0, err
	}

	quote := chain.ByStrike(pos.OptionType, strike)
	if quote == nil {
		return zero, 0, marketdata.ErrNoData
	}

	newPremium := quote.Mid()
	if newPremium <= 0 {
		return zero, 0, marketdata.ErrNoData
	}

	cand := models.RollCandidate{
		Expiration:     expiration,
		WeeksOut:       weeks,
		Strike:         strike,
		NewPremium:     newPremium,
		Delta:          quote.Delta,
		ProbabilityOTM: quote.ProbabilityOTM(),
	}
	return cand, baseline - newPremium, nil
}

func buildRollResult(pos *models.Position, cand models.RollCandidate,
	buyBackCost, netCost, priceNow float64, now time.Time) *models.RollResult {

	distance := 0.0
	if priceNow > 0 {
		distance = (cand.Strike - priceNow) / priceNow
	}
	days := int(cand.Expiration.Sub(now.UTC().Truncate(24*time.Hour)).Hours() / 24)

	return &models.RollResult{
		Candidate:         cand,
		BuyBackCost:       buyBackCost,
		NetCost:           netCost,
		NetCostTotal:      netCost * models.SharesPerContract * float64(pos.Contracts),
		Acceptable:        true,
		StrikeDistancePct: distance,
		DaysToExpiry:      days,
	}
}

// fetchEventDates resolves the earnings and ex-dividend dates needed for
// candidate filtering. A missing calendar entry or a fetch failure means "no
// known event", never a fatal error.
func fetchEventDates(ctx context.Context, provider marketdata.Provider, symbol string,
	wantEarnings, wantDividends bool, logger *logrus.Logger) (time.Time, time.Time) {

	var earnings, exDiv time.Time
	if wantEarnings {
		d, err := provider.GetNextEarningsDate(ctx, symbol)
		switch {
		case err == nil:
			earnings = d
		case !errors.Is(err, marketdata.ErrNoData):
			logger.Warnf("%s: earnings date unavailable, not filtering: %v", symbol, err)
		}
	}
	if wantDividends {
		d, err := provider.GetNextExDividendDate(ctx, symbol)
		switch {
		case err == nil:
			exDiv = d
		case !errors.Is(err, marketdata.ErrNoData):
			logger.Warnf("%s: ex-dividend date unavailable, not filtering: %v", symbol, err)
		}
	}
	return earnings, exDiv
}

// weekBounds returns the Monday and Sunday of the calendar week containing d.
func weekBounds(d time.Time) (time.Time, time.Time) {
	day := d.UTC().Truncate(24 * time.Hour)
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	monday := day.AddDate(0, 0, -offset)
	return monday, monday.AddDate(0, 0, 6)
}

// inEarningsWeek reports whether exp falls in the Monday-Sunday week
// containing the earnings date.
func inEarningsWeek(exp, earnings time.Time) bool {
	if earnings.IsZero() {
		return false
	}
	monday, sunday := weekBounds(earnings)
	e := exp.UTC().Truncate(24 * time.Hour)
	return !e.Before(monday) && !e.After(sunday)
}

// nearExDividend reports whether exp is within the buffer around the
// ex-dividend date.
func nearExDividend(exp, exDiv time.Time) bool {
	if exDiv.IsZero() {
		return false
	}
	diff := exp.UTC().Truncate(24 * time.Hour).Sub(exDiv.UTC().Truncate(24 * time.Hour))
	days := int(diff.Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days <= exDividendBufferDays
}

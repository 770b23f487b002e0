package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kamalneel/rollwatch/internal/config"
	"github.com/kamalneel/rollwatch/internal/marketdata"
	"github.com/kamalneel/rollwatch/internal/models"
)

// Evaluator is the orchestrating state machine. For each open position it
// checks candidate states in strict priority order and emits at most one
// recommendation; the first matching state wins, nothing is scored or ranked.
//
// Priority order:
//  1. pull-back of a previously rolled-out position
//  2. in-the-money handling (assignment comparator, then ITM escape roll,
//     then urgent manual close)
//  3. early close of a profitable position under elevated volatility risk
//  4. routine weekly roll at the natural roll point
//  5. monitor (safe default)
//
// Any external data failure at a given state skips that state and evaluation
// falls through; if everything fails, MONITOR is emitted.
type Evaluator struct {
	provider   marketdata.Provider
	roll       *RollSearch
	pullBack   *PullBackSearch
	comparator *AssignmentComparator
	rollCfg    config.RollConfig
	closeCfg   config.CloseConfig
	logger     *logrus.Logger
	now        func() time.Time
}

// NewEvaluator assembles the evaluator and its sub-components.
func NewEvaluator(provider marketdata.Provider, cfg *config.Config, logger *logrus.Logger) *Evaluator {
	roll := NewRollSearch(provider, cfg.Roll, logger)
	return &Evaluator{
		provider:   provider,
		roll:       roll,
		pullBack:   NewPullBackSearch(provider, cfg.Roll, logger),
		comparator: NewAssignmentComparator(provider, roll, cfg.Assignment, cfg.Roll, logger),
		rollCfg:    cfg.Roll,
		closeCfg:   cfg.Close,
		logger:     logger,
		now:        time.Now,
	}
}

// Evaluate produces exactly one recommendation for an open position. The only
// error returned is an invalid position, which the caller skips for this scan;
// data failures degrade to MONITOR instead.
func (e *Evaluator) Evaluate(ctx context.Context, pos *models.Position) (*models.Recommendation, error) {
	if err := pos.Validate(); err != nil {
		return nil, err
	}
	now := e.now()

	// 1. Pull-back: a far-dated escape roll returning to weekly income.
	if pos.RolledOut && pos.WeeksToExpiration(now) > 1 {
		if rec := e.tryPullBack(ctx, pos); rec != nil {
			return rec, nil
		}
	}

	ind, indErr := e.provider.GetTechnicalIndicators(ctx, pos.Symbol)
	if indErr != nil {
		e.logger.Warnf("%s: indicators unavailable, skipping price-dependent states: %v",
			pos.Symbol, indErr)
	}

	// 2. In-the-money.
	if indErr == nil && pos.IsITM(ind.CurrentPrice) {
		if rec := e.evaluateITM(ctx, pos, ind.CurrentPrice); rec != nil {
			return rec, nil
		}
	}

	// 3. Profitable OTM position facing elevated volatility risk.
	if indErr == nil && !pos.IsITM(ind.CurrentPrice) &&
		pos.CapturedProfitPercent() >= e.closeCfg.ProfitThreshold {
		if risky, why := e.volatilityRisk(ind, pos, now); risky {
			reason := fmt.Sprintf("%.0f%% of premium captured and %s",
				pos.CapturedProfitPercent()*100, why)
			return models.NewRecommendation(pos, models.ActionClose, models.PriorityMedium, reason), nil
		}
	}

	// 4. Routine weekly continuation near the natural roll point.
	if pos.DaysToExpiration(now) <= e.rollCfg.WeeklyTriggerDTE {
		if rec := e.tryWeeklyRoll(ctx, pos, ind, indErr); rec != nil {
			return rec, nil
		}
	}

	// 5. Default: nothing to do yet.
	return models.NewRecommendation(pos, models.ActionMonitor, models.PriorityLow,
		"no action needed yet"), nil
}

func (e *Evaluator) tryPullBack(ctx context.Context, pos *models.Position) *models.Recommendation {
	res, err := e.pullBack.Search(ctx, pos, pos.CurrentPremium)
	if err != nil {
		if !errors.Is(err, ErrNoRollFound) {
			e.logger.Warnf("%s: pull-back search failed: %v", pos.Symbol, err)
		}
		return nil
	}
	rec := models.NewRecommendation(pos, models.ActionPullBack, models.PriorityMedium,
		fmt.Sprintf("cost-neutral pull-back to %dw saves %d week(s)",
			res.Candidate.WeeksOut, res.WeeksSaved))
	rec.Roll = rollPayload(&res.RollResult, res.WeeksSaved)
	return rec
}

// evaluateITM handles state 2. A nil return means the state is skipped
// because of a data failure and evaluation falls through.
func (e *Evaluator) evaluateITM(ctx context.Context, pos *models.Position, priceNow float64) *models.Recommendation {
	decision, err := e.comparator.Evaluate(ctx, pos, priceNow)
	if err == nil {
		reason := fmt.Sprintf("assignment is $%.2f cheaper than rolling", decision.Savings)
		if decision.Unconditional {
			reason = "no escape roll available; assignment is the only exit"
		}
		rec := models.NewRecommendation(pos, models.ActionAcceptAssignment, models.PriorityUrgent, reason)
		rec.Assignment = &models.AssignmentPayload{
			AssignmentLoss:  decision.AssignmentLoss,
			RollDebit:       decision.RollDebit,
			OpportunityCost: decision.OpportunityCost,
			Savings:         decision.Savings,
			Unconditional:   decision.Unconditional,
			UnderlyingPrice: priceNow,
		}
		return rec
	}
	if !errors.Is(err, ErrNotApplicable) {
		e.logger.Warnf("%s: assignment comparison failed, trying escape roll: %v", pos.Symbol, err)
	}

	res, err := e.roll.Search(ctx, pos, RollParams{
		PriceNow:      priceNow,
		BuyBackCost:   pos.CurrentPremium,
		ProbOTMTarget: e.rollCfg.ITMProbOTM,
		MaxWeeks:      e.rollCfg.MaxWeeks,
		SkipEarnings:  e.rollCfg.SkipEarnings,
		SkipDividends: e.rollCfg.SkipDividends,
	})
	if err == nil {
		rec := models.NewRecommendation(pos, models.ActionRollITM, models.PriorityHigh,
			fmt.Sprintf("ITM escape roll to %dw at strike %.2f",
				res.Candidate.WeeksOut, res.Candidate.Strike))
		rec.Roll = rollPayload(res, 0)
		return rec
	}
	if errors.Is(err, ErrNoRollFound) {
		return models.NewRecommendation(pos, models.ActionClose, models.PriorityUrgent,
			fmt.Sprintf("ITM with no cost-acceptable roll within %dw; close manually",
				e.rollCfg.MaxWeeks))
	}

	e.logger.Warnf("%s: ITM roll search failed, falling through: %v", pos.Symbol, err)
	return nil
}

func (e *Evaluator) tryWeeklyRoll(ctx context.Context, pos *models.Position,
	ind *marketdata.Indicators, indErr error) *models.Recommendation {

	priceNow := 0.0
	if indErr == nil {
		priceNow = ind.CurrentPrice
	}

	res, err := e.roll.Search(ctx, pos, RollParams{
		PriceNow:      priceNow,
		BuyBackCost:   pos.CurrentPremium,
		ProbOTMTarget: e.rollCfg.WeeklyProbOTM,
		MaxWeeks:      e.rollCfg.MaxWeeks,
		SkipEarnings:  e.rollCfg.SkipEarnings,
		SkipDividends: e.rollCfg.SkipDividends,
	})
	if err != nil {
		if !errors.Is(err, ErrNoRollFound) {
			e.logger.Warnf("%s: weekly roll search failed: %v", pos.Symbol, err)
		}
		return nil
	}

	rec := models.NewRecommendation(pos, models.ActionRollWeekly, models.PriorityMedium,
		fmt.Sprintf("weekly roll to %s at strike %.2f",
			res.Candidate.Expiration.Format("2006-01-02"), res.Candidate.Strike))
	rec.Roll = rollPayload(res, 0)
	return rec
}

// volatilityRisk checks whether a profitable position faces elevated risk
// before expiration: earnings inside the warning window, RSI at an extreme,
// or a Bollinger band squeeze.
func (e *Evaluator) volatilityRisk(ind *marketdata.Indicators, pos *models.Position, now time.Time) (bool, string) {
	if !ind.EarningsDate.IsZero() {
		today := now.UTC().Truncate(24 * time.Hour)
		earnings := ind.EarningsDate.UTC().Truncate(24 * time.Hour)
		daysUntil := int(earnings.Sub(today).Hours() / 24)
		if daysUntil >= 0 && daysUntil <= e.closeCfg.EarningsWindowDays &&
			!earnings.After(pos.Expiration.UTC().Truncate(24*time.Hour)) {
			return true, fmt.Sprintf("earnings on %s before expiration", earnings.Format("2006-01-02"))
		}
	}
	if ind.RSI >= e.closeCfg.RSIHigh {
		return true, fmt.Sprintf("RSI overbought at %.1f", ind.RSI)
	}
	if ind.RSI > 0 && ind.RSI <= e.closeCfg.RSILow {
		return true, fmt.Sprintf("RSI oversold at %.1f", ind.RSI)
	}
	if ind.BollingerSqueeze(e.closeCfg.SqueezeThreshold) {
		return true, "Bollinger band squeeze signals a pending move"
	}
	return false, ""
}

func rollPayload(res *models.RollResult, weeksSaved int) *models.RollPayload {
	return &models.RollPayload{
		TargetStrike:     res.Candidate.Strike,
		TargetExpiration: res.Candidate.Expiration,
		WeeksOut:         res.Candidate.WeeksOut,
		NewPremium:       res.Candidate.NewPremium,
		NetCost:          res.NetCost,
		NetCostTotal:     res.NetCostTotal,
		WeeksSaved:       weeksSaved,
	}
}

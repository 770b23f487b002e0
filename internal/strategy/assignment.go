package strategy

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kamalneel/rollwatch/internal/config"
	"github.com/kamalneel/rollwatch/internal/marketdata"
	"github.com/kamalneel/rollwatch/internal/models"
)

// Shallow-ITM band for the comparator. Deep ITM positions should roll or
// accept unconditionally through the ordinary evaluator path, not here.
const (
	shallowITMMin = 0.001 // 0.1%
	shallowITMMax = 0.02  // 2.0%
)

// volFallbackFactor scales the weekly-volatility heuristic used when no live
// Delta 10 weekly quote is available. The estimate carries no documented
// confidence interval; its use is logged so operators can spot it.
const volFallbackFactor = 0.3

// AssignmentDecision is the comparator's verdict that accepting assignment is
// cheaper than rolling, with the full cost breakdown attached.
type AssignmentDecision struct {
	AssignmentLoss  float64
	RollDebit       float64
	OpportunityCost float64
	Savings         float64
	RollWeeks       int
	// Unconditional is true when no escape roll exists at all.
	Unconditional bool
}

// AssignmentComparator compares the cost of accepting assignment today
// against the cost of rolling, for shallow-ITM expiration-day positions in
// tax-advantaged accounts. In a taxable account assignment is a taxable
// event, so the comparator never applies there.
type AssignmentComparator struct {
	provider marketdata.Provider
	roll     *RollSearch
	cfg      config.AssignmentConfig
	rollCfg  config.RollConfig
	logger   *logrus.Logger
	now      func() time.Time
}

// NewAssignmentComparator creates the comparator sharing the given roll search.
func NewAssignmentComparator(provider marketdata.Provider, roll *RollSearch,
	cfg config.AssignmentConfig, rollCfg config.RollConfig, logger *logrus.Logger) *AssignmentComparator {
	return &AssignmentComparator{
		provider: provider,
		roll:     roll,
		cfg:      cfg,
		rollCfg:  rollCfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Evaluate returns an AssignmentDecision when accepting assignment is the
// cheaper outcome, or ErrNotApplicable when the preconditions fail or the
// ordinary roll path wins.
func (c *AssignmentComparator) Evaluate(ctx context.Context, pos *models.Position, priceNow float64) (*AssignmentDecision, error) {
	if !pos.AccountType.TaxAdvantaged() {
		return nil, ErrNotApplicable
	}
	if pos.DaysToExpiration(c.now()) != 0 {
		return nil, ErrNotApplicable
	}
	itmPct := pos.ITMPercent(priceNow)
	if itmPct < shallowITMMin || itmPct > shallowITMMax {
		return nil, ErrNotApplicable
	}

	assignmentLoss := pos.IntrinsicValue(priceNow) * models.SharesPerContract * float64(pos.Contracts)

	roll, err := c.roll.Search(ctx, pos, RollParams{
		PriceNow:      priceNow,
		BuyBackCost:   pos.CurrentPremium,
		ProbOTMTarget: c.rollCfg.ITMProbOTM,
		MaxWeeks:      c.rollCfg.MaxWeeks,
		SkipEarnings:  c.rollCfg.SkipEarnings,
		SkipDividends: c.rollCfg.SkipDividends,
	})
	if errors.Is(err, ErrNoRollFound) {
		// Rolling is infeasible; assignment is the only exit.
		c.logger.Infof("%s: no escape roll within %dw, accepting assignment unconditionally",
			pos.Symbol, c.rollCfg.MaxWeeks)
		return &AssignmentDecision{
			AssignmentLoss: assignmentLoss,
			Unconditional:  true,
		}, nil
	}
	if err != nil {
		return nil, err
	}

	rollDebit := math.Max(roll.NetCost, 0) * models.SharesPerContract * float64(pos.Contracts)
	rollWeeks := roll.Candidate.WeeksOut

	// Cheap short rolls bypass the comparator entirely: the ordinary roll
	// logic handles them without a cost comparison.
	if rollWeeks < c.cfg.CheapRollMaxWeeks && rollDebit <= c.cfg.CheapRollMaxDebit {
		c.logger.Debugf("%s: %dw roll at $%.2f debit is below the bypass thresholds",
			pos.Symbol, rollWeeks, rollDebit)
		return nil, ErrNotApplicable
	}

	weeklyPremium := c.weeklyPremiumEstimate(ctx, pos, priceNow)
	opportunityCost := weeklyPremium * models.SharesPerContract * float64(pos.Contracts) * float64(rollWeeks)

	rollTotal := rollDebit + opportunityCost
	if assignmentLoss < rollTotal {
		return &AssignmentDecision{
			AssignmentLoss:  assignmentLoss,
			RollDebit:       rollDebit,
			OpportunityCost: opportunityCost,
			Savings:         rollTotal - assignmentLoss,
			RollWeeks:       rollWeeks,
		}, nil
	}

	return nil, ErrNotApplicable
}

// weeklyPremiumEstimate estimates the per-share premium a Delta 10 weekly
// sale would collect, used to price the income forgone while a long roll is
// open. Prefers a live quote; falls back to the volatility heuristic.
func (c *AssignmentComparator) weeklyPremiumEstimate(ctx context.Context, pos *models.Position, priceNow float64) float64 {
	strike, err := c.provider.RecommendStrike(ctx, pos.Symbol, pos.OptionType, 1, c.rollCfg.WeeklyProbOTM)
	if err == nil {
		exp := marketdata.ExpirationForWeeksOut(c.now(), 1)
		if chain, cerr := c.provider.GetOptionChain(ctx, pos.Symbol, exp); cerr == nil {
			if q := chain.ByStrike(pos.OptionType, strike); q != nil && q.Mid() > 0 {
				return q.Mid()
			}
		}
	}

	ind, err := c.provider.GetTechnicalIndicators(ctx, pos.Symbol)
	if err != nil || ind.WeeklyVolatility <= 0 {
		return 0
	}
	est := priceNow * ind.WeeklyVolatility * volFallbackFactor
	c.logger.Warnf("%s: no live weekly quote, estimating weekly premium from volatility: $%.2f", pos.Symbol, est)
	return est
}

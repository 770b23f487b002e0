package strategy

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kamalneel/rollwatch/internal/config"
	"github.com/kamalneel/rollwatch/internal/marketdata"
	"github.com/kamalneel/rollwatch/internal/models"
)

// PullBackSearch is the inverse of RollSearch: a position rolled far out to
// escape an ITM event should return to weekly income generation as soon as
// cost-neutrality allows, rather than waiting out the full duration. It
// searches durations strictly shorter than the current weeks-to-expiration,
// always at the Delta 30 probability target.
type PullBackSearch struct {
	provider marketdata.Provider
	cfg      config.RollConfig
	logger   *logrus.Logger
	now      func() time.Time
}

// NewPullBackSearch creates a pull-back search.
func NewPullBackSearch(provider marketdata.Provider, cfg config.RollConfig, logger *logrus.Logger) *PullBackSearch {
	return &PullBackSearch{
		provider: provider,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Search returns the first shorter duration whose net cost against the
// position's current value satisfies the acceptability rule. Positions with
// one week or less remaining always return ErrNoRollFound: there is nothing
// left to pull back.
func (s *PullBackSearch) Search(ctx context.Context, pos *models.Position, currentValue float64) (*models.PullBackResult, error) {
	now := s.now()

	weeksLeft := pos.WeeksToExpiration(now)
	if weeksLeft <= 1 {
		return nil, ErrNoRollFound
	}

	earnings, exDiv := fetchEventDates(ctx, s.provider, pos.Symbol,
		s.cfg.SkipEarnings, s.cfg.SkipDividends, s.logger)
	maxCost := s.cfg.MaxCostPct * pos.OriginalPremium

	for _, weeks := range Schedule {
		if weeks >= weeksLeft {
			break
		}
		exp := marketdata.ExpirationForWeeksOut(now, weeks)
		if s.cfg.SkipEarnings && inEarningsWeek(exp, earnings) {
			continue
		}
		if s.cfg.SkipDividends && nearExDividend(exp, exDiv) {
			continue
		}

		cand, netCost, err := evaluateCandidate(ctx, s.provider, pos, exp, weeks,
			s.cfg.ITMProbOTM, currentValue)
		if err != nil {
			s.logger.Debugf("%s: no data for %dw pull-back candidate: %v", pos.Symbol, weeks, err)
			continue
		}

		if netCost <= maxCost {
			saved := weeksLeft - weeks
			s.logger.Infof("%s: pull-back to %dw saves %d week(s), net cost %.2f",
				pos.Symbol, weeks, saved, netCost)
			return &models.PullBackResult{
				RollResult: *buildRollResult(pos, cand, currentValue, netCost, 0, now),
				WeeksSaved: saved,
			}, nil
		}
	}

	return nil, ErrNoRollFound
}

package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamalneel/rollwatch/internal/config"
	"github.com/kamalneel/rollwatch/internal/marketdata"
	"github.com/kamalneel/rollwatch/internal/models"
)

func testAssignmentConfig() config.AssignmentConfig {
	return config.AssignmentConfig{
		CheapRollMaxWeeks:   2,
		CheapRollMaxDebit:   15.0,
		BuyBackThresholdPct: 0.01,
		SkipThresholdPct:    0.03,
	}
}

func newComparator(mock *marketdata.MockProvider) *AssignmentComparator {
	roll := newRollSearch(mock)
	c := NewAssignmentComparator(mock, roll, testAssignmentConfig(), testRollConfig(), testLogger())
	c.now = func() time.Time { return fixedNow }
	return c
}

// expiringIRAPut is an IRA put expiring today, 1.5% in the money at 98.50:
// intrinsic value 1.50, assignment loss $150 for one contract.
func expiringIRAPut() *models.Position {
	return &models.Position{
		Symbol:          "AAPL",
		OptionType:      models.OptionTypePut,
		Strike:          100.0,
		Expiration:      fixedNow,
		Contracts:       1,
		AccountType:     models.AccountIRA,
		AccountName:     "ira-main",
		OriginalPremium: 6.00,
		CurrentPremium:  3.00,
	}
}

func TestComparatorPrefersAssignmentOverExpensiveRoll(t *testing.T) {
	mock := marketdata.NewMockProvider()
	pos := expiringIRAPut()
	// The cheapest escape is twelve weeks out at a $100 debit (3.00 close
	// cost less 2.00 collected). Delta 10 weeklies collect 0.10, so twelve
	// blocked weeks forgo $120. $150 assignment loss beats the $220 total.
	seedCandidate(mock, pos, 12, 95.0, 1.90, 2.10)
	mock.SetStrike(pos.Symbol, pos.OptionType, 1, 99.0)
	mock.SetChain(pos.Symbol, marketdata.ExpirationForWeeksOut(fixedNow, 1), &marketdata.Chain{
		Puts: []marketdata.OptionQuote{{Strike: 99.0, Bid: 0.09, Ask: 0.11, Delta: -0.10}},
	})

	c := newComparator(mock)
	decision, err := c.Evaluate(context.Background(), pos, 98.50)
	require.NoError(t, err)

	assert.InDelta(t, 150.0, decision.AssignmentLoss, 1e-6)
	assert.InDelta(t, 100.0, decision.RollDebit, 1e-6)
	assert.InDelta(t, 120.0, decision.OpportunityCost, 1e-6)
	assert.InDelta(t, 70.0, decision.Savings, 1e-6)
	assert.Equal(t, 12, decision.RollWeeks)
	assert.False(t, decision.Unconditional)
}

func TestComparatorNeverAppliesInTaxableAccounts(t *testing.T) {
	mock := marketdata.NewMockProvider()
	pos := expiringIRAPut()
	pos.AccountType = models.AccountTaxable

	c := newComparator(mock)
	_, err := c.Evaluate(context.Background(), pos, 98.50)
	assert.ErrorIs(t, err, ErrNotApplicable)
	assert.Empty(t, mock.StrikeCalls, "precondition failures must not touch market data")
}

func TestComparatorRequiresExpirationDay(t *testing.T) {
	mock := marketdata.NewMockProvider()
	pos := expiringIRAPut()
	pos.Expiration = fixedNow.AddDate(0, 0, 2)

	c := newComparator(mock)
	_, err := c.Evaluate(context.Background(), pos, 98.50)
	assert.ErrorIs(t, err, ErrNotApplicable)
}

func TestComparatorShallowITMBand(t *testing.T) {
	mock := marketdata.NewMockProvider()
	c := newComparator(mock)

	// 5% ITM is too deep; the ordinary ITM escape path owns it.
	_, err := c.Evaluate(context.Background(), expiringIRAPut(), 95.0)
	assert.ErrorIs(t, err, ErrNotApplicable)

	// 0.005% ITM is noise, not assignment risk worth comparing.
	_, err = c.Evaluate(context.Background(), expiringIRAPut(), 99.995)
	assert.ErrorIs(t, err, ErrNotApplicable)
}

func TestComparatorUnconditionalWhenNoRollExists(t *testing.T) {
	mock := marketdata.NewMockProvider()
	pos := expiringIRAPut()

	c := newComparator(mock)
	decision, err := c.Evaluate(context.Background(), pos, 98.50)
	require.NoError(t, err)

	assert.True(t, decision.Unconditional)
	assert.InDelta(t, 150.0, decision.AssignmentLoss, 1e-6)
}

func TestComparatorCheapRollBypass(t *testing.T) {
	mock := marketdata.NewMockProvider()
	pos := expiringIRAPut()
	// A one-week roll at a $10 total debit is below both bypass thresholds;
	// the ordinary roll path should handle it without a comparison.
	seedCandidate(mock, pos, 1, 99.0, 2.88, 2.92)

	c := newComparator(mock)
	_, err := c.Evaluate(context.Background(), pos, 98.50)
	assert.ErrorIs(t, err, ErrNotApplicable)
}

func TestComparatorLetsCheapEnoughRollWin(t *testing.T) {
	mock := marketdata.NewMockProvider()
	pos := expiringIRAPut()
	// Twelve weeks out at a $100 debit, but with no weekly quote and no
	// indicators the opportunity cost is zero; the $150 assignment loss no
	// longer beats rolling.
	seedCandidate(mock, pos, 12, 95.0, 1.90, 2.10)

	c := newComparator(mock)
	_, err := c.Evaluate(context.Background(), pos, 98.50)
	assert.ErrorIs(t, err, ErrNotApplicable)
}

func TestComparatorVolatilityFallbackForOpportunityCost(t *testing.T) {
	mock := marketdata.NewMockProvider()
	pos := expiringIRAPut()
	seedCandidate(mock, pos, 12, 95.0, 1.90, 2.10)
	// No live weekly quote; the volatility heuristic prices the forgone
	// income: 98.50 * 0.02 * 0.3 = 0.591 per share, $709.20 over 12 weeks.
	mock.IndicatorsMap[pos.Symbol] = &marketdata.Indicators{
		CurrentPrice:     98.50,
		WeeklyVolatility: 0.02,
	}

	c := newComparator(mock)
	decision, err := c.Evaluate(context.Background(), pos, 98.50)
	require.NoError(t, err)

	assert.InDelta(t, 98.50*0.02*0.3*100*12, decision.OpportunityCost, 1e-6)
	assert.Greater(t, decision.Savings, 0.0)
}

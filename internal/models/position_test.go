package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testPosition() *Position {
	return &Position{
		Symbol:          "AAPL",
		OptionType:      OptionTypePut,
		Strike:          220.0,
		Expiration:      time.Date(2025, 3, 21, 0, 0, 0, 0, time.UTC),
		Contracts:       2,
		AccountType:     AccountTaxable,
		AccountName:     "brokerage-main",
		OriginalPremium: 2.45,
		CurrentPremium:  0.60,
	}
}

func TestPositionKey(t *testing.T) {
	pos := testPosition()
	assert.Equal(t, "AAPL|220.00|put|2025-03-21|brokerage-main", pos.Key())

	other := testPosition()
	other.Strike = 225.0
	assert.NotEqual(t, pos.Key(), other.Key())
}

func TestDaysToExpiration(t *testing.T) {
	pos := testPosition()

	now := time.Date(2025, 3, 17, 10, 30, 0, 0, time.UTC)
	assert.Equal(t, 4, pos.DaysToExpiration(now))

	// Expiration day counts as zero.
	now = time.Date(2025, 3, 21, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, pos.DaysToExpiration(now))

	// Past expiration floors at zero instead of going negative.
	now = time.Date(2025, 3, 25, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, pos.DaysToExpiration(now))
}

func TestWeeksToExpiration(t *testing.T) {
	pos := testPosition()
	cases := []struct {
		now   time.Time
		weeks int
	}{
		{time.Date(2025, 3, 21, 0, 0, 0, 0, time.UTC), 0},  // expiry day
		{time.Date(2025, 3, 18, 0, 0, 0, 0, time.UTC), 1},  // 3 days
		{time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), 1},  // exactly 7 days
		{time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC), 2},  // 8 days rounds up
		{time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), 10}, // 70 days
	}
	for _, tc := range cases {
		assert.Equal(t, tc.weeks, pos.WeeksToExpiration(tc.now), "now=%s", tc.now.Format("2006-01-02"))
	}
}

func TestMoneyness(t *testing.T) {
	put := testPosition()
	assert.True(t, put.IsITM(215.0))
	assert.False(t, put.IsITM(225.0))
	assert.False(t, put.IsITM(220.0), "at the money is not ITM")
	assert.InDelta(t, 5.0, put.IntrinsicValue(215.0), 1e-9)
	assert.Zero(t, put.IntrinsicValue(225.0))
	assert.InDelta(t, 5.0/220.0, put.ITMPercent(215.0), 1e-9)

	call := testPosition()
	call.OptionType = OptionTypeCall
	assert.True(t, call.IsITM(225.0))
	assert.False(t, call.IsITM(215.0))
	assert.InDelta(t, 5.0, call.IntrinsicValue(225.0), 1e-9)
}

func TestCapturedProfitPercent(t *testing.T) {
	pos := testPosition() // sold 2.45, now 0.60
	assert.InDelta(t, (2.45-0.60)/2.45, pos.CapturedProfitPercent(), 1e-9)

	// A position that moved against us shows negative capture.
	pos.CurrentPremium = 3.00
	assert.Less(t, pos.CapturedProfitPercent(), 0.0)

	pos.OriginalPremium = 0
	assert.Zero(t, pos.CapturedProfitPercent())
}

func TestBuyBackTotal(t *testing.T) {
	pos := testPosition()
	assert.InDelta(t, 0.60*100*2, pos.BuyBackTotal(), 1e-9)
}

func TestAccountTypeTaxAdvantaged(t *testing.T) {
	assert.False(t, AccountTaxable.TaxAdvantaged())
	assert.True(t, AccountIRA.TaxAdvantaged())
	assert.True(t, AccountRothIRA.TaxAdvantaged())
}

func TestPositionValidate(t *testing.T) {
	assert.NoError(t, testPosition().Validate())

	cases := []struct {
		name   string
		mutate func(*Position)
	}{
		{"empty symbol", func(p *Position) { p.Symbol = "  " }},
		{"bad option type", func(p *Position) { p.OptionType = "straddle" }},
		{"zero strike", func(p *Position) { p.Strike = 0 }},
		{"zero expiration", func(p *Position) { p.Expiration = time.Time{} }},
		{"zero contracts", func(p *Position) { p.Contracts = 0 }},
		{"zero original premium", func(p *Position) { p.OriginalPremium = 0 }},
		{"negative current premium", func(p *Position) { p.CurrentPremium = -0.01 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pos := testPosition()
			tc.mutate(pos)
			assert.Error(t, pos.Validate())
		})
	}
}

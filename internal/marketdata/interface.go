// Package marketdata supplies option-chain quotes and technical signals to
// the recommendation engine. All implementations are read-only collaborators;
// the engine treats a fetch failure as "no data for this candidate", never as
// a fatal error for the whole scan.
package marketdata

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/kamalneel/rollwatch/internal/models"
	"github.com/kamalneel/rollwatch/internal/util"
)

// ErrNoData indicates the provider has no usable data for the request
// (empty chain, unknown symbol, missing calendar entry). Callers skip the
// candidate or state and continue.
var ErrNoData = errors.New("marketdata: no data available")

// Quote is a stock-level quote.
type Quote struct {
	Symbol string  `json:"symbol"`
	Last   float64 `json:"last"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
}

// OptionQuote is a single strike's quote within an option chain.
type OptionQuote struct {
	Strike float64 `json:"strike"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	Last   float64 `json:"last"`
	Delta  float64 `json:"delta"`
}

// Mid returns the fillable per-share price estimate for the quote.
func (q OptionQuote) Mid() float64 {
	return util.MidPrice(q.Bid, q.Ask, q.Last)
}

// ProbabilityOTM approximates the probability the option expires worthless,
// using delta as a proxy: probOTM = 1 - |delta|.
func (q OptionQuote) ProbabilityOTM() float64 {
	p := 1 - math.Abs(q.Delta)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Chain holds one expiration's option quotes for a symbol.
type Chain struct {
	Symbol     string        `json:"symbol"`
	Expiration time.Time     `json:"expiration"`
	Calls      []OptionQuote `json:"calls"`
	Puts       []OptionQuote `json:"puts"`
}

// Side returns the quotes for the requested option type.
func (c *Chain) Side(t models.OptionType) []OptionQuote {
	if t == models.OptionTypePut {
		return c.Puts
	}
	return c.Calls
}

// ByStrike finds the quote at a specific strike on one side of the chain.
func (c *Chain) ByStrike(t models.OptionType, strike float64) *OptionQuote {
	side := c.Side(t)
	for i := range side {
		if math.Abs(side[i].Strike-strike) <= 1e-4 {
			return &side[i]
		}
	}
	return nil
}

// Indicators bundles the technical signals consumed by the evaluator.
type Indicators struct {
	CurrentPrice     float64   `json:"current_price"`
	RSI              float64   `json:"rsi"`
	BollingerUpper   float64   `json:"bollinger_upper"`
	BollingerMiddle  float64   `json:"bollinger_middle"`
	BollingerLower   float64   `json:"bollinger_lower"`
	WeeklyVolatility float64   `json:"weekly_volatility"`
	Support          float64   `json:"support"`
	Resistance       float64   `json:"resistance"`
	EarningsDate     time.Time `json:"earnings_date"`
}

// BollingerSqueeze reports whether the band width relative to the middle band
// is at or below the given threshold.
func (i *Indicators) BollingerSqueeze(threshold float64) bool {
	if i.BollingerMiddle <= 0 {
		return false
	}
	return (i.BollingerUpper-i.BollingerLower)/i.BollingerMiddle <= threshold
}

// Provider defines the market-data contract the engine depends on.
//
// Implementations must be safe for concurrent use; positions within one scan
// invocation may be evaluated in parallel.
type Provider interface {
	GetQuote(ctx context.Context, symbol string) (*Quote, error)
	GetOptionChain(ctx context.Context, symbol string, expiration time.Time) (*Chain, error)
	// RecommendStrike returns the strike whose probability of expiring OTM
	// is closest to probabilityOTM at the expiration weeksOut from now.
	RecommendStrike(ctx context.Context, symbol string, optionType models.OptionType,
		weeksOut int, probabilityOTM float64) (float64, error)
	GetTechnicalIndicators(ctx context.Context, symbol string) (*Indicators, error)
	GetNextEarningsDate(ctx context.Context, symbol string) (time.Time, error)
	GetNextExDividendDate(ctx context.Context, symbol string) (time.Time, error)
}

// NextFriday returns the first Friday at or after t.
func NextFriday(t time.Time) time.Time {
	d := t.UTC().Truncate(24 * time.Hour)
	for d.Weekday() != time.Friday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// ExpirationForWeeksOut returns the candidate expiration for a duration: the
// next Friday at or after now plus the duration.
func ExpirationForWeeksOut(now time.Time, weeks int) time.Time {
	return NextFriday(now.AddDate(0, 0, weeks*7))
}

// PickStrike selects from a chain side the strike whose probability-OTM is
// closest to the target. Quotes without a delta are ignored. Returns ErrNoData
// when nothing qualifies.
func PickStrike(side []OptionQuote, target float64) (float64, error) {
	best := 0.0
	bestDiff := math.MaxFloat64
	for _, q := range side {
		if q.Delta == 0 {
			continue
		}
		diff := math.Abs(q.ProbabilityOTM() - target)
		if diff < bestDiff {
			bestDiff = diff
			best = q.Strike
		}
	}
	if best == 0 {
		return 0, ErrNoData
	}
	return best, nil
}

// Package models provides the data structures shared by the recommendation
// engine: open short positions, roll search results, recommendations, and
// assignment records.
package models

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// SharesPerContract is the standard US equity option multiplier.
const SharesPerContract = 100.0

// OptionType represents the type of option contract.
type OptionType string

const (
	// OptionTypeCall represents a call option contract
	OptionTypeCall OptionType = "call"
	// OptionTypePut represents a put option contract
	OptionTypePut OptionType = "put"
)

// Valid returns true if the OptionType is one of the defined constants.
func (t OptionType) Valid() bool {
	switch t {
	case OptionTypeCall, OptionTypePut:
		return true
	default:
		return false
	}
}

// AccountType classifies the brokerage account holding a position.
type AccountType string

const (
	// AccountTaxable is a standard taxable brokerage account
	AccountTaxable AccountType = "taxable"
	// AccountIRA is a traditional IRA
	AccountIRA AccountType = "ira"
	// AccountRothIRA is a Roth IRA
	AccountRothIRA AccountType = "roth_ira"
)

// TaxAdvantaged returns true for account types where assignment has no
// taxable-event cost (IRA variants). The assignment cost comparator only
// applies to these accounts.
func (a AccountType) TaxAdvantaged() bool {
	return a == AccountIRA || a == AccountRothIRA
}

// Position is a currently open short option held against the portfolio.
// The engine reads positions from the portfolio source and never mutates
// them; closes, rolls, and assignments are recorded externally.
type Position struct {
	Symbol          string      `json:"symbol" yaml:"symbol"`
	OptionType      OptionType  `json:"option_type" yaml:"option_type"`
	Strike          float64     `json:"strike" yaml:"strike"`
	Expiration      time.Time   `json:"expiration" yaml:"expiration"`
	Contracts       int         `json:"contracts" yaml:"contracts"`
	AccountType     AccountType `json:"account_type" yaml:"account_type"`
	AccountName     string      `json:"account_name" yaml:"account_name"`
	OriginalPremium float64     `json:"original_premium_per_share" yaml:"original_premium_per_share"`
	CurrentPremium  float64     `json:"current_premium_per_share" yaml:"current_premium_per_share"`
	// RolledOut marks a position that was previously rolled far out to
	// escape an ITM event and is a candidate for a pull-back.
	RolledOut bool `json:"rolled_out,omitempty" yaml:"rolled_out,omitempty"`
}

// Key returns the stable identity used for deduplication and tracking.
func (p *Position) Key() string {
	return fmt.Sprintf("%s|%.2f|%s|%s|%s",
		p.Symbol, p.Strike, p.OptionType, p.Expiration.Format("2006-01-02"), p.AccountName)
}

// DaysToExpiration returns whole calendar days from now to expiration,
// floored at zero.
func (p *Position) DaysToExpiration(now time.Time) int {
	n := now.UTC().Truncate(24 * time.Hour)
	exp := p.Expiration.UTC().Truncate(24 * time.Hour)
	days := int(exp.Sub(n).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// WeeksToExpiration returns the number of whole weeks remaining, rounding up
// so a position expiring in 8 days counts as 2 weeks out.
func (p *Position) WeeksToExpiration(now time.Time) int {
	days := p.DaysToExpiration(now)
	return (days + 6) / 7
}

// IsITM reports whether the option is in-the-money at the given underlying
// price.
func (p *Position) IsITM(price float64) bool {
	switch p.OptionType {
	case OptionTypeCall:
		return price > p.Strike
	case OptionTypePut:
		return price < p.Strike
	default:
		return false
	}
}

// IntrinsicValue returns the per-share intrinsic value at the given
// underlying price. Zero for OTM positions.
func (p *Position) IntrinsicValue(price float64) float64 {
	switch p.OptionType {
	case OptionTypeCall:
		return math.Max(price-p.Strike, 0)
	case OptionTypePut:
		return math.Max(p.Strike-price, 0)
	default:
		return 0
	}
}

// ITMPercent returns how deep in-the-money the position is, as a fraction of
// the strike. Zero for OTM positions.
func (p *Position) ITMPercent(price float64) float64 {
	if p.Strike <= 0 {
		return 0
	}
	return p.IntrinsicValue(price) / p.Strike
}

// CapturedProfitPercent returns the fraction of the original premium already
// captured: (original - current buy-back cost) / original.
func (p *Position) CapturedProfitPercent() float64 {
	if p.OriginalPremium <= 0 {
		return 0
	}
	return (p.OriginalPremium - p.CurrentPremium) / p.OriginalPremium
}

// BuyBackTotal returns the total dollar cost to close the position today.
func (p *Position) BuyBackTotal() float64 {
	return p.CurrentPremium * SharesPerContract * float64(p.Contracts)
}

// Validate ensures the position is well-formed. Malformed positions are
// skipped for the scan, never fatal to the batch.
func (p *Position) Validate() error {
	if strings.TrimSpace(p.Symbol) == "" {
		return fmt.Errorf("position: symbol is required")
	}
	if !p.OptionType.Valid() {
		return fmt.Errorf("position %s: invalid option type %q", p.Symbol, p.OptionType)
	}
	if p.Strike <= 0 {
		return fmt.Errorf("position %s: strike must be positive (got %.2f)", p.Symbol, p.Strike)
	}
	if p.Expiration.IsZero() {
		return fmt.Errorf("position %s: expiration is required", p.Symbol)
	}
	if p.Contracts <= 0 {
		return fmt.Errorf("position %s: contracts must be > 0 (got %d)", p.Symbol, p.Contracts)
	}
	if p.OriginalPremium <= 0 {
		return fmt.Errorf("position %s: original premium must be > 0 (got %.2f)", p.Symbol, p.OriginalPremium)
	}
	if p.CurrentPremium < 0 {
		return fmt.Errorf("position %s: current premium must be >= 0 (got %.2f)", p.Symbol, p.CurrentPremium)
	}
	return nil
}

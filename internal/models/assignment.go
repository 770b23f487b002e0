package models

import "time"

// AssignmentRecord captures an assignment event so the engine can propose a
// buy-back-and-re-sell on the next trading day. A record receives at most one
// BUY_NOW or SKIP recommendation; WAIT leaves it pending.
type AssignmentRecord struct {
	ID               string      `json:"id"`
	Symbol           string      `json:"symbol"`
	Strike           float64     `json:"strike"`
	OptionType       OptionType  `json:"option_type"`
	Contracts        int         `json:"contracts"`
	AssignmentPrice  float64     `json:"assignment_price"`
	AccountType      AccountType `json:"account_type"`
	AccountName      string      `json:"account_name"`
	AssignmentDate   time.Time   `json:"assignment_date"`
	BuybackCompleted bool        `json:"buyback_completed"`
}

// SameDay reports whether the record's assignment date falls on the given
// calendar day (UTC).
func (r *AssignmentRecord) SameDay(day time.Time) bool {
	a := r.AssignmentDate.UTC().Truncate(24 * time.Hour)
	d := day.UTC().Truncate(24 * time.Hour)
	return a.Equal(d)
}

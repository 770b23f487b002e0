package models

import "time"

// RollCandidate is a single scan point in a roll search: one expiration and
// the strike recommended for the probability-OTM target at that expiration.
// Candidates are produced and discarded within one search call.
type RollCandidate struct {
	Expiration     time.Time `json:"expiration"`
	WeeksOut       int       `json:"weeks_out"`
	Strike         float64   `json:"strike"`
	NewPremium     float64   `json:"new_premium_per_share"`
	Delta          float64   `json:"delta"`
	ProbabilityOTM float64   `json:"probability_otm"`
}

// RollResult is the terminal output of a successful roll search. It is
// constructed once and consumed immediately by the caller; the engine never
// persists it.
type RollResult struct {
	Candidate RollCandidate `json:"candidate"`
	// BuyBackCost is the per-share cost to close the existing position.
	BuyBackCost float64 `json:"buy_back_cost"`
	// NetCost is BuyBackCost minus the new premium; positive means a debit.
	NetCost      float64 `json:"net_cost"`
	NetCostTotal float64 `json:"net_cost_total"`
	// Acceptable is true only when NetCost is within the configured
	// fraction of the original premium received.
	Acceptable        bool    `json:"acceptable"`
	StrikeDistancePct float64 `json:"strike_distance_pct"`
	DaysToExpiry      int     `json:"days_to_expiry"`
}

// PullBackResult is a RollResult for a shorter expiration, plus the number of
// weeks saved versus holding the current far-dated position to expiration.
type PullBackResult struct {
	RollResult
	WeeksSaved int `json:"weeks_saved"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Action identifies the recommended course of action for a position.
type Action string

const (
	// ActionRollWeekly rolls an OTM position forward at its natural weekly roll point
	ActionRollWeekly Action = "ROLL_WEEKLY"
	// ActionRollITM rolls an ITM position out to escape assignment
	ActionRollITM Action = "ROLL_ITM"
	// ActionPullBack returns a far-dated rolled position to near-term expiration
	ActionPullBack Action = "PULL_BACK"
	// ActionClose closes the position early
	ActionClose Action = "CLOSE"
	// ActionAcceptAssignment accepts assignment instead of rolling
	ActionAcceptAssignment Action = "ACCEPT_ASSIGNMENT"
	// ActionMonitor means no action is needed yet
	ActionMonitor Action = "MONITOR"
	// ActionWait defers a buy-back decision one more day
	ActionWait Action = "WAIT"
	// ActionBuyNow re-establishes a position immediately after assignment
	ActionBuyNow Action = "BUY_NOW"
	// ActionSkip abandons re-entry after assignment
	ActionSkip Action = "SKIP"
)

// Priority ranks how urgently a recommendation should be acted on.
type Priority string

const (
	// PriorityUrgent requires action today
	PriorityUrgent Priority = "urgent"
	// PriorityHigh should be acted on within the trading day
	PriorityHigh Priority = "high"
	// PriorityMedium is routine maintenance
	PriorityMedium Priority = "medium"
	// PriorityLow is informational
	PriorityLow Priority = "low"
)

// RollPayload carries the target of a ROLL_WEEKLY, ROLL_ITM, or PULL_BACK
// recommendation.
type RollPayload struct {
	TargetStrike     float64   `json:"target_strike"`
	TargetExpiration time.Time `json:"target_expiration"`
	WeeksOut         int       `json:"weeks_out"`
	NewPremium       float64   `json:"new_premium_per_share"`
	NetCost          float64   `json:"net_cost"`
	NetCostTotal     float64   `json:"net_cost_total"`
	// WeeksSaved is set only for PULL_BACK recommendations.
	WeeksSaved int `json:"weeks_saved,omitempty"`
}

// AssignmentPayload carries the cost breakdown of an ACCEPT_ASSIGNMENT
// recommendation.
type AssignmentPayload struct {
	AssignmentLoss  float64 `json:"assignment_loss_total"`
	RollDebit       float64 `json:"roll_debit_total"`
	OpportunityCost float64 `json:"opportunity_cost"`
	Savings         float64 `json:"savings"`
	// UnderlyingPrice is the price at decision time, recorded as the
	// assignment price for the Monday buy-back comparison.
	UnderlyingPrice float64 `json:"underlying_price"`
	// Unconditional is true when no escape roll existed and assignment is
	// the only option.
	Unconditional bool `json:"unconditional,omitempty"`
}

// BuyBackPayload carries the price comparison behind a post-assignment
// BUY_NOW, SKIP, or WAIT recommendation.
type BuyBackPayload struct {
	AssignmentPrice float64 `json:"assignment_price"`
	CurrentPrice    float64 `json:"current_price"`
	MovePct         float64 `json:"move_pct"`
}

// Recommendation is the engine's external-facing output. Exactly one of the
// payload pointers is set, matching the action; created fresh each evaluation
// and never mutated afterward.
type Recommendation struct {
	ID          string    `json:"id"`
	Action      Action    `json:"action"`
	Priority    Priority  `json:"priority"`
	Symbol      string    `json:"symbol"`
	PositionKey string    `json:"position_key"`
	AccountName string    `json:"account_name"`
	Reason      string    `json:"reason"`
	CreatedAt   time.Time `json:"created_at"`

	Roll       *RollPayload       `json:"roll,omitempty"`
	Assignment *AssignmentPayload `json:"assignment,omitempty"`
	BuyBack    *BuyBackPayload    `json:"buy_back,omitempty"`
}

// NewRecommendation builds a recommendation envelope for a position. Payloads
// are attached by the caller.
func NewRecommendation(pos *Position, action Action, priority Priority, reason string) *Recommendation {
	return &Recommendation{
		ID:          uuid.New().String(),
		Action:      action,
		Priority:    priority,
		Symbol:      pos.Symbol,
		PositionKey: pos.Key(),
		AccountName: pos.AccountName,
		Reason:      reason,
		CreatedAt:   time.Now().UTC(),
	}
}

// TargetStrike returns the strike the recommendation points at, or zero for
// actions without a target.
func (r *Recommendation) TargetStrike() float64 {
	if r.Roll != nil {
		return r.Roll.TargetStrike
	}
	return 0
}

// ScanState is the comparison tuple stored per position key for same-day
// deduplication. It is always replaced wholesale, never partially updated.
type ScanState struct {
	Action       Action   `json:"action"`
	TargetStrike float64  `json:"target_strike"`
	Priority     Priority `json:"priority"`
}

// ScanState returns the deduplication tuple for this recommendation.
func (r *Recommendation) ScanState() ScanState {
	return ScanState{
		Action:       r.Action,
		TargetStrike: r.TargetStrike(),
		Priority:     r.Priority,
	}
}

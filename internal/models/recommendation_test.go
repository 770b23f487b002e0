package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRecommendation(t *testing.T) {
	pos := testPosition()
	rec := NewRecommendation(pos, ActionRollWeekly, PriorityMedium, "weekly roll")

	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.Equal(t, pos.Key(), rec.PositionKey)
	assert.Equal(t, "AAPL", rec.Symbol)
	assert.Equal(t, "brokerage-main", rec.AccountName)
	assert.Equal(t, ActionRollWeekly, rec.Action)
	assert.Equal(t, PriorityMedium, rec.Priority)

	other := NewRecommendation(pos, ActionRollWeekly, PriorityMedium, "weekly roll")
	assert.NotEqual(t, rec.ID, other.ID, "each recommendation gets its own ID")
}

func TestScanStateTuple(t *testing.T) {
	pos := testPosition()

	rec := NewRecommendation(pos, ActionRollITM, PriorityHigh, "escape roll")
	rec.Roll = &RollPayload{TargetStrike: 215.0}
	assert.Equal(t, ScanState{Action: ActionRollITM, TargetStrike: 215.0, Priority: PriorityHigh},
		rec.ScanState())

	// Actions without a roll payload carry a zero target strike.
	monitor := NewRecommendation(pos, ActionMonitor, PriorityLow, "nothing to do")
	assert.Equal(t, ScanState{Action: ActionMonitor, Priority: PriorityLow}, monitor.ScanState())

	// The tuple is comparable; a different strike is a different state.
	moved := NewRecommendation(pos, ActionRollITM, PriorityHigh, "escape roll")
	moved.Roll = &RollPayload{TargetStrike: 210.0}
	assert.NotEqual(t, rec.ScanState(), moved.ScanState())
}

package scan

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamalneel/rollwatch/internal/models"
	"github.com/kamalneel/rollwatch/internal/storage"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func rollRec(strike float64) *models.Recommendation {
	pos := &models.Position{
		Symbol:          "AAPL",
		OptionType:      models.OptionTypePut,
		Strike:          220.0,
		Expiration:      time.Date(2025, 3, 21, 0, 0, 0, 0, time.UTC),
		Contracts:       1,
		AccountName:     "main",
		OriginalPremium: 2.45,
	}
	rec := models.NewRecommendation(pos, models.ActionRollWeekly, models.PriorityMedium, "weekly roll")
	rec.Roll = &models.RollPayload{TargetStrike: strike}
	return rec
}

func TestShouldEmitSuppressesExactRepeat(t *testing.T) {
	f := NewFilter(storage.NewMockStorage(), testLogger())

	assert.True(t, f.ShouldEmit(rollRec(215.0)))
	assert.False(t, f.ShouldEmit(rollRec(215.0)), "identical tuple within the day is suppressed")
	assert.False(t, f.ShouldEmit(rollRec(215.0)))
}

func TestShouldEmitOnChangedTuple(t *testing.T) {
	f := NewFilter(storage.NewMockStorage(), testLogger())

	require.True(t, f.ShouldEmit(rollRec(215.0)))

	// The market moved and the target strike changed.
	assert.True(t, f.ShouldEmit(rollRec(210.0)))
	assert.False(t, f.ShouldEmit(rollRec(210.0)))

	// Escalating to a different action also re-emits.
	escalated := rollRec(210.0)
	escalated.Action = models.ActionClose
	escalated.Priority = models.PriorityUrgent
	escalated.Roll = nil
	assert.True(t, f.ShouldEmit(escalated))
}

func TestResetDailyClearsSuppression(t *testing.T) {
	f := NewFilter(storage.NewMockStorage(), testLogger())

	require.True(t, f.ShouldEmit(rollRec(215.0)))
	require.False(t, f.ShouldEmit(rollRec(215.0)))

	require.NoError(t, f.ResetDaily(time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC)))
	assert.True(t, f.ShouldEmit(rollRec(215.0)), "a new day starts with a clean slate")
}

func TestEnsureDayResetsStaleState(t *testing.T) {
	store := storage.NewMockStorage()
	f := NewFilter(store, testLogger())

	yesterday := time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC)
	require.NoError(t, f.ResetDaily(yesterday))
	require.True(t, f.ShouldEmit(rollRec(215.0)))

	// Restart on the next day: yesterday's state must not suppress.
	today := yesterday.AddDate(0, 0, 1)
	require.NoError(t, f.EnsureDay(today))
	assert.Equal(t, "2025-03-13", store.ScanDay())
	assert.True(t, f.ShouldEmit(rollRec(215.0)))

	// Same-day restart keeps the state.
	require.NoError(t, f.EnsureDay(today))
	assert.False(t, f.ShouldEmit(rollRec(215.0)))
}

func TestFilterKeysByPosition(t *testing.T) {
	f := NewFilter(storage.NewMockStorage(), testLogger())

	first := rollRec(215.0)
	require.True(t, f.ShouldEmit(first))

	// A different position with the same tuple is independent.
	other := rollRec(215.0)
	other.PositionKey = "MSFT|430.00|call|2025-04-17|roth-ira"
	assert.True(t, f.ShouldEmit(other))
}

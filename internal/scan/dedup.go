// Package scan contains the cross-scan deduplication filter that keeps
// repeated daily invocations from re-emitting unchanged recommendations.
package scan

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kamalneel/rollwatch/internal/models"
	"github.com/kamalneel/rollwatch/internal/storage"
)

const dayFormat = "2006-01-02"

// Filter suppresses a recommendation when the same position already received
// an identical one (same action, target strike, and priority) earlier the
// same day. State is persisted through storage so a mid-day restart does not
// replay the morning's notifications.
//
// The filter is the only shared mutable state touched by concurrent position
// evaluation; its mutex guards the read-then-write membership check, which
// storage's own locking cannot make atomic.
type Filter struct {
	mu     sync.Mutex
	store  storage.Interface
	logger *logrus.Logger
}

// NewFilter creates a deduplication filter backed by the given store.
func NewFilter(store storage.Interface, logger *logrus.Logger) *Filter {
	return &Filter{store: store, logger: logger}
}

// ShouldEmit reports whether the recommendation differs from the last one
// forwarded for the same position today, updating the stored tuple when it
// does. MONITOR recommendations are compared like any other action so a
// position that recovers to MONITOR and later degrades again re-notifies.
func (f *Filter) ShouldEmit(rec *models.Recommendation) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := rec.PositionKey
	next := rec.ScanState()

	if prev, ok := f.store.GetScanState(key); ok && prev == next {
		f.logger.Debugf("%s: suppressing duplicate %s recommendation", key, rec.Action)
		return false
	}

	if err := f.store.SetScanState(key, next); err != nil {
		// Persisting dedup state is best-effort; losing it means a
		// duplicate notification, not a wrong one.
		f.logger.Warnf("%s: failed to persist scan state: %v", key, err)
	}
	return true
}

// ResetDaily clears all stored tuples and stamps the new day. Must be called
// once at the start of each trading day.
func (f *Filter) ResetDaily(day time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.store.ResetScanStates(day.Format(dayFormat))
}

// EnsureDay resets the filter when the stored day stamp is not today, making
// restarts safe: state from a previous day never suppresses today's
// recommendations.
func (f *Filter) EnsureDay(now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	today := now.Format(dayFormat)
	if f.store.ScanDay() == today {
		return nil
	}
	f.logger.Infof("new trading day %s, resetting scan deduplication state", today)
	return f.store.ResetScanStates(today)
}

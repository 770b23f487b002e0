// Package storage persists the engine state that must survive process
// restarts within a trading day: the per-day scan deduplication map and the
// set of assignment records awaiting buy-back advice.
package storage

import (
	"time"

	"github.com/kamalneel/rollwatch/internal/models"
)

// Interface defines the contract for engine state persistence.
//
// Implementations must be safe for concurrent use - callers can assume all
// methods are goroutine-safe. The provided JSONStorage implementation uses
// sync.RWMutex to serialize access.
//
// Read-then-write sequences (dedup membership checks) are NOT atomic at this
// level; the scan filter holds its own lock around them.
type Interface interface {
	// Scan deduplication state
	ScanDay() string
	GetScanState(positionKey string) (models.ScanState, bool)
	SetScanState(positionKey string, state models.ScanState) error
	// ResetScanStates clears all scan states and stamps the new day
	// (formatted 2006-01-02).
	ResetScanStates(day string) error

	// Assignment records
	AddAssignment(rec models.AssignmentRecord) error
	Assignments() []models.AssignmentRecord
	// PendingAssignments returns unresolved records assigned on the given day.
	PendingAssignments(day time.Time) []models.AssignmentRecord
	MarkBuybackCompleted(id string) error

	// Data persistence
	Save() error
	Load() error
}

// NewStorage creates a new storage implementation (currently JSON-based).
func NewStorage(filepath string) (Interface, error) {
	return NewJSONStorage(filepath)
}

// Ensure JSONStorage implements Interface.
var _ Interface = (*JSONStorage)(nil)

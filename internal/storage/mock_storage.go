package storage

import (
	"sync"
	"time"

	"github.com/kamalneel/rollwatch/internal/models"
)

// MockStorage is an in-memory Interface implementation for tests.
type MockStorage struct {
	mu          sync.RWMutex
	scanDay     string
	scanStates  map[string]models.ScanState
	assignments []models.AssignmentRecord

	// SaveCalls counts explicit Save invocations for assertions.
	SaveCalls int
}

// Ensure MockStorage implements Interface.
var _ Interface = (*MockStorage)(nil)

// NewMockStorage creates an empty in-memory store.
func NewMockStorage() *MockStorage {
	return &MockStorage{scanStates: make(map[string]models.ScanState)}
}

// ScanDay returns the stamped scan day.
func (m *MockStorage) ScanDay() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scanDay
}

// GetScanState returns the stored tuple for a key.
func (m *MockStorage) GetScanState(positionKey string) (models.ScanState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.scanStates[positionKey]
	return st, ok
}

// SetScanState stores the tuple for a key.
func (m *MockStorage) SetScanState(positionKey string, state models.ScanState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scanStates[positionKey] = state
	return nil
}

// ResetScanStates clears the map and stamps the day.
func (m *MockStorage) ResetScanStates(day string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scanStates = make(map[string]models.ScanState)
	m.scanDay = day
	return nil
}

// AddAssignment appends a record.
func (m *MockStorage) AddAssignment(rec models.AssignmentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments = append(m.assignments, rec)
	return nil
}

// Assignments returns all records.
func (m *MockStorage) Assignments() []models.AssignmentRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.AssignmentRecord, len(m.assignments))
	copy(out, m.assignments)
	return out
}

// PendingAssignments returns unresolved records for the day.
func (m *MockStorage) PendingAssignments(day time.Time) []models.AssignmentRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.AssignmentRecord
	for _, rec := range m.assignments {
		if !rec.BuybackCompleted && rec.SameDay(day) {
			out = append(out, rec)
		}
	}
	return out
}

// MarkBuybackCompleted resolves a record by ID.
func (m *MockStorage) MarkBuybackCompleted(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.assignments {
		if m.assignments[i].ID == id {
			m.assignments[i].BuybackCompleted = true
			return nil
		}
	}
	return ErrAssignmentNotFound
}

// Save is a no-op for the in-memory store.
func (m *MockStorage) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalls++
	return nil
}

// Load is a no-op for the in-memory store.
func (m *MockStorage) Load() error { return nil }

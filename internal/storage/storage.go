package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/kamalneel/rollwatch/internal/models"
)

// JSONStorage persists engine state to a single JSON snapshot file.
type JSONStorage struct {
	mu       sync.RWMutex
	filepath string
	data     *storageData
}

type storageData struct {
	// ScanDay stamps which calendar day the scan states belong to; a
	// restart on a later day discards them.
	ScanDay     string                      `json:"scan_day"`
	ScanStates  map[string]models.ScanState `json:"scan_states"`
	Assignments []models.AssignmentRecord   `json:"assignments"`
	LastUpdated time.Time                   `json:"last_updated"`
}

// NewJSONStorage opens (or creates) the snapshot file at the given path.
func NewJSONStorage(filepath string) (*JSONStorage, error) {
	s := &JSONStorage{
		filepath: filepath,
		data: &storageData{
			ScanStates: make(map[string]models.ScanState),
		},
	}

	// Load existing data if file exists
	if _, err := os.Stat(filepath); err == nil {
		if err := s.Load(); err != nil {
			return nil, fmt.Errorf("loading storage: %w", err)
		}
	}

	return s, nil
}

// Load reads the snapshot file into memory.
func (s *JSONStorage) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filepath)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, &s.data); err != nil {
		return err
	}
	if s.data.ScanStates == nil {
		s.data.ScanStates = make(map[string]models.ScanState)
	}

	return nil
}

// Save writes the snapshot atomically (temp file plus rename).
func (s *JSONStorage) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *JSONStorage) saveLocked() error {
	s.data.LastUpdated = time.Now().UTC()

	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}

	tmpFile := s.filepath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpFile, s.filepath)
}

// ScanDay returns the day stamp the current scan states belong to.
func (s *JSONStorage) ScanDay() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.ScanDay
}

// GetScanState returns the stored dedup tuple for a position key.
func (s *JSONStorage) GetScanState(positionKey string) (models.ScanState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.data.ScanStates[positionKey]
	return st, ok
}

// SetScanState replaces the stored dedup tuple for a position key wholesale.
func (s *JSONStorage) SetScanState(positionKey string, state models.ScanState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.ScanStates[positionKey] = state
	return s.saveLocked()
}

// ResetScanStates clears all scan states and stamps the new day.
func (s *JSONStorage) ResetScanStates(day string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.ScanStates = make(map[string]models.ScanState)
	s.data.ScanDay = day
	return s.saveLocked()
}

// AddAssignment appends an assignment record.
func (s *JSONStorage) AddAssignment(rec models.AssignmentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Assignments = append(s.data.Assignments, rec)
	return s.saveLocked()
}

// Assignments returns a copy of all assignment records.
func (s *JSONStorage) Assignments() []models.AssignmentRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.AssignmentRecord, len(s.data.Assignments))
	copy(out, s.data.Assignments)
	return out
}

// PendingAssignments returns unresolved records assigned on the given day.
func (s *JSONStorage) PendingAssignments(day time.Time) []models.AssignmentRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.AssignmentRecord
	for _, rec := range s.data.Assignments {
		if !rec.BuybackCompleted && rec.SameDay(day) {
			out = append(out, rec)
		}
	}
	return out
}

// MarkBuybackCompleted resolves an assignment record so it never receives a
// second buy-back recommendation.
func (s *JSONStorage) MarkBuybackCompleted(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.data.Assignments {
		if s.data.Assignments[i].ID == id {
			s.data.Assignments[i].BuybackCompleted = true
			return s.saveLocked()
		}
	}
	return fmt.Errorf("marking buyback for %s: %w", id, ErrAssignmentNotFound)
}

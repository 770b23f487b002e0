// Package portfolio supplies the open short option positions the engine
// evaluates. Positions are owned externally; the engine never mutates them.
package portfolio

import (
	"context"
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"

	"github.com/kamalneel/rollwatch/internal/models"
)

// Source defines the contract for reading open positions.
type Source interface {
	GetOpenPositions(ctx context.Context) ([]models.Position, error)
}

// FileSource reads positions from a YAML file maintained alongside the
// brokerage account. The file is re-read on every scan so edits between scans
// are picked up without a restart.
type FileSource struct {
	path string
}

// Ensure FileSource implements Source at compile time.
var _ Source = (*FileSource)(nil)

// NewFileSource creates a file-backed position source.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

type positionsFile struct {
	Positions []models.Position `yaml:"positions"`
}

// GetOpenPositions reads and validates the positions file. Invalid entries
// fail the whole read so a typo is caught immediately rather than silently
// skipping a position every scan.
func (f *FileSource) GetOpenPositions(_ context.Context) ([]models.Position, error) {
	data, err := os.ReadFile(f.path) // #nosec G304 -- path comes from the user's config
	if err != nil {
		return nil, fmt.Errorf("reading positions file: %w", err)
	}

	var parsed positionsFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parsing positions file: %w", err)
	}

	for i := range parsed.Positions {
		if err := parsed.Positions[i].Validate(); err != nil {
			return nil, fmt.Errorf("positions file entry %d: %w", i, err)
		}
	}
	return parsed.Positions, nil
}

package portfolio

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamalneel/rollwatch/internal/models"
)

func writePositions(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "positions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const validPositions = `
positions:
  - symbol: AAPL
    option_type: put
    strike: 220.0
    expiration: 2025-03-21T00:00:00Z
    contracts: 2
    account_type: taxable
    account_name: brokerage-main
    original_premium_per_share: 2.45
    current_premium_per_share: 0.60
  - symbol: MSFT
    option_type: call
    strike: 430.0
    expiration: 2025-04-17T00:00:00Z
    contracts: 1
    account_type: roth_ira
    account_name: roth-ira
    original_premium_per_share: 5.10
    current_premium_per_share: 6.80
    rolled_out: true
`

func TestGetOpenPositions(t *testing.T) {
	src := NewFileSource(writePositions(t, validPositions))

	positions, err := src.GetOpenPositions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 2)

	assert.Equal(t, "AAPL", positions[0].Symbol)
	assert.Equal(t, models.OptionTypePut, positions[0].OptionType)
	assert.Equal(t, 2, positions[0].Contracts)
	assert.False(t, positions[0].RolledOut)

	assert.Equal(t, models.AccountRothIRA, positions[1].AccountType)
	assert.True(t, positions[1].RolledOut)
}

func TestGetOpenPositionsRereadsFile(t *testing.T) {
	path := writePositions(t, validPositions)
	src := NewFileSource(path)

	positions, err := src.GetOpenPositions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 2)

	// Positions edited between scans are picked up without a restart.
	require.NoError(t, os.WriteFile(path, []byte(`positions: []`), 0o600))
	positions, err = src.GetOpenPositions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestGetOpenPositionsRejectsInvalidEntry(t *testing.T) {
	src := NewFileSource(writePositions(t, `
positions:
  - symbol: AAPL
    option_type: strangle
    strike: 220.0
    expiration: 2025-03-21T00:00:00Z
    contracts: 2
    account_type: taxable
    account_name: brokerage-main
    original_premium_per_share: 2.45
`))

	_, err := src.GetOpenPositions(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entry 0")
}

func TestGetOpenPositionsMissingFile(t *testing.T) {
	src := NewFileSource(filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := src.GetOpenPositions(context.Background())
	assert.Error(t, err)
}

func TestGetOpenPositionsMalformedYAML(t *testing.T) {
	src := NewFileSource(writePositions(t, "positions: [\n"))
	_, err := src.GetOpenPositions(context.Background())
	assert.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalConfig = `
environment:
  mode: paper
schedule:
  scan_times: ["09:35", "15:45"]
portfolio:
  path: positions.yaml
storage:
  path: state.json
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.InDelta(t, 0.20, cfg.Roll.MaxCostPct, 1e-9)
	assert.InDelta(t, 0.90, cfg.Roll.WeeklyProbOTM, 1e-9)
	assert.InDelta(t, 0.70, cfg.Roll.ITMProbOTM, 1e-9)
	assert.Equal(t, 52, cfg.Roll.MaxWeeks)
	assert.Equal(t, 4, cfg.Roll.WeeklyTriggerDTE)
	assert.InDelta(t, 0.75, cfg.Close.ProfitThreshold, 1e-9)
	assert.Equal(t, 2, cfg.Assignment.CheapRollMaxWeeks)
	assert.InDelta(t, 15.0, cfg.Assignment.CheapRollMaxDebit, 1e-9)
	assert.Equal(t, 4, cfg.Evaluation.MaxConcurrent)
	assert.Equal(t, 30*time.Second, cfg.TickInterval())

	ttl, err := cfg.CacheTTL()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, ttl)
	assert.Equal(t, 10*time.Second, cfg.MarketDataTimeout())
	assert.True(t, cfg.IsPaperTrading())
}

func TestLoadExpandsEnvironmentVariables(t *testing.T) {
	t.Setenv("TEST_MD_KEY", "secret-key-123")
	cfg, err := Load(writeConfig(t, minimalConfig+`
marketdata:
  api_key: "${TEST_MD_KEY}"
`))
	require.NoError(t, err)
	assert.Equal(t, "secret-key-123", cfg.MarketData.APIKey)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+`
surprise_section:
  foo: 1
`))
	assert.Error(t, err)
}

func TestLiveModeRequiresAPICredentials(t *testing.T) {
	_, err := Load(writeConfig(t, `
environment:
  mode: live
schedule:
  scan_times: ["09:35"]
portfolio:
  path: positions.yaml
storage:
  path: state.json
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad mode", func(c *Config) { c.Environment.Mode = "backtest" }},
		{"max cost pct out of range", func(c *Config) { c.Roll.MaxCostPct = 1.5 }},
		{"weekly prob otm too low", func(c *Config) { c.Roll.WeeklyProbOTM = 0.4 }},
		{"max weeks too large", func(c *Config) { c.Roll.MaxWeeks = 60 }},
		{"trigger dte out of range", func(c *Config) { c.Roll.WeeklyTriggerDTE = 9 }},
		{"rsi bands inverted", func(c *Config) { c.Close.RSILow = 80 }},
		{"no scan times", func(c *Config) { c.Schedule.ScanTimes = nil }},
		{"malformed scan time", func(c *Config) { c.Schedule.ScanTimes = []string{"9am"} }},
		{"bad timezone", func(c *Config) { c.Schedule.Timezone = "Mars/Olympus" }},
		{"missing portfolio path", func(c *Config) { c.Portfolio.Path = "" }},
		{"missing storage path", func(c *Config) { c.Storage.Path = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, minimalConfig))
			require.NoError(t, err)
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLocationDefaultsToNewYork(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.NotNil(t, loc)
}

// Package config provides configuration management for the recommendation engine.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// Policy defaults applied when the corresponding field is unset.
const (
	// defaultMaxCostPct is the roll acceptability rule: a roll is
	// cost-neutral when its net debit is within this fraction of the
	// original premium received.
	defaultMaxCostPct = 0.20
	// defaultWeeklyProbOTM targets Delta 10 for ordinary weekly rolls
	defaultWeeklyProbOTM = 0.90
	// defaultITMProbOTM targets Delta 30 for ITM escapes and pull-backs
	defaultITMProbOTM = 0.70
	// defaultMaxWeeks caps how far out a roll search may extend
	defaultMaxWeeks = 52
	// defaultWeeklyTriggerDTE is the natural weekly roll point
	defaultWeeklyTriggerDTE = 4
	// defaultProfitThreshold is the captured-profit fraction that makes an
	// early close worth considering
	defaultProfitThreshold = 0.75
	// defaultCheapRollMaxWeeks / defaultCheapRollMaxDebit form the
	// comparator bypass: short cheap rolls go through the ordinary roll
	// path instead
	defaultCheapRollMaxWeeks = 2
	defaultCheapRollMaxDebit = 15.0
	// defaultEvalConcurrency bounds concurrent position evaluation
	defaultEvalConcurrency = 4
)

// Config represents the complete application configuration.
type Config struct {
	Environment EnvironmentConfig `yaml:"environment"`
	MarketData  MarketDataConfig  `yaml:"marketdata"`
	Schedule    ScheduleConfig    `yaml:"schedule"`
	Roll        RollConfig        `yaml:"roll"`
	Close       CloseConfig       `yaml:"close"`
	Assignment  AssignmentConfig  `yaml:"assignment"`
	Evaluation  EvaluationConfig  `yaml:"evaluation"`
	Portfolio   PortfolioConfig   `yaml:"portfolio"`
	Storage     StorageConfig     `yaml:"storage"`
}

// EnvironmentConfig defines the environment settings.
type EnvironmentConfig struct {
	Mode     string `yaml:"mode"`      // paper | live
	LogLevel string `yaml:"log_level"` // debug | info | warn | error
}

// MarketDataConfig defines market-data API settings.
type MarketDataConfig struct {
	APIKey            string  `yaml:"api_key"`
	APIEndpoint       string  `yaml:"api_endpoint"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	CacheTTL          string  `yaml:"cache_ttl"`
}

// ScheduleConfig defines the scan schedule.
type ScheduleConfig struct {
	Timezone string `yaml:"timezone"` // e.g., "America/New_York"
	// ScanTimes are "HH:MM" times of day at which a scan invocation fires,
	// e.g. pre-market, midday, near-close.
	ScanTimes []string `yaml:"scan_times"`
	// TickInterval is how often the scheduler wakes to check scan times.
	TickInterval string `yaml:"tick_interval"`
}

// RollConfig defines roll search parameters.
type RollConfig struct {
	// MaxCostPct is the acceptability rule: net cost must be within this
	// fraction of the original premium.
	MaxCostPct       float64 `yaml:"max_cost_pct"`
	WeeklyProbOTM    float64 `yaml:"weekly_prob_otm"`
	ITMProbOTM       float64 `yaml:"itm_prob_otm"`
	MaxWeeks         int     `yaml:"max_weeks"`
	WeeklyTriggerDTE int     `yaml:"weekly_trigger_dte"`
	SkipEarnings     bool    `yaml:"skip_earnings"`
	SkipDividends    bool    `yaml:"skip_dividends"`
}

// CloseConfig defines early-close criteria for profitable OTM positions.
type CloseConfig struct {
	ProfitThreshold    float64 `yaml:"profit_threshold"`
	RSIHigh            float64 `yaml:"rsi_high"`
	RSILow             float64 `yaml:"rsi_low"`
	EarningsWindowDays int     `yaml:"earnings_window_days"`
	SqueezeThreshold   float64 `yaml:"squeeze_threshold"`
}

// AssignmentConfig defines the assignment comparator and buy-back thresholds.
// The cheap-roll bypass values are policy constants with no stated
// derivation, so they are configurable rather than hardcoded.
type AssignmentConfig struct {
	CheapRollMaxWeeks int     `yaml:"cheap_roll_max_weeks"`
	CheapRollMaxDebit float64 `yaml:"cheap_roll_max_debit"`
	// BuyBackThresholdPct: favorable move beyond this recommends BUY_NOW.
	BuyBackThresholdPct float64 `yaml:"buy_back_threshold_pct"`
	// SkipThresholdPct: unfavorable move beyond this recommends SKIP.
	SkipThresholdPct float64 `yaml:"skip_threshold_pct"`
}

// EvaluationConfig bounds the per-scan evaluation fan-out.
type EvaluationConfig struct {
	MaxConcurrent int `yaml:"max_concurrent"`
}

// PortfolioConfig defines where open positions are read from.
type PortfolioConfig struct {
	Path string `yaml:"path"`
}

// StorageConfig defines storage settings for engine state.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// Load reads and parses the configuration file from the specified path.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- configPath is a user-provided config file path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var config Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate normalizes defaults and checks that all configuration values are
// valid and consistent.
func (c *Config) Validate() error {
	c.normalize()

	// Environment validation
	if c.Environment.Mode != "paper" && c.Environment.Mode != "live" {
		return fmt.Errorf("environment.mode must be 'paper' or 'live'")
	}

	// Market data validation (live mode only; paper mode uses canned data)
	if !c.IsPaperTrading() {
		if c.MarketData.APIKey == "" {
			return fmt.Errorf("marketdata.api_key is required in live mode")
		}
		if c.MarketData.APIEndpoint == "" {
			return fmt.Errorf("marketdata.api_endpoint is required in live mode")
		}
	}
	if _, err := c.CacheTTL(); err != nil {
		return fmt.Errorf("marketdata.cache_ttl invalid: %w", err)
	}

	// Roll validation
	if c.Roll.MaxCostPct <= 0 || c.Roll.MaxCostPct >= 1 {
		return fmt.Errorf("roll.max_cost_pct must be in (0,1)")
	}
	if c.Roll.WeeklyProbOTM <= 0.5 || c.Roll.WeeklyProbOTM >= 1 {
		return fmt.Errorf("roll.weekly_prob_otm must be in (0.5,1)")
	}
	if c.Roll.ITMProbOTM <= 0.5 || c.Roll.ITMProbOTM >= 1 {
		return fmt.Errorf("roll.itm_prob_otm must be in (0.5,1)")
	}
	if c.Roll.MaxWeeks <= 0 || c.Roll.MaxWeeks > 52 {
		return fmt.Errorf("roll.max_weeks must be in [1,52]")
	}
	if c.Roll.WeeklyTriggerDTE < 0 || c.Roll.WeeklyTriggerDTE > 7 {
		return fmt.Errorf("roll.weekly_trigger_dte must be in [0,7]")
	}

	// Close validation
	if c.Close.ProfitThreshold <= 0 || c.Close.ProfitThreshold >= 1 {
		return fmt.Errorf("close.profit_threshold must be in (0,1)")
	}
	if c.Close.RSILow >= c.Close.RSIHigh {
		return fmt.Errorf("close.rsi_low (%.1f) must be < close.rsi_high (%.1f)",
			c.Close.RSILow, c.Close.RSIHigh)
	}
	if c.Close.EarningsWindowDays < 0 {
		return fmt.Errorf("close.earnings_window_days must be >= 0")
	}

	// Assignment validation
	if c.Assignment.CheapRollMaxWeeks < 0 {
		return fmt.Errorf("assignment.cheap_roll_max_weeks must be >= 0")
	}
	if c.Assignment.CheapRollMaxDebit < 0 {
		return fmt.Errorf("assignment.cheap_roll_max_debit must be >= 0")
	}
	if c.Assignment.BuyBackThresholdPct <= 0 || c.Assignment.SkipThresholdPct <= 0 {
		return fmt.Errorf("assignment buy-back and skip thresholds must be > 0")
	}

	// Schedule validation
	loc, err := c.Location()
	if err != nil {
		return fmt.Errorf("schedule.timezone invalid: %w", err)
	}
	if len(c.Schedule.ScanTimes) == 0 {
		return fmt.Errorf("schedule.scan_times must list at least one HH:MM time")
	}
	for _, st := range c.Schedule.ScanTimes {
		if _, err := time.ParseInLocation("15:04", st, loc); err != nil {
			return fmt.Errorf("schedule.scan_times entry %q invalid: %w", st, err)
		}
	}
	if _, err := time.ParseDuration(c.Schedule.TickInterval); err != nil {
		return fmt.Errorf("schedule.tick_interval invalid: %w", err)
	}

	// Paths
	if c.Portfolio.Path == "" {
		return fmt.Errorf("portfolio.path is required")
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}

	return nil
}

// normalize fills unset optional fields with policy defaults.
func (c *Config) normalize() {
	if c.Roll.MaxCostPct == 0 {
		c.Roll.MaxCostPct = defaultMaxCostPct
	}
	if c.Roll.WeeklyProbOTM == 0 {
		c.Roll.WeeklyProbOTM = defaultWeeklyProbOTM
	}
	if c.Roll.ITMProbOTM == 0 {
		c.Roll.ITMProbOTM = defaultITMProbOTM
	}
	if c.Roll.MaxWeeks == 0 {
		c.Roll.MaxWeeks = defaultMaxWeeks
	}
	if c.Roll.WeeklyTriggerDTE == 0 {
		c.Roll.WeeklyTriggerDTE = defaultWeeklyTriggerDTE
	}
	if c.Close.ProfitThreshold == 0 {
		c.Close.ProfitThreshold = defaultProfitThreshold
	}
	if c.Close.RSIHigh == 0 {
		c.Close.RSIHigh = 70
	}
	if c.Close.RSILow == 0 {
		c.Close.RSILow = 30
	}
	if c.Close.EarningsWindowDays == 0 {
		c.Close.EarningsWindowDays = 7
	}
	if c.Close.SqueezeThreshold == 0 {
		c.Close.SqueezeThreshold = 0.05
	}
	if c.Assignment.CheapRollMaxWeeks == 0 {
		c.Assignment.CheapRollMaxWeeks = defaultCheapRollMaxWeeks
	}
	if c.Assignment.CheapRollMaxDebit == 0 {
		c.Assignment.CheapRollMaxDebit = defaultCheapRollMaxDebit
	}
	if c.Assignment.BuyBackThresholdPct == 0 {
		c.Assignment.BuyBackThresholdPct = 0.01
	}
	if c.Assignment.SkipThresholdPct == 0 {
		c.Assignment.SkipThresholdPct = 0.03
	}
	if c.Evaluation.MaxConcurrent == 0 {
		c.Evaluation.MaxConcurrent = defaultEvalConcurrency
	}
	if c.Schedule.TickInterval == "" {
		c.Schedule.TickInterval = "30s"
	}
	if c.MarketData.CacheTTL == "" {
		c.MarketData.CacheTTL = "5m"
	}
	if c.MarketData.TimeoutSeconds == 0 {
		c.MarketData.TimeoutSeconds = 10
	}
	if c.MarketData.RequestsPerSecond == 0 {
		c.MarketData.RequestsPerSecond = 2
	}
}

// IsPaperTrading returns true if the engine runs against canned market data.
func (c *Config) IsPaperTrading() bool {
	return c.Environment.Mode == "paper"
}

// Location resolves the configured timezone, defaulting to New York with a
// DST-agnostic fallback for minimal containers.
func (c *Config) Location() (*time.Location, error) {
	tz := c.Schedule.Timezone
	if tz == "" {
		tz = "America/New_York"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		if c.Schedule.Timezone != "" {
			return nil, err
		}
		loc = time.FixedZone("ET", -5*60*60)
	}
	return loc, nil
}

// CacheTTL returns the configured market-data cache TTL.
func (c *Config) CacheTTL() (time.Duration, error) {
	return time.ParseDuration(c.MarketData.CacheTTL)
}

// TickInterval returns the scheduler wake interval.
func (c *Config) TickInterval() time.Duration {
	d, err := time.ParseDuration(c.Schedule.TickInterval)
	if err != nil {
		return 30 * time.Second // default
	}
	return d
}

// MarketDataTimeout returns the per-request market-data timeout.
func (c *Config) MarketDataTimeout() time.Duration {
	return time.Duration(c.MarketData.TimeoutSeconds) * time.Second
}

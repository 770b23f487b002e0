// Command engine runs the position recommendation engine: a periodic scanner
// that evaluates open short option positions and recommends rolls, closes,
// pull-backs, or assignment acceptance before value decays.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/kamalneel/rollwatch/internal/assignment"
	"github.com/kamalneel/rollwatch/internal/config"
	"github.com/kamalneel/rollwatch/internal/marketdata"
	"github.com/kamalneel/rollwatch/internal/notify"
	"github.com/kamalneel/rollwatch/internal/portfolio"
	"github.com/kamalneel/rollwatch/internal/scan"
	"github.com/kamalneel/rollwatch/internal/storage"
	"github.com/kamalneel/rollwatch/internal/strategy"
)

// Engine wires the scan components together and owns the scheduler loop.
type Engine struct {
	cfg       *config.Config
	logger    *logrus.Logger
	loc       *time.Location
	store     storage.Interface
	evaluator *strategy.Evaluator
	filter    *scan.Filter
	tracker   *assignment.Tracker
	source    portfolio.Source
	notifier  notify.Notifier
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// .env is optional; config values reference env vars via ${VAR}.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	logger := newLogger(cfg.Environment.LogLevel)
	logger.Infof("Starting recommendation engine in %s mode", cfg.Environment.Mode)

	engine, err := newEngine(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize engine: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, stopping engine...")
		cancel()
	}()

	engine.Run(ctx)
	logger.Info("Engine stopped")
}

func newLogger(level string) *logrus.Logger {
	logger := logrus.New()
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

func newEngine(cfg *config.Config, logger *logrus.Logger) (*Engine, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	store, err := storage.NewStorage(cfg.Storage.Path)
	if err != nil {
		return nil, err
	}

	ttl, err := cfg.CacheTTL()
	if err != nil {
		return nil, err
	}

	provider := buildProvider(cfg, logger, ttl)

	return &Engine{
		cfg:       cfg,
		logger:    logger,
		loc:       loc,
		store:     store,
		evaluator: strategy.NewEvaluator(provider, cfg, logger),
		filter:    scan.NewFilter(store, logger),
		tracker:   assignment.NewTracker(store, provider, cfg.Assignment, logger),
		source:    portfolio.NewFileSource(cfg.Portfolio.Path),
		notifier:  notify.NewConsole(),
	}, nil
}

// buildProvider assembles the market-data stack: HTTP client wrapped by the
// circuit breaker wrapped by the TTL cache. Paper mode without an endpoint
// falls back to the empty in-memory provider, so every position degrades to
// MONITOR instead of hammering a nonexistent API.
func buildProvider(cfg *config.Config, logger *logrus.Logger, ttl time.Duration) marketdata.Provider {
	if cfg.IsPaperTrading() && cfg.MarketData.APIEndpoint == "" {
		logger.Warn("Paper mode with no market-data endpoint configured; using the empty built-in provider")
		return marketdata.NewMockProvider()
	}
	client := marketdata.NewClient(marketdata.ClientConfig{
		APIKey:            cfg.MarketData.APIKey,
		Endpoint:          cfg.MarketData.APIEndpoint,
		Timeout:           cfg.MarketDataTimeout(),
		RequestsPerSecond: cfg.MarketData.RequestsPerSecond,
	}, logger)
	return marketdata.NewCachingProvider(
		marketdata.NewCircuitBreakerProvider(client, logger), ttl)
}

// Run drives the scheduler: the engine wakes on a short ticker and fires one
// scan cycle whenever a configured scan time has come due. Scan invocations
// within a day share dedup state; a day boundary resets it and triggers the
// Monday assignment pass.
func (e *Engine) Run(ctx context.Context) {
	e.logger.Infof("Scan times: %v (%s)", e.cfg.Schedule.ScanTimes, e.loc)

	startup := time.Now().In(e.loc)

	// Restart-safe: discard dedup state left over from a previous day.
	if err := e.filter.EnsureDay(startup); err != nil {
		e.logger.Warnf("Failed to verify scan day: %v", err)
	}
	// Restart-safe as well: an engine started after the day boundary still
	// owes the Monday buy-back pass. Re-running it is harmless; resolved
	// records stay resolved and WAIT leaves records pending either way.
	e.maybeMondayPass(ctx, startup)

	ticker := time.NewTicker(e.cfg.TickInterval())
	defer ticker.Stop()

	fired := make(map[string]bool)
	lastDay := startup.Format("2006-01-02")

	// Mark scan times already past at startup as consumed, except the most
	// recent one: a mid-day restart should catch up once, not replay the
	// whole morning.
	markStaleScans(e.cfg.Schedule.ScanTimes, fired, startup, e.loc)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick(ctx, fired, &lastDay)
		}
	}
}

func (e *Engine) tick(ctx context.Context, fired map[string]bool, lastDay *string) {
	now := time.Now().In(e.loc)

	day := now.Format("2006-01-02")
	if day != *lastDay {
		*lastDay = day
		for k := range fired {
			delete(fired, k)
		}
		if err := e.filter.ResetDaily(now); err != nil {
			e.logger.Warnf("Daily dedup reset failed: %v", err)
		}
		e.maybeMondayPass(ctx, now)
	}

	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return
	}

	if due := dueScanTime(e.cfg.Schedule.ScanTimes, fired, now, e.loc); due != "" {
		e.logger.Infof("Scan time %s reached, starting scan cycle", due)
		newScanCycle(e).Run(ctx)
	}
}

// maybeMondayPass runs the buy-back pass when now falls on a Monday. Called
// both at startup and on the day boundary.
func (e *Engine) maybeMondayPass(ctx context.Context, now time.Time) {
	if now.Weekday() != time.Monday {
		return
	}
	e.runMondayAssignmentPass(ctx)
}

func (e *Engine) runMondayAssignmentPass(ctx context.Context) {
	recs := e.tracker.GenerateMondayRecommendations(ctx)
	if len(recs) == 0 {
		return
	}
	e.logger.Infof("Monday assignment pass produced %d recommendation(s)", len(recs))
	if err := e.notifier.Publish(ctx, recs); err != nil {
		e.logger.Errorf("Failed to publish assignment recommendations: %v", err)
	}
}

// dueScanTime returns the first configured scan time that has passed and not
// yet fired today, marking every past-due time consumed so a catch-up runs a
// single cycle.
func dueScanTime(scanTimes []string, fired map[string]bool, now time.Time, loc *time.Location) string {
	due := ""
	for _, st := range scanTimes {
		if fired[st] {
			continue
		}
		if !scanTimePassed(st, now, loc) {
			continue
		}
		fired[st] = true
		if due == "" {
			due = st
		}
	}
	return due
}

// markStaleScans consumes all past-due scan times except the latest one.
func markStaleScans(scanTimes []string, fired map[string]bool, now time.Time, loc *time.Location) {
	latest := ""
	for _, st := range scanTimes {
		if scanTimePassed(st, now, loc) {
			latest = st
		}
	}
	for _, st := range scanTimes {
		if st != latest && scanTimePassed(st, now, loc) {
			fired[st] = true
		}
	}
}

func scanTimePassed(scanTime string, now time.Time, loc *time.Location) bool {
	clock, err := time.ParseInLocation("15:04", scanTime, loc)
	if err != nil {
		return false
	}
	at := time.Date(now.Year(), now.Month(), now.Day(), clock.Hour(), clock.Minute(), 0, 0, loc)
	return !now.Before(at)
}

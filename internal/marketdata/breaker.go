package marketdata

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/kamalneel/rollwatch/internal/models"
)

// CircuitBreakerProvider wraps a Provider with circuit breaker functionality
// so a flapping market-data API fails fast instead of stalling every scan.
type CircuitBreakerProvider struct {
	provider Provider
	breaker  *gobreaker.CircuitBreaker
}

// Ensure CircuitBreakerProvider implements Provider at compile time.
var _ Provider = (*CircuitBreakerProvider)(nil)

// CircuitBreakerSettings configures circuit breaker behavior.
type CircuitBreakerSettings struct {
	MaxRequests  uint32        // Max requests when half-open
	Interval     time.Duration // Reset counts interval
	Timeout      time.Duration // Open circuit duration
	MinRequests  uint32        // Min requests before tripping
	FailureRatio float64       // Failure ratio threshold
}

// execBreaker is a generic helper for circuit breaker wrapper methods.
func execBreaker[T any](
	breaker *gobreaker.CircuitBreaker,
	provider Provider,
	fn func(Provider) (T, error),
) (T, error) {
	var zero T
	res, err := breaker.Execute(func() (interface{}, error) { return fn(provider) })
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	v, ok := res.(T)
	if !ok {
		return zero, errors.New("circuit breaker: type assertion failed")
	}
	return v, nil
}

// NewCircuitBreakerProvider creates a CircuitBreakerProvider with sensible defaults.
func NewCircuitBreakerProvider(provider Provider, logger *logrus.Logger) *CircuitBreakerProvider {
	return NewCircuitBreakerProviderWithSettings(provider, logger, CircuitBreakerSettings{
		MaxRequests:  3,                // Allow 3 requests when half-open
		Interval:     60 * time.Second, // Reset counts every minute
		Timeout:      30 * time.Second, // Open circuit for 30 seconds
		MinRequests:  5,                // Minimum requests before tripping
		FailureRatio: 0.6,              // Trip if 60% failure rate
	})
}

// NewCircuitBreakerProviderWithSettings creates a CircuitBreakerProvider with custom settings.
func NewCircuitBreakerProviderWithSettings(provider Provider, logger *logrus.Logger,
	settings CircuitBreakerSettings) *CircuitBreakerProvider {
	gbSettings := gobreaker.Settings{
		Name:        "MarketDataCircuitBreaker",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 || counts.Requests < settings.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= settings.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warnf("circuit breaker %s state changed from %s to %s", name, from, to)
		},
		IsSuccessful: func(err error) bool {
			// Missing data is a valid answer, not an API failure.
			return err == nil || errors.Is(err, ErrNoData)
		},
	}

	return &CircuitBreakerProvider{
		provider: provider,
		breaker:  gobreaker.NewCircuitBreaker(gbSettings),
	}
}

// GetQuote wraps the underlying provider call with circuit breaker.
func (c *CircuitBreakerProvider) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	return execBreaker(c.breaker, c.provider, func(p Provider) (*Quote, error) {
		return p.GetQuote(ctx, symbol)
	})
}

// GetOptionChain wraps the underlying provider call with circuit breaker.
func (c *CircuitBreakerProvider) GetOptionChain(ctx context.Context, symbol string, expiration time.Time) (*Chain, error) {
	return execBreaker(c.breaker, c.provider, func(p Provider) (*Chain, error) {
		return p.GetOptionChain(ctx, symbol, expiration)
	})
}

// RecommendStrike wraps the underlying provider call with circuit breaker.
func (c *CircuitBreakerProvider) RecommendStrike(ctx context.Context, symbol string,
	optionType models.OptionType, weeksOut int, probabilityOTM float64) (float64, error) {
	return execBreaker(c.breaker, c.provider, func(p Provider) (float64, error) {
		return p.RecommendStrike(ctx, symbol, optionType, weeksOut, probabilityOTM)
	})
}

// GetTechnicalIndicators wraps the underlying provider call with circuit breaker.
func (c *CircuitBreakerProvider) GetTechnicalIndicators(ctx context.Context, symbol string) (*Indicators, error) {
	return execBreaker(c.breaker, c.provider, func(p Provider) (*Indicators, error) {
		return p.GetTechnicalIndicators(ctx, symbol)
	})
}

// GetNextEarningsDate wraps the underlying provider call with circuit breaker.
func (c *CircuitBreakerProvider) GetNextEarningsDate(ctx context.Context, symbol string) (time.Time, error) {
	return execBreaker(c.breaker, c.provider, func(p Provider) (time.Time, error) {
		return p.GetNextEarningsDate(ctx, symbol)
	})
}

// GetNextExDividendDate wraps the underlying provider call with circuit breaker.
func (c *CircuitBreakerProvider) GetNextExDividendDate(ctx context.Context, symbol string) (time.Time, error) {
	return execBreaker(c.breaker, c.provider, func(p Provider) (time.Time, error) {
		return p.GetNextExDividendDate(ctx, symbol)
	})
}

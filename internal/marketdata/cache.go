package marketdata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kamalneel/rollwatch/internal/models"
)

// CachingProvider memoizes chain, indicator, and calendar lookups for a TTL.
// A roll search probes up to eleven durations per position and many of them
// resolve to the same expiration, so caching collapses the fan-out. It is an
// explicit injected collaborator, constructed once per process; there is no
// package-level cache state.
//
// Stock quotes are deliberately not cached: they feed price-movement
// decisions and must stay fresh.
type CachingProvider struct {
	provider Provider
	ttl      time.Duration

	mu      sync.RWMutex
	entries map[string]cacheEntry

	now func() time.Time
}

type cacheEntry struct {
	value   any
	expires time.Time
}

// Ensure CachingProvider implements Provider at compile time.
var _ Provider = (*CachingProvider)(nil)

// NewCachingProvider wraps a provider with a TTL cache.
func NewCachingProvider(provider Provider, ttl time.Duration) *CachingProvider {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachingProvider{
		provider: provider,
		ttl:      ttl,
		entries:  make(map[string]cacheEntry),
		now:      time.Now,
	}
}

func (c *CachingProvider) lookup(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok || c.now().After(entry.expires) {
		return nil, false
	}
	return entry.value, true
}

func (c *CachingProvider) store(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value, expires: c.now().Add(c.ttl)}
}

// cached runs fn on a miss and memoizes the result. Errors are never cached;
// a transient failure should not poison the rest of the scan window.
func cached[T any](c *CachingProvider, key string, fn func() (T, error)) (T, error) {
	if v, ok := c.lookup(key); ok {
		return v.(T), nil
	}
	v, err := fn()
	if err != nil {
		var zero T
		return zero, err
	}
	c.store(key, v)
	return v, nil
}

// GetQuote passes through to the underlying provider uncached.
func (c *CachingProvider) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	return c.provider.GetQuote(ctx, symbol)
}

// GetOptionChain returns a cached chain when available.
func (c *CachingProvider) GetOptionChain(ctx context.Context, symbol string, expiration time.Time) (*Chain, error) {
	key := fmt.Sprintf("chain|%s|%s", symbol, expiration.Format("2006-01-02"))
	return cached(c, key, func() (*Chain, error) {
		return c.provider.GetOptionChain(ctx, symbol, expiration)
	})
}

// RecommendStrike returns a cached strike recommendation when available.
func (c *CachingProvider) RecommendStrike(ctx context.Context, symbol string,
	optionType models.OptionType, weeksOut int, probabilityOTM float64) (float64, error) {
	key := fmt.Sprintf("strike|%s|%s|%d|%.3f", symbol, optionType, weeksOut, probabilityOTM)
	return cached(c, key, func() (float64, error) {
		return c.provider.RecommendStrike(ctx, symbol, optionType, weeksOut, probabilityOTM)
	})
}

// GetTechnicalIndicators returns cached indicators when available.
func (c *CachingProvider) GetTechnicalIndicators(ctx context.Context, symbol string) (*Indicators, error) {
	key := "indicators|" + symbol
	return cached(c, key, func() (*Indicators, error) {
		return c.provider.GetTechnicalIndicators(ctx, symbol)
	})
}

// GetNextEarningsDate returns a cached earnings date when available.
func (c *CachingProvider) GetNextEarningsDate(ctx context.Context, symbol string) (time.Time, error) {
	key := "earnings|" + symbol
	return cached(c, key, func() (time.Time, error) {
		return c.provider.GetNextEarningsDate(ctx, symbol)
	})
}

// GetNextExDividendDate returns a cached ex-dividend date when available.
func (c *CachingProvider) GetNextExDividendDate(ctx context.Context, symbol string) (time.Time, error) {
	key := "exdiv|" + symbol
	return cached(c, key, func() (time.Time, error) {
		return c.provider.GetNextExDividendDate(ctx, symbol)
	})
}

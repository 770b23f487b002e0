package marketdata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kamalneel/rollwatch/internal/models"
)

// MockProvider is a configurable in-memory Provider used by tests and by
// paper mode. Missing entries surface as ErrNoData, matching how the HTTP
// client reports absent data.
type MockProvider struct {
	mu sync.Mutex

	Quotes        map[string]*Quote      // symbol -> quote
	Chains        map[string]*Chain      // symbol|YYYY-MM-DD -> chain
	Strikes       map[string]float64     // symbol|type|weeks -> strike
	IndicatorsMap map[string]*Indicators // symbol -> indicators
	EarningsDates map[string]time.Time   // symbol -> next earnings
	ExDivDates    map[string]time.Time   // symbol -> next ex-dividend

	QuoteErr      error
	ChainErr      error
	StrikeErr     error
	IndicatorsErr error

	// Call records let tests verify which candidates a search probed.
	StrikeCalls []StrikeCall
	ChainCalls  []string
}

// StrikeCall records one RecommendStrike invocation.
type StrikeCall struct {
	Symbol         string
	OptionType     models.OptionType
	WeeksOut       int
	ProbabilityOTM float64
}

// Ensure MockProvider implements Provider at compile time.
var _ Provider = (*MockProvider)(nil)

// NewMockProvider creates an empty mock provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Quotes:        make(map[string]*Quote),
		Chains:        make(map[string]*Chain),
		Strikes:       make(map[string]float64),
		IndicatorsMap: make(map[string]*Indicators),
		EarningsDates: make(map[string]time.Time),
		ExDivDates:    make(map[string]time.Time),
	}
}

// ChainKey builds the lookup key used by SetChain and GetOptionChain.
func ChainKey(symbol string, expiration time.Time) string {
	return symbol + "|" + expiration.Format("2006-01-02")
}

// StrikeKey builds the lookup key used by SetStrike and RecommendStrike.
func StrikeKey(symbol string, optionType models.OptionType, weeksOut int) string {
	return fmt.Sprintf("%s|%s|%d", symbol, optionType, weeksOut)
}

// SetChain registers a chain for a symbol and expiration.
func (m *MockProvider) SetChain(symbol string, expiration time.Time, chain *Chain) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chain.Symbol = symbol
	chain.Expiration = expiration
	m.Chains[ChainKey(symbol, expiration)] = chain
}

// SetStrike registers the strike RecommendStrike returns for a duration.
func (m *MockProvider) SetStrike(symbol string, optionType models.OptionType, weeksOut int, strike float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Strikes[StrikeKey(symbol, optionType, weeksOut)] = strike
}

// GetQuote returns the configured quote for the symbol.
func (m *MockProvider) GetQuote(_ context.Context, symbol string) (*Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QuoteErr != nil {
		return nil, m.QuoteErr
	}
	q, ok := m.Quotes[symbol]
	if !ok {
		return nil, ErrNoData
	}
	return q, nil
}

// GetOptionChain returns the configured chain for the symbol and expiration.
func (m *MockProvider) GetOptionChain(_ context.Context, symbol string, expiration time.Time) (*Chain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChainCalls = append(m.ChainCalls, ChainKey(symbol, expiration))
	if m.ChainErr != nil {
		return nil, m.ChainErr
	}
	chain, ok := m.Chains[ChainKey(symbol, expiration)]
	if !ok {
		return nil, ErrNoData
	}
	return chain, nil
}

// RecommendStrike returns the configured strike for the duration.
func (m *MockProvider) RecommendStrike(_ context.Context, symbol string, optionType models.OptionType,
	weeksOut int, probabilityOTM float64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StrikeCalls = append(m.StrikeCalls, StrikeCall{
		Symbol:         symbol,
		OptionType:     optionType,
		WeeksOut:       weeksOut,
		ProbabilityOTM: probabilityOTM,
	})
	if m.StrikeErr != nil {
		return 0, m.StrikeErr
	}
	strike, ok := m.Strikes[StrikeKey(symbol, optionType, weeksOut)]
	if !ok {
		return 0, ErrNoData
	}
	return strike, nil
}

// GetTechnicalIndicators returns the configured indicators for the symbol.
func (m *MockProvider) GetTechnicalIndicators(_ context.Context, symbol string) (*Indicators, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.IndicatorsErr != nil {
		return nil, m.IndicatorsErr
	}
	ind, ok := m.IndicatorsMap[symbol]
	if !ok {
		return nil, ErrNoData
	}
	return ind, nil
}

// GetNextEarningsDate returns the configured earnings date for the symbol.
func (m *MockProvider) GetNextEarningsDate(_ context.Context, symbol string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.EarningsDates[symbol]
	if !ok {
		return time.Time{}, ErrNoData
	}
	return d, nil
}

// GetNextExDividendDate returns the configured ex-dividend date for the symbol.
func (m *MockProvider) GetNextExDividendDate(_ context.Context, symbol string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.ExDivDates[symbol]
	if !ok {
		return time.Time{}, ErrNoData
	}
	return d, nil
}

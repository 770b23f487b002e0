package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamalneel/rollwatch/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{
		APIKey:            "test-key",
		Endpoint:          srv.URL,
		Timeout:           2 * time.Second,
		RequestsPerSecond: 100,
	}, testLogger())
}

func TestClientGetQuote(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/markets/quotes", r.URL.Path)
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbols"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"quotes":{"quote":{"symbol":"AAPL","last":218.5,"bid":218.4,"ask":218.6}}}`))
	})

	q, err := c.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", q.Symbol)
	assert.InDelta(t, 218.5, q.Last, 1e-9)
}

func TestClientGetQuoteNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	_, err := c.GetQuote(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestClientGetOptionChain(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/markets/options/chains", r.URL.Path)
		assert.Equal(t, "2025-03-21", r.URL.Query().Get("expiration"))
		assert.Equal(t, "true", r.URL.Query().Get("greeks"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"options":{"option":[
			{"strike":215,"option_type":"put","bid":0.48,"ask":0.52,"greeks":{"delta":-0.10}},
			{"strike":225,"option_type":"call","bid":0.30,"ask":0.34,"greeks":{"delta":0.12}}
		]}}`))
	})

	exp := time.Date(2025, 3, 21, 0, 0, 0, 0, time.UTC)
	chain, err := c.GetOptionChain(context.Background(), "AAPL", exp)
	require.NoError(t, err)

	require.Len(t, chain.Puts, 1)
	require.Len(t, chain.Calls, 1)
	assert.InDelta(t, -0.10, chain.Puts[0].Delta, 1e-9)
	assert.InDelta(t, 0.50, chain.Puts[0].Mid(), 1e-9)
}

func TestClientGetOptionChainEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"options":{"option":[]}}`))
	})

	exp := time.Date(2025, 3, 21, 0, 0, 0, 0, time.UTC)
	_, err := c.GetOptionChain(context.Background(), "AAPL", exp)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestClientRecommendStrike(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"options":{"option":[
			{"strike":210,"option_type":"put","bid":0.20,"ask":0.24,"greeks":{"delta":-0.05}},
			{"strike":215,"option_type":"put","bid":0.48,"ask":0.52,"greeks":{"delta":-0.10}},
			{"strike":220,"option_type":"put","bid":1.80,"ask":1.90,"greeks":{"delta":-0.30}}
		]}}`))
	})
	c.now = func() time.Time { return time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC) }

	strike, err := c.RecommendStrike(context.Background(), "AAPL", models.OptionTypePut, 1, 0.90)
	require.NoError(t, err)
	assert.InDelta(t, 215.0, strike, 1e-9)
}

func TestClientNextCalendarEvent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/markets/fundamentals/calendars", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"events":[
			{"type":"earnings","date":"2025-01-30"},
			{"type":"earnings","date":"2025-04-24"}
		]}`))
	})
	c.now = func() time.Time { return time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC) }

	d, err := c.GetNextEarningsDate(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 4, 24, 0, 0, 0, 0, time.UTC), d, "past events are skipped")
}

func TestClientGetTechnicalIndicators(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol":"AAPL","price":218.5,"rsi":55.2,
			"bollinger_upper":225,"bollinger_middle":218,"bollinger_lower":211,
			"weekly_volatility":0.021,"earnings_date":"2025-04-24"}`))
	})

	ind, err := c.GetTechnicalIndicators(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.InDelta(t, 218.5, ind.CurrentPrice, 1e-9)
	assert.InDelta(t, 55.2, ind.RSI, 1e-9)
	assert.InDelta(t, 0.021, ind.WeeklyVolatility, 1e-9)
	assert.Equal(t, time.Date(2025, 4, 24, 0, 0, 0, 0, time.UTC), ind.EarningsDate)
}

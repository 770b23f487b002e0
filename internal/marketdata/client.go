package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/kamalneel/rollwatch/internal/models"
)

// ClientConfig configures the HTTP market-data client.
type ClientConfig struct {
	APIKey            string
	Endpoint          string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// Client is the HTTP implementation of Provider, backed by a Tradier-style
// market-data API. Quote lookups and chain fetches run under separate rate
// limiters since chains are an order of magnitude heavier.
type Client struct {
	http         *resty.Client
	quoteLimiter *rate.Limiter
	chainLimiter *rate.Limiter
	logger       *logrus.Logger
	now          func() time.Time
}

// Ensure Client implements Provider at compile time.
var _ Provider = (*Client)(nil)

// NewClient creates an HTTP market-data client.
func NewClient(cfg ClientConfig, logger *logrus.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}

	httpClient := resty.New().
		SetBaseURL(cfg.Endpoint).
		SetTimeout(timeout).
		SetAuthToken(cfg.APIKey).
		SetHeader("Accept", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second)

	return &Client{
		http:         httpClient,
		quoteLimiter: rate.NewLimiter(rate.Limit(rps), 5),
		chainLimiter: rate.NewLimiter(rate.Limit(rps/2), 2),
		logger:       logger,
		now:          time.Now,
	}
}

type quoteResponse struct {
	Quotes struct {
		Quote struct {
			Symbol string  `json:"symbol"`
			Last   float64 `json:"last"`
			Bid    float64 `json:"bid"`
			Ask    float64 `json:"ask"`
		} `json:"quote"`
	} `json:"quotes"`
}

type chainResponse struct {
	Options struct {
		Option []struct {
			Strike     float64 `json:"strike"`
			OptionType string  `json:"option_type"`
			Bid        float64 `json:"bid"`
			Ask        float64 `json:"ask"`
			Last       float64 `json:"last"`
			Greeks     struct {
				Delta float64 `json:"delta"`
			} `json:"greeks"`
		} `json:"option"`
	} `json:"options"`
}

type calendarResponse struct {
	Events []struct {
		Type string `json:"type"` // earnings | ex_dividend
		Date string `json:"date"`
	} `json:"events"`
}

type indicatorsResponse struct {
	Symbol           string  `json:"symbol"`
	Price            float64 `json:"price"`
	RSI              float64 `json:"rsi"`
	BollingerUpper   float64 `json:"bollinger_upper"`
	BollingerMiddle  float64 `json:"bollinger_middle"`
	BollingerLower   float64 `json:"bollinger_lower"`
	WeeklyVolatility float64 `json:"weekly_volatility"`
	Support          float64 `json:"support"`
	Resistance       float64 `json:"resistance"`
	EarningsDate     string  `json:"earnings_date"`
}

func (c *Client) get(ctx context.Context, limiter *rate.Limiter, path string, params map[string]string, out any) error {
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(out).
		Get(path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	if resp.StatusCode() == 404 {
		return ErrNoData
	}
	if resp.IsError() {
		return fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode(), resp.String())
	}
	return nil
}

// GetQuote fetches the current stock quote.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	var out quoteResponse
	err := c.get(ctx, c.quoteLimiter, "/v1/markets/quotes", map[string]string{
		"symbols": symbol,
	}, &out)
	if err != nil {
		return nil, err
	}
	q := out.Quotes.Quote
	if q.Symbol == "" {
		return nil, ErrNoData
	}
	return &Quote{Symbol: q.Symbol, Last: q.Last, Bid: q.Bid, Ask: q.Ask}, nil
}

// GetOptionChain fetches one expiration's chain with greeks.
func (c *Client) GetOptionChain(ctx context.Context, symbol string, expiration time.Time) (*Chain, error) {
	var out chainResponse
	err := c.get(ctx, c.chainLimiter, "/v1/markets/options/chains", map[string]string{
		"symbol":     symbol,
		"expiration": expiration.Format("2006-01-02"),
		"greeks":     "true",
	}, &out)
	if err != nil {
		return nil, err
	}
	if len(out.Options.Option) == 0 {
		return nil, ErrNoData
	}

	chain := &Chain{Symbol: symbol, Expiration: expiration}
	for _, o := range out.Options.Option {
		q := OptionQuote{
			Strike: o.Strike,
			Bid:    o.Bid,
			Ask:    o.Ask,
			Last:   o.Last,
			Delta:  o.Greeks.Delta,
		}
		switch o.OptionType {
		case string(models.OptionTypePut):
			chain.Puts = append(chain.Puts, q)
		case string(models.OptionTypeCall):
			chain.Calls = append(chain.Calls, q)
		}
	}
	return chain, nil
}

// RecommendStrike picks the strike closest to the probability-OTM target at
// the expiration weeksOut from now.
func (c *Client) RecommendStrike(ctx context.Context, symbol string, optionType models.OptionType,
	weeksOut int, probabilityOTM float64) (float64, error) {
	expiration := ExpirationForWeeksOut(c.now(), weeksOut)
	chain, err := c.GetOptionChain(ctx, symbol, expiration)
	if err != nil {
		return 0, err
	}
	strike, err := PickStrike(chain.Side(optionType), probabilityOTM)
	if err != nil {
		return 0, err
	}
	c.logger.Debugf("recommended strike %.2f for %s %s %dw at prob-OTM %.2f",
		strike, symbol, optionType, weeksOut, probabilityOTM)
	return strike, nil
}

// GetTechnicalIndicators fetches the technical-signal bundle for a symbol.
func (c *Client) GetTechnicalIndicators(ctx context.Context, symbol string) (*Indicators, error) {
	var out indicatorsResponse
	err := c.get(ctx, c.quoteLimiter, "/v1/markets/indicators", map[string]string{
		"symbol": symbol,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Price <= 0 {
		return nil, ErrNoData
	}
	ind := &Indicators{
		CurrentPrice:     out.Price,
		RSI:              out.RSI,
		BollingerUpper:   out.BollingerUpper,
		BollingerMiddle:  out.BollingerMiddle,
		BollingerLower:   out.BollingerLower,
		WeeklyVolatility: out.WeeklyVolatility,
		Support:          out.Support,
		Resistance:       out.Resistance,
	}
	if out.EarningsDate != "" {
		if d, err := time.Parse("2006-01-02", out.EarningsDate); err == nil {
			ind.EarningsDate = d
		}
	}
	return ind, nil
}

func (c *Client) nextCalendarEvent(ctx context.Context, symbol, eventType string) (time.Time, error) {
	var out calendarResponse
	err := c.get(ctx, c.quoteLimiter, "/v1/markets/fundamentals/calendars", map[string]string{
		"symbol": symbol,
		"type":   eventType,
	}, &out)
	if err != nil {
		return time.Time{}, err
	}
	today := c.now().UTC().Truncate(24 * time.Hour)
	for _, ev := range out.Events {
		if ev.Type != eventType {
			continue
		}
		d, err := time.Parse("2006-01-02", ev.Date)
		if err != nil {
			continue
		}
		if !d.Before(today) {
			return d, nil
		}
	}
	return time.Time{}, ErrNoData
}

// GetNextEarningsDate returns the next scheduled earnings date.
func (c *Client) GetNextEarningsDate(ctx context.Context, symbol string) (time.Time, error) {
	return c.nextCalendarEvent(ctx, symbol, "earnings")
}

// GetNextExDividendDate returns the next ex-dividend date.
func (c *Client) GetNextExDividendDate(ctx context.Context, symbol string) (time.Time, error) {
	return c.nextCalendarEvent(ctx, symbol, "ex_dividend")
}

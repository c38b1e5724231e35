// Package alphavantage adapts the AlphaVantage API: a tertiary daily-bar
// source for equity tickers and the supplementary previous-close field
// the outlier guard consults.
package alphavantage

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"resty.dev/v3"

	"github.com/falcoza/marketreporternew/internal/market"
	"github.com/falcoza/marketreporternew/internal/ratelimit"
	"github.com/falcoza/marketreporternew/internal/retry"
)

// DefaultBaseURL is the production query endpoint.
const DefaultBaseURL = "https://www.alphavantage.co/query"

// GlobalQuoteResponse represents the AlphaVantage API response for stock quotes
type GlobalQuoteResponse struct {
	GlobalQuote struct {
		Symbol           string `json:"01. symbol"`
		Open             string `json:"02. open"`
		High             string `json:"03. high"`
		Low              string `json:"04. low"`
		Price            string `json:"05. price"`
		Volume           string `json:"06. volume"`
		LatestTradingDay string `json:"07. latest trading day"`
		PreviousClose    string `json:"08. previous close"`
		Change           string `json:"09. change"`
		ChangePercent    string `json:"10. change percent"`
	} `json:"Global Quote"`
}

// DailySeriesResponse represents the TIME_SERIES_DAILY response. Bars
// arrive as a date-keyed map of stringly-typed OHLC fields.
type DailySeriesResponse struct {
	Series map[string]struct {
		Open   string `json:"1. open"`
		High   string `json:"2. high"`
		Low    string `json:"3. low"`
		Close  string `json:"4. close"`
		Volume string `json:"5. volume"`
	} `json:"Time Series (Daily)"`
	Note string `json:"Note"`
}

// Client fetches quotes and daily bars from AlphaVantage
type Client struct {
	apiKey string
	client *resty.Client
	loc    *time.Location
	policy retry.Policy
	limits *ratelimit.Limiter
}

// NewClient creates an AlphaVantage client
func NewClient(apiKey, baseURL string, loc *time.Location, policy retry.Policy) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json")

	return &Client{
		apiKey: apiKey,
		client: client,
		loc:    loc,
		policy: policy,
		limits: ratelimit.GetLimiter(),
	}
}

// Name identifies this provider in candidate lists and source labels.
func (c *Client) Name() string { return "alphavantage" }

func (c *Client) globalQuote(ctx context.Context, symbol string) (*GlobalQuoteResponse, error) {
	if err := c.limits.Wait(ctx, ratelimit.APIAlphaVantage); err != nil {
		return nil, err
	}

	return retry.Do(ctx, c.policy, func(ctx context.Context) (*GlobalQuoteResponse, error) {
		var result GlobalQuoteResponse

		resp, err := c.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"apikey":   c.apiKey,
				"function": "GLOBAL_QUOTE",
				"symbol":   symbol,
			}).
			SetResult(&result).
			Get("")

		if err != nil {
			return nil, market.NewNetworkError(err)
		}
		if !resp.IsSuccess() {
			return nil, market.ClassifyHTTPStatus(resp.StatusCode())
		}
		return &result, nil
	})
}

// Latest retrieves the current price for symbol from GLOBAL_QUOTE.
// An empty quote block (unknown symbol, exhausted API credits) reports
// ok=false rather than an error.
func (c *Client) Latest(ctx context.Context, symbol string) (market.Quote, bool, error) {
	result, err := c.globalQuote(ctx, symbol)
	if err != nil {
		return market.Quote{}, false, err
	}

	if result.GlobalQuote.Price == "" {
		return market.Quote{}, false, nil
	}

	price, err := decimal.NewFromString(result.GlobalQuote.Price)
	if err != nil {
		return market.Quote{}, false, market.NewValidationError(fmt.Sprintf("unparseable price %q for %s", result.GlobalQuote.Price, symbol))
	}

	day := market.DayOf(time.Now(), c.loc)
	if d, err := market.ParseDay(result.GlobalQuote.LatestTradingDay); err == nil {
		day = d
	}

	return market.Quote{
		Symbol: symbol,
		Price:  price,
		Day:    day,
		Source: fmt.Sprintf("%s:%s", c.Name(), symbol),
	}, true, nil
}

// PreviousClose returns the single previous-close field from
// GLOBAL_QUOTE. The outlier guard uses it as an independent sanity
// reference; it is not a series.
func (c *Client) PreviousClose(ctx context.Context, symbol string) (decimal.NullDecimal, error) {
	result, err := c.globalQuote(ctx, symbol)
	if err != nil {
		return decimal.NullDecimal{}, err
	}

	if result.GlobalQuote.PreviousClose == "" {
		return decimal.NullDecimal{}, nil
	}

	prev, err := decimal.NewFromString(result.GlobalQuote.PreviousClose)
	if err != nil {
		return decimal.NullDecimal{}, market.NewValidationError(fmt.Sprintf("unparseable previous close %q for %s", result.GlobalQuote.PreviousClose, symbol))
	}
	return decimal.NullDecimal{Decimal: prev, Valid: true}, nil
}

// History returns the daily close series for symbol between from and to
// inclusive. The endpoint takes no range parameters, so the full series
// is fetched and filtered locally.
func (c *Client) History(ctx context.Context, symbol string, from, to market.Day) (market.Series, error) {
	if err := c.limits.Wait(ctx, ratelimit.APIAlphaVantage); err != nil {
		return market.Series{}, err
	}

	result, err := retry.Do(ctx, c.policy, func(ctx context.Context) (*DailySeriesResponse, error) {
		var result DailySeriesResponse

		resp, err := c.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"apikey":     c.apiKey,
				"function":   "TIME_SERIES_DAILY",
				"symbol":     symbol,
				"outputsize": "full",
			}).
			SetResult(&result).
			Get("")

		if err != nil {
			return nil, market.NewNetworkError(err)
		}
		if !resp.IsSuccess() {
			return nil, market.ClassifyHTTPStatus(resp.StatusCode())
		}
		return &result, nil
	})
	if err != nil {
		return market.Series{}, err
	}

	bars := make([]market.Bar, 0, len(result.Series))
	for date, bar := range result.Series {
		day, err := market.ParseDay(date)
		if err != nil || day.Before(from) || day.After(to) {
			continue
		}
		close, err := decimal.NewFromString(bar.Close)
		if err != nil {
			continue
		}
		bars = append(bars, market.Bar{Day: day, Close: close})
	}
	return market.NewSeries(bars), nil
}

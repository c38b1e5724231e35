// Package yahoo adapts the Yahoo Finance v8 chart endpoint. It is the
// primary source for index, FX and commodity tickers: daily OHLC bars
// plus the regular-market price fields carried in the chart metadata.
package yahoo

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"resty.dev/v3"

	"github.com/falcoza/marketreporternew/internal/market"
	"github.com/falcoza/marketreporternew/internal/ratelimit"
	"github.com/falcoza/marketreporternew/internal/retry"
)

// DefaultBaseURL is the production chart API host.
const DefaultBaseURL = "https://query1.finance.yahoo.com"

// ChartResponse represents the Yahoo chart API response envelope
type ChartResponse struct {
	Chart struct {
		Result []ChartResult `json:"result"`
		Error  any           `json:"error"`
	} `json:"chart"`
}

// ChartResult is one chart series with its metadata
type ChartResult struct {
	Meta struct {
		Currency             string  `json:"currency"`
		Symbol               string  `json:"symbol"`
		ExchangeTimezoneName string  `json:"exchangeTimezoneName"`
		RegularMarketPrice   float64 `json:"regularMarketPrice"`
		RegularMarketTime    int64   `json:"regularMarketTime"`
		ChartPreviousClose   float64 `json:"chartPreviousClose"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			// Close uses pointers because Yahoo emits JSON null for
			// sessions with no trade (halts, partial holidays).
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}

// Client fetches quotes and daily bar history from Yahoo Finance
type Client struct {
	client *resty.Client
	loc    *time.Location
	policy retry.Policy
	limits *ratelimit.Limiter
}

// NewClient creates a Yahoo chart client. Bars are re-indexed onto
// calendar days in loc so anchors line up with the report timezone.
func NewClient(baseURL string, loc *time.Location, policy retry.Policy) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		// The chart endpoint rejects requests without a browser-looking agent.
		SetHeader("User-Agent", "Mozilla/5.0 (X11; Linux x86_64)")

	return &Client{
		client: client,
		loc:    loc,
		policy: policy,
		limits: ratelimit.GetLimiter(),
	}
}

// Name identifies this provider in candidate lists and source labels.
func (c *Client) Name() string { return "yahoo" }

func (c *Client) chart(ctx context.Context, symbol string, params map[string]string) (*ChartResult, error) {
	if err := c.limits.Wait(ctx, ratelimit.APIYahoo); err != nil {
		return nil, err
	}

	return retry.Do(ctx, c.policy, func(ctx context.Context) (*ChartResult, error) {
		var result ChartResponse

		resp, err := c.client.R().
			SetContext(ctx).
			SetQueryParams(params).
			SetResult(&result).
			Get(fmt.Sprintf("/v8/finance/chart/%s", url.PathEscape(symbol)))

		if err != nil {
			return nil, market.NewNetworkError(err)
		}
		if !resp.IsSuccess() {
			return nil, market.ClassifyHTTPStatus(resp.StatusCode())
		}
		if result.Chart.Error != nil {
			return nil, market.NewValidationError(fmt.Sprintf("chart error for %s: %v", symbol, result.Chart.Error))
		}
		if len(result.Chart.Result) == 0 {
			return nil, market.NewValidationError(fmt.Sprintf("empty chart result for %s", symbol))
		}
		return &result.Chart.Result[0], nil
	})
}

// Latest returns the most recent price for symbol. It tries, in order,
// the regular-market price from the chart metadata, then the last
// non-null close of a short trailing window. ok=false means the source
// answered but had nothing usable.
func (c *Client) Latest(ctx context.Context, symbol string) (market.Quote, bool, error) {
	res, err := c.chart(ctx, symbol, map[string]string{
		"range":    "5d",
		"interval": "1d",
	})
	if err != nil {
		return market.Quote{}, false, err
	}

	source := fmt.Sprintf("%s:%s", c.Name(), symbol)

	if res.Meta.RegularMarketPrice != 0 {
		day := market.DayOf(time.Now(), c.loc)
		if res.Meta.RegularMarketTime > 0 {
			day = market.DayOf(time.Unix(res.Meta.RegularMarketTime, 0), c.loc)
		}
		return market.Quote{
			Symbol: symbol,
			Price:  decimal.NewFromFloat(res.Meta.RegularMarketPrice),
			Day:    day,
			Source: source,
		}, true, nil
	}

	if bar, ok := c.toSeries(res).Latest(); ok {
		return market.Quote{Symbol: symbol, Price: bar.Close, Day: bar.Day, Source: source}, true, nil
	}

	return market.Quote{}, false, nil
}

// History returns the daily close series for symbol between from and to
// inclusive, indexed by calendar day in the client's timezone.
func (c *Client) History(ctx context.Context, symbol string, from, to market.Day) (market.Series, error) {
	res, err := c.chart(ctx, symbol, map[string]string{
		"period1":  fmt.Sprintf("%d", from.Unix(c.loc)),
		"period2":  fmt.Sprintf("%d", to.AddDays(1).Unix(c.loc)),
		"interval": "1d",
	})
	if err != nil {
		return market.Series{}, err
	}
	return c.toSeries(res), nil
}

func (c *Client) toSeries(res *ChartResult) market.Series {
	if len(res.Indicators.Quote) == 0 {
		return market.Series{}
	}
	closes := res.Indicators.Quote[0].Close

	bars := make([]market.Bar, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		bars = append(bars, market.Bar{
			Day:   market.DayOf(time.Unix(ts, 0), c.loc),
			Close: decimal.NewFromFloat(*closes[i]),
		})
	}
	return market.NewSeries(bars)
}

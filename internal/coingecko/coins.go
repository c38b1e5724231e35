// Package coingecko adapts the CoinGecko API for cryptocurrency prices:
// a spot price plus a continuous (24/7) price history. There are no
// trading sessions to skip; anchor selection still works by calendar
// day because the history is bucketed onto days in the report timezone,
// keeping the last observation of each day as its "close".
package coingecko

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"resty.dev/v3"

	"github.com/falcoza/marketreporternew/internal/market"
	"github.com/falcoza/marketreporternew/internal/ratelimit"
	"github.com/falcoza/marketreporternew/internal/retry"
)

// DefaultBaseURL is the production API host.
const DefaultBaseURL = "https://api.coingecko.com"

// RangeResponse represents a market_chart/range response. Prices are
// [unix milliseconds, price] pairs.
type RangeResponse struct {
	Prices [][2]float64 `json:"prices"`
}

// Client fetches cryptocurrency prices from CoinGecko. Symbols are coin
// ids ("bitcoin"); the versus currency is fixed at construction.
type Client struct {
	client *resty.Client
	vs     string
	loc    *time.Location
	policy retry.Policy
	limits *ratelimit.Limiter
}

// NewClient creates a CoinGecko client quoting in the vs currency
// (e.g. "zar").
func NewClient(baseURL, vs string, loc *time.Location, policy retry.Policy) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json")

	return &Client{
		client: client,
		vs:     strings.ToLower(vs),
		loc:    loc,
		policy: policy,
		limits: ratelimit.GetLimiter(),
	}
}

// Name identifies this provider in candidate lists and source labels.
func (c *Client) Name() string { return "coingecko" }

// Latest returns the spot price for the given coin id.
func (c *Client) Latest(ctx context.Context, symbol string) (market.Quote, bool, error) {
	if err := c.limits.Wait(ctx, ratelimit.APICoinGecko); err != nil {
		return market.Quote{}, false, err
	}

	prices, err := retry.Do(ctx, c.policy, func(ctx context.Context) (map[string]map[string]float64, error) {
		result := make(map[string]map[string]float64)

		resp, err := c.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"ids":           symbol,
				"vs_currencies": c.vs,
			}).
			SetResult(&result).
			Get("/api/v3/simple/price")

		if err != nil {
			return nil, market.NewNetworkError(err)
		}
		if !resp.IsSuccess() {
			return nil, market.ClassifyHTTPStatus(resp.StatusCode())
		}
		return result, nil
	})
	if err != nil {
		return market.Quote{}, false, err
	}

	price, ok := prices[symbol][c.vs]
	if !ok || price == 0 {
		return market.Quote{}, false, nil
	}

	return market.Quote{
		Symbol: symbol,
		Price:  decimal.NewFromFloat(price),
		Day:    market.DayOf(time.Now(), c.loc),
		Source: fmt.Sprintf("%s:%s", c.Name(), symbol),
	}, true, nil
}

// History returns the coin's daily price series between from and to
// inclusive, keeping the last observation per calendar day.
func (c *Client) History(ctx context.Context, symbol string, from, to market.Day) (market.Series, error) {
	if err := c.limits.Wait(ctx, ratelimit.APICoinGecko); err != nil {
		return market.Series{}, err
	}

	result, err := retry.Do(ctx, c.policy, func(ctx context.Context) (*RangeResponse, error) {
		var result RangeResponse

		resp, err := c.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"vs_currency": c.vs,
				"from":        fmt.Sprintf("%d", from.Unix(c.loc)),
				"to":          fmt.Sprintf("%d", to.AddDays(1).Unix(c.loc)),
			}).
			SetResult(&result).
			Get(fmt.Sprintf("/api/v3/coins/%s/market_chart/range", url.PathEscape(symbol)))

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

	// Points arrive in ascending time order; NewSeries keeps the last
	// price of each day as that day's close.
	bars := make([]market.Bar, 0, len(result.Prices))
	for _, p := range result.Prices {
		ts, price := int64(p[0]), p[1]
		if price == 0 {
			continue
		}
		bars = append(bars, market.Bar{
			Day:   market.DayOf(time.UnixMilli(ts), c.loc),
			Close: decimal.NewFromFloat(price),
		})
	}
	return market.NewSeries(bars), nil
}

// Package frankfurter adapts the Frankfurter exchange-rate API, the
// independent secondary source for currency pairs. Symbols are
// "BASE/QUOTE" pairs rather than tickers; the resolver only reaches for
// this provider after a pair's entire primary-provider chain failed.
package frankfurter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"resty.dev/v3"

	"github.com/falcoza/marketreporternew/internal/market"
	"github.com/falcoza/marketreporternew/internal/ratelimit"
	"github.com/falcoza/marketreporternew/internal/retry"
)

// DefaultBaseURL is the production API host.
const DefaultBaseURL = "https://api.frankfurter.dev"

// LatestResponse represents the /v1/latest response
type LatestResponse struct {
	Base  string             `json:"base"`
	Date  string             `json:"date"`
	Rates map[string]float64 `json:"rates"`
}

// RangeResponse represents a /v1/{from}..{to} response: a date-keyed
// map of currency rates.
type RangeResponse struct {
	Base  string                        `json:"base"`
	Rates map[string]map[string]float64 `json:"rates"`
}

// Client fetches reference exchange rates from Frankfurter
type Client struct {
	client *resty.Client
	policy retry.Policy
	limits *ratelimit.Limiter
}

// NewClient creates a Frankfurter client
func NewClient(baseURL string, policy retry.Policy) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json")

	return &Client{
		client: client,
		policy: policy,
		limits: ratelimit.GetLimiter(),
	}
}

// Name identifies this provider in candidate lists and source labels.
func (c *Client) Name() string { return "frankfurter" }

func splitPair(symbol string) (base, quote string, err error) {
	parts := strings.Split(symbol, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", market.NewValidationError(fmt.Sprintf("invalid currency pair %q, want BASE/QUOTE", symbol))
	}
	return strings.ToUpper(parts[0]), strings.ToUpper(parts[1]), nil
}

// Latest returns the most recent reference rate for a "BASE/QUOTE" pair.
func (c *Client) Latest(ctx context.Context, symbol string) (market.Quote, bool, error) {
	base, quote, err := splitPair(symbol)
	if err != nil {
		return market.Quote{}, false, err
	}
	if err := c.limits.Wait(ctx, ratelimit.APIFrankfurter); err != nil {
		return market.Quote{}, false, err
	}

	result, err := retry.Do(ctx, c.policy, func(ctx context.Context) (*LatestResponse, error) {
		var result LatestResponse

		resp, err := c.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"base":    base,
				"symbols": quote,
			}).
			SetResult(&result).
			Get("/v1/latest")

		if err != nil {
			return nil, market.NewNetworkError(err)
		}
		if !resp.IsSuccess() {
			return nil, market.ClassifyHTTPStatus(resp.StatusCode())
		}
		return &result, nil
	})
	if err != nil {
		return market.Quote{}, false, err
	}

	rate, ok := result.Rates[quote]
	if !ok || rate == 0 {
		return market.Quote{}, false, nil
	}

	day := market.DayOf(time.Now(), time.UTC)
	if d, err := market.ParseDay(result.Date); err == nil {
		day = d
	}

	return market.Quote{
		Symbol: symbol,
		Price:  decimal.NewFromFloat(rate),
		Day:    day,
		Source: fmt.Sprintf("%s:%s", c.Name(), symbol),
	}, true, nil
}

// History returns the daily reference-rate series for a "BASE/QUOTE"
// pair between from and to inclusive. Frankfurter publishes one rate
// per weekday; weekends and ECB holidays are simply absent, which the
// series anchor selection already tolerates.
func (c *Client) History(ctx context.Context, symbol string, from, to market.Day) (market.Series, error) {
	base, quote, err := splitPair(symbol)
	if err != nil {
		return market.Series{}, err
	}
	if err := c.limits.Wait(ctx, ratelimit.APIFrankfurter); err != nil {
		return market.Series{}, err
	}

	result, err := retry.Do(ctx, c.policy, func(ctx context.Context) (*RangeResponse, error) {
		var result RangeResponse

		resp, err := c.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"base":    base,
				"symbols": quote,
			}).
			SetResult(&result).
			Get(fmt.Sprintf("/v1/%s..%s", from, to))

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

	bars := make([]market.Bar, 0, len(result.Rates))
	for date, rates := range result.Rates {
		day, err := market.ParseDay(date)
		if err != nil {
			continue
		}
		rate, ok := rates[quote]
		if !ok || rate == 0 {
			continue
		}
		bars = append(bars, market.Bar{Day: day, Close: decimal.NewFromFloat(rate)})
	}
	return market.NewSeries(bars), nil
}

package testutil

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/falcoza/marketreporternew/internal/market"
)

// StubProvider is a scriptable market.HistoryProvider for tests.
type StubProvider struct {
	ProviderName string
	LatestFunc   func(ctx context.Context, symbol string) (market.Quote, bool, error)
	HistoryFunc  func(ctx context.Context, symbol string, from, to market.Day) (market.Series, error)
}

// Name implements market.HistoryProvider
func (s *StubProvider) Name() string { return s.ProviderName }

// Latest implements market.HistoryProvider
func (s *StubProvider) Latest(ctx context.Context, symbol string) (market.Quote, bool, error) {
	if s.LatestFunc != nil {
		return s.LatestFunc(ctx, symbol)
	}
	return market.Quote{}, false, nil
}

// History implements market.HistoryProvider
func (s *StubProvider) History(ctx context.Context, symbol string, from, to market.Day) (market.Series, error) {
	if s.HistoryFunc != nil {
		return s.HistoryFunc(ctx, symbol, from, to)
	}
	return market.Series{}, nil
}

// StubPreviousCloser is a scriptable supplementary previous-close
// source for outlier guard tests.
type StubPreviousCloser struct {
	Value decimal.NullDecimal
	Err   error
	Calls int
}

// PreviousClose implements resolve.PreviousCloser
func (s *StubPreviousCloser) PreviousClose(ctx context.Context, symbol string) (decimal.NullDecimal, error) {
	s.Calls++
	return s.Value, s.Err
}

// MustDay parses an ISO date or panics. Test helper.
func MustDay(s string) market.Day {
	d, err := market.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

// SeriesFrom builds a Series from date -> close pairs.
func SeriesFrom(closes map[string]float64) market.Series {
	bars := make([]market.Bar, 0, len(closes))
	for date, close := range closes {
		bars = append(bars, market.Bar{
			Day:   MustDay(date),
			Close: decimal.NewFromFloat(close),
		})
	}
	return market.NewSeries(bars)
}

// Price wraps a float into a valid NullDecimal.
func Price(v float64) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.NewFromFloat(v), Valid: true}
}

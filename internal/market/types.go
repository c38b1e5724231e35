package market

import (
	"context"

	"github.com/shopspring/decimal"
)

// Category classifies an instrument and determines which provider chain
// applies to it.
type Category string

const (
	CategoryIndex     Category = "index"
	CategoryFX        Category = "fx"
	CategoryCommodity Category = "commodity"
	CategoryCrypto    Category = "crypto"
)

// Candidate is one (provider, symbol) pair to try for an instrument.
// Symbol is provider-specific: a ticker for chart/bar providers, a
// "BASE/QUOTE" pair for the FX rate provider, a coin id for the crypto
// provider.
type Candidate struct {
	Provider string `mapstructure:"provider" json:"provider"`
	Symbol   string `mapstructure:"symbol" json:"symbol"`
}

// Instrument is one logical entry in the report basket. Immutable,
// defined at configuration time.
type Instrument struct {
	ID         string      `mapstructure:"id" json:"id"`
	Name       string      `mapstructure:"name" json:"name"`
	Category   Category    `mapstructure:"category" json:"category"`
	Candidates []Candidate `mapstructure:"candidates" json:"candidates"`

	// Core instruments gate cache persistence: the last-known-good
	// snapshot is only overwritten when every core instrument resolved
	// a price.
	Core bool `mapstructure:"core" json:"core"`

	// Guarded instruments have their 1-day change vetted by the outlier
	// guard. GuardSymbol names the supplementary previous-close ticker.
	Guarded     bool   `mapstructure:"guarded" json:"guarded"`
	GuardSymbol string `mapstructure:"guard_symbol" json:"guard_symbol,omitempty"`
}

// Quote is a single observed price from one source.
type Quote struct {
	Symbol string
	Price  decimal.Decimal
	Day    Day
	Source string
}

// AnchorSet holds the historical prices one report row is computed
// against. Absence is a first-class, expected state, not an error.
type AnchorSet struct {
	PrevSession decimal.NullDecimal
	Month       decimal.NullDecimal
	YTD         decimal.NullDecimal
}

// HistoryProvider is the normalized surface every upstream price source
// is adapted to. Latest reports ok=false (not an error) when the source
// answered but had no usable price; errors are reserved for failed
// fetches.
type HistoryProvider interface {
	Name() string
	Latest(ctx context.Context, symbol string) (Quote, bool, error)
	History(ctx context.Context, symbol string, from, to Day) (Series, error)
}

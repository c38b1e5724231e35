// Package resolve turns a logical instrument into prices: the fallback
// resolver picks the first candidate (provider, symbol) pair that can
// produce a current price, and the anchor resolver computes the three
// historical anchors against that same pair. Mixing providers between
// "today" and an anchor would introduce spurious percentage jumps from
// cross-source quoting differences, so the binding is deliberate and
// sticky.
package resolve

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/falcoza/marketreporternew/internal/market"
)

// Binding is a resolved (provider, symbol) pair plus the current quote
// that won the fallback race. All anchor lookups go through the same
// binding. The daily window is fetched once and memoized; the run is
// single-threaded so no locking is needed.
type Binding struct {
	Provider market.HistoryProvider
	Symbol   string
	Today    market.Quote

	series    market.Series
	seriesErr error
	fetched   bool
}

// Label names the bound source, e.g. "yahoo:^JN0U.JO".
func (b *Binding) Label() string {
	if b.Today.Source != "" {
		return b.Today.Source
	}
	return fmt.Sprintf("%s:%s", b.Provider.Name(), b.Symbol)
}

// Series returns the bound source's daily close series for the window,
// fetching it at most once. A failed fetch is memoized too: anchors
// degrade to absent rather than hammering a broken upstream.
func (b *Binding) Series(ctx context.Context, from, to market.Day) (market.Series, error) {
	if !b.fetched {
		b.series, b.seriesErr = b.Provider.History(ctx, b.Symbol, from, to)
		b.fetched = true
	}
	return b.series, b.seriesErr
}

// Resolver tries an instrument's candidates in priority order against a
// registry of named providers.
type Resolver struct {
	providers map[string]market.HistoryProvider
	log       *slog.Logger
}

// NewResolver builds a Resolver over the given providers, keyed by
// their Name().
func NewResolver(log *slog.Logger, providers ...market.HistoryProvider) *Resolver {
	byName := make(map[string]market.HistoryProvider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &Resolver{providers: byName, log: log}
}

// Resolve iterates the instrument's candidate list in priority order,
// asking each for a current price, and returns a Binding for the first
// success. Fetch failures and empty responses are absorbed (logged,
// next candidate tried); nil means every candidate failed and the
// instrument's row goes out null with source "unavailable".
func (r *Resolver) Resolve(ctx context.Context, inst market.Instrument) *Binding {
	for _, cand := range inst.Candidates {
		p, ok := r.providers[cand.Provider]
		if !ok {
			r.log.Warn("unknown provider in candidate list",
				"instrument", inst.ID, "provider", cand.Provider)
			continue
		}

		quote, ok, err := p.Latest(ctx, cand.Symbol)
		if err != nil {
			r.log.Info("candidate failed, falling back",
				"instrument", inst.ID, "provider", cand.Provider,
				"symbol", cand.Symbol, "error", err)
			continue
		}
		if !ok {
			r.log.Info("candidate returned no data, falling back",
				"instrument", inst.ID, "provider", cand.Provider, "symbol", cand.Symbol)
			continue
		}

		r.log.Debug("instrument resolved",
			"instrument", inst.ID, "source", quote.Source)
		return &Binding{Provider: p, Symbol: cand.Symbol, Today: quote}
	}
	return nil
}

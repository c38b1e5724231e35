package resolve

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/falcoza/marketreporternew/internal/market"
)

// AnchorResolver computes the three historical anchor prices for a
// bound source:
//
//   - previous session: the close one completed session back, with a
//     same-day provisional bar dropped so a live price is never
//     compared against itself;
//   - month: the last close on or before today minus 30 calendar days.
//     A fixed count of 22 trading sessions would drift across holiday
//     calendars; a calendar-day target with on-or-before selection is
//     more robust;
//   - year-to-date: the last close on or before December 31 of the
//     prior year, walking back into December if the 31st was a
//     non-trading day. This matches externally published YTD figures,
//     which include the year's opening gap; the alternative (first
//     close on/after January 1) does not.
//
// Every lookup degrades to an absent value on missing data — never to
// zero, never to an error.
type AnchorResolver struct {
	loc *time.Location
	now func() time.Time
	log *slog.Logger
}

// NewAnchorResolver builds an AnchorResolver computing "today" in loc.
// now is injectable for tests; pass nil for time.Now.
func NewAnchorResolver(loc *time.Location, now func() time.Time, log *slog.Logger) *AnchorResolver {
	if now == nil {
		now = time.Now
	}
	return &AnchorResolver{loc: loc, now: now, log: log}
}

// Today returns the current calendar day in the report timezone.
func (a *AnchorResolver) Today() market.Day {
	return market.DayOf(a.now(), a.loc)
}

// window returns the fetch range: from December 10 of the prior year,
// wide enough for the YTD walk-back (~10 December sessions) and
// trivially covering the month and previous-session anchors.
func (a *AnchorResolver) window() (from, to market.Day) {
	to = a.Today()
	return market.NewDay(to.Year()-1, time.December, 10), to
}

// Resolve computes the anchor set for a binding. A failed or empty
// history leaves every anchor absent.
func (a *AnchorResolver) Resolve(ctx context.Context, b *Binding) market.AnchorSet {
	from, today := a.window()
	series, err := b.Series(ctx, from, today)
	if err != nil {
		a.log.Info("history unavailable, anchors absent",
			"source", b.Label(), "error", err)
		return market.AnchorSet{}
	}

	return market.AnchorSet{
		PrevSession: series.SessionsBack(1, today),
		Month:       series.CloseOnOrBefore(today.AddDays(-30)),
		YTD:         series.CloseOnOrBefore(market.NewDay(today.Year()-1, time.December, 31)),
	}
}

// SessionsBack returns the close n completed sessions back for the
// binding, used by the outlier guard's second-anchor strategy.
func (a *AnchorResolver) SessionsBack(ctx context.Context, b *Binding, n int) decimal.NullDecimal {
	from, today := a.window()
	series, err := b.Series(ctx, from, today)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return series.SessionsBack(n, today)
}

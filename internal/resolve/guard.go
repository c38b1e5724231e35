package resolve

import (
	"context"
	"log/slog"
	"math"

	"github.com/shopspring/decimal"

	"github.com/falcoza/marketreporternew/internal/market"
)

// PreviousCloser is the supplementary provider surface the guard
// consults as a last resort: a single previous-close value, not a
// series.
type PreviousCloser interface {
	PreviousClose(ctx context.Context, symbol string) (decimal.NullDecimal, error)
}

// Guard rejects implausible 1-day anchors. Stale bars, bar misalignment
// and corporate-action jumps all show up as outsized day changes on the
// most-watched rows of the report; the guard retries with an older
// anchor, then an independent previous close, and finally nulls the
// figure rather than report it.
type Guard struct {
	// Threshold is the absolute 1-day percentage change above which an
	// anchor is rejected.
	Threshold  float64
	Supplement PreviousCloser
	log        *slog.Logger
}

// NewGuard builds a Guard with the given threshold and supplementary
// previous-close source (which may be nil).
func NewGuard(threshold float64, supplement PreviousCloser, log *slog.Logger) *Guard {
	return &Guard{Threshold: threshold, Supplement: supplement, log: log}
}

func (g *Guard) plausible(today decimal.Decimal, anchor decimal.NullDecimal) bool {
	if !anchor.Valid {
		return false
	}
	pct := market.Percent(anchor, decimal.NullDecimal{Decimal: today, Valid: true})
	return math.Abs(pct) <= g.Threshold
}

// Vet returns the 1-day anchor to use for a guarded instrument, or an
// absent value when no plausible anchor could be found. prev is the
// normal 1-session-back anchor; secondPrev is the 2-sessions-back
// fallback from the same bound source.
func (g *Guard) Vet(ctx context.Context, inst market.Instrument, today decimal.Decimal, prev, secondPrev decimal.NullDecimal) decimal.NullDecimal {
	if !prev.Valid || g.plausible(today, prev) {
		return prev
	}

	g.log.Warn("implausible 1-day change, retrying with older anchor",
		"instrument", inst.ID,
		"today", today.String(),
		"anchor", prev.Decimal.String(),
		"threshold", g.Threshold)

	if g.plausible(today, secondPrev) {
		return secondPrev
	}

	if g.Supplement != nil && inst.GuardSymbol != "" {
		supp, err := g.Supplement.PreviousClose(ctx, inst.GuardSymbol)
		if err != nil {
			g.log.Info("supplementary previous close unavailable",
				"instrument", inst.ID, "error", err)
		} else if g.plausible(today, supp) {
			return supp
		}
	}

	g.log.Warn("no plausible 1-day anchor, nulling the figure", "instrument", inst.ID)
	return decimal.NullDecimal{}
}

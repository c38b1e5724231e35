// Package report assembles the market snapshot: it walks the
// instrument basket in its fixed order, resolves each instrument
// through the fallback and anchor resolvers, converts anchors into
// percentages, and consults/updates the last-known-good cache. Nothing
// in the loop is fatal: every failure mode degrades to a null field or
// a cached field, preserving partial output over no output.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/falcoza/marketreporternew/internal/market"
	"github.com/falcoza/marketreporternew/internal/resolve"
	"github.com/falcoza/marketreporternew/internal/store"
)

// TimestampFormat is the snapshot's human-readable timestamp label.
const TimestampFormat = "2006-01-02 15:04"

// Aggregator runs one snapshot. The basket is processed sequentially in
// configuration order; instruments share no state, and the cache is
// read once at the start and written at most once at the end.
type Aggregator struct {
	Basket   []market.Instrument
	Resolver *resolve.Resolver
	Anchors  *resolve.AnchorResolver
	Guard    *resolve.Guard
	Store    store.SnapshotStore
	Location *time.Location
	Now      func() time.Time
	Log      *slog.Logger
}

// Run produces the snapshot for the current instant. An unexpected
// panic anywhere in the loop is recovered and answered with the last
// cached snapshot, if any. The only hard failure is a run where no core
// instrument resolved and no cache exists.
func (a *Aggregator) Run(ctx context.Context) (snap *market.Snapshot, err error) {
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}

	defer func() {
		if r := recover(); r != nil {
			a.Log.Error("aggregation failed unexpectedly, answering with cached snapshot", "panic", r)
			snap, _ = a.Store.Load()
			if snap == nil {
				err = fmt.Errorf("aggregation failed and no cached snapshot exists: %v", r)
			} else {
				err = nil
			}
		}
	}()

	cached, cacheErr := a.Store.Load()
	if cacheErr != nil {
		a.Log.Warn("snapshot cache unreadable, continuing without it", "error", cacheErr)
		cached = nil
	}

	rows := make([]market.InstrumentRow, 0, len(a.Basket))
	for _, inst := range a.Basket {
		rows = append(rows, a.resolveRow(ctx, inst))
	}

	snap = &market.Snapshot{
		Timestamp: now().In(a.Location).Format(TimestampFormat),
		Rows:      rows,
	}
	snap.Status = a.status(snap)

	if snap.Status == market.StatusComplete {
		if err := a.Store.Save(snap); err != nil {
			a.Log.Warn("failed to persist snapshot cache", "error", err)
		}
		return snap, nil
	}

	if filled := store.Backfill(snap, cached); filled > 0 {
		a.Log.Info("backfilled current values from cache", "rows", filled)
	}

	if a.coreAllNull(snap) && cached == nil {
		return nil, fmt.Errorf("no core instrument resolved and no cached snapshot exists")
	}
	return snap, nil
}

func (a *Aggregator) resolveRow(ctx context.Context, inst market.Instrument) market.InstrumentRow {
	row := market.InstrumentRow{
		ID:     inst.ID,
		Name:   inst.Name,
		Source: market.SourceUnavailable,
	}

	binding := a.Resolver.Resolve(ctx, inst)
	if binding == nil {
		a.Log.Warn("instrument unavailable from every candidate", "instrument", inst.ID)
		return row
	}

	row.Source = binding.Label()
	row.Today = decimal.NullDecimal{Decimal: binding.Today.Price, Valid: true}

	anchors := a.Anchors.Resolve(ctx, binding)
	if inst.Guarded && a.Guard != nil {
		anchors.PrevSession = a.Guard.Vet(ctx, inst, binding.Today.Price,
			anchors.PrevSession, a.Anchors.SessionsBack(ctx, binding, 2))
	}

	row.Change = changePct(anchors.PrevSession, row.Today)
	row.Monthly = changePct(anchors.Month, row.Today)
	row.YTD = changePct(anchors.YTD, row.Today)
	return row
}

// changePct converts an anchor into a percentage change, or nil when
// the anchor is absent. nil keeps "no data" distinguishable from an
// actual 0.0% move.
func changePct(old, new decimal.NullDecimal) *float64 {
	if !old.Valid || !new.Valid || old.Decimal.IsZero() {
		return nil
	}
	pct := market.Percent(old, new)
	return &pct
}

// status is complete only when every core instrument priced. It is
// decided before backfill so a run that leaned on the cache still
// reports itself as partial.
func (a *Aggregator) status(snap *market.Snapshot) market.Status {
	for _, inst := range a.Basket {
		if !inst.Core {
			continue
		}
		if row, ok := snap.Row(inst.ID); !ok || !row.Today.Valid {
			return market.StatusPartial
		}
	}
	return market.StatusComplete
}

func (a *Aggregator) coreAllNull(snap *market.Snapshot) bool {
	for _, inst := range a.Basket {
		if !inst.Core {
			continue
		}
		if row, ok := snap.Row(inst.ID); ok && row.Today.Valid {
			return false
		}
	}
	return true
}

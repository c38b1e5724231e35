package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopspring/decimal"

	"github.com/falcoza/marketreporternew/internal/config"
	"github.com/falcoza/marketreporternew/internal/frankfurter"
	"github.com/falcoza/marketreporternew/internal/market"
	"github.com/falcoza/marketreporternew/internal/render"
	"github.com/falcoza/marketreporternew/internal/report"
	"github.com/falcoza/marketreporternew/internal/resolve"
	"github.com/falcoza/marketreporternew/internal/retry"
	"github.com/falcoza/marketreporternew/internal/store"
	"github.com/falcoza/marketreporternew/internal/yahoo"
)

// TestIntegration_FullRun wires the real provider clients, resolvers and
// aggregator against mock HTTP servers and checks the produced snapshot,
// cache file and report image.
func TestIntegration_FullRun(t *testing.T) {
	// Friday March 14 2025, 16:00 UTC.
	fixedNow := func() time.Time {
		return time.Date(2025, time.March, 14, 16, 0, 0, 0, time.UTC)
	}
	noonUnix := func(date string) int64 {
		d, err := time.Parse("2006-01-02", date)
		require.NoError(t, err)
		return d.Add(12 * time.Hour).Unix()
	}

	// The chart payload carries both the live metadata price (used by
	// Latest) and the daily bars (used by History), like production.
	yahooServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v8/finance/chart/") {
			http.NotFound(w, r)
			return
		}
		symbol := strings.TrimPrefix(r.URL.Path, "/v8/finance/chart/")
		if symbol != "%5EGSPC" && symbol != "^GSPC" {
			// USDZAR=X and everything else is down; the currency pair
			// must fail over to the independent rate provider.
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{
			"chart": {
				"result": [{
					"meta": {
						"currency": "USD",
						"symbol": "^GSPC",
						"regularMarketPrice": 5650.0,
						"regularMarketTime": %d
					},
					"timestamp": [%d, %d, %d],
					"indicators": {"quote": [{"close": [5000.0, 5500.0, 5600.0]}]}
				}],
				"error": null
			}
		}`, fixedNow().Unix(), noonUnix("2024-12-30"), noonUnix("2025-02-11"), noonUnix("2025-03-13"))
	}))
	defer yahooServer.Close()

	frankfurterServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/v1/latest" {
			fmt.Fprint(w, `{"base": "USD", "date": "2025-03-14", "rates": {"ZAR": 18.25}}`)
			return
		}
		// Date-range history request.
		fmt.Fprint(w, `{
			"base": "USD",
			"rates": {
				"2024-12-30": {"ZAR": 17.50},
				"2025-02-12": {"ZAR": 18.00},
				"2025-03-13": {"ZAR": 18.10}
			}
		}`)
	}))
	defer frankfurterServer.Close()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	policy := retry.Policy{MaxAttempts: 1, InitialDelay: time.Millisecond, BackoffFactor: 2}

	basket := []market.Instrument{
		{
			ID: "sp500", Name: "S&P 500", Category: market.CategoryIndex, Core: true,
			Candidates: []market.Candidate{{Provider: "yahoo", Symbol: "^GSPC"}},
		},
		{
			ID: "usd-zar", Name: "USD/ZAR", Category: market.CategoryFX, Core: true,
			Candidates: []market.Candidate{
				{Provider: "yahoo", Symbol: "USDZAR=X"},
				{Provider: "frankfurter", Symbol: "USD/ZAR"},
			},
		},
	}

	dir := t.TempDir()
	fileStore := store.NewFileStore(filepath.Join(dir, "last_report.json"))

	aggregator := &report.Aggregator{
		Basket: basket,
		Resolver: resolve.NewResolver(log,
			yahoo.NewClient(yahooServer.URL, time.UTC, policy),
			frankfurter.NewClient(frankfurterServer.URL, policy),
		),
		Anchors:  resolve.NewAnchorResolver(time.UTC, fixedNow, log),
		Guard:    resolve.NewGuard(12, nil, log),
		Store:    fileStore,
		Location: time.UTC,
		Now:      fixedNow,
		Log:      log,
	}

	snap, err := aggregator.Run(t.Context())
	require.NoError(t, err)
	require.NotNil(t, snap)

	assert.Equal(t, market.StatusComplete, snap.Status)
	assert.Equal(t, "2025-03-14 16:00", snap.Timestamp)
	require.Len(t, snap.Rows, 2)

	sp, ok := snap.Row("sp500")
	require.True(t, ok)
	assert.Equal(t, "yahoo:^GSPC", sp.Source)
	require.True(t, sp.Today.Valid)
	assert.Equal(t, "5650", sp.Today.Decimal.String())
	require.NotNil(t, sp.Change)
	assert.InDelta(t, 0.8929, *sp.Change, 0.0001) // vs 5600 on March 13
	require.NotNil(t, sp.Monthly)
	assert.InDelta(t, 2.7273, *sp.Monthly, 0.0001) // vs 5500 on February 11
	require.NotNil(t, sp.YTD)
	assert.InDelta(t, 13.0, *sp.YTD, 0.0001) // vs 5000 on December 30

	zar, ok := snap.Row("usd-zar")
	require.True(t, ok)
	assert.Equal(t, "frankfurter:USD/ZAR", zar.Source)
	require.True(t, zar.Today.Valid)
	assert.Equal(t, "18.25", zar.Today.Decimal.String())
	require.NotNil(t, zar.Change)
	assert.InDelta(t, 0.8287, *zar.Change, 0.0001)

	// A complete run persists the snapshot for the next outage.
	cached, err := fileStore.Load()
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, snap.Timestamp, cached.Timestamp)

	// The snapshot renders into the report image.
	theme, err := parseTheme(config.ThemeConfig{
		Background: "#FFFFFF", Text: "#1D1D1B", Header: "#B31B1B",
		Border: "#D3D3D3", Positive: "#1A7A1A", Negative: "#B31B1B",
	})
	require.NoError(t, err)
	imgPath := filepath.Join(dir, "report.png")
	require.NoError(t, render.New(theme).RenderFile(snap, imgPath))
}

// TestIntegration_OutageServedFromCache seeds the cache with a good run,
// then replays a total outage and checks the degraded snapshot.
func TestIntegration_OutageServedFromCache(t *testing.T) {
	fixedNow := func() time.Time {
		return time.Date(2025, time.March, 17, 16, 0, 0, 0, time.UTC)
	}

	downServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer downServer.Close()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	policy := retry.Policy{MaxAttempts: 2, InitialDelay: time.Millisecond, BackoffFactor: 2}

	basket := []market.Instrument{
		{
			ID: "sp500", Name: "S&P 500", Category: market.CategoryIndex, Core: true,
			Candidates: []market.Candidate{{Provider: "yahoo", Symbol: "^GSPC"}},
		},
	}

	fileStore := store.NewFileStore(filepath.Join(t.TempDir(), "last_report.json"))
	seeded := &market.Snapshot{
		Timestamp: "2025-03-14 16:00",
		Status:    market.StatusComplete,
		Rows: []market.InstrumentRow{
			{ID: "sp500", Name: "S&P 500", Today: priceOf("5650"), Source: "yahoo:^GSPC"},
		},
	}
	require.NoError(t, fileStore.Save(seeded))

	aggregator := &report.Aggregator{
		Basket:   basket,
		Resolver: resolve.NewResolver(log, yahoo.NewClient(downServer.URL, time.UTC, policy)),
		Anchors:  resolve.NewAnchorResolver(time.UTC, fixedNow, log),
		Store:    fileStore,
		Location: time.UTC,
		Now:      fixedNow,
		Log:      log,
	}

	snap, err := aggregator.Run(t.Context())
	require.NoError(t, err)

	assert.Equal(t, market.StatusPartial, snap.Status)
	row, ok := snap.Row("sp500")
	require.True(t, ok)
	require.True(t, row.Today.Valid)
	assert.Equal(t, "5650", row.Today.Decimal.String())
	assert.Nil(t, row.Change)
	assert.Equal(t, "yahoo:^GSPC (cached)", row.Source)
}

func priceOf(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.RequireFromString(s), Valid: true}
}

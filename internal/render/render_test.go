package render

import (
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/falcoza/marketreporternew/internal/market"
	"github.com/falcoza/marketreporternew/internal/testutil"
)

func testTheme() Theme {
	return Theme{
		Background: color.RGBA{255, 255, 255, 255},
		Text:       color.RGBA{29, 29, 27, 255},
		Header:     color.RGBA{179, 27, 27, 255},
		Border:     color.RGBA{211, 211, 211, 255},
		Positive:   color.RGBA{26, 122, 26, 255},
		Negative:   color.RGBA{179, 27, 27, 255},
	}
}

func TestParseHexColor(t *testing.T) {
	c, err := ParseHexColor("#B31B1B")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 179, G: 27, B: 27, A: 255}, c)

	_, err = ParseHexColor("B31B1B")
	assert.Error(t, err)

	_, err = ParseHexColor("#GG0000")
	assert.Error(t, err)
}

func TestFormatToday(t *testing.T) {
	r := New(testTheme())

	tests := []struct {
		name     string
		row      market.InstrumentRow
		expected string
	}{
		{"index points grouped, no decimals", market.InstrumentRow{Today: testutil.Price(67012.25)}, "67,012"},
		{"fx rate keeps two decimals", market.InstrumentRow{Today: testutil.Price(18.2513)}, "18.25"},
		{"exactly 1000 keeps decimals", market.InstrumentRow{Today: testutil.Price(1000)}, "1,000.00"},
		{"missing value", market.InstrumentRow{}, "—"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, r.formatToday(tt.row))
		})
	}
}

func TestFormatPct(t *testing.T) {
	r := New(testTheme())

	pct := func(v float64) *float64 { return &v }

	text, col := r.formatPct(pct(1.25))
	assert.Equal(t, "+1.2%", text)
	assert.Equal(t, r.Theme.Positive, col)

	text, col = r.formatPct(pct(-0.84))
	assert.Equal(t, "-0.8%", text)
	assert.Equal(t, r.Theme.Negative, col)

	// A move that rounds to zero loses its sign either way.
	text, _ = r.formatPct(pct(0.01))
	assert.Equal(t, "0.0%", text)
	text, _ = r.formatPct(pct(-0.01))
	assert.Equal(t, "0.0%", text)

	text, col = r.formatPct(nil)
	assert.Equal(t, "—", text)
	assert.Equal(t, r.Theme.Text, col)
}

func TestRenderFile(t *testing.T) {
	snap := &market.Snapshot{
		Timestamp: "2025-03-14 17:00",
		Status:    market.StatusComplete,
		Rows: []market.InstrumentRow{
			{ID: "jse-top40", Name: "JSE Top 40", Today: testutil.Price(67012), Source: "yahoo:^JN0U.JO"},
			{ID: "usd-zar", Name: "USD/ZAR", Today: testutil.Price(18.25), Source: "yahoo:USDZAR=X"},
			{ID: "brent", Name: "Brent Crude", Source: market.SourceUnavailable},
		},
	}

	path := filepath.Join(t.TempDir(), "report.png")
	require.NoError(t, New(testTheme()).RenderFile(snap, path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	img, err := png.Decode(f)
	require.NoError(t, err)
	bounds := img.Bounds()
	assert.Equal(t, 450, bounds.Dx())
	assert.Equal(t, 580, bounds.Dy())
}

func TestRender_PartialMarksTitle(t *testing.T) {
	r := New(testTheme())

	complete := r.Render(&market.Snapshot{Timestamp: "2025-03-14 17:00", Status: market.StatusComplete})
	partial := r.Render(&market.Snapshot{Timestamp: "2025-03-14 17:00", Status: market.StatusPartial})

	// The asterisk extends the title, so the rendered pixels differ.
	assert.NotEqual(t, complete, partial)
}

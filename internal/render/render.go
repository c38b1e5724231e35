// Package render draws the snapshot into the report PNG: a fixed-layout
// table with a header bar, one row per instrument, and a source footer.
// It consumes the snapshot as-is and contains no market logic.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/falcoza/marketreporternew/internal/market"
)

const (
	imgWidth  = 450
	imgHeight = 580

	marginX      = 10
	headerY      = 50
	headerHeight = 30
	rowHeight    = 34
	footerY      = 545
)

// column widths: instrument name, Today, then the three percentages.
var columns = []struct {
	Title string
	Width int
}{
	{"", 130},
	{"Today", 90},
	{"1D", 70},
	{"1M", 70},
	{"YTD", 70},
}

// Theme holds the report colors.
type Theme struct {
	Background color.RGBA
	Text       color.RGBA
	Header     color.RGBA
	Border     color.RGBA
	Positive   color.RGBA
	Negative   color.RGBA
}

// ParseHexColor parses "#RRGGBB" into an RGBA color.
func ParseHexColor(s string) (color.RGBA, error) {
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}

// Renderer draws snapshots with a fixed theme.
type Renderer struct {
	Theme   Theme
	face    font.Face
	printer *message.Printer
}

// New creates a Renderer.
func New(theme Theme) *Renderer {
	return &Renderer{
		Theme:   theme,
		face:    basicfont.Face7x13,
		printer: message.NewPrinter(language.English),
	}
}

// Render draws the snapshot into a new image.
func (r *Renderer) Render(snap *market.Snapshot) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, imgWidth, imgHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(r.Theme.Background), image.Point{}, draw.Src)

	title := fmt.Sprintf("Market Report %s", snap.Timestamp)
	if snap.Status == market.StatusPartial {
		title += " *"
	}
	r.text(img, marginX, 25, title, r.Theme.Text)

	// Header bar
	x := marginX
	for _, col := range columns {
		rect := image.Rect(x, headerY, x+col.Width, headerY+headerHeight)
		draw.Draw(img, rect, image.NewUniform(r.Theme.Header), image.Point{}, draw.Src)
		r.textCentered(img, x, col.Width, headerY+20, col.Title, color.RGBA{255, 255, 255, 255})
		x += col.Width
	}

	// Data rows
	y := headerY + headerHeight + 24
	for _, row := range snap.Rows {
		x = marginX
		r.text(img, x+5, y, row.Name, r.Theme.Text)
		x += columns[0].Width

		r.textCentered(img, x, columns[1].Width, y, r.formatToday(row), r.Theme.Text)
		x += columns[1].Width

		for i, pct := range []*float64{row.Change, row.Monthly, row.YTD} {
			text, col := r.formatPct(pct)
			r.textCentered(img, x, columns[2+i].Width, y, text, col)
			x += columns[2+i].Width
		}
		y += rowHeight
	}

	r.text(img, marginX, footerY, "Source: Yahoo Finance, AlphaVantage, Frankfurter, CoinGecko", r.Theme.Border)
	return img
}

// RenderFile draws the snapshot and writes it as a PNG to path.
func (r *Renderer) RenderFile(snap *market.Snapshot, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report image: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, r.Render(snap)); err != nil {
		return fmt.Errorf("failed to encode report image: %w", err)
	}
	return nil
}

// formatToday renders the current value with locale grouping: no
// decimals above 1000 (index points, rand prices), two below (FX
// rates).
func (r *Renderer) formatToday(row market.InstrumentRow) string {
	if !row.Today.Valid {
		return "—"
	}
	v, _ := row.Today.Decimal.Float64()
	if v > 1000 {
		return r.printer.Sprintf("%.0f", v)
	}
	return r.printer.Sprintf("%.2f", v)
}

func (r *Renderer) formatPct(pct *float64) (string, color.RGBA) {
	if pct == nil {
		return "—", r.Theme.Text
	}
	text := fmt.Sprintf("%+.1f%%", *pct)
	if text == "+0.0%" || text == "-0.0%" {
		text = "0.0%"
	}
	if *pct >= 0 {
		return text, r.Theme.Positive
	}
	return text, r.Theme.Negative
}

func (r *Renderer) text(img draw.Image, x, y int, s string, col color.Color) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: r.face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func (r *Renderer) textCentered(img draw.Image, x, width, y int, s string, col color.Color) {
	w := font.MeasureString(r.face, s).Ceil()
	r.text(img, x+(width-w)/2, y, s, col)
}

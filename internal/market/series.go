package market

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Bar is one trading session's completed close for an instrument.
type Bar struct {
	Day   Day
	Close decimal.Decimal
}

// Series is an ascending, date-indexed run of daily closes. Providers
// normalize their responses into a Series at the adapter boundary so
// anchor selection never branches on source-specific shapes.
//
// Construction de-duplicates days (last value wins) because some sources
// repeat the most recent close on request boundaries.
type Series struct {
	bars []Bar
}

// NewSeries builds a Series from bars in any order. Duplicate days keep
// the last bar given.
func NewSeries(bars []Bar) Series {
	byDay := make(map[Day]decimal.Decimal, len(bars))
	for _, b := range bars {
		byDay[b.Day] = b.Close
	}
	out := make([]Bar, 0, len(byDay))
	for d, c := range byDay {
		out = append(out, Bar{Day: d, Close: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return Series{bars: out}
}

// Len returns the number of distinct sessions in the series.
func (s Series) Len() int { return len(s.bars) }

// Bars returns the underlying bars in ascending day order.
func (s Series) Bars() []Bar { return s.bars }

// Latest returns the most recent bar, if any.
func (s Series) Latest() (Bar, bool) {
	if len(s.bars) == 0 {
		return Bar{}, false
	}
	return s.bars[len(s.bars)-1], true
}

// SessionsBack returns the close n distinct completed sessions back,
// where n=1 is the most recent completed session. A trailing bar dated
// today is provisional (the session has not closed) and is dropped
// before counting, so a live price is never compared against itself.
// Returns an invalid NullDecimal when the series is too short.
func (s Series) SessionsBack(n int, today Day) decimal.NullDecimal {
	bars := s.bars
	if len(bars) > 0 && !bars[len(bars)-1].Day.Before(today) {
		bars = bars[:len(bars)-1]
	}
	if n < 1 || len(bars) < n {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: bars[len(bars)-n].Close, Valid: true}
}

// CloseOnOrBefore returns the last close at or before d, if any.
func (s Series) CloseOnOrBefore(d Day) decimal.NullDecimal {
	for i := len(s.bars) - 1; i >= 0; i-- {
		if !s.bars[i].Day.After(d) {
			return decimal.NullDecimal{Decimal: s.bars[i].Close, Valid: true}
		}
	}
	return decimal.NullDecimal{}
}

// CloseOnOrAfter returns the first close at or after d, if any.
func (s Series) CloseOnOrAfter(d Day) decimal.NullDecimal {
	for i := 0; i < len(s.bars); i++ {
		if !s.bars[i].Day.Before(d) {
			return decimal.NullDecimal{Decimal: s.bars[i].Close, Valid: true}
		}
	}
	return decimal.NullDecimal{}
}

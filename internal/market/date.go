package market

import (
	"fmt"
	"time"
)

// DayFormat is the wire format for calendar days (ISO-8601 date).
const DayFormat = "2006-01-02"

// Day is a calendar date with day-level granularity. Prices in a daily
// series are indexed by Day after conversion to the report timezone, so
// bars from providers in different timezones land on comparable keys.
type Day struct {
	y int
	m time.Month
	d int
}

// NewDay returns a normalized Day for the given year, month and day.
// Out-of-range values wrap the way time.Date does.
func NewDay(year int, month time.Month, day int) Day {
	d := Day{year, month, day}
	d.y, d.m, d.d = d.time().Date()
	return d
}

// DayOf returns the calendar day of t in the given location.
func DayOf(t time.Time, loc *time.Location) Day {
	return NewDay(t.In(loc).Date())
}

// ParseDay parses an ISO-8601 date ("2006-01-02").
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(DayFormat, s)
	if err != nil {
		return Day{}, fmt.Errorf("invalid day %q: %w", s, err)
	}
	return NewDay(t.Date()), nil
}

func (d Day) time() time.Time { return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, time.UTC) }

// Year returns the year of the day.
func (d Day) Year() int { return d.y }

// Month returns the month of the day.
func (d Day) Month() time.Month { return d.m }

// DayOfMonth returns the day of the month.
func (d Day) DayOfMonth() int { return d.d }

// AddDays returns the day i calendar days later (earlier when negative).
func (d Day) AddDays(i int) Day { return NewDay(d.y, d.m, d.d+i) }

// Before reports whether d is strictly before x.
func (d Day) Before(x Day) bool { return d.time().Before(x.time()) }

// After reports whether d is strictly after x.
func (d Day) After(x Day) bool { return d.time().After(x.time()) }

// IsZero reports whether d is the zero Day.
func (d Day) IsZero() bool { return d.y == 0 && d.m == 0 && d.d == 0 }

// Unix returns the Unix time of midnight at the start of the day in loc.
func (d Day) Unix(loc *time.Location) int64 {
	return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, loc).Unix()
}

func (d Day) String() string { return d.time().Format(DayFormat) }

// MarshalJSON encodes the day as an ISO-8601 date string.
func (d Day) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON decodes an ISO-8601 date string.
func (d *Day) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := ParseDay(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

package market

import "github.com/shopspring/decimal"

// SourceUnavailable is the row source label when every candidate and
// every provider failed for an instrument.
const SourceUnavailable = "unavailable"

// Status reports whether a snapshot resolved a price for every core
// instrument.
type Status string

const (
	StatusComplete Status = "complete"
	StatusPartial  Status = "partial"
)

// InstrumentRow is the resolved, percentage-converted output for one
// instrument. Today is null when the instrument was unavailable; the
// percentage fields are nil when the corresponding anchor was missing
// or the outlier guard rejected the figure — nil is rendered as "—",
// distinct from an actual 0.0% change.
type InstrumentRow struct {
	ID      string              `json:"id"`
	Name    string              `json:"name"`
	Today   decimal.NullDecimal `json:"today"`
	Change  *float64            `json:"change"`
	Monthly *float64            `json:"monthly"`
	YTD     *float64            `json:"ytd"`
	Source  string              `json:"source"`
}

// Snapshot is the complete, point-in-time output of one aggregation
// run. Rows keep the fixed basket order so repeated runs produce
// reproducible output. Immutable after assembly.
type Snapshot struct {
	Timestamp string          `json:"timestamp"`
	Status    Status          `json:"data_status"`
	Rows      []InstrumentRow `json:"rows"`
}

// Row returns the row for the given instrument id, if present.
func (s *Snapshot) Row(id string) (InstrumentRow, bool) {
	for _, r := range s.Rows {
		if r.ID == id {
			return r, true
		}
	}
	return InstrumentRow{}, false
}

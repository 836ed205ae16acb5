package reconcile

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/zombor/veripay/internal/extraction"
)

// AnchorDay starts every period. Periods are ISO weeks on UTC calendar
// dates.
const AnchorDay = time.Monday

// Period is a seven day window identified by its first day. The zero Period
// is the undated bucket.
type Period struct {
	Start time.Time
}

// Undated holds entries without a parseable date.
var Undated = Period{}

// PeriodOf returns the period containing the calendar date of t.
func PeriodOf(t time.Time) Period {
	if t.IsZero() {
		return Undated
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(d.Weekday()) - int(AnchorDay) + 7) % 7
	return Period{Start: d.AddDate(0, 0, -offset)}
}

// IsUndated reports whether p is the undated bucket.
func (p Period) IsUndated() bool {
	return p.Start.IsZero()
}

// End is the first day after the period.
func (p Period) End() time.Time {
	return p.Start.AddDate(0, 0, 7)
}

// Contains reports whether the calendar date of t falls inside p.
func (p Period) Contains(t time.Time) bool {
	if p.IsUndated() || t.IsZero() {
		return false
	}
	return PeriodOf(t) == p
}

// Previous returns the period before p.
func (p Period) Previous() Period {
	return Period{Start: p.Start.AddDate(0, 0, -7)}
}

func (p Period) String() string {
	if p.IsUndated() {
		return "undated"
	}
	return p.Start.Format("2006-01-02")
}

func (p Period) MarshalJSON() ([]byte, error) {
	if p.IsUndated() {
		return json.Marshal(map[string]string{"period": "undated"})
	}
	return json.Marshal(map[string]string{
		"start": p.Start.Format("2006-01-02"),
		"end":   p.End().AddDate(0, 0, -1).Format("2006-01-02"),
	})
}

// Buckets maps periods to their entries in statement order.
type Buckets map[Period][]extraction.StatementEntry

// Resolve buckets entries by the period of their own date. Entries without
// a date land in Undated.
func Resolve(entries []extraction.StatementEntry) Buckets {
	b := Buckets{}
	for _, e := range entries {
		p := PeriodOf(e.Date)
		b[p] = append(b[p], e)
	}
	return b
}

// Periods returns the dated periods in ascending order.
func (b Buckets) Periods() []Period {
	out := make([]Period, 0, len(b))
	for p := range b {
		if !p.IsUndated() {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

// Undated returns the entries that have no date.
func (b Buckets) Undated() []extraction.StatementEntry {
	return b[Undated]
}

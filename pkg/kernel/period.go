package kernel

import "time"

// Period is a calendar-month accounting period in "YYYY-MM" form, always UTC.
type Period string

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period(t.UTC().Format("2006-01"))
}

func (p Period) String() string { return string(p) }
func (p Period) IsEmpty() bool  { return string(p) == "" }

// MonthBounds returns the half-open interval [first instant of t's month,
// first instant of the next month) in UTC. Queries use >= from AND < to,
// which covers the full last day of the month.
func MonthBounds(t time.Time) (from, to time.Time) {
	u := t.UTC()
	from = time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
	to = from.AddDate(0, 1, 0)
	return from, to
}

package referral

import "time"

// Today truncates t to its calendar day in loc.
func Today(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// EndDate returns start + PeriodMonths months + MarginDays days.
//
// Months are added first with time.AddDate, which normalises overflowing
// days into the following month: 2024-02-29 + 12 months is 2025-03-01.
// The margin is then added to that date.
func EndDate(start time.Time) time.Time {
	return start.AddDate(0, PeriodMonths, 0).AddDate(0, 0, MarginDays)
}

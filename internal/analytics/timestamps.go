package analytics

import "time"

// DayLayout is the UTC calendar-day format stored in event_date.
const DayLayout = "2006-01-02"

// RecentWindowDays is the width of the last30Days bucket.
const RecentWindowDays = 30

// EventDay returns the UTC calendar day of t, falling back to now when t is
// zero.
func EventDay(t, now time.Time) string {
	if t.IsZero() {
		t = now
	}
	return t.UTC().Format(DayLayout)
}

// RecentCutoff is the first day counted as recent relative to now. Days on
// or after the cutoff belong to the recent window.
func RecentCutoff(now time.Time) string {
	utc := now.UTC()
	today := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
	return today.AddDate(0, 0, -RecentWindowDays).Format(DayLayout)
}

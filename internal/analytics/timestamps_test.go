package analytics

import (
	"testing"
	"time"
)

func TestEventDayUsesUTC(t *testing.T) {
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	est := time.FixedZone("EST", -5*3600)

	got := EventDay(time.Date(2026, 3, 4, 22, 30, 0, 0, est), now)
	if got != "2026-03-05" {
		t.Fatalf("expected UTC day 2026-03-05, got %s", got)
	}

	if got := EventDay(time.Time{}, now); got != "2026-02-01" {
		t.Fatalf("expected fallback day, got %s", got)
	}
}

func TestRecentCutoffIsThirtyCalendarDays(t *testing.T) {
	now := time.Date(2026, 3, 31, 23, 59, 0, 0, time.UTC)
	if got := RecentCutoff(now); got != "2026-03-01" {
		t.Fatalf("expected 2026-03-01, got %s", got)
	}

	pst := time.FixedZone("PST", -8*3600)
	local := time.Date(2026, 3, 31, 20, 0, 0, 0, pst) // 2026-04-01 04:00 UTC
	if got := RecentCutoff(local); got != "2026-03-02" {
		t.Fatalf("expected cutoff from UTC day, got %s", got)
	}
}

package trading

import "time"

// Exchange time for US equities and listed options. Falls back to a fixed
// offset on hosts without tzdata; the DST error that introduces only moves
// the cutoff by an hour, which the poll loop tolerates.
var eastern = func() *time.Location {
	if loc, err := time.LoadLocation("America/New_York"); err == nil {
		return loc
	}
	return time.FixedZone("ET", -5*3600)
}()

type timeRange struct {
	startHour   int
	startMinute int
	endHour     int
	endMinute   int
}

// Regular session, no half-days.
var equityHours = []timeRange{
	{9, 30, 16, 0},
}

// IsMarketOpen reports whether the regular equity session is open now.
func IsMarketOpen() bool {
	return IsMarketOpenAt(time.Now())
}

// IsMarketOpenAt reports whether t falls inside the regular session.
func IsMarketOpenAt(t time.Time) bool {
	t = t.In(eastern)
	wd := t.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	return inRanges(t, equityHours)
}

// PastCutoff reports whether t is at or past the HH:MM end-of-day cutoff
// in exchange time.
func PastCutoff(t time.Time, hour, minute int) bool {
	t = t.In(eastern)
	return t.Hour()*60+t.Minute() >= hour*60+minute
}

// NextOpen walks forward minute-by-minute to the next session open. Used
// only for idle-loop sleep hints, so the linear scan is fine.
func NextOpen(from time.Time) time.Time {
	from = from.In(eastern)
	for i := 0; i < 7*24*60; i++ {
		cand := from.Add(time.Duration(i) * time.Minute)
		if IsMarketOpenAt(cand) {
			return cand
		}
	}
	return from.Add(24 * time.Hour)
}

func inRanges(t time.Time, ranges []timeRange) bool {
	cur := t.Hour()*60 + t.Minute()
	for _, r := range ranges {
		start := r.startHour*60 + r.startMinute
		end := r.endHour*60 + r.endMinute
		if cur >= start && cur <= end {
			return true
		}
	}
	return false
}

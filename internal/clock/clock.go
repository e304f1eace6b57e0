// Package clock isolates "now" and facility timezone resolution behind an
// injectable interface so evaluation is deterministic under test.
package clock

import "time"

// Clock interface for testing time-dependent behavior.
type Clock interface {
	Now() time.Time
}

// realClock implements Clock using the system time.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// System returns a Clock backed by time.Now.
func System() Clock { return realClock{} }

// FacilityTime converts now to the facility's local time. An empty or
// unknown timezone name falls back to UTC rather than failing the request.
func FacilityTime(now time.Time, timezone string) time.Time {
	if timezone == "" {
		return now.UTC()
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return now.UTC()
	}
	return now.In(loc)
}

// StartOfWeek returns midnight on the Monday of t's week, in t's location.
// Weekly caps (bookings, minutes, prime-time counts) are all computed over
// this Monday-to-Sunday calendar week.
func StartOfWeek(t time.Time) time.Time {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return day.AddDate(0, 0, -(weekday - 1))
}

// StartOfDay returns midnight on t's calendar day, in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

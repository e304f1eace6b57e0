package rules

import (
	"fmt"
	"time"
)

type OverlayKind string

const (
	OverlayPeak    OverlayKind = "peak"
	OverlayWeekend OverlayKind = "weekend"
)

// DayWindow is one per-day-of-week time window, minutes from midnight,
// half-open [Start, End).
type DayWindow struct {
	Day         time.Weekday `json:"day"`
	StartMinute int          `json:"start_minute"`
	EndMinute   int          `json:"end_minute"`
}

// Contains reports whether the minute range [startMin, endMin) on day
// intersects the window.
func (w DayWindow) Contains(day time.Weekday, startMin, endMin int) bool {
	return w.Day == day && startMin < w.EndMinute && w.StartMinute < endMin
}

// Overlay is a second, stricter rule pass layered on top of the base
// account caps. A peak overlay applies when the requested range intersects
// one of its day windows; a weekend overlay applies on Saturday and Sunday.
// Both the base rule and every applicable overlay must pass. Caps honor the
// Unlimited sentinel.
type Overlay struct {
	Kind               OverlayKind `json:"kind"`
	ApplyToAdmins      bool        `json:"apply_to_admins"`
	MaxBookingsPerWeek int         `json:"max_bookings_per_week"`
	MaxDurationHours   int         `json:"max_duration_hours"`
	AdvanceBookingDays int         `json:"advance_booking_days"`
	Windows            []DayWindow `json:"windows,omitempty"`
}

func (o Overlay) Validate() error {
	switch o.Kind {
	case OverlayPeak:
		if len(o.Windows) == 0 {
			return fmt.Errorf("peak overlay requires at least one window")
		}
		for _, w := range o.Windows {
			if w.StartMinute < 0 || w.EndMinute > 24*60 || w.StartMinute >= w.EndMinute {
				return fmt.Errorf("invalid peak window [%d, %d) on %s", w.StartMinute, w.EndMinute, w.Day)
			}
		}
	case OverlayWeekend:
		if len(o.Windows) != 0 {
			return fmt.Errorf("weekend overlay does not take windows")
		}
	default:
		return fmt.Errorf("unknown overlay kind %q", o.Kind)
	}
	if err := validateCap("max_bookings_per_week", o.MaxBookingsPerWeek); err != nil {
		return err
	}
	if err := validateCap("max_duration_hours", o.MaxDurationHours); err != nil {
		return err
	}
	return validateCap("advance_booking_days", o.AdvanceBookingDays)
}

// AppliesTo reports whether the overlay covers a request on date spanning
// the facility-local minute range [startMin, endMin), for an account with
// the given admin flag.
func (o Overlay) AppliesTo(date time.Time, startMin, endMin int, isAdmin bool) bool {
	if isAdmin && !o.ApplyToAdmins {
		return false
	}
	switch o.Kind {
	case OverlayWeekend:
		wd := date.Weekday()
		return wd == time.Saturday || wd == time.Sunday
	case OverlayPeak:
		for _, w := range o.Windows {
			if w.Contains(date.Weekday(), startMin, endMin) {
				return true
			}
		}
	}
	return false
}

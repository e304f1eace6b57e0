// Package slot discretizes a facility's bookable day into fixed-width time
// units. Every other component speaks in slot indices instead of raw
// time-of-day strings.
package slot

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrOutOfWindow     = errors.New("time outside facility operating window")
	ErrInvalidDuration = errors.New("invalid duration")
	ErrInvalidIndex    = errors.New("slot index out of range")
)

// Window describes a facility's bookable day: operating hours plus the
// granularity of a single slot. Operating hours never cross midnight.
type Window struct {
	DayStartHour       int
	DayEndHour         int
	GranularityMinutes int
}

// NewWindow validates and returns a Window. Granularity must divide 60 so
// slot boundaries align with wall-clock minutes.
func NewWindow(startHour, endHour, granularityMinutes int) (Window, error) {
	if startHour < 0 || startHour > 23 {
		return Window{}, fmt.Errorf("day start hour %d out of range", startHour)
	}
	if endHour <= startHour || endHour > 24 {
		return Window{}, fmt.Errorf("day end hour %d out of range", endHour)
	}
	if granularityMinutes <= 0 || 60%granularityMinutes != 0 {
		return Window{}, fmt.Errorf("granularity %d must divide 60", granularityMinutes)
	}
	return Window{
		DayStartHour:       startHour,
		DayEndHour:         endHour,
		GranularityMinutes: granularityMinutes,
	}, nil
}

// SlotCount returns the number of slots in the window.
func (w Window) SlotCount() int {
	return (w.DayEndHour - w.DayStartHour) * 60 / w.GranularityMinutes
}

// SlotIndex converts a time of day (hour, minute) to a zero-based slot index
// from the window start. Times outside [DayStartHour, DayEndHour) or not on
// a slot boundary are rejected.
func (w Window) SlotIndex(hour, minute int) (int, error) {
	if hour < w.DayStartHour || hour >= w.DayEndHour || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: %02d:%02d", ErrOutOfWindow, hour, minute)
	}
	offset := (hour-w.DayStartHour)*60 + minute
	if offset%w.GranularityMinutes != 0 {
		return 0, fmt.Errorf("%w: %02d:%02d not on a %d-minute boundary", ErrOutOfWindow, hour, minute, w.GranularityMinutes)
	}
	return offset / w.GranularityMinutes, nil
}

// SlotIndexOf is SlotIndex applied to a time.Time's clock reading.
func (w Window) SlotIndexOf(t time.Time) (int, error) {
	return w.SlotIndex(t.Hour(), t.Minute())
}

// SlotTime is the inverse of SlotIndex: it returns the hour and minute at
// which the given slot starts. Index order matches time order.
func (w Window) SlotTime(index int) (hour, minute int, err error) {
	if index < 0 || index >= w.SlotCount() {
		return 0, 0, fmt.Errorf("%w: %d", ErrInvalidIndex, index)
	}
	offset := index * w.GranularityMinutes
	return w.DayStartHour + offset/60, offset % 60, nil
}

// SlotsForDuration returns the half-open slot range [start, start+n) covering
// durationMinutes from startIndex. Durations that are not a multiple of the
// granularity round up so a booking always fully covers the requested end.
func (w Window) SlotsForDuration(startIndex, durationMinutes int) (start, count int, err error) {
	if durationMinutes <= 0 {
		return 0, 0, fmt.Errorf("%w: %d minutes", ErrInvalidDuration, durationMinutes)
	}
	if startIndex < 0 || startIndex >= w.SlotCount() {
		return 0, 0, fmt.Errorf("%w: %d", ErrInvalidIndex, startIndex)
	}
	count = (durationMinutes + w.GranularityMinutes - 1) / w.GranularityMinutes
	if startIndex+count > w.SlotCount() {
		return 0, 0, fmt.Errorf("%w: %d minutes from slot %d exceeds operating window", ErrInvalidDuration, durationMinutes, startIndex)
	}
	return startIndex, count, nil
}

// SlotMinutes returns the number of minutes covered by count slots.
func (w Window) SlotMinutes(count int) int {
	return count * w.GranularityMinutes
}

// SlotStart anchors a slot index on a calendar date, returning the absolute
// start time of the slot in loc.
func (w Window) SlotStart(date time.Time, index int, loc *time.Location) (time.Time, error) {
	hour, minute, err := w.SlotTime(index)
	if err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, loc), nil
}

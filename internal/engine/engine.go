// Package engine is the booking decision service: it answers whether a
// requested court/date/time range is physically available and whether the
// requesting account is permitted to book it under the facility's rule set.
// It owns no storage; every read comes through the provider interfaces and
// the authoritative accept happens at the persistence boundary.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/courtengine/internal/booking"
	"github.com/codr1/courtengine/internal/clock"
	"github.com/codr1/courtengine/internal/conflict"
	"github.com/codr1/courtengine/internal/rules"
	"github.com/codr1/courtengine/internal/slot"
)

var (
	ErrUnknownCourt    = errors.New("unknown court")
	ErrUnknownFacility = errors.New("unknown facility")

	// ErrEvaluationUnavailable signals that a required historical read
	// failed. The engine never guesses: safety-critical rules fail closed.
	ErrEvaluationUnavailable = errors.New("evaluation unavailable")
)

// BookingSource supplies read-only booking snapshots.
type BookingSource interface {
	// ConfirmedBookings returns every confirmed booking at the facility on
	// date, across all courts.
	ConfirmedBookings(ctx context.Context, facilityID int64, date time.Time) ([]booking.Booking, error)
	// AccountBookings returns the account's bookings at the facility in all
	// statuses, including canceled rows (the rebook cooldown needs them).
	AccountBookings(ctx context.Context, facilityID, userID int64) ([]booking.Booking, error)
	// HouseholdBookings returns bookings across every account of the
	// household at the facility.
	HouseholdBookings(ctx context.Context, facilityID, householdID int64) ([]booking.Booking, error)
}

// CourtSource supplies court topology and facility configuration.
type CourtSource interface {
	Court(ctx context.Context, courtID int64) (booking.Court, error)
	Facility(ctx context.Context, facilityID int64) (booking.Facility, error)
}

// HistorySource supplies strike and action history for one account.
type HistorySource interface {
	StrikeHistory(ctx context.Context, userID, facilityID int64) ([]booking.StrikeRecord, error)
	ActionHistory(ctx context.Context, userID, facilityID int64) ([]booking.ActionRecord, error)
}

// Violation is one failed rule, reported with enough context for the UI to
// explain every reason at once.
type Violation struct {
	RuleCode rules.Code `json:"rule_code"`
	Message  string     `json:"message"`
}

// Decision is the pipeline verdict. Allowed is false iff Violations is
// non-empty.
type Decision struct {
	Allowed    bool        `json:"allowed"`
	Violations []Violation `json:"violations,omitempty"`
}

// AvailabilityResult reports the conflict-resolver outcome.
type AvailabilityResult struct {
	Free              bool            `json:"free"`
	Reason            conflict.Reason `json:"reason,omitempty"`
	BlockingBookingID string          `json:"blocking_booking_id,omitempty"`
	StartSlotIndex    int             `json:"start_slot_index"`
	SlotCount         int             `json:"slot_count"`
}

// Engine is safe for concurrent use; evaluation is pure computation over
// provider snapshots and shares no mutable state between requests.
type Engine struct {
	bookings BookingSource
	courts   CourtSource
	history  HistorySource
	registry *rules.Registry
	clock    clock.Clock

	// failOpen lists rules allowed to be skipped when their historical
	// reads fail. Deployment choice, empty by default; safety-critical
	// rules are never eligible.
	failOpen map[rules.Code]bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock injects a clock; tests use this to pin "now".
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithFailOpen marks informational rules that may be skipped when the data
// they need cannot be read. Only advance-window and minimum-notice checks
// are eligible; requests for any other code are ignored with a warning.
func WithFailOpen(codes ...rules.Code) Option {
	return func(e *Engine) {
		for _, code := range codes {
			if !failOpenEligible(code) {
				log.Warn().
					Str("component", "booking_engine").
					Str("rule_code", string(code)).
					Msg("Rule not eligible for fail-open; ignoring")
				continue
			}
			e.failOpen[code] = true
		}
	}
}

func failOpenEligible(code rules.Code) bool {
	return code == rules.CodeAdvanceWindow || code == rules.CodeMinNotice
}

func New(bookings BookingSource, courts CourtSource, history HistorySource, registry *rules.Registry, opts ...Option) (*Engine, error) {
	if bookings == nil || courts == nil || history == nil || registry == nil {
		return nil, errors.New("engine requires booking, court, history, and rule sources")
	}
	e := &Engine{
		bookings: bookings,
		courts:   courts,
		history:  history,
		registry: registry,
		clock:    clock.System(),
		failOpen: make(map[rules.Code]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// CheckAvailability resolves physical slot availability for a court on a
// date. startHour/startMinute are facility-local. Input errors (unknown
// court, malformed duration) surface as errors; conflicts are a structured
// result, not an error.
func (e *Engine) CheckAvailability(
	ctx context.Context,
	courtID, facilityID int64,
	date time.Time,
	startHour, startMinute, durationMinutes int,
) (AvailabilityResult, error) {
	facility, window, err := e.facilityWindow(ctx, facilityID)
	if err != nil {
		return AvailabilityResult{}, err
	}

	court, err := e.courts.Court(ctx, courtID)
	if err != nil {
		return AvailabilityResult{}, fmt.Errorf("%w: %d", ErrUnknownCourt, courtID)
	}
	if court.FacilityID != facilityID {
		return AvailabilityResult{}, fmt.Errorf("%w: court %d does not belong to facility %d", ErrUnknownCourt, courtID, facilityID)
	}

	startIndex, err := window.SlotIndex(startHour, startMinute)
	if err != nil {
		return AvailabilityResult{}, err
	}
	startIndex, slotCount, err := window.SlotsForDuration(startIndex, durationMinutes)
	if err != nil {
		return AvailabilityResult{}, err
	}

	snapshot, err := e.bookings.ConfirmedBookings(ctx, facilityID, date)
	if err != nil {
		return AvailabilityResult{}, fmt.Errorf("%w: booking snapshot: %v", ErrEvaluationUnavailable, err)
	}

	now := clock.FacilityTime(e.clock.Now(), facility.Timezone)
	resolver := conflict.NewResolver(window)
	result := resolver.Resolve(court, date, startIndex, slotCount, snapshot, now)

	return AvailabilityResult{
		Free:              result.Free,
		Reason:            result.Reason,
		BlockingBookingID: result.BlockingBookingID,
		StartSlotIndex:    startIndex,
		SlotCount:         slotCount,
	}, nil
}

func (e *Engine) facilityWindow(ctx context.Context, facilityID int64) (booking.Facility, slot.Window, error) {
	facility, err := e.courts.Facility(ctx, facilityID)
	if err != nil {
		return booking.Facility{}, slot.Window{}, fmt.Errorf("%w: %d", ErrUnknownFacility, facilityID)
	}
	window, err := slot.NewWindow(facility.DayStartHour, facility.DayEndHour, facility.SlotMinutes)
	if err != nil {
		return booking.Facility{}, slot.Window{}, fmt.Errorf("facility %d operating window: %w", facilityID, err)
	}
	return facility, window, nil
}

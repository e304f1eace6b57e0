// Package conflict computes physical slot availability for a court on a
// date, including the split-court relationships: booking a parent surface
// blocks every child, booking a child blocks the parent, and sibling
// children stay independent of each other.
package conflict

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/courtengine/internal/booking"
	"github.com/codr1/courtengine/internal/slot"
)

type Reason string

const (
	ReasonSlotConflict     Reason = "slot_conflict"
	ReasonPastSlot         Reason = "past_slot"
	ReasonCourtUnavailable Reason = "court_unavailable"
)

// Result is the outcome of a conflict check. Conflicts are an expected,
// common outcome and are never modeled as errors.
type Result struct {
	Free              bool
	Reason            Reason
	BlockingBookingID string
}

func free() Result { return Result{Free: true} }

func conflict(reason Reason, blockingID string) Result {
	return Result{Reason: reason, BlockingBookingID: blockingID}
}

// occupancy is a per-day bitset, one bit per slot.
type occupancy []uint64

func newOccupancy(slots int) occupancy {
	return make(occupancy, (slots+63)/64)
}

func (o occupancy) mark(start, count int) {
	for i := start; i < start+count; i++ {
		o[i/64] |= 1 << (uint(i) % 64)
	}
}

func (o occupancy) or(other occupancy) {
	for i := range o {
		o[i] |= other[i]
	}
}

func (o occupancy) anySet(start, count int) bool {
	for i := start; i < start+count; i++ {
		if o[i/64]&(1<<(uint(i)%64)) != 0 {
			return true
		}
	}
	return false
}

// Resolver answers "are these slots physically free" questions. It is pure
// computation over the caller-supplied booking snapshot; nothing is cached
// between calls.
type Resolver struct {
	window slot.Window
}

func NewResolver(window slot.Window) Resolver {
	return Resolver{window: window}
}

// Resolve checks the candidate range [startIndex, startIndex+slotCount) on
// court for date against the confirmed bookings snapshot. The bookings slice
// must cover every court of the facility for that date; rows for unrelated
// courts and non-confirmed rows are skipped. now is the current time in the
// facility's timezone.
func (r Resolver) Resolve(
	court booking.Court,
	date time.Time,
	startIndex, slotCount int,
	bookings []booking.Booking,
	now time.Time,
) Result {
	if court.Status != booking.CourtAvailable {
		return conflict(ReasonCourtUnavailable, "")
	}

	if past := r.pastSlot(date, startIndex, now); past {
		return conflict(ReasonPastSlot, "")
	}

	relevant := relevantCourtIDs(court)
	combined := newOccupancy(r.window.SlotCount())
	var candidates []booking.Booking
	for _, b := range bookings {
		if b.Status != booking.StatusConfirmed {
			continue
		}
		if _, ok := relevant[b.CourtID]; !ok {
			continue
		}
		combined.mark(clampRange(b.StartSlotIndex, b.SlotCount, r.window.SlotCount()))
		candidates = append(candidates, b)
	}

	if !combined.anySet(startIndex, slotCount) {
		return free()
	}

	blocking := earliestOverlapping(candidates, startIndex, slotCount)
	log.Debug().
		Str("component", "conflict_resolver").
		Int64("court_id", court.ID).
		Int("start_slot", startIndex).
		Int("slot_count", slotCount).
		Str("blocking_booking_id", blocking).
		Msg("Slot conflict detected")
	return conflict(ReasonSlotConflict, blocking)
}

// pastSlot reports whether the slot start has already passed. A slot whose
// start equals now exactly is still bookable; minimum notice is ACC-006's
// concern, not the resolver's.
func (r Resolver) pastSlot(date time.Time, startIndex int, now time.Time) bool {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, now.Location())
	if day.Before(today) {
		return true
	}
	if day.After(today) {
		return false
	}
	start, err := r.window.SlotStart(day, startIndex, now.Location())
	if err != nil {
		return true
	}
	return start.Before(now)
}

// relevantCourtIDs returns the set of courts whose bookings can block the
// target: the court itself, its parent (booking the parent blocks every
// child), and its children (booking any child blocks the parent). Siblings
// are deliberately absent: only parent-child pairs conflict.
func relevantCourtIDs(court booking.Court) map[int64]struct{} {
	ids := map[int64]struct{}{court.ID: {}}
	if court.ParentCourtID != nil {
		ids[*court.ParentCourtID] = struct{}{}
	}
	for _, childID := range court.ChildCourtIDs {
		ids[childID] = struct{}{}
	}
	return ids
}

// earliestOverlapping returns the ID of the earliest-starting booking that
// overlaps the candidate range, breaking start ties on booking ID so the
// reported conflict is deterministic.
func earliestOverlapping(candidates []booking.Booking, start, count int) string {
	var best *booking.Booking
	for i := range candidates {
		b := &candidates[i]
		if !b.Overlaps(start, count) {
			continue
		}
		if best == nil ||
			b.StartSlotIndex < best.StartSlotIndex ||
			(b.StartSlotIndex == best.StartSlotIndex && b.ID < best.ID) {
			best = b
		}
	}
	if best == nil {
		return ""
	}
	return best.ID
}

func clampRange(start, count, slots int) (int, int) {
	if start < 0 {
		count += start
		start = 0
	}
	if start+count > slots {
		count = slots - start
	}
	if count < 0 {
		count = 0
	}
	return start, count
}

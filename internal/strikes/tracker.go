// Package strikes computes rolling-window strike counts and the derived
// lockout state. Lockout is never stored: it is recomputed from the
// append-only strike history and the facility's current policy, so changing
// the threshold or window retroactively reinterprets history with no
// migration.
package strikes

import (
	"sort"
	"time"

	"github.com/codr1/courtengine/internal/booking"
	"github.com/codr1/courtengine/internal/rules"
)

// ActiveStrikes counts strikes recorded within the trailing window ending
// at now.
func ActiveStrikes(history []booking.StrikeRecord, now time.Time, windowDays int) int {
	cutoff := now.AddDate(0, 0, -windowDays)
	count := 0
	for _, s := range history {
		if !s.Timestamp.Before(cutoff) && !s.Timestamp.After(now) {
			count++
		}
	}
	return count
}

// Status describes the derived lockout state for one account at one policy.
type Status struct {
	ActiveStrikes int
	LockedOut     bool
	LockoutUntil  time.Time // zero unless LockedOut or a past lockout existed
}

// Evaluate derives the lockout status from history under policy. The
// triggering strike is the most recent strike whose trailing-window count
// (at the moment it was recorded) reached the threshold; the account is
// locked out for policy.LockoutDays from that strike.
func Evaluate(history []booking.StrikeRecord, policy rules.StrikePolicyConfig, now time.Time) Status {
	status := Status{ActiveStrikes: ActiveStrikes(history, now, policy.StrikeWindowDays)}
	if len(history) == 0 {
		return status
	}

	sorted := make([]booking.StrikeRecord, 0, len(history))
	for _, s := range history {
		if s.Timestamp.After(now) {
			continue
		}
		sorted = append(sorted, s)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var trigger time.Time
	for i, s := range sorted {
		windowStart := s.Timestamp.AddDate(0, 0, -policy.StrikeWindowDays)
		count := 0
		for j := i; j >= 0; j-- {
			if sorted[j].Timestamp.Before(windowStart) {
				break
			}
			count++
		}
		if count >= policy.StrikeThreshold {
			trigger = s.Timestamp
		}
	}
	if trigger.IsZero() {
		return status
	}

	until := trigger.AddDate(0, 0, policy.LockoutDays)
	status.LockoutUntil = until
	status.LockedOut = now.Before(until)
	return status
}

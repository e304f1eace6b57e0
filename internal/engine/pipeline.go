package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/courtengine/internal/booking"
	"github.com/codr1/courtengine/internal/clock"
	"github.com/codr1/courtengine/internal/ratelimit"
	"github.com/codr1/courtengine/internal/rules"
	"github.com/codr1/courtengine/internal/slot"
	"github.com/codr1/courtengine/internal/strikes"
)

// Overlay violations carry pseudo-codes so the caller can distinguish them
// from base catalog rules in the reported list.
const (
	CodePeakOverlay    rules.Code = "OVL-PEAK"
	CodeWeekendOverlay rules.Code = "OVL-WKND"
)

// evalState carries one evaluation's inputs: the request, the facility's
// slot geometry and rule set, and the point-in-time historical snapshots.
// Nothing here outlives the call, so two evaluations milliseconds apart
// always see current data.
type evalState struct {
	req      booking.Request
	facility booking.Facility
	window   slot.Window
	set      *rules.Set
	now      time.Time // facility-local

	startMin  int // facility-local minutes from midnight
	endMin    int
	slotStart time.Time
	prime     bool

	account      []booking.Booking
	accountErr   error
	household    []booking.Booking
	householdErr error
	strikeHist   []booking.StrikeRecord
	strikeErr    error
	actionHist   []booking.ActionRecord
	actionErr    error
}

// evaluationOrder fixes a deterministic rule order so violation lists are
// stable across runs.
var evaluationOrder = []rules.Code{
	rules.CodeMaxActiveReservations,
	rules.CodeMaxPerWeek,
	rules.CodeMaxMinutesPerWeek,
	rules.CodeSelfOverlap,
	rules.CodeAdvanceWindow,
	rules.CodeMinNotice,
	rules.CodeRebookCooldown,
	rules.CodeStrikeLockout,
	rules.CodeMaxPrimePerWeek,
	rules.CodeRateLimit,
	rules.CodePrimeDuration,
	rules.CodePrimeTierGate,
	rules.CodeDurationGrid,
	rules.CodeCourtWeeklyCap,
	rules.CodeReleaseTime,
	rules.CodeHouseholdActive,
	rules.CodeHouseholdPrime,
}

// EvaluateRequest runs every active rule against the request and collects
// all violations; the verdict is Deny iff any rule failed. Rules are pure
// predicates; nothing is mutated. Cancellation is honored between rules.
func (e *Engine) EvaluateRequest(ctx context.Context, req booking.Request) (Decision, error) {
	facility, window, err := e.facilityWindow(ctx, req.FacilityID)
	if err != nil {
		return Decision{}, err
	}
	if req.StartSlotIndex < 0 || req.SlotCount <= 0 || req.StartSlotIndex+req.SlotCount > window.SlotCount() {
		return Decision{}, fmt.Errorf("%w: slots [%d, %d) outside operating window",
			slot.ErrInvalidDuration, req.StartSlotIndex, req.StartSlotIndex+req.SlotCount)
	}

	set, err := e.registry.ActiveRules(ctx, req.FacilityID)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: rule configuration: %v", ErrEvaluationUnavailable, err)
	}

	state, err := e.buildState(ctx, req, facility, window, set)
	if err != nil {
		return Decision{}, err
	}

	logger := log.Ctx(ctx).With().
		Str("component", "booking_engine").
		Int64("facility_id", req.FacilityID).
		Int64("user_id", req.UserID).
		Int64("court_id", req.CourtID).
		Logger()

	var violations []Violation
	for _, code := range evaluationOrder {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Decision{}, ctxErr
		}
		entry, ok := set.Active(code)
		if !ok {
			continue
		}
		v, err := e.evaluateRule(state, entry)
		if err != nil {
			if e.failOpen[code] {
				logger.Warn().Err(err).Str("rule_code", string(code)).
					Msg("Skipping rule configured fail-open; its data is unavailable")
				continue
			}
			return Decision{}, err
		}
		if v != nil {
			violations = append(violations, *v)
		}
	}

	overlayViolations, err := e.evaluateOverlays(state)
	if err != nil {
		return Decision{}, err
	}
	violations = append(violations, overlayViolations...)

	decision := Decision{Allowed: len(violations) == 0, Violations: violations}
	logger.Info().
		Bool("allowed", decision.Allowed).
		Int("violation_count", len(violations)).
		Msg("Evaluated booking request")
	return decision, nil
}

// buildState snapshots every historical read the active rules may need.
// Read failures are recorded, not fatal here; a rule that needs the missing
// data decides between fail-closed and configured fail-open.
func (e *Engine) buildState(
	ctx context.Context,
	req booking.Request,
	facility booking.Facility,
	window slot.Window,
	set *rules.Set,
) (*evalState, error) {
	now := clock.FacilityTime(e.clock.Now(), facility.Timezone)

	startHour, startMinute, err := window.SlotTime(req.StartSlotIndex)
	if err != nil {
		return nil, err
	}
	startMin := startHour*60 + startMinute
	endMin := startMin + window.SlotMinutes(req.SlotCount)
	slotStart, err := window.SlotStart(req.Date, req.StartSlotIndex, now.Location())
	if err != nil {
		return nil, err
	}

	state := &evalState{
		req:       req,
		facility:  facility,
		window:    window,
		set:       set,
		now:       now,
		startMin:  startMin,
		endMin:    endMin,
		slotStart: slotStart,
		prime:     isPrimeRange(set.Overlays(), req.Date, startMin, endMin),
	}

	state.account, state.accountErr = e.bookings.AccountBookings(ctx, req.FacilityID, req.UserID)
	state.strikeHist, state.strikeErr = e.history.StrikeHistory(ctx, req.UserID, req.FacilityID)
	state.actionHist, state.actionErr = e.history.ActionHistory(ctx, req.UserID, req.FacilityID)

	if facility.RestrictionType == booking.RestrictAddress && req.HouseholdID != nil {
		state.household, state.householdErr = e.bookings.HouseholdBookings(ctx, req.FacilityID, *req.HouseholdID)
	}

	return state, nil
}

// PrimeRange reports whether the requested facility-local minute range
// falls inside any configured peak window. Prime is a property of the time
// range alone; admin exemptions apply to overlay caps, not to primeness.
// Callers persisting a booking use this to stamp its prime flag.
func PrimeRange(overlays []rules.Overlay, date time.Time, startMin, endMin int) bool {
	return isPrimeRange(overlays, date, startMin, endMin)
}

func isPrimeRange(overlays []rules.Overlay, date time.Time, startMin, endMin int) bool {
	for _, o := range overlays {
		if o.Kind != rules.OverlayPeak {
			continue
		}
		for _, w := range o.Windows {
			if w.Contains(date.Weekday(), startMin, endMin) {
				return true
			}
		}
	}
	return false
}

func (e *Engine) evaluateRule(s *evalState, entry rules.Entry) (*Violation, error) {
	switch cfg := entry.Config.(type) {
	case rules.MaxActiveConfig:
		return s.checkMaxActive(cfg)
	case rules.WeeklyCountConfig:
		return s.checkWeeklyCount(cfg)
	case rules.WeeklyMinutesConfig:
		return s.checkWeeklyMinutes(cfg)
	case rules.SelfOverlapConfig:
		return s.checkSelfOverlap()
	case rules.AdvanceWindowConfig:
		return s.checkAdvanceWindow(cfg)
	case rules.MinNoticeConfig:
		return s.checkMinNotice(cfg)
	case rules.RebookCooldownConfig:
		return s.checkRebookCooldown(cfg)
	case rules.StrikePolicyConfig:
		return s.checkStrikeLockout(cfg)
	case rules.PrimeWeeklyConfig:
		return s.checkPrimeWeekly(cfg)
	case rules.RateLimitConfig:
		return s.checkRateLimit(cfg)
	case rules.PrimeDurationConfig:
		return s.checkPrimeDuration(cfg)
	case rules.TierGateConfig:
		return s.checkTierGate(cfg)
	case rules.DurationGridConfig:
		return s.checkDurationGrid(cfg)
	case rules.CourtWeeklyConfig:
		return s.checkCourtWeekly(cfg)
	case rules.ReleaseTimeConfig:
		return s.checkReleaseTime(cfg)
	case rules.HouseholdActiveConfig:
		return s.checkHouseholdActive(cfg)
	case rules.HouseholdPrimeConfig:
		return s.checkHouseholdPrime(cfg)
	default:
		// HH-001 and any future parse-only rules have nothing to check at
		// booking time.
		return nil, nil
	}
}

func violation(code rules.Code, format string, args ...any) *Violation {
	return &Violation{RuleCode: code, Message: fmt.Sprintf(format, args...)}
}

func (s *evalState) accountBookings(code rules.Code) ([]booking.Booking, error) {
	if s.accountErr != nil {
		return nil, fmt.Errorf("%w: account bookings for %s: %v", ErrEvaluationUnavailable, code, s.accountErr)
	}
	return s.account, nil
}

// isActive reports whether b still holds court time: pending or confirmed
// and not yet finished at now.
func (s *evalState) isActive(b booking.Booking) bool {
	if b.Status != booking.StatusPending && b.Status != booking.StatusConfirmed {
		return false
	}
	start, err := s.window.SlotStart(b.Date, b.StartSlotIndex, s.now.Location())
	if err != nil {
		return false
	}
	end := start.Add(time.Duration(s.window.SlotMinutes(b.SlotCount)) * time.Minute)
	return end.After(s.now)
}

// inWeekOf reports whether b's booking date falls in the calendar week
// containing anchor.
func (s *evalState) inWeekOf(b booking.Booking, anchor time.Time) bool {
	weekStart := clock.StartOfWeek(anchor)
	weekEnd := weekStart.AddDate(0, 0, 7)
	day := time.Date(b.Date.Year(), b.Date.Month(), b.Date.Day(), 0, 0, 0, 0, anchor.Location())
	return !day.Before(weekStart) && day.Before(weekEnd)
}

func (s *evalState) checkMaxActive(cfg rules.MaxActiveConfig) (*Violation, error) {
	if rules.CapSkipped(cfg.MaxActiveReservations) {
		return nil, nil
	}
	bookings, err := s.accountBookings(rules.CodeMaxActiveReservations)
	if err != nil {
		return nil, err
	}
	active := 0
	for _, b := range bookings {
		if s.isActive(b) {
			active++
		}
	}
	if active >= cfg.MaxActiveReservations {
		return violation(rules.CodeMaxActiveReservations,
			"account already holds %d active reservations (limit %d)", active, cfg.MaxActiveReservations), nil
	}
	return nil, nil
}

func (s *evalState) checkWeeklyCount(cfg rules.WeeklyCountConfig) (*Violation, error) {
	if rules.CapSkipped(cfg.MaxPerWeek) {
		return nil, nil
	}
	bookings, err := s.accountBookings(rules.CodeMaxPerWeek)
	if err != nil {
		return nil, err
	}
	weekStart := clock.StartOfWeek(s.now)
	weekEnd := weekStart.AddDate(0, 0, 7)
	created := 0
	for _, b := range bookings {
		// Creation consumes the weekly cap even if the booking was later
		// canceled; otherwise a create-cancel loop never hits the limit.
		if !b.CreatedAt.Before(weekStart) && b.CreatedAt.Before(weekEnd) {
			created++
		}
	}
	if created >= cfg.MaxPerWeek {
		return violation(rules.CodeMaxPerWeek,
			"account created %d reservations this week (limit %d)", created, cfg.MaxPerWeek), nil
	}
	return nil, nil
}

func (s *evalState) checkWeeklyMinutes(cfg rules.WeeklyMinutesConfig) (*Violation, error) {
	if rules.CapSkipped(cfg.MaxMinutesPerWeek) {
		return nil, nil
	}
	bookings, err := s.accountBookings(rules.CodeMaxMinutesPerWeek)
	if err != nil {
		return nil, err
	}
	minutes := 0
	for _, b := range bookings {
		if b.Status == booking.StatusCanceled {
			continue
		}
		if s.inWeekOf(b, s.req.Date) {
			minutes += s.window.SlotMinutes(b.SlotCount)
		}
	}
	requested := s.window.SlotMinutes(s.req.SlotCount)
	if minutes+requested > cfg.MaxMinutesPerWeek {
		return violation(rules.CodeMaxMinutesPerWeek,
			"booking %d minutes would exceed the weekly limit of %d (already booked %d)",
			requested, cfg.MaxMinutesPerWeek, minutes), nil
	}
	return nil, nil
}

func (s *evalState) checkSelfOverlap() (*Violation, error) {
	bookings, err := s.accountBookings(rules.CodeSelfOverlap)
	if err != nil {
		return nil, err
	}
	for _, b := range bookings {
		if b.Status != booking.StatusConfirmed {
			continue
		}
		if !sameDay(b.Date, s.req.Date) {
			continue
		}
		if b.Overlaps(s.req.StartSlotIndex, s.req.SlotCount) {
			return violation(rules.CodeSelfOverlap,
				"account already has a reservation overlapping this time on court %d", b.CourtID), nil
		}
	}
	return nil, nil
}

func (s *evalState) checkAdvanceWindow(cfg rules.AdvanceWindowConfig) (*Violation, error) {
	if rules.CapSkipped(cfg.MaxDaysAhead) {
		return nil, nil
	}
	days := daysBetween(clock.StartOfDay(s.now), s.req.Date)
	if days > cfg.MaxDaysAhead {
		return violation(rules.CodeAdvanceWindow,
			"date is %d days ahead (limit %d)", days, cfg.MaxDaysAhead), nil
	}
	return nil, nil
}

func (s *evalState) checkMinNotice(cfg rules.MinNoticeConfig) (*Violation, error) {
	notice := s.slotStart.Sub(s.now)
	required := time.Duration(cfg.MinMinutesBeforeStart) * time.Minute
	if notice < required {
		return violation(rules.CodeMinNotice,
			"start is %s away; facility requires %s notice",
			notice.Truncate(time.Minute), required), nil
	}
	return nil, nil
}

func (s *evalState) checkRebookCooldown(cfg rules.RebookCooldownConfig) (*Violation, error) {
	bookings, err := s.accountBookings(rules.CodeRebookCooldown)
	if err != nil {
		return nil, err
	}
	for _, b := range bookings {
		if b.Status != booking.StatusCanceled || b.CanceledAt == nil {
			continue
		}
		if b.CourtID != s.req.CourtID || !sameDay(b.Date, s.req.Date) || b.StartSlotIndex != s.req.StartSlotIndex {
			continue
		}
		elapsed := s.now.Sub(*b.CanceledAt)
		cooldown := time.Duration(cfg.CooldownMinutes) * time.Minute
		if elapsed < cooldown {
			return violation(rules.CodeRebookCooldown,
				"slot was canceled %s ago; re-booking allowed after %s",
				elapsed.Truncate(time.Minute), cooldown), nil
		}
	}
	return nil, nil
}

func (s *evalState) checkStrikeLockout(cfg rules.StrikePolicyConfig) (*Violation, error) {
	if s.strikeErr != nil {
		return nil, fmt.Errorf("%w: strike history: %v", ErrEvaluationUnavailable, s.strikeErr)
	}
	status := strikes.Evaluate(s.strikeHist, cfg, s.now)
	if status.LockedOut {
		return violation(rules.CodeStrikeLockout,
			"account is locked out until %s (%d strikes in the last %d days)",
			status.LockoutUntil.Format("2006-01-02"), status.ActiveStrikes, cfg.StrikeWindowDays), nil
	}
	return nil, nil
}

func (s *evalState) checkPrimeWeekly(cfg rules.PrimeWeeklyConfig) (*Violation, error) {
	if rules.CapSkipped(cfg.MaxPrimePerWeek) || !s.prime {
		return nil, nil
	}
	bookings, err := s.accountBookings(rules.CodeMaxPrimePerWeek)
	if err != nil {
		return nil, err
	}
	count := s.primeCount(bookings)
	if count >= cfg.MaxPrimePerWeek {
		return violation(rules.CodeMaxPrimePerWeek,
			"account has %d prime-time reservations this week (limit %d)", count, cfg.MaxPrimePerWeek), nil
	}
	return nil, nil
}

func (s *evalState) primeCount(bookings []booking.Booking) int {
	count := 0
	for _, b := range bookings {
		if b.Status == booking.StatusCanceled || !b.Prime {
			continue
		}
		if s.inWeekOf(b, s.req.Date) {
			count++
		}
	}
	return count
}

func (s *evalState) checkRateLimit(cfg rules.RateLimitConfig) (*Violation, error) {
	if s.actionErr != nil {
		return nil, fmt.Errorf("%w: action history: %v", ErrEvaluationUnavailable, s.actionErr)
	}
	if !ratelimit.Allowed(s.actionHist, cfg, []booking.ActionType{booking.ActionCreate, booking.ActionCancel}, s.now) {
		return violation(rules.CodeRateLimit,
			"too many booking actions; limit is %d per %d seconds", cfg.MaxActions, cfg.WindowSeconds), nil
	}
	return nil, nil
}

func (s *evalState) checkPrimeDuration(cfg rules.PrimeDurationConfig) (*Violation, error) {
	if rules.CapSkipped(cfg.MaxMinutesPrime) || !s.prime {
		return nil, nil
	}
	requested := s.window.SlotMinutes(s.req.SlotCount)
	if requested > cfg.MaxMinutesPrime {
		return violation(rules.CodePrimeDuration,
			"prime-time bookings are limited to %d minutes (requested %d)", cfg.MaxMinutesPrime, requested), nil
	}
	return nil, nil
}

func (s *evalState) checkTierGate(cfg rules.TierGateConfig) (*Violation, error) {
	if !s.prime {
		return nil, nil
	}
	if !cfg.Allows(s.req.MembershipTier, s.req.IsAdmin) {
		return violation(rules.CodePrimeTierGate,
			"membership tier %q is not eligible for prime-time booking", s.req.MembershipTier), nil
	}
	return nil, nil
}

func (s *evalState) checkDurationGrid(cfg rules.DurationGridConfig) (*Violation, error) {
	if s.startMin%cfg.SlotMinutes != 0 {
		return violation(rules.CodeDurationGrid,
			"start time must align to the %d-minute grid", cfg.SlotMinutes), nil
	}
	effective := s.window.SlotMinutes(s.req.SlotCount)
	if effective < cfg.MinDurationMinutes {
		return violation(rules.CodeDurationGrid,
			"duration %d minutes is below the minimum of %d", effective, cfg.MinDurationMinutes), nil
	}
	if !rules.CapSkipped(cfg.MaxDurationMinutes) && effective > cfg.MaxDurationMinutes {
		return violation(rules.CodeDurationGrid,
			"duration %d minutes exceeds the maximum of %d", effective, cfg.MaxDurationMinutes), nil
	}
	return nil, nil
}

func (s *evalState) checkCourtWeekly(cfg rules.CourtWeeklyConfig) (*Violation, error) {
	if rules.CapSkipped(cfg.MaxPerWeekPerAccount) {
		return nil, nil
	}
	bookings, err := s.accountBookings(rules.CodeCourtWeeklyCap)
	if err != nil {
		return nil, err
	}
	count := 0
	for _, b := range bookings {
		if b.Status == booking.StatusCanceled || b.CourtID != s.req.CourtID {
			continue
		}
		if s.inWeekOf(b, s.req.Date) {
			count++
		}
	}
	if count >= cfg.MaxPerWeekPerAccount {
		return violation(rules.CodeCourtWeeklyCap,
			"account has %d reservations on this court this week (limit %d)", count, cfg.MaxPerWeekPerAccount), nil
	}
	return nil, nil
}

func (s *evalState) checkReleaseTime(cfg rules.ReleaseTimeConfig) (*Violation, error) {
	hour, minute, err := rules.ParseTimeOfDay(cfg.ReleaseTimeLocal)
	if err != nil {
		// Validated at load; defend against a zero-value entry anyway.
		return nil, fmt.Errorf("%w: release time: %v", ErrEvaluationUnavailable, err)
	}
	releaseDay := s.req.Date.AddDate(0, 0, -cfg.DaysAhead)
	release := time.Date(releaseDay.Year(), releaseDay.Month(), releaseDay.Day(), hour, minute, 0, 0, s.now.Location())
	if s.now.Before(release) {
		return violation(rules.CodeReleaseTime,
			"this date opens for booking at %s", release.Format("2006-01-02 15:04")), nil
	}
	return nil, nil
}

func (s *evalState) householdBookings(code rules.Code) ([]booking.Booking, bool, error) {
	if s.facility.RestrictionType != booking.RestrictAddress || s.req.HouseholdID == nil {
		return nil, false, nil
	}
	if s.householdErr != nil {
		return nil, false, fmt.Errorf("%w: household bookings for %s: %v", ErrEvaluationUnavailable, code, s.householdErr)
	}
	return s.household, true, nil
}

func (s *evalState) checkHouseholdActive(cfg rules.HouseholdActiveConfig) (*Violation, error) {
	if rules.CapSkipped(cfg.MaxActiveHousehold) {
		return nil, nil
	}
	bookings, applies, err := s.householdBookings(rules.CodeHouseholdActive)
	if err != nil || !applies {
		return nil, err
	}
	active := 0
	for _, b := range bookings {
		if s.isActive(b) {
			active++
		}
	}
	if active >= cfg.MaxActiveHousehold {
		return violation(rules.CodeHouseholdActive,
			"household already holds %d active reservations (limit %d)", active, cfg.MaxActiveHousehold), nil
	}
	return nil, nil
}

func (s *evalState) checkHouseholdPrime(cfg rules.HouseholdPrimeConfig) (*Violation, error) {
	if rules.CapSkipped(cfg.MaxPrimePerWeekHousehold) || !s.prime {
		return nil, nil
	}
	bookings, applies, err := s.householdBookings(rules.CodeHouseholdPrime)
	if err != nil || !applies {
		return nil, err
	}
	count := s.primeCount(bookings)
	if count >= cfg.MaxPrimePerWeekHousehold {
		return violation(rules.CodeHouseholdPrime,
			"household has %d prime-time reservations this week (limit %d)", count, cfg.MaxPrimePerWeekHousehold), nil
	}
	return nil, nil
}

// evaluateOverlays runs the stricter peak/weekend passes. Each applicable
// overlay enforces its weekly count, duration, and advance caps on top of
// the base rules; base and overlay must both pass.
func (e *Engine) evaluateOverlays(s *evalState) ([]Violation, error) {
	var violations []Violation
	for _, o := range s.set.Overlays() {
		if !o.AppliesTo(s.req.Date, s.startMin, s.endMin, s.req.IsAdmin) {
			continue
		}
		code := CodePeakOverlay
		label := "peak-hour"
		if o.Kind == rules.OverlayWeekend {
			code = CodeWeekendOverlay
			label = "weekend"
		}

		if !rules.CapSkipped(o.MaxBookingsPerWeek) {
			bookings, err := s.accountBookings(code)
			if err != nil {
				return nil, err
			}
			count := 0
			for _, b := range bookings {
				if b.Status == booking.StatusCanceled || !s.inWeekOf(b, s.req.Date) {
					continue
				}
				if overlayCovers(o, s.window, b) {
					count++
				}
			}
			if count >= o.MaxBookingsPerWeek {
				violations = append(violations, *violation(code,
					"account has %d %s reservations this week (limit %d)", count, label, o.MaxBookingsPerWeek))
			}
		}

		if !rules.CapSkipped(o.MaxDurationHours) {
			requested := s.window.SlotMinutes(s.req.SlotCount)
			if requested > o.MaxDurationHours*60 {
				violations = append(violations, *violation(code,
					"%s bookings are limited to %d hours (requested %d minutes)", label, o.MaxDurationHours, requested))
			}
		}

		if !rules.CapSkipped(o.AdvanceBookingDays) {
			days := daysBetween(clock.StartOfDay(s.now), s.req.Date)
			if days > o.AdvanceBookingDays {
				violations = append(violations, *violation(code,
					"%s dates open %d days ahead (requested %d days ahead)", label, o.AdvanceBookingDays, days))
			}
		}
	}
	return violations, nil
}

// overlayCovers reports whether an existing booking falls in the overlay's
// scope: weekend overlays count Saturday/Sunday bookings, peak overlays
// count bookings intersecting a peak window.
func overlayCovers(o rules.Overlay, window slot.Window, b booking.Booking) bool {
	switch o.Kind {
	case rules.OverlayWeekend:
		wd := b.Date.Weekday()
		return wd == time.Saturday || wd == time.Sunday
	case rules.OverlayPeak:
		hour, minute, err := window.SlotTime(b.StartSlotIndex)
		if err != nil {
			return false
		}
		startMin := hour*60 + minute
		endMin := startMin + window.SlotMinutes(b.SlotCount)
		for _, w := range o.Windows {
			if w.Contains(b.Date.Weekday(), startMin, endMin) {
				return true
			}
		}
	}
	return false
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// daysBetween counts whole calendar days from a (midnight) to b's day.
func daysBetween(a, b time.Time) int {
	bDay := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, a.Location())
	return int(bDay.Sub(a) / (24 * time.Hour))
}

package store_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/codr1/courtengine/internal/booking"
	"github.com/codr1/courtengine/internal/rules"
	"github.com/codr1/courtengine/internal/store"
	"github.com/codr1/courtengine/internal/testutil"
)

type fixture struct {
	store      *store.Store
	facilityID int64
	courtID    int64
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	facilityID, err := s.CreateFacility(ctx, booking.Facility{
		Name:            "Riverside Courts",
		Timezone:        "UTC",
		DayStartHour:    6,
		DayEndHour:      22,
		SlotMinutes:     30,
		RestrictionType: booking.RestrictAccount,
	})
	if err != nil {
		t.Fatalf("create facility: %v", err)
	}
	courtID, err := s.CreateCourt(ctx, booking.Court{
		FacilityID: facilityID,
		Name:       "Court 1",
		Type:       booking.CourtTennis,
		Status:     booking.CourtAvailable,
	})
	if err != nil {
		t.Fatalf("create court: %v", err)
	}
	return fixture{store: s, facilityID: facilityID, courtID: courtID}
}

func testBooking(f fixture, userID int64, startSlot, slotCount int) booking.Booking {
	return booking.Booking{
		CourtID:        f.courtID,
		FacilityID:     f.facilityID,
		UserID:         userID,
		Date:           time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC),
		StartSlotIndex: startSlot,
		SlotCount:      slotCount,
	}
}

func TestConfirmBooking_RoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	confirmed, err := f.store.ConfirmBooking(ctx, testBooking(f, 101, 6, 2))
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.ID == "" {
		t.Fatal("expected generated booking ID")
	}

	got, err := f.store.ConfirmedBookings(ctx, f.facilityID, confirmed.Date)
	if err != nil {
		t.Fatalf("list confirmed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 confirmed booking, got %d", len(got))
	}
	if got[0].ID != confirmed.ID || got[0].StartSlotIndex != 6 || got[0].SlotCount != 2 {
		t.Errorf("round-trip mismatch: %+v", got[0])
	}

	actions, err := f.store.ActionHistory(ctx, f.facilityID, 101, time.Time{})
	if err != nil {
		t.Fatalf("action history: %v", err)
	}
	if len(actions) != 1 || actions[0].Action != booking.ActionCreate {
		t.Errorf("expected one create action, got %+v", actions)
	}
}

func TestConfirmBooking_SlotTaken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.store.ConfirmBooking(ctx, testBooking(f, 101, 6, 2)); err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	_, err := f.store.ConfirmBooking(ctx, testBooking(f, 102, 7, 2))
	if !errors.Is(err, store.ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}

	// Adjacent range is free.
	if _, err := f.store.ConfirmBooking(ctx, testBooking(f, 102, 8, 2)); err != nil {
		t.Fatalf("adjacent confirm: %v", err)
	}
}

func TestConfirmBooking_SplitCourtConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	childA, err := f.store.CreateCourt(ctx, booking.Court{
		FacilityID:    f.facilityID,
		Name:          "Court 1A",
		Type:          booking.CourtPickleball,
		Status:        booking.CourtAvailable,
		ParentCourtID: &f.courtID,
	})
	if err != nil {
		t.Fatalf("create child A: %v", err)
	}
	childB, err := f.store.CreateCourt(ctx, booking.Court{
		FacilityID:    f.facilityID,
		Name:          "Court 1B",
		Type:          booking.CourtPickleball,
		Status:        booking.CourtAvailable,
		ParentCourtID: &f.courtID,
	})
	if err != nil {
		t.Fatalf("create child B: %v", err)
	}

	// Whole-court booking blocks the child.
	if _, err := f.store.ConfirmBooking(ctx, testBooking(f, 101, 4, 2)); err != nil {
		t.Fatalf("parent confirm: %v", err)
	}
	childReq := testBooking(f, 102, 4, 2)
	childReq.CourtID = childA
	if _, err := f.store.ConfirmBooking(ctx, childReq); !errors.Is(err, store.ErrSlotTaken) {
		t.Fatalf("expected child blocked by parent, got %v", err)
	}

	// Child booking in a free range blocks the parent but not the sibling.
	childReq.StartSlotIndex = 10
	if _, err := f.store.ConfirmBooking(ctx, childReq); err != nil {
		t.Fatalf("child confirm: %v", err)
	}
	parentReq := testBooking(f, 103, 10, 2)
	if _, err := f.store.ConfirmBooking(ctx, parentReq); !errors.Is(err, store.ErrSlotTaken) {
		t.Fatalf("expected parent blocked by child, got %v", err)
	}
	siblingReq := testBooking(f, 103, 10, 2)
	siblingReq.CourtID = childB
	if _, err := f.store.ConfirmBooking(ctx, siblingReq); err != nil {
		t.Fatalf("sibling should be independent: %v", err)
	}
}

func TestConfirmBooking_ConcurrentRace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.store.ConfirmBooking(ctx, testBooking(f, int64(200+i), 12, 2))
		}()
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, store.ErrSlotTaken):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}

	got, err := f.store.ConfirmedBookings(ctx, f.facilityID, time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("list confirmed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 booking after race, got %d", len(got))
	}
}

func TestCancelBooking_LateCancelStrike(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.store.ConfirmBooking(ctx, testBooking(f, 101, 6, 2))
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}

	slotStart := time.Date(2025, 6, 4, 9, 0, 0, 0, time.UTC)
	now := slotStart.Add(-2 * time.Hour)
	canceled, err := f.store.CancelBooking(ctx, b.ID, slotStart, now, 24*time.Hour)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if canceled.Status != booking.StatusCanceled || canceled.CanceledAt == nil {
		t.Errorf("expected canceled status with timestamp, got %+v", canceled)
	}

	strikes, err := f.store.StrikeHistory(ctx, f.facilityID, 101)
	if err != nil {
		t.Fatalf("strike history: %v", err)
	}
	if len(strikes) != 1 || strikes[0].Kind != booking.StrikeLateCancel {
		t.Fatalf("expected one late_cancel strike, got %+v", strikes)
	}

	actions, err := f.store.ActionHistory(ctx, f.facilityID, 101, time.Time{})
	if err != nil {
		t.Fatalf("action history: %v", err)
	}
	if len(actions) != 2 || actions[1].Action != booking.ActionCancel {
		t.Errorf("expected create then cancel actions, got %+v", actions)
	}

	// The slot is free again.
	if _, err := f.store.ConfirmBooking(ctx, testBooking(f, 102, 6, 2)); err != nil {
		t.Fatalf("rebook after cancel: %v", err)
	}
}

func TestCancelBooking_EarlyCancelNoStrike(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.store.ConfirmBooking(ctx, testBooking(f, 101, 6, 2))
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}

	slotStart := time.Date(2025, 6, 4, 9, 0, 0, 0, time.UTC)
	now := slotStart.Add(-48 * time.Hour)
	if _, err := f.store.CancelBooking(ctx, b.ID, slotStart, now, 24*time.Hour); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	strikes, err := f.store.StrikeHistory(ctx, f.facilityID, 101)
	if err != nil {
		t.Fatalf("strike history: %v", err)
	}
	if len(strikes) != 0 {
		t.Fatalf("expected no strikes, got %+v", strikes)
	}
}

func TestMarkNoShow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.store.ConfirmBooking(ctx, testBooking(f, 101, 6, 2))
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	now := time.Date(2025, 6, 4, 10, 0, 0, 0, time.UTC)
	if err := f.store.MarkNoShow(ctx, b.ID, now); err != nil {
		t.Fatalf("mark no-show: %v", err)
	}

	strikes, err := f.store.StrikeHistory(ctx, f.facilityID, 101)
	if err != nil {
		t.Fatalf("strike history: %v", err)
	}
	if len(strikes) != 1 || strikes[0].Kind != booking.StrikeNoShow {
		t.Fatalf("expected one no_show strike, got %+v", strikes)
	}

	// A no-show booking no longer occupies the slot.
	if _, err := f.store.ConfirmBooking(ctx, testBooking(f, 102, 6, 2)); err != nil {
		t.Fatalf("rebook after no-show: %v", err)
	}
}

func TestRuleConfigs_RoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.store.UpsertRuleConfig(ctx, rules.StoredConfig{
		FacilityID: f.facilityID,
		RuleCode:   rules.CodeMaxActiveReservations,
		Enabled:    true,
		Config:     json.RawMessage(`{"max_active_reservations": 3}`),
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := f.store.AddOverlay(ctx, f.facilityID, rules.Overlay{
		Kind:               rules.OverlayPeak,
		MaxBookingsPerWeek: 2,
		MaxDurationHours:   rules.Unlimited,
		AdvanceBookingDays: rules.Unlimited,
		Windows: []rules.DayWindow{
			{Day: time.Monday, StartMinute: 18 * 60, EndMinute: 21 * 60},
		},
	}); err != nil {
		t.Fatalf("add overlay: %v", err)
	}

	registry := rules.NewRegistry(f.store)
	set, err := registry.ActiveRules(ctx, f.facilityID)
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}
	entry, ok := set.Active(rules.CodeMaxActiveReservations)
	if !ok {
		t.Fatal("expected ACC-001 active")
	}
	cfg, ok := entry.Config.(rules.MaxActiveConfig)
	if !ok {
		t.Fatalf("expected MaxActiveConfig, got %T", entry.Config)
	}
	if cfg.MaxActiveReservations != 3 {
		t.Errorf("MaxActive = %d, want 3", cfg.MaxActiveReservations)
	}
	overlays := set.Overlays()
	if len(overlays) != 1 || overlays[0].Kind != rules.OverlayPeak || len(overlays[0].Windows) != 1 {
		t.Errorf("overlay round-trip mismatch: %+v", overlays)
	}
}

func TestUpsertRuleConfig_RejectsInvalidPayload(t *testing.T) {
	f := newFixture(t)
	err := f.store.UpsertRuleConfig(context.Background(), rules.StoredConfig{
		FacilityID: f.facilityID,
		RuleCode:   rules.CodeMaxActiveReservations,
		Enabled:    true,
		Config:     json.RawMessage(`{"max_active_reservations": -5}`),
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestHouseholdQueries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, userID := range []int64{101, 102} {
		if err := f.store.AddHouseholdMember(ctx, f.facilityID, 7, userID); err != nil {
			t.Fatalf("add member %d: %v", userID, err)
		}
	}

	hh, err := f.store.HouseholdOf(ctx, f.facilityID, 101)
	if err != nil {
		t.Fatalf("household of: %v", err)
	}
	if hh == nil || *hh != 7 {
		t.Fatalf("expected household 7, got %v", hh)
	}
	if hh, err := f.store.HouseholdOf(ctx, f.facilityID, 999); err != nil || hh != nil {
		t.Fatalf("expected no household, got %v, %v", hh, err)
	}

	if _, err := f.store.ConfirmBooking(ctx, testBooking(f, 101, 6, 2)); err != nil {
		t.Fatalf("confirm member 101: %v", err)
	}
	if _, err := f.store.ConfirmBooking(ctx, testBooking(f, 102, 8, 2)); err != nil {
		t.Fatalf("confirm member 102: %v", err)
	}
	if _, err := f.store.ConfirmBooking(ctx, testBooking(f, 999, 10, 2)); err != nil {
		t.Fatalf("confirm outsider: %v", err)
	}

	got, err := f.store.HouseholdBookings(ctx, f.facilityID, 7)
	if err != nil {
		t.Fatalf("household bookings: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 household bookings, got %d", len(got))
	}
}

func TestPruneActionLog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 4, 12, 0, 0, 0, time.UTC)
	for i, ts := range []time.Time{base.Add(-48 * time.Hour), base.Add(-1 * time.Hour)} {
		if err := f.store.RecordAction(ctx, booking.ActionRecord{
			UserID: int64(100 + i), FacilityID: f.facilityID, Timestamp: ts, Action: booking.ActionCreate,
		}); err != nil {
			t.Fatalf("record action: %v", err)
		}
	}

	pruned, err := f.store.PruneActionLog(ctx, base.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("expected 1 pruned row, got %d", pruned)
	}
}

func TestCourt_SplitRelationships(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	childID, err := f.store.CreateCourt(ctx, booking.Court{
		FacilityID:    f.facilityID,
		Name:          "Court 1A",
		Type:          booking.CourtPickleball,
		Status:        booking.CourtAvailable,
		ParentCourtID: &f.courtID,
	})
	if err != nil {
		t.Fatalf("create child: %v", err)
	}

	parent, err := f.store.Court(ctx, f.courtID)
	if err != nil {
		t.Fatalf("load parent: %v", err)
	}
	if parent.IsChild() {
		t.Error("parent should not be a child")
	}
	if len(parent.ChildCourtIDs) != 1 || parent.ChildCourtIDs[0] != childID {
		t.Errorf("parent children = %v, want [%d]", parent.ChildCourtIDs, childID)
	}

	child, err := f.store.Court(ctx, childID)
	if err != nil {
		t.Fatalf("load child: %v", err)
	}
	if !child.IsChild() || *child.ParentCourtID != f.courtID {
		t.Errorf("child parent = %v, want %d", child.ParentCourtID, f.courtID)
	}

	if _, err := f.store.Court(ctx, 9999); !errors.Is(err, store.ErrCourtNotFound) {
		t.Errorf("expected ErrCourtNotFound, got %v", err)
	}
}

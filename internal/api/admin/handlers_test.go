package admin

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/codr1/courtengine/internal/booking"
	"github.com/codr1/courtengine/internal/rules"
	"github.com/codr1/courtengine/internal/store"
)

var (
	testStore    *store.Store
	testRegistry *rules.Registry
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "admin-handlers")
	if err != nil {
		panic(err)
	}
	testStore, err = store.New(filepath.Join(dir, "test.db"))
	if err != nil {
		panic(err)
	}
	testRegistry = rules.NewRegistry(testStore)
	InitHandlers(testStore, testRegistry)

	code := m.Run()
	testStore.Close()
	os.RemoveAll(dir)
	os.Exit(code)
}

func seedFacility(t *testing.T) int64 {
	t.Helper()
	facilityID, err := testStore.CreateFacility(context.Background(), booking.Facility{
		Name:            "Lakeview Tennis Center",
		Timezone:        "UTC",
		DayStartHour:    6,
		DayEndHour:      22,
		SlotMinutes:     30,
		RestrictionType: booking.RestrictAccount,
	})
	if err != nil {
		t.Fatalf("create facility: %v", err)
	}
	return facilityID
}

func TestHandleUpsertRuleConfig(t *testing.T) {
	facilityID := seedFacility(t)

	// Warm the cache so the handler's invalidation is observable.
	set, err := testRegistry.ActiveRules(context.Background(), facilityID)
	if err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	if len(set.ActiveRules()) != 0 {
		t.Fatalf("expected no rules before upsert")
	}

	body := fmt.Sprintf(
		`{"facility_id": %d, "rule_code": "ACC-001", "enabled": true, "config": {"max_active_reservations": 4}}`,
		facilityID)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/rules", strings.NewReader(body))
	rec := httptest.NewRecorder()
	HandleUpsertRuleConfig(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	set, err = testRegistry.ActiveRules(context.Background(), facilityID)
	if err != nil {
		t.Fatalf("reload rules: %v", err)
	}
	entry, ok := set.Active(rules.CodeMaxActiveReservations)
	if !ok {
		t.Fatal("expected ACC-001 active after upsert")
	}
	if cfg := entry.Config.(rules.MaxActiveConfig); cfg.MaxActiveReservations != 4 {
		t.Errorf("MaxActive = %d, want 4", cfg.MaxActiveReservations)
	}
}

func TestHandleUpsertRuleConfig_RejectsInvalid(t *testing.T) {
	facilityID := seedFacility(t)

	for name, body := range map[string]string{
		"bad config":   fmt.Sprintf(`{"facility_id": %d, "rule_code": "ACC-001", "enabled": true, "config": {"max_active_reservations": -3}}`, facilityID),
		"unknown code": fmt.Sprintf(`{"facility_id": %d, "rule_code": "ACC-999", "enabled": true, "config": {}}`, facilityID),
		"no facility":  `{"rule_code": "ACC-001", "enabled": true, "config": {}}`,
	} {
		req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/rules", strings.NewReader(body))
		rec := httptest.NewRecorder()
		HandleUpsertRuleConfig(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", name, rec.Code)
		}
	}
}

func TestHandleAddOverlay(t *testing.T) {
	facilityID := seedFacility(t)

	body := fmt.Sprintf(`{"facility_id": %d, "overlay": {
		"kind": "peak",
		"max_bookings_per_week": 2,
		"max_duration_hours": -1,
		"advance_booking_days": -1,
		"windows": [{"day": 1, "start_minute": 1080, "end_minute": 1260}]
	}}`, facilityID)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/overlays", strings.NewReader(body))
	rec := httptest.NewRecorder()
	HandleAddOverlay(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	set, err := testRegistry.ActiveRules(context.Background(), facilityID)
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}
	overlays := set.Overlays()
	if len(overlays) != 1 || overlays[0].Kind != rules.OverlayPeak {
		t.Errorf("expected one peak overlay, got %+v", overlays)
	}
}

func TestHandleAddOverlay_RejectsInvalid(t *testing.T) {
	facilityID := seedFacility(t)

	// Peak overlay without windows is invalid.
	body := fmt.Sprintf(`{"facility_id": %d, "overlay": {"kind": "peak", "max_bookings_per_week": -1, "max_duration_hours": -1, "advance_booking_days": -1}}`, facilityID)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/overlays", strings.NewReader(body))
	rec := httptest.NewRecorder()
	HandleAddOverlay(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleSetCourtStatus(t *testing.T) {
	facilityID := seedFacility(t)
	courtID, err := testStore.CreateCourt(context.Background(), booking.Court{
		FacilityID: facilityID,
		Name:       "Court 1",
		Type:       booking.CourtDual,
		Status:     booking.CourtAvailable,
	})
	if err != nil {
		t.Fatalf("create court: %v", err)
	}

	req := httptest.NewRequest(http.MethodPatch,
		fmt.Sprintf("/api/v1/admin/courts/%d/status", courtID),
		strings.NewReader(`{"status": "maintenance"}`))
	req.SetPathValue("id", fmt.Sprint(courtID))
	rec := httptest.NewRecorder()
	HandleSetCourtStatus(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	court, err := testStore.Court(context.Background(), courtID)
	if err != nil {
		t.Fatalf("load court: %v", err)
	}
	if court.Status != booking.CourtMaintenance {
		t.Errorf("court status = %s, want maintenance", court.Status)
	}

	// Unknown status rejected.
	req = httptest.NewRequest(http.MethodPatch, "/x", strings.NewReader(`{"status": "flooded"}`))
	req.SetPathValue("id", fmt.Sprint(courtID))
	rec = httptest.NewRecorder()
	HandleSetCourtStatus(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	// Unknown court 404s.
	req = httptest.NewRequest(http.MethodPatch, "/x", strings.NewReader(`{"status": "closed"}`))
	req.SetPathValue("id", "99999")
	rec = httptest.NewRecorder()
	HandleSetCourtStatus(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

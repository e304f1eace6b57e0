package rules

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestParseConfig_Typed(t *testing.T) {
	cfg, err := ParseConfig(CodeDurationGrid,
		json.RawMessage(`{"slot_minutes":30,"min_duration_minutes":30,"max_duration_minutes":120}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	grid, ok := cfg.(DurationGridConfig)
	if !ok {
		t.Fatalf("expected DurationGridConfig, got %T", cfg)
	}
	if grid.SlotMinutes != 30 || grid.MinDurationMinutes != 30 || grid.MaxDurationMinutes != 120 {
		t.Errorf("unexpected config %+v", grid)
	}
}

func TestParseConfig_UnknownKeysIgnored(t *testing.T) {
	cfg, err := ParseConfig(CodeAdvanceWindow,
		json.RawMessage(`{"max_days_ahead":14,"future_field":"whatever"}`))
	if err != nil {
		t.Fatalf("unknown keys must be ignored, got %v", err)
	}
	if cfg.(AdvanceWindowConfig).MaxDaysAhead != 14 {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestParseConfig_ValidatesAtLoad(t *testing.T) {
	if _, err := ParseConfig(CodeStrikeLockout,
		json.RawMessage(`{"strike_threshold":0,"strike_window_days":30,"lockout_days":7}`)); err == nil {
		t.Error("zero strike_threshold must fail validation")
	}
	if _, err := ParseConfig(CodeMaxPerWeek, json.RawMessage(`{"max_per_week":-2}`)); err == nil {
		t.Error("negative non-sentinel cap must fail validation")
	}
	if _, err := ParseConfig(CodeMaxPerWeek, json.RawMessage(`{"max_per_week":-1}`)); err != nil {
		t.Errorf("-1 is the unlimited sentinel, got %v", err)
	}
}

func TestParseConfig_UnknownCode(t *testing.T) {
	if _, err := ParseConfig(Code("ZZZ-999"), nil); err == nil {
		t.Error("unknown rule code must fail")
	}
}

func TestTierGate_Allows(t *testing.T) {
	gate := TierGateConfig{AllowedTiers: []string{"gold", "platinum"}, AdminOverride: true}

	if !gate.Allows("gold", false) {
		t.Error("gold tier should pass")
	}
	if gate.Allows("bronze", false) {
		t.Error("bronze tier should be gated")
	}
	if !gate.Allows("bronze", true) {
		t.Error("admin override should pass any tier")
	}

	gate.AdminOverride = false
	if gate.Allows("bronze", true) {
		t.Error("admin without override should still be gated")
	}
}

func TestOverlay_AppliesTo(t *testing.T) {
	peak := Overlay{
		Kind:               OverlayPeak,
		ApplyToAdmins:      false,
		MaxBookingsPerWeek: 2,
		MaxDurationHours:   1,
		AdvanceBookingDays: 3,
		Windows: []DayWindow{
			{Day: time.Monday, StartMinute: 17 * 60, EndMinute: 21 * 60},
		},
	}
	monday := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	saturday := time.Date(2025, 6, 7, 0, 0, 0, 0, time.UTC)

	if !peak.AppliesTo(monday, 18*60, 19*60, false) {
		t.Error("18:00 Monday request should hit the peak window")
	}
	if peak.AppliesTo(monday, 10*60, 11*60, false) {
		t.Error("morning request should not hit an evening peak window")
	}
	// Range ending exactly at window start does not intersect.
	if peak.AppliesTo(monday, 16*60, 17*60, false) {
		t.Error("half-open window boundary must not match")
	}
	if peak.AppliesTo(monday, 18*60, 19*60, true) {
		t.Error("overlay with apply_to_admins=false must skip admins")
	}

	weekend := Overlay{Kind: OverlayWeekend, ApplyToAdmins: true, MaxBookingsPerWeek: 1, MaxDurationHours: 2, AdvanceBookingDays: 2}
	if !weekend.AppliesTo(saturday, 10*60, 11*60, true) {
		t.Error("weekend overlay should apply on Saturday")
	}
	if weekend.AppliesTo(monday, 10*60, 11*60, false) {
		t.Error("weekend overlay should not apply on Monday")
	}
}

type fakeSource struct {
	configs  []StoredConfig
	overlays []Overlay
	loads    int
}

func (s *fakeSource) RuleConfigs(_ context.Context, _ int64) ([]StoredConfig, error) {
	s.loads++
	return s.configs, nil
}

func (s *fakeSource) Overlays(_ context.Context, _ int64) ([]Overlay, error) {
	return s.overlays, nil
}

func TestRegistry_CachesAndInvalidates(t *testing.T) {
	source := &fakeSource{
		configs: []StoredConfig{
			{FacilityID: 1, RuleCode: CodeMaxPerWeek, Enabled: true, Config: json.RawMessage(`{"max_per_week":3}`)},
			{FacilityID: 1, RuleCode: CodeMinNotice, Enabled: false, Config: json.RawMessage(`{"min_minutes_before_start":30}`)},
		},
	}
	registry := NewRegistry(source)
	ctx := context.Background()

	set, err := registry.ActiveRules(ctx, 1)
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}
	if _, ok := set.Active(CodeMaxPerWeek); !ok {
		t.Error("enabled rule should be active")
	}
	if _, ok := set.Active(CodeMinNotice); ok {
		t.Error("disabled rule should not be active")
	}

	if _, err := registry.ActiveRules(ctx, 1); err != nil {
		t.Fatalf("second load: %v", err)
	}
	if source.loads != 1 {
		t.Errorf("expected cached second read, source loaded %d times", source.loads)
	}

	registry.Invalidate(1)
	if _, err := registry.ActiveRules(ctx, 1); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if source.loads != 2 {
		t.Errorf("expected reload after invalidation, source loaded %d times", source.loads)
	}
}

func TestSet_UnknownCodesSkipped(t *testing.T) {
	set, err := NewSet([]StoredConfig{
		{FacilityID: 1, RuleCode: Code("XYZ-001"), Enabled: true, Config: json.RawMessage(`{}`)},
		{FacilityID: 1, RuleCode: CodeMaxPerWeek, Enabled: true, Config: json.RawMessage(`{"max_per_week":3}`)},
	}, nil)
	if err != nil {
		t.Fatalf("unknown codes must be skipped, not fatal: %v", err)
	}
	if len(set.ActiveRules()) != 1 {
		t.Errorf("expected 1 active rule, got %d", len(set.ActiveRules()))
	}
}

func TestSet_ActiveByCategory(t *testing.T) {
	set, err := NewSet([]StoredConfig{
		{FacilityID: 1, RuleCode: CodeMaxPerWeek, Enabled: true, Config: json.RawMessage(`{"max_per_week":3}`)},
		{FacilityID: 1, RuleCode: CodeStrikeLockout, Enabled: true,
			Config: json.RawMessage(`{"strike_threshold":3,"strike_window_days":30,"lockout_days":7}`)},
	}, nil)
	if err != nil {
		t.Fatalf("new set: %v", err)
	}

	account := set.ActiveByCategory(CategoryAccount)
	if len(account) != 1 || account[0].Code != CodeMaxPerWeek {
		t.Errorf("unexpected account rules %+v", account)
	}
	cancellation := set.ActiveByCategory(CategoryCancellation)
	if len(cancellation) != 1 || cancellation[0].Code != CodeStrikeLockout {
		t.Errorf("unexpected cancellation rules %+v", cancellation)
	}
}

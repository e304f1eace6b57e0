package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/codr1/courtengine/internal/rules"
)

// RuleConfigs returns the facility's persisted rule rows. Payloads stay
// opaque JSON here; the registry types and validates them on load.
func (s *Store) RuleConfigs(ctx context.Context, facilityID int64) ([]rules.StoredConfig, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT facility_id, rule_code, enabled, config FROM rule_configs WHERE facility_id = ? ORDER BY rule_code",
		facilityID,
	)
	if err != nil {
		return nil, fmt.Errorf("list rule configs: %w", err)
	}
	defer rows.Close()

	var out []rules.StoredConfig
	for rows.Next() {
		var (
			sc     rules.StoredConfig
			code   string
			config string
		)
		if err := rows.Scan(&sc.FacilityID, &code, &sc.Enabled, &config); err != nil {
			return nil, err
		}
		sc.RuleCode = rules.Code(code)
		sc.Config = json.RawMessage(config)
		out = append(out, sc)
	}
	return out, rows.Err()
}

// Overlays returns the facility's overlay rule sets with their day windows
// decoded.
func (s *Store) Overlays(ctx context.Context, facilityID int64) ([]rules.Overlay, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, apply_to_admins, max_bookings_per_week, max_duration_hours, advance_booking_days, windows
		 FROM rule_overlays WHERE facility_id = ? ORDER BY id`,
		facilityID,
	)
	if err != nil {
		return nil, fmt.Errorf("list overlays: %w", err)
	}
	defer rows.Close()

	var out []rules.Overlay
	for rows.Next() {
		var (
			o       rules.Overlay
			kind    string
			windows string
		)
		if err := rows.Scan(&kind, &o.ApplyToAdmins, &o.MaxBookingsPerWeek,
			&o.MaxDurationHours, &o.AdvanceBookingDays, &windows); err != nil {
			return nil, err
		}
		o.Kind = rules.OverlayKind(kind)
		if err := json.Unmarshal([]byte(windows), &o.Windows); err != nil {
			return nil, fmt.Errorf("decode overlay windows: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// UpsertRuleConfig writes one rule row. The payload is validated through the
// catalog before it is persisted so a bad admin write never poisons the
// registry's next load.
func (s *Store) UpsertRuleConfig(ctx context.Context, sc rules.StoredConfig) error {
	if _, err := rules.ParseConfig(sc.RuleCode, sc.Config); err != nil {
		return fmt.Errorf("rule %s: %w", sc.RuleCode, err)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rule_configs (facility_id, rule_code, enabled, config)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (facility_id, rule_code) DO UPDATE SET enabled = excluded.enabled, config = excluded.config`,
		sc.FacilityID, string(sc.RuleCode), sc.Enabled, string(sc.Config),
	)
	if err != nil {
		return fmt.Errorf("upsert rule config %s: %w", sc.RuleCode, err)
	}
	return nil
}

// AddOverlay appends one overlay rule set for the facility.
func (s *Store) AddOverlay(ctx context.Context, facilityID int64, o rules.Overlay) error {
	if err := o.Validate(); err != nil {
		return err
	}
	windows, err := json.Marshal(o.Windows)
	if err != nil {
		return fmt.Errorf("encode overlay windows: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO rule_overlays (facility_id, kind, apply_to_admins, max_bookings_per_week, max_duration_hours, advance_booking_days, windows)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		facilityID, string(o.Kind), o.ApplyToAdmins, o.MaxBookingsPerWeek,
		o.MaxDurationHours, o.AdvanceBookingDays, string(windows),
	)
	if err != nil {
		return fmt.Errorf("insert overlay: %w", err)
	}
	return nil
}

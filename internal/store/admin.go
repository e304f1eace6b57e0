package store

import (
	"context"
	"fmt"

	"github.com/codr1/courtengine/internal/booking"
)

// CreateFacility inserts a facility and returns its ID.
func (s *Store) CreateFacility(ctx context.Context, f booking.Facility) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO facilities (name, timezone, day_start_hour, day_end_hour, slot_minutes, restriction_type)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		f.Name, f.Timezone, f.DayStartHour, f.DayEndHour, f.SlotMinutes, string(f.RestrictionType),
	)
	if err != nil {
		return 0, fmt.Errorf("insert facility: %w", err)
	}
	return res.LastInsertId()
}

// CreateCourt inserts a court and returns its ID. Splitting a court is
// modeled as creating children pointing at the parent.
func (s *Store) CreateCourt(ctx context.Context, c booking.Court) (int64, error) {
	var parent any
	if c.ParentCourtID != nil {
		parent = *c.ParentCourtID
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO courts (facility_id, name, type, status, parent_court_id) VALUES (?, ?, ?, ?, ?)",
		c.FacilityID, c.Name, string(c.Type), string(c.Status), parent,
	)
	if err != nil {
		return 0, fmt.Errorf("insert court: %w", err)
	}
	return res.LastInsertId()
}

// SetCourtStatus updates a court's availability status.
func (s *Store) SetCourtStatus(ctx context.Context, courtID int64, status booking.CourtStatus) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE courts SET status = ? WHERE id = ?", string(status), courtID)
	if err != nil {
		return fmt.Errorf("update court status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrCourtNotFound, courtID)
	}
	return nil
}

// AddHouseholdMember registers an account under a household at a facility.
// An account belongs to at most one household per facility.
func (s *Store) AddHouseholdMember(ctx context.Context, facilityID, householdID, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO household_members (facility_id, household_id, user_id) VALUES (?, ?, ?)
		 ON CONFLICT (facility_id, user_id) DO UPDATE SET household_id = excluded.household_id`,
		facilityID, householdID, userID,
	)
	if err != nil {
		return fmt.Errorf("add household member: %w", err)
	}
	return nil
}

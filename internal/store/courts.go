package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/codr1/courtengine/internal/booking"
)

var (
	ErrCourtNotFound    = errors.New("court not found")
	ErrFacilityNotFound = errors.New("facility not found")
)

// Court loads a court with its split relationships resolved: ParentCourtID
// when it is a sub-court, ChildCourtIDs when it has been split.
func (s *Store) Court(ctx context.Context, courtID int64) (booking.Court, error) {
	var (
		c      booking.Court
		ctype  string
		status string
		parent sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, facility_id, name, type, status, parent_court_id FROM courts WHERE id = ?",
		courtID,
	).Scan(&c.ID, &c.FacilityID, &c.Name, &ctype, &status, &parent)
	if errors.Is(err, sql.ErrNoRows) {
		return booking.Court{}, fmt.Errorf("%w: %d", ErrCourtNotFound, courtID)
	}
	if err != nil {
		return booking.Court{}, fmt.Errorf("load court %d: %w", courtID, err)
	}
	c.Type = booking.CourtType(ctype)
	c.Status = booking.CourtStatus(status)
	if parent.Valid {
		p := parent.Int64
		c.ParentCourtID = &p
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM courts WHERE parent_court_id = ? ORDER BY id", courtID)
	if err != nil {
		return booking.Court{}, fmt.Errorf("load child courts of %d: %w", courtID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var childID int64
		if err := rows.Scan(&childID); err != nil {
			return booking.Court{}, err
		}
		c.ChildCourtIDs = append(c.ChildCourtIDs, childID)
	}
	return c, rows.Err()
}

// FacilityCourts lists the facility's courts for schedule rendering.
func (s *Store) FacilityCourts(ctx context.Context, facilityID int64) ([]booking.Court, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM courts WHERE facility_id = ? ORDER BY id", facilityID)
	if err != nil {
		return nil, fmt.Errorf("list courts: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	courts := make([]booking.Court, 0, len(ids))
	for _, id := range ids {
		c, err := s.Court(ctx, id)
		if err != nil {
			return nil, err
		}
		courts = append(courts, c)
	}
	return courts, nil
}

// Facility loads the engine-relevant facility configuration.
func (s *Store) Facility(ctx context.Context, facilityID int64) (booking.Facility, error) {
	var (
		f           booking.Facility
		restriction string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, timezone, day_start_hour, day_end_hour, slot_minutes, restriction_type
		 FROM facilities WHERE id = ?`,
		facilityID,
	).Scan(&f.ID, &f.Name, &f.Timezone, &f.DayStartHour, &f.DayEndHour, &f.SlotMinutes, &restriction)
	if errors.Is(err, sql.ErrNoRows) {
		return booking.Facility{}, fmt.Errorf("%w: %d", ErrFacilityNotFound, facilityID)
	}
	if err != nil {
		return booking.Facility{}, fmt.Errorf("load facility %d: %w", facilityID, err)
	}
	f.RestrictionType = booking.RestrictionType(restriction)
	return f, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/codr1/courtengine/internal/booking"
)

var (
	// ErrSlotTaken is the race-loss outcome at the confirmation boundary.
	// It is retryable: the caller re-runs availability and evaluation
	// against fresh data. It is never a rule violation.
	ErrSlotTaken = errors.New("slot taken at confirmation")

	ErrBookingNotFound = errors.New("booking not found")
)

const bookingColumns = "id, court_id, facility_id, user_id, date, start_slot, slot_count, status, prime, created_at, canceled_at"

// BookingByID loads a single booking in any status.
func (s *Store) BookingByID(ctx context.Context, bookingID string) (booking.Booking, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE id = ?", bookingID)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return booking.Booking{}, fmt.Errorf("%w: %s", ErrBookingNotFound, bookingID)
	}
	return b, err
}

// ConfirmedBookings returns every confirmed booking at the facility on date,
// across all courts.
func (s *Store) ConfirmedBookings(ctx context.Context, facilityID int64, date time.Time) ([]booking.Booking, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE facility_id = ? AND date = ? AND status = 'confirmed'",
		facilityID, formatDate(date),
	)
	if err != nil {
		return nil, fmt.Errorf("list confirmed bookings: %w", err)
	}
	defer rows.Close()
	return scanBookings(rows)
}

// AccountBookings returns the account's bookings at the facility in every
// status, canceled rows included.
func (s *Store) AccountBookings(ctx context.Context, facilityID, userID int64) ([]booking.Booking, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE facility_id = ? AND user_id = ? ORDER BY date, start_slot",
		facilityID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list account bookings: %w", err)
	}
	defer rows.Close()
	return scanBookings(rows)
}

// HouseholdBookings returns bookings by every member of the household at the
// facility.
func (s *Store) HouseholdBookings(ctx context.Context, facilityID, householdID int64) ([]booking.Booking, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE facility_id = ?
		   AND user_id IN (SELECT user_id FROM household_members WHERE facility_id = ? AND household_id = ?)
		 ORDER BY date, start_slot`,
		facilityID, facilityID, householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list household bookings: %w", err)
	}
	defer rows.Close()
	return scanBookings(rows)
}

// HouseholdOf resolves the account's household at the facility, if any.
func (s *Store) HouseholdOf(ctx context.Context, facilityID, userID int64) (*int64, error) {
	var householdID int64
	err := s.db.QueryRowContext(ctx,
		"SELECT household_id FROM household_members WHERE facility_id = ? AND user_id = ?",
		facilityID, userID,
	).Scan(&householdID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve household: %w", err)
	}
	return &householdID, nil
}

// ConfirmBooking atomically re-verifies slot availability and inserts the
// confirmed booking. The overlap check runs inside the write transaction
// against the target court and its split relatives, so the engine's earlier
// advisory check cannot be stale by the time the row lands. The create
// action is logged in the same transaction.
func (s *Store) ConfirmBooking(ctx context.Context, b booking.Booking) (booking.Booking, error) {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	b.Status = booking.StatusConfirmed
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}

	err := s.RunInTx(ctx, func(tx *sql.Tx) error {
		relatives, err := relativeCourtIDs(ctx, tx, b.CourtID)
		if err != nil {
			return err
		}

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(relatives)), ",")
		args := []any{b.FacilityID, formatDate(b.Date)}
		for _, id := range relatives {
			args = append(args, id)
		}
		args = append(args, b.StartSlotIndex+b.SlotCount, b.StartSlotIndex)

		var blockingID string
		err = tx.QueryRowContext(ctx,
			`SELECT id FROM bookings
			 WHERE facility_id = ? AND date = ? AND status = 'confirmed'
			   AND court_id IN (`+placeholders+`)
			   AND start_slot < ? AND ? < start_slot + slot_count
			 ORDER BY start_slot, id LIMIT 1`,
			args...,
		).Scan(&blockingID)
		if err == nil {
			return fmt.Errorf("%w: blocked by booking %s", ErrSlotTaken, blockingID)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("verify slot availability: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO bookings (id, court_id, facility_id, user_id, date, start_slot, slot_count, status, prime, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			b.ID, b.CourtID, b.FacilityID, b.UserID, formatDate(b.Date),
			b.StartSlotIndex, b.SlotCount, string(b.Status), b.Prime, b.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO action_log (user_id, facility_id, ts, action) VALUES (?, ?, ?, ?)",
			b.UserID, b.FacilityID, b.CreatedAt, string(booking.ActionCreate),
		); err != nil {
			return fmt.Errorf("log create action: %w", err)
		}
		return nil
	})
	if err != nil {
		return booking.Booking{}, err
	}

	log.Ctx(ctx).Info().
		Str("component", "booking_store").
		Str("booking_id", b.ID).
		Int64("court_id", b.CourtID).
		Int64("user_id", b.UserID).
		Msg("Booking confirmed")
	return b, nil
}

// CancelBooking marks the booking canceled at now, logs the cancel action,
// and, when the cancellation falls inside lateCutoff of the slot start,
// appends a late-cancel strike in the same transaction. slotStart is the
// booking's absolute facility-local start time, resolved by the caller.
func (s *Store) CancelBooking(ctx context.Context, bookingID string, slotStart, now time.Time, lateCutoff time.Duration) (booking.Booking, error) {
	var canceled booking.Booking
	err := s.RunInTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			"SELECT "+bookingColumns+" FROM bookings WHERE id = ?", bookingID)
		b, err := scanBooking(row)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: %s", ErrBookingNotFound, bookingID)
			}
			return err
		}
		if b.Status != booking.StatusConfirmed && b.Status != booking.StatusPending {
			return fmt.Errorf("%w: %s is %s", ErrBookingNotFound, bookingID, b.Status)
		}

		if _, err := tx.ExecContext(ctx,
			"UPDATE bookings SET status = 'canceled', canceled_at = ? WHERE id = ?",
			now, bookingID,
		); err != nil {
			return fmt.Errorf("cancel booking: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO action_log (user_id, facility_id, ts, action) VALUES (?, ?, ?, ?)",
			b.UserID, b.FacilityID, now, string(booking.ActionCancel),
		); err != nil {
			return fmt.Errorf("log cancel action: %w", err)
		}

		if lateCutoff > 0 && slotStart.Sub(now) < lateCutoff {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO strikes (user_id, facility_id, ts, kind) VALUES (?, ?, ?, ?)",
				b.UserID, b.FacilityID, now, string(booking.StrikeLateCancel),
			); err != nil {
				return fmt.Errorf("record late-cancel strike: %w", err)
			}
			log.Ctx(ctx).Info().
				Str("component", "booking_store").
				Str("booking_id", bookingID).
				Int64("user_id", b.UserID).
				Msg("Late cancellation strike recorded")
		}

		b.Status = booking.StatusCanceled
		b.CanceledAt = &now
		canceled = b
		return nil
	})
	if err != nil {
		return booking.Booking{}, err
	}
	return canceled, nil
}

// MarkNoShow flags a confirmed booking as a no-show and records the strike.
func (s *Store) MarkNoShow(ctx context.Context, bookingID string, now time.Time) error {
	return s.RunInTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			"SELECT "+bookingColumns+" FROM bookings WHERE id = ? AND status = 'confirmed'", bookingID)
		b, err := scanBooking(row)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: %s", ErrBookingNotFound, bookingID)
			}
			return err
		}

		if _, err := tx.ExecContext(ctx,
			"UPDATE bookings SET status = 'no_show' WHERE id = ?", bookingID,
		); err != nil {
			return fmt.Errorf("mark no-show: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO strikes (user_id, facility_id, ts, kind) VALUES (?, ?, ?, ?)",
			b.UserID, b.FacilityID, now, string(booking.StrikeNoShow),
		); err != nil {
			return fmt.Errorf("record no-show strike: %w", err)
		}
		return nil
	})
}

// relativeCourtIDs returns the court plus its parent and children, the set
// whose confirmed bookings can physically conflict with it.
func relativeCourtIDs(ctx context.Context, tx *sql.Tx, courtID int64) ([]int64, error) {
	ids := []int64{courtID}

	var parent sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		"SELECT parent_court_id FROM courts WHERE id = ?", courtID,
	).Scan(&parent); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("unknown court %d", courtID)
		}
		return nil, fmt.Errorf("load court %d: %w", courtID, err)
	}
	if parent.Valid {
		ids = append(ids, parent.Int64)
	}

	rows, err := tx.QueryContext(ctx,
		"SELECT id FROM courts WHERE parent_court_id = ?", courtID)
	if err != nil {
		return nil, fmt.Errorf("load child courts of %d: %w", courtID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var childID int64
		if err := rows.Scan(&childID); err != nil {
			return nil, err
		}
		ids = append(ids, childID)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (booking.Booking, error) {
	var (
		b        booking.Booking
		date     string
		status   string
		canceled sql.NullTime
	)
	err := row.Scan(&b.ID, &b.CourtID, &b.FacilityID, &b.UserID, &date,
		&b.StartSlotIndex, &b.SlotCount, &status, &b.Prime, &b.CreatedAt, &canceled)
	if err != nil {
		return booking.Booking{}, err
	}
	b.Status = booking.Status(status)
	if b.Date, err = parseDate(date); err != nil {
		return booking.Booking{}, err
	}
	if canceled.Valid {
		t := canceled.Time
		b.CanceledAt = &t
	}
	return b, nil
}

func scanBookings(rows *sql.Rows) ([]booking.Booking, error) {
	var out []booking.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

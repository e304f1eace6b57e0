package store

import (
	"context"
	"fmt"
	"time"

	"github.com/codr1/courtengine/internal/booking"
)

// StrikeHistory returns the account's strikes at the facility, oldest first.
// Rows are append-only; lockout state is always derived from them.
func (s *Store) StrikeHistory(ctx context.Context, facilityID, userID int64) ([]booking.StrikeRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id, facility_id, ts, kind FROM strikes WHERE facility_id = ? AND user_id = ? ORDER BY ts",
		facilityID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list strikes: %w", err)
	}
	defer rows.Close()

	var out []booking.StrikeRecord
	for rows.Next() {
		var r booking.StrikeRecord
		var kind string
		if err := rows.Scan(&r.UserID, &r.FacilityID, &r.Timestamp, &kind); err != nil {
			return nil, err
		}
		r.Kind = booking.StrikeKind(kind)
		out = append(out, r)
	}
	return out, rows.Err()
}

// AddStrike appends one strike row.
func (s *Store) AddStrike(ctx context.Context, r booking.StrikeRecord) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO strikes (user_id, facility_id, ts, kind) VALUES (?, ?, ?, ?)",
		r.UserID, r.FacilityID, r.Timestamp, string(r.Kind),
	)
	if err != nil {
		return fmt.Errorf("insert strike: %w", err)
	}
	return nil
}

// ActionHistory returns the account's create/cancel actions at the facility,
// oldest first. The rate limiter only needs a trailing window, but callers
// pass since to keep result sets bounded.
func (s *Store) ActionHistory(ctx context.Context, facilityID, userID int64, since time.Time) ([]booking.ActionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id, facility_id, ts, action FROM action_log WHERE facility_id = ? AND user_id = ? AND ts > ? ORDER BY ts",
		facilityID, userID, since,
	)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	var out []booking.ActionRecord
	for rows.Next() {
		var r booking.ActionRecord
		var action string
		if err := rows.Scan(&r.UserID, &r.FacilityID, &r.Timestamp, &action); err != nil {
			return nil, err
		}
		r.Action = booking.ActionType(action)
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecordAction appends one create/cancel action row.
func (s *Store) RecordAction(ctx context.Context, r booking.ActionRecord) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO action_log (user_id, facility_id, ts, action) VALUES (?, ?, ?, ?)",
		r.UserID, r.FacilityID, r.Timestamp, string(r.Action),
	)
	if err != nil {
		return fmt.Errorf("insert action: %w", err)
	}
	return nil
}

// HistoryView adapts the store's history queries to the engine's account-first
// signatures, bounding action reads to a trailing lookback window.
type HistoryView struct {
	store    *Store
	lookback time.Duration
}

// History returns a HistoryView reading actions no older than lookback.
// The lookback must cover the largest configured rate-limit window.
func (s *Store) History(lookback time.Duration) HistoryView {
	return HistoryView{store: s, lookback: lookback}
}

func (h HistoryView) StrikeHistory(ctx context.Context, userID, facilityID int64) ([]booking.StrikeRecord, error) {
	return h.store.StrikeHistory(ctx, facilityID, userID)
}

func (h HistoryView) ActionHistory(ctx context.Context, userID, facilityID int64) ([]booking.ActionRecord, error) {
	return h.store.ActionHistory(ctx, facilityID, userID, time.Now().Add(-h.lookback))
}

// PruneActionLog drops action rows older than cutoff. Run from the
// scheduler; the sliding window never looks back further than the largest
// configured rate-limit window.
func (s *Store) PruneActionLog(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM action_log WHERE ts <= ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune action log: %w", err)
	}
	return res.RowsAffected()
}

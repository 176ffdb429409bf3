package repository

import (
	"context"
	"time"

	"github.com/eventbooking/server/internal/model"
)

// ActiveHoldsByCategory returns all holds of a category whose expiry lies
// after the supplied instant.  Expired rows that the sweep has not removed
// yet are filtered out here, so a lingering row can never shadow a seat
// past its expiry.
func (s *Store) ActiveHoldsByCategory(ctx context.Context, categoryID uint64, now time.Time) ([]model.SeatHold, error) {
	const q = `SELECT id, event_category_id, user_id, seat_identifiers, expires_at, reference_id, created_at
               FROM seat_holds
               WHERE event_category_id = ? AND expires_at > ?`
	rows, err := exec(ctx, s.db).QueryContext(ctx, q, categoryID, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.SeatHold
	for rows.Next() {
		var h model.SeatHold
		var ref *string
		if err := rows.Scan(&h.ID, &h.EventCategoryID, &h.UserID, &h.SeatIdentifiers,
			&h.ExpiresAt, &ref, &h.CreatedAt); err != nil {
			return nil, err
		}
		h.ReferenceID = ref
		h.ExpiresAt = h.ExpiresAt.UTC()
		out = append(out, h)
	}
	return out, rows.Err()
}

// ReplaceHold installs a hold for (user, category), deleting any previous
// hold of the pair first.  Re-holding replaces, never merges; the unique
// key on (user_id, event_category_id) backs this up.  The generated ID is
// populated on the record.
func (s *Store) ReplaceHold(ctx context.Context, h *model.SeatHold) error {
	db := exec(ctx, s.db)
	const del = `DELETE FROM seat_holds WHERE user_id = ? AND event_category_id = ?`
	if _, err := db.ExecContext(ctx, del, h.UserID, h.EventCategoryID); err != nil {
		return err
	}
	const ins = `INSERT INTO seat_holds (event_category_id, user_id, seat_identifiers, expires_at, reference_id)
                 VALUES (?, ?, ?, ?, ?)`
	var ref interface{}
	if h.ReferenceID != nil {
		ref = *h.ReferenceID
	}
	res, err := db.ExecContext(ctx, ins, h.EventCategoryID, h.UserID, h.SeatIdentifiers, h.ExpiresAt.UTC(), ref)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	h.ID = uint64(id)
	return nil
}

// DeleteHoldByUserAndCategory removes the user's hold on the category, if
// any.  A booking commit calls this last: the confirmed booking supersedes
// its own hold.
func (s *Store) DeleteHoldByUserAndCategory(ctx context.Context, userID, categoryID uint64) error {
	const q = `DELETE FROM seat_holds WHERE user_id = ? AND event_category_id = ?`
	_, err := exec(ctx, s.db).ExecContext(ctx, q, userID, categoryID)
	return err
}

// DeleteExpiredHolds sweeps all holds whose expiry has passed and returns
// the number removed.  The sweep is best-effort housekeeping; correctness
// never depends on it because every reader filters on expires_at.
func (s *Store) DeleteExpiredHolds(ctx context.Context, now time.Time) (int64, error) {
	const q = `DELETE FROM seat_holds WHERE expires_at <= ?`
	res, err := exec(ctx, s.db).ExecContext(ctx, q, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

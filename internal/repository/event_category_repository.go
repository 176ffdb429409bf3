package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/eventbooking/server/internal/model"
)

const categoryColumns = `c.id, c.event_id, c.category_name, c.total_seats, c.available_seats, c.price_cents,
       e.id, e.name, e.event_type, e.event_date, e.booking_open_date`

func scanCategory(row *sql.Row) (model.EventCategory, model.Event, error) {
	var cat model.EventCategory
	var ev model.Event
	var openDate sql.NullTime
	err := row.Scan(
		&cat.ID, &cat.EventID, &cat.CategoryName, &cat.TotalSeats, &cat.AvailableSeats, &cat.PriceCents,
		&ev.ID, &ev.Name, &ev.EventType, &ev.EventDate, &openDate,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.EventCategory{}, model.Event{}, ErrCategoryNotFound
		}
		return model.EventCategory{}, model.Event{}, err
	}
	if openDate.Valid {
		t := openDate.Time.UTC()
		ev.BookingOpenDate = &t
	}
	ev.EventDate = ev.EventDate.UTC()
	return cat, ev, nil
}

// GetCategory loads a category together with its event's timing fields.
// This read is not serialized against concurrent commits; use
// GetCategoryForUpdate inside a transaction when the result decides a
// write.
func (s *Store) GetCategory(ctx context.Context, categoryID uint64) (model.EventCategory, model.Event, error) {
	const q = `SELECT ` + categoryColumns + `
               FROM event_categories c
               JOIN events e ON e.id = c.event_id
               WHERE c.id = ?`
	return scanCategory(exec(ctx, s.db).QueryRowContext(ctx, q, categoryID))
}

// GetCategoryForUpdate loads a category under an exclusive row lock.  This
// lock is the sole serialization point of the booking commit: all
// concurrent commits against the same category queue here, while other
// categories proceed in parallel.  Must be called inside WithTx.
func (s *Store) GetCategoryForUpdate(ctx context.Context, categoryID uint64) (model.EventCategory, model.Event, error) {
	const q = `SELECT ` + categoryColumns + `
               FROM event_categories c
               JOIN events e ON e.id = c.event_id
               WHERE c.id = ?
               FOR UPDATE OF c`
	return scanCategory(exec(ctx, s.db).QueryRowContext(ctx, q, categoryID))
}

// SetAvailableSeats persists a new available-seat count for the category.
// Callers must hold the category row lock; no other code path writes this
// column.
func (s *Store) SetAvailableSeats(ctx context.Context, categoryID uint64, available uint32) error {
	const q = `UPDATE event_categories SET available_seats = ? WHERE id = ?`
	res, err := exec(ctx, s.db).ExecContext(ctx, q, available, categoryID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

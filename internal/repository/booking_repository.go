package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/eventbooking/server/internal/model"
)

const bookingColumns = `id, user_id, event_category_id, seat_identifiers, seats_booked, status, payment_id, payment_item, booking_time, checked_in, checked_in_at`

func scanBooking(scan func(dest ...interface{}) error) (model.Booking, error) {
	var b model.Booking
	var paymentID sql.NullString
	var checkedInAt sql.NullTime
	err := scan(
		&b.ID, &b.UserID, &b.EventCategoryID, &b.SeatIdentifiers, &b.SeatsBooked,
		&b.Status, &paymentID, &b.PaymentItem, &b.BookingTime, &b.CheckedIn, &checkedInAt,
	)
	if err != nil {
		return model.Booking{}, err
	}
	if paymentID.Valid {
		p := paymentID.String
		b.PaymentID = &p
	}
	if checkedInAt.Valid {
		t := checkedInAt.Time.UTC()
		b.CheckedInAt = &t
	}
	b.BookingTime = b.BookingTime.UTC()
	return b, nil
}

// CreateBooking appends a row to the booking ledger and populates the
// generated ID.  A duplicate (payment id, payment item) pair maps to
// ErrDuplicatePayment so the payment reconciler can detect a concurrent
// finalize that already won; distinct items of the same reference insert
// freely.
func (s *Store) CreateBooking(ctx context.Context, b *model.Booking) error {
	const q = `INSERT INTO bookings
               (user_id, event_category_id, seat_identifiers, seats_booked, status, payment_id, payment_item, booking_time)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	var paymentID interface{}
	if b.PaymentID != nil {
		paymentID = *b.PaymentID
	}
	res, err := exec(ctx, s.db).ExecContext(ctx, q,
		b.UserID, b.EventCategoryID, b.SeatIdentifiers, b.SeatsBooked,
		b.Status, paymentID, b.PaymentItem, b.BookingTime.UTC(),
	)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return ErrDuplicatePayment
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// ConfirmedByCategory returns all CONFIRMED bookings of a category.  The
// availability oracle unions their seat sets with the live holds.
func (s *Store) ConfirmedByCategory(ctx context.Context, categoryID uint64) ([]model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings
               WHERE event_category_id = ? AND status = ?`
	rows, err := exec(ctx, s.db).QueryContext(ctx, q, categoryID, model.BookingStatusConfirmed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// FindConfirmedByPaymentID returns the CONFIRMED bookings created for a
// payment reference, or an empty slice when the reference was never
// finalized.  This lookup is the idempotency guard of the reconciler.
func (s *Store) FindConfirmedByPaymentID(ctx context.Context, paymentID string) ([]model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings
               WHERE payment_id = ? AND status = ?
               ORDER BY payment_item`
	rows, err := exec(ctx, s.db).QueryContext(ctx, q, paymentID, model.BookingStatusConfirmed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// BookingsByUser returns a user's bookings, newest first.
func (s *Store) BookingsByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings
               WHERE user_id = ? ORDER BY booking_time DESC, id DESC`
	rows, err := exec(ctx, s.db).QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// GetBooking returns one booking by id.
func (s *Store) GetBooking(ctx context.Context, id uint64) (model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	b, err := scanBooking(exec(ctx, s.db).QueryRowContext(ctx, q, id).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Booking{}, ErrBookingNotFound
		}
		return model.Booking{}, err
	}
	return b, nil
}

// MarkCheckedIn records a ticket scan.  The check-in is first-wins: the
// update only succeeds when the booking has not been scanned yet, so two
// concurrent scans cannot both report entry allowed.
func (s *Store) MarkCheckedIn(ctx context.Context, id uint64, at time.Time) (bool, error) {
	const q = `UPDATE bookings SET checked_in = 1, checked_in_at = ?
               WHERE id = ? AND checked_in = 0 AND status = ?`
	res, err := exec(ctx, s.db).ExecContext(ctx, q, at.UTC(), id, model.BookingStatusConfirmed)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

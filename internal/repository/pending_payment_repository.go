package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/eventbooking/server/internal/model"
)

// CreatePendingPayment durably records the booking payload of a checkout
// attempt before the gateway is contacted.  The write must be visible
// before the caller reports "initiated": a webhook may arrive for the
// reference at any moment afterwards.
func (s *Store) CreatePendingPayment(ctx context.Context, p model.PendingPayment) error {
	const q = `INSERT INTO pending_payments (reference_id, booking_payload, created_at) VALUES (?, ?, ?)`
	_, err := exec(ctx, s.db).ExecContext(ctx, q, p.ReferenceID, p.BookingPayload, p.CreatedAt.UTC())
	return err
}

// GetPendingPayment loads the payload stored for a reference.  Returns
// ErrNoPendingBooking when the reference is unknown or already cleaned up.
func (s *Store) GetPendingPayment(ctx context.Context, referenceID string) (model.PendingPayment, error) {
	const q = `SELECT reference_id, booking_payload, created_at FROM pending_payments WHERE reference_id = ?`
	var p model.PendingPayment
	err := exec(ctx, s.db).QueryRowContext(ctx, q, referenceID).Scan(&p.ReferenceID, &p.BookingPayload, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.PendingPayment{}, ErrNoPendingBooking
		}
		return model.PendingPayment{}, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

// DeletePendingPayment removes the record after a successful finalize.
// Deleting an already-removed reference is not an error.
func (s *Store) DeletePendingPayment(ctx context.Context, referenceID string) error {
	const q = `DELETE FROM pending_payments WHERE reference_id = ?`
	_, err := exec(ctx, s.db).ExecContext(ctx, q, referenceID)
	return err
}

// DeletePendingBefore removes records created before the cutoff and
// returns the number removed.  Run opportunistically as the 24h retention
// sweep.
func (s *Store) DeletePendingBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `DELETE FROM pending_payments WHERE created_at < ?`
	res, err := exec(ctx, s.db).ExecContext(ctx, q, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Package repository implements the MySQL persistence layer.  This file
// defines the error taxonomy shared between the stores and the service
// layer.  Handlers translate these values into HTTP responses, so the
// typed errors carry enough detail to produce a user-facing message that
// names the offending seat or category.
package repository

import (
	"errors"
	"fmt"
	"time"
)

// ErrCategoryNotFound is returned when an event category id does not
// resolve to a row.
var ErrCategoryNotFound = errors.New("event category not found")

// ErrUserNotFound is returned when a user id or email does not resolve to
// a row.
var ErrUserNotFound = errors.New("user not found")

// ErrBookingNotFound is returned when a booking id does not resolve to a
// row.
var ErrBookingNotFound = errors.New("booking not found")

// ErrEmailExists is returned when registering with an email that is
// already taken.
var ErrEmailExists = errors.New("email already exists")

// ErrEventFinished is returned when a hold or commit targets a category
// whose event start time has already passed.
var ErrEventFinished = errors.New("booking closed: event has already finished")

// ErrNoPendingBooking is returned when a finalize call references a payment
// that has no stored booking payload, either because the reference is
// stale/forged or because the retention sweep already removed it.
var ErrNoPendingBooking = errors.New("no pending booking for payment reference")

// ErrDuplicatePayment is returned by the booking store when inserting a
// CONFIRMED booking whose payment id already exists.  The reconciler uses
// it to keep concurrent finalize calls idempotent.
var ErrDuplicatePayment = errors.New("payment reference already booked")

// SeatConflictError reports that a requested seat is already taken by a
// confirmed booking or by another user's live hold.
type SeatConflictError struct {
	Seat string
}

func (e *SeatConflictError) Error() string {
	return fmt.Sprintf("seat %s is no longer available", e.Seat)
}

// InsufficientSeatsError reports that a category cannot satisfy the
// requested seat count.
type InsufficientSeatsError struct {
	Category  string
	Requested uint32
	Available uint32
}

func (e *InsufficientSeatsError) Error() string {
	return fmt.Sprintf("not enough seats available in category %q: requested %d, available %d",
		e.Category, e.Requested, e.Available)
}

// TicketLimitError reports that a booking exceeds the per-event-type ticket
// cap.
type TicketLimitError struct {
	EventType string
	Limit     uint32
}

func (e *TicketLimitError) Error() string {
	return fmt.Sprintf("ticket limit exceeded: at most %d tickets per booking for %s events",
		e.Limit, e.EventType)
}

// BookingNotOpenError reports that booking for the event has not opened
// yet.
type BookingNotOpenError struct {
	OpensAt time.Time
}

func (e *BookingNotOpenError) Error() string {
	return fmt.Sprintf("booking for this event opens on %s",
		e.OpensAt.UTC().Format("02 Jan 2006, 15:04 MST"))
}

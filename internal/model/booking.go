package model

import "time"

// Booking status values.  The transition CONFIRMED -> CANCELLED is one-way;
// a cancelled booking is never confirmed again.
const (
	BookingStatusConfirmed = "CONFIRMED"
	BookingStatusCancelled = "CANCELLED"
)

// Booking is one row of the append-only booking ledger.  A booking is
// created only inside the commit transaction, together with the inventory
// decrement.  (PaymentID, PaymentItem) is the idempotency key for
// gateway-originated bookings: a payment reference finalizing a batch of N
// requests produces bookings with items 0..N-1, and the unique index over
// the pair guarantees each item of a reference commits at most once even
// under concurrent finalize calls.
//
// Fields:
//  ID              – primary key identifier.
//  UserID          – user who owns the booking.
//  EventCategoryID – category the seats were booked in.
//  SeatIdentifiers – set of seat ids covered by this booking.
//  SeatsBooked     – number of seats; equals SeatIdentifiers.Len() when
//                    seat ids were supplied.
//  Status          – CONFIRMED or CANCELLED.
//  PaymentID       – wallet gateway reference id (nullable).
//  PaymentItem     – position of this booking within its payment batch.
//  BookingTime     – when the commit transaction ran (UTC).
//  CheckedIn       – whether the ticket was scanned at the venue.
//  CheckedInAt     – when it was scanned (nullable).
type Booking struct {
	ID              uint64     // bookings.id
	UserID          uint64     // bookings.user_id
	EventCategoryID uint64     // bookings.event_category_id
	SeatIdentifiers SeatSet    // bookings.seat_identifiers (JSON array)
	SeatsBooked     uint32     // bookings.seats_booked
	Status          string     // bookings.status
	PaymentID       *string    // bookings.payment_id (nullable)
	PaymentItem     uint32     // bookings.payment_item
	BookingTime     time.Time  // bookings.booking_time
	CheckedIn       bool       // bookings.checked_in
	CheckedInAt     *time.Time // bookings.checked_in_at (nullable)
}

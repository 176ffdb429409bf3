package model

import "time"

// SeatHold is a soft, time-boxed reservation of seats taken while a user is
// in checkout.  A hold never changes the category's AvailableSeats counter;
// it only makes the held seats invisible to other users' availability
// checks until ExpiresAt.  Each user has at most one live hold per category:
// re-holding replaces the previous hold, and a successful booking commit
// deletes it.  Expired holds are swept lazily and may transiently linger in
// the table; the booking commit re-validates under lock regardless.
//
// Fields:
//  ID              – primary key identifier.
//  EventCategoryID – category whose seats are held.
//  UserID          – user who holds the seats.
//  SeatIdentifiers – set of held seat ids.
//  ExpiresAt       – when the hold stops shadowing its seats.
//  ReferenceID     – payment reference associated with the hold, when the
//                    hold was taken as part of a wallet checkout (nullable).
//  CreatedAt       – when the hold was created.
type SeatHold struct {
	ID              uint64    // seat_holds.id
	EventCategoryID uint64    // seat_holds.event_category_id
	UserID          uint64    // seat_holds.user_id
	SeatIdentifiers SeatSet   // seat_holds.seat_identifiers (JSON array)
	ExpiresAt       time.Time // seat_holds.expires_at
	ReferenceID     *string   // seat_holds.reference_id (nullable)
	CreatedAt       time.Time // seat_holds.created_at
}

// Active reports whether the hold still shadows its seats at the given
// instant.
func (h SeatHold) Active(now time.Time) bool {
	return h.ExpiresAt.After(now)
}

package model

import "time"

// Event represents a bookable event as stored in the `events` table.  The
// timing columns drive the booking window: no seats may be committed after
// EventDate, and none before BookingOpenDate when one is set.
//
// Fields:
//  ID              – primary key identifier.
//  Name            – display name of the event.
//  EventType       – free-form type label (e.g. "Theatre", "Concert").
//                    Theatre events allow up to 10 tickets per booking,
//                    every other type allows 5.
//  EventDate       – when the event starts (UTC).
//  BookingOpenDate – when booking opens (nullable; nil means open now).
//  CreatedAt       – timestamp of creation.
type Event struct {
	ID              uint64     // events.id
	Name            string     // events.name
	EventType       string     // events.event_type
	EventDate       time.Time  // events.event_date
	BookingOpenDate *time.Time // events.booking_open_date (nullable)
	CreatedAt       time.Time  // events.created_at
}

// EventCategory is a priced seating tier within an event and the unit of
// seat inventory.  AvailableSeats is the single contended counter of the
// system: it is decremented only inside the locked booking commit
// transaction, never anywhere else.  The invariant
// 0 <= AvailableSeats <= TotalSeats holds at all times, and
// TotalSeats - AvailableSeats equals the sum of SeatsBooked over CONFIRMED
// bookings of the category.
//
// Fields:
//  ID             – primary key identifier.
//  EventID        – event this category belongs to.
//  CategoryName   – display name of the tier (e.g. "VIP", "Balcony").
//  TotalSeats     – fixed capacity of the tier.
//  AvailableSeats – remaining capacity; mutated only under the category lock.
//  PriceCents     – unit price per seat in cents.
type EventCategory struct {
	ID             uint64 // event_categories.id
	EventID        uint64 // event_categories.event_id
	CategoryName   string // event_categories.category_name
	TotalSeats     uint32 // event_categories.total_seats
	AvailableSeats uint32 // event_categories.available_seats
	PriceCents     uint64 // event_categories.price_cents
}

// Package service implements the business logic of the booking engine: the
// availability oracle, seat holds, the atomic booking commit and the
// payment reconciliation state machine.
package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/eventbooking/server/internal/clock"
	"github.com/eventbooking/server/internal/model"
	"github.com/eventbooking/server/internal/queue"
	"github.com/eventbooking/server/internal/repository"
)

// Ticket caps per booking.  Theatre events allow more tickets than any
// other event type; a business rule checked inside the commit transaction
// so the whole decision stays atomic.
const (
	theatreTicketLimit = 10
	defaultTicketLimit = 5
)

// BookingStore is the persistence surface the booking service needs.  It
// is implemented by *repository.Store and by the in-memory fake used in
// tests.
type BookingStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetCategory(ctx context.Context, categoryID uint64) (model.EventCategory, model.Event, error)
	GetCategoryForUpdate(ctx context.Context, categoryID uint64) (model.EventCategory, model.Event, error)
	SetAvailableSeats(ctx context.Context, categoryID uint64, available uint32) error
	CreateBooking(ctx context.Context, b *model.Booking) error
	ConfirmedByCategory(ctx context.Context, categoryID uint64) ([]model.Booking, error)
	BookingsByUser(ctx context.Context, userID uint64) ([]model.Booking, error)
	GetBooking(ctx context.Context, id uint64) (model.Booking, error)
	MarkCheckedIn(ctx context.Context, id uint64, at time.Time) (bool, error)
	ActiveHoldsByCategory(ctx context.Context, categoryID uint64, now time.Time) ([]model.SeatHold, error)
	ReplaceHold(ctx context.Context, h *model.SeatHold) error
	DeleteHoldByUserAndCategory(ctx context.Context, userID, categoryID uint64) error
	DeleteExpiredHolds(ctx context.Context, now time.Time) (int64, error)
	GetUser(ctx context.Context, id uint64) (model.User, error)
}

// Publisher pushes domain events to the message broker after a commit.
type Publisher interface {
	PublishBookingConfirmed(ctx context.Context, event queue.BookingConfirmedEvent) error
}

// BookingRequest describes one booking intent.  The same shape is accepted
// over HTTP and serialized into the pending-payment payload, so the JSON
// tags are part of the stored format.
type BookingRequest struct {
	EventCategoryID uint64   `json:"eventCategoryId"`
	UserID          uint64   `json:"userId"`
	SeatIDs         []string `json:"seatIds,omitempty"`
	Seats           uint32   `json:"seats"`
	PaymentID       *string  `json:"paymentId,omitempty"`

	// PaymentItem is stamped by the payment reconciler with the request's
	// position in its batch; it never travels over the wire or into the
	// stored payload.
	PaymentItem uint32 `json:"-"`
}

// BookingService owns availability checks, seat holds and the booking
// commit transaction.
type BookingService struct {
	store     BookingStore
	clock     clock.Clock
	publisher Publisher
	holdTTL   time.Duration
}

const defaultHoldTTL = 300 * time.Second

// NewBookingService constructs a BookingService.  The publisher may be nil
// when confirmation events are not wanted (tests, maintenance tooling).
func NewBookingService(store BookingStore, clk clock.Clock, pub Publisher, opts ...BookingOption) *BookingService {
	if store == nil || clk == nil {
		panic("nil dependency passed to NewBookingService")
	}
	svc := &BookingService{store: store, clock: clk, publisher: pub, holdTTL: defaultHoldTTL}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// BookingOption customizes a BookingService.
type BookingOption func(*BookingService)

// WithHoldTTL overrides the default lifetime of seat holds.
func WithHoldTTL(d time.Duration) BookingOption {
	return func(s *BookingService) {
		if d > 0 {
			s.holdTTL = d
		}
	}
}

// ErrSeatCountMismatch means a request's seat quantity disagrees with its
// explicit seat id list, which would let inventory and the occupied-seat
// ledger drift apart.
var ErrSeatCountMismatch = errors.New("seat count does not match seat identifiers")

// validateSeatCount enforces Seats == len(SeatIDs) whenever explicit seat
// ids are supplied.  The comparison uses the deduplicated set, so repeated
// ids cannot pad the count either.
func validateSeatCount(req BookingRequest) error {
	if len(req.SeatIDs) > 0 && uint32(model.NewSeatSet(req.SeatIDs).Len()) != req.Seats {
		return ErrSeatCountMismatch
	}
	return nil
}

func ticketLimit(eventType string) uint32 {
	if strings.EqualFold(eventType, "Theatre") {
		return theatreTicketLimit
	}
	return defaultTicketLimit
}

// takenSeats computes the availability oracle's "taken" set for a
// category: seats of CONFIRMED bookings unioned with seats of live holds.
// Holds belonging to excludeUser are skipped so a user never conflicts
// with their own hold; pass 0 to include every hold (public occupied
// view).
func (s *BookingService) takenSeats(ctx context.Context, categoryID, excludeUser uint64, now time.Time) (model.SeatSet, error) {
	taken := make(model.SeatSet)
	confirmed, err := s.store.ConfirmedByCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	for _, b := range confirmed {
		taken.AddAll(b.SeatIdentifiers)
	}
	holds, err := s.store.ActiveHoldsByCategory(ctx, categoryID, now)
	if err != nil {
		return nil, err
	}
	for _, h := range holds {
		if excludeUser != 0 && h.UserID == excludeUser {
			continue
		}
		taken.AddAll(h.SeatIdentifiers)
	}
	return taken, nil
}

// checkSeatAvailability rejects the request when any requested seat id is
// already taken by a confirmed booking or another user's live hold.
// Requests without explicit seat ids (quantity-only bookings) pass
// trivially; the inventory counter protects them.
func (s *BookingService) checkSeatAvailability(ctx context.Context, categoryID uint64, seatIDs []string, userID uint64, now time.Time) error {
	if len(seatIDs) == 0 {
		return nil
	}
	taken, err := s.takenSeats(ctx, categoryID, userID, now)
	if err != nil {
		return err
	}
	for _, id := range seatIDs {
		if taken.Contains(id) {
			return &repository.SeatConflictError{Seat: id}
		}
	}
	return nil
}

func checkBookingWindow(ev model.Event, now time.Time) error {
	if !ev.EventDate.After(now) {
		return repository.ErrEventFinished
	}
	if ev.BookingOpenDate != nil && ev.BookingOpenDate.After(now) {
		return &repository.BookingNotOpenError{OpensAt: *ev.BookingOpenDate}
	}
	return nil
}

// PrecheckBooking validates a booking request without taking the category
// lock: seat availability, booking window, inventory sufficiency and the
// ticket cap.  It is the cheap gate run before a payment is initiated; the
// commit transaction re-validates everything under lock.  Returns the
// category so callers can price the request.
func (s *BookingService) PrecheckBooking(ctx context.Context, req BookingRequest) (model.EventCategory, error) {
	if err := validateSeatCount(req); err != nil {
		return model.EventCategory{}, err
	}
	now := s.clock.Now()
	if err := s.checkSeatAvailability(ctx, req.EventCategoryID, req.SeatIDs, req.UserID, now); err != nil {
		return model.EventCategory{}, err
	}
	cat, ev, err := s.store.GetCategory(ctx, req.EventCategoryID)
	if err != nil {
		return model.EventCategory{}, err
	}
	if err := checkBookingWindow(ev, now); err != nil {
		return model.EventCategory{}, err
	}
	if cat.AvailableSeats < req.Seats {
		return model.EventCategory{}, &repository.InsufficientSeatsError{
			Category: cat.CategoryName, Requested: req.Seats, Available: cat.AvailableSeats,
		}
	}
	if limit := ticketLimit(ev.EventType); req.Seats > limit {
		return model.EventCategory{}, &repository.TicketLimitError{EventType: ev.EventType, Limit: limit}
	}
	return cat, nil
}

// BookSeats runs the atomic booking commit: either the seats are durably
// confirmed and inventory decremented, or nothing changes and a typed
// error is returned.  The confirmation event is published only after the
// transaction committed.
func (s *BookingService) BookSeats(ctx context.Context, req BookingRequest) (model.Booking, error) {
	var booked model.Booking
	var event queue.BookingConfirmedEvent
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		var err error
		booked, event, err = s.commitBooking(ctx, req)
		return err
	})
	if err != nil {
		return model.Booking{}, err
	}
	s.publishConfirmed(ctx, event)
	return booked, nil
}

// commitBooking is the body of the commit transaction.  It must run inside
// a transaction owned by the caller; the payment reconciler reuses it to
// commit a whole batch atomically.  The returned event is ready to publish
// once the enclosing transaction commits.
func (s *BookingService) commitBooking(ctx context.Context, req BookingRequest) (model.Booking, queue.BookingConfirmedEvent, error) {
	if err := validateSeatCount(req); err != nil {
		return model.Booking{}, queue.BookingConfirmedEvent{}, err
	}
	now := s.clock.Now()

	// Sole serialization point: the exclusive category row lock.  It must
	// be the transaction's first read so the snapshot used by the seat
	// availability check below is established after the lock is granted
	// and therefore sees every booking a concurrent commit just made.
	cat, ev, err := s.store.GetCategoryForUpdate(ctx, req.EventCategoryID)
	if err != nil {
		return model.Booking{}, queue.BookingConfirmedEvent{}, err
	}

	// Under the lock: reject seat ids taken by confirmed bookings or other
	// users' live holds.
	if err := s.checkSeatAvailability(ctx, req.EventCategoryID, req.SeatIDs, req.UserID, now); err != nil {
		return model.Booking{}, queue.BookingConfirmedEvent{}, err
	}
	if err := checkBookingWindow(ev, now); err != nil {
		return model.Booking{}, queue.BookingConfirmedEvent{}, err
	}
	if cat.AvailableSeats < req.Seats {
		return model.Booking{}, queue.BookingConfirmedEvent{}, &repository.InsufficientSeatsError{
			Category: cat.CategoryName, Requested: req.Seats, Available: cat.AvailableSeats,
		}
	}
	if limit := ticketLimit(ev.EventType); req.Seats > limit {
		return model.Booking{}, queue.BookingConfirmedEvent{}, &repository.TicketLimitError{EventType: ev.EventType, Limit: limit}
	}

	user, err := s.store.GetUser(ctx, req.UserID)
	if err != nil {
		return model.Booking{}, queue.BookingConfirmedEvent{}, err
	}

	if err := s.store.SetAvailableSeats(ctx, cat.ID, cat.AvailableSeats-req.Seats); err != nil {
		return model.Booking{}, queue.BookingConfirmedEvent{}, err
	}

	booking := model.Booking{
		UserID:          req.UserID,
		EventCategoryID: cat.ID,
		SeatIdentifiers: model.NewSeatSet(req.SeatIDs),
		SeatsBooked:     req.Seats,
		Status:          model.BookingStatusConfirmed,
		PaymentID:       req.PaymentID,
		PaymentItem:     req.PaymentItem,
		BookingTime:     now,
	}
	if err := s.store.CreateBooking(ctx, &booking); err != nil {
		return model.Booking{}, queue.BookingConfirmedEvent{}, err
	}

	// A confirmed booking supersedes the requester's own hold.
	if err := s.store.DeleteHoldByUserAndCategory(ctx, req.UserID, cat.ID); err != nil {
		return model.Booking{}, queue.BookingConfirmedEvent{}, err
	}

	event := queue.BookingConfirmedEvent{
		BookingID:    booking.ID,
		UserID:       user.ID,
		UserEmail:    user.Email,
		UserName:     user.Name,
		EventName:    ev.Name,
		CategoryName: cat.CategoryName,
		SeatLabels:   booking.SeatIdentifiers.Sorted(),
		SeatsBooked:  booking.SeatsBooked,
		TotalCents:   uint64(booking.SeatsBooked) * cat.PriceCents,
		BookedAt:     now.Format(time.RFC3339),
	}
	if req.PaymentID != nil {
		event.PaymentRef = *req.PaymentID
	}
	return booking, event, nil
}

func (s *BookingService) publishConfirmed(ctx context.Context, event queue.BookingConfirmedEvent) {
	if s.publisher == nil || event.BookingID == 0 {
		return
	}
	if err := s.publisher.PublishBookingConfirmed(ctx, event); err != nil {
		log.Printf("booking: publish confirmation for booking %d failed: %v", event.BookingID, err)
	}
}

// HoldSeats installs a soft reservation that expires after the hold TTL.
// Holds are advisory: no category lock is taken, because the commit
// transaction re-validates from scratch and a stale hold can only cause a
// spurious conflict, never a double sale.
func (s *BookingService) HoldSeats(ctx context.Context, req BookingRequest) (model.SeatHold, error) {
	now := s.clock.Now()
	var hold model.SeatHold
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.checkSeatAvailability(ctx, req.EventCategoryID, req.SeatIDs, req.UserID, now); err != nil {
			return err
		}
		_, ev, err := s.store.GetCategory(ctx, req.EventCategoryID)
		if err != nil {
			return err
		}
		if err := checkBookingWindow(ev, now); err != nil {
			return err
		}
		hold = model.SeatHold{
			EventCategoryID: req.EventCategoryID,
			UserID:          req.UserID,
			SeatIdentifiers: model.NewSeatSet(req.SeatIDs),
			ExpiresAt:       now.Add(s.holdTTL),
			ReferenceID:     req.PaymentID,
		}
		// Replace, never merge: at most one live hold per user+category.
		return s.store.ReplaceHold(ctx, &hold)
	})
	if err != nil {
		return model.SeatHold{}, err
	}
	// Opportunistic sweep of expired holds.  Best-effort housekeeping, not
	// required for correctness.
	if _, err := s.store.DeleteExpiredHolds(ctx, now); err != nil {
		log.Printf("booking: expired-hold sweep failed: %v", err)
	}
	return hold, nil
}

// OccupiedSeats returns the public occupied-seats view for rendering a
// seat map: every confirmed seat plus every seat under a live hold,
// regardless of holder.  The read is not serialized against commits and
// may be momentarily stale.
func (s *BookingService) OccupiedSeats(ctx context.Context, categoryID uint64) ([]string, error) {
	if _, _, err := s.store.GetCategory(ctx, categoryID); err != nil {
		return nil, err
	}
	taken, err := s.takenSeats(ctx, categoryID, 0, s.clock.Now())
	if err != nil {
		return nil, err
	}
	return taken.Sorted(), nil
}

// UserBookings lists the caller's bookings, newest first.
func (s *BookingService) UserBookings(ctx context.Context, userID uint64) ([]model.Booking, error) {
	return s.store.BookingsByUser(ctx, userID)
}

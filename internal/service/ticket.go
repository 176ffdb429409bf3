package service

import (
	"context"
	"errors"
	"time"

	"github.com/eventbooking/server/internal/model"
	"github.com/eventbooking/server/internal/repository"
)

// Ticket scan outcomes.
const (
	TicketValid       = "VALID"
	TicketInvalid     = "INVALID"
	TicketAlreadyUsed = "ALREADY_USED"
	TicketCancelled   = "CANCELLED"
)

// ScanResult is what a gate scanner sees after presenting a ticket.
type ScanResult struct {
	Status       string     `json:"status"`
	Message      string     `json:"message"`
	BookingID    uint64     `json:"bookingId,omitempty"`
	EventName    string     `json:"eventName,omitempty"`
	CategoryName string     `json:"categoryName,omitempty"`
	SeatsBooked  uint32     `json:"seatsBooked,omitempty"`
	Seats        []string   `json:"seats,omitempty"`
	HolderName   string     `json:"holderName,omitempty"`
	CheckedInAt  *time.Time `json:"checkedInAt,omitempty"`
}

func (s *BookingService) scanResult(ctx context.Context, bookingID uint64) (ScanResult, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return ScanResult{Status: TicketInvalid, Message: "no such booking"}, nil
		}
		return ScanResult{}, err
	}
	res := ScanResult{
		BookingID:   b.ID,
		SeatsBooked: b.SeatsBooked,
		Seats:       b.SeatIdentifiers.Sorted(),
		CheckedInAt: b.CheckedInAt,
	}
	cat, ev, err := s.store.GetCategory(ctx, b.EventCategoryID)
	if err == nil {
		res.EventName = ev.Name
		res.CategoryName = cat.CategoryName
	}
	if user, err := s.store.GetUser(ctx, b.UserID); err == nil {
		res.HolderName = user.Name
	}
	switch {
	case b.Status == model.BookingStatusCancelled:
		res.Status = TicketCancelled
		res.Message = "booking was cancelled"
	case b.CheckedIn:
		res.Status = TicketAlreadyUsed
		res.Message = "ticket already checked in"
	default:
		res.Status = TicketValid
		res.Message = "ticket is valid"
	}
	return res, nil
}

// VerifyTicket reports the state of a ticket without consuming it.
func (s *BookingService) VerifyTicket(ctx context.Context, bookingID uint64) (ScanResult, error) {
	return s.scanResult(ctx, bookingID)
}

// ScanTicket consumes a ticket at the gate.  The first scan wins; every
// later scan reports ALREADY_USED even under concurrent scanners, because
// the check-in flip is a single conditional update.
func (s *BookingService) ScanTicket(ctx context.Context, bookingID uint64) (ScanResult, error) {
	res, err := s.scanResult(ctx, bookingID)
	if err != nil || res.Status != TicketValid {
		return res, err
	}
	now := s.clock.Now()
	ok, err := s.store.MarkCheckedIn(ctx, bookingID, now)
	if err != nil {
		return ScanResult{}, err
	}
	if !ok {
		res.Status = TicketAlreadyUsed
		res.Message = "ticket already checked in"
		return res, nil
	}
	res.CheckedInAt = &now
	res.Message = "checked in"
	return res, nil
}

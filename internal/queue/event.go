// Package queue defines message payloads exchanged over the message broker.
package queue

// BookingConfirmedEvent is published after a booking commit transaction
// succeeds.  It carries everything the ticket email consumer needs so it
// never has to query the primary database.  Publishing happens strictly
// outside the locked transaction.
type BookingConfirmedEvent struct {
	BookingID    uint64   `json:"booking_id"`
	UserID       uint64   `json:"user_id"`
	UserEmail    string   `json:"user_email"`
	UserName     string   `json:"user_name"`
	EventName    string   `json:"event_name"`
	CategoryName string   `json:"category_name"`
	SeatLabels   []string `json:"seats"`
	SeatsBooked  uint32   `json:"seats_booked"`
	TotalCents   uint64   `json:"total_cents"`
	PaymentRef   string   `json:"payment_ref,omitempty"`
	BookedAt     string   `json:"booked_at"`
}

// PaymentUpdateEvent is pushed when webhook processing settles a payment
// reference, so subscribers polling that reference learn the outcome in
// real time.
type PaymentUpdateEvent struct {
	Reference string `json:"reference"`
	Status    string `json:"status"` // SUCCESS or FAILED
	Amount    uint64 `json:"amount,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

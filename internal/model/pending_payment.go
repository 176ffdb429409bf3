package model

import "time"

// PendingPayment captures the booking intent of a wallet checkout before
// the user is redirected to the gateway.  The record is keyed by the
// globally unique payment reference and joins the gateway's asynchronous
// success notification back to the requests it should finalize.  The row
// is written durably before the gateway is contacted, deleted after a
// successful finalize, and otherwise removed by the 24 hour retention
// sweep.
//
// Fields:
//  ReferenceID    – primary key; one per checkout attempt.
//  BookingPayload – JSON-serialized list of booking requests.
//  CreatedAt      – when the transfer was initiated.
type PendingPayment struct {
	ReferenceID    string    // pending_payments.reference_id
	BookingPayload string    // pending_payments.booking_payload (JSON)
	CreatedAt      time.Time // pending_payments.created_at
}

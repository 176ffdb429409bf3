package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/eventbooking/server/internal/clock"
	"github.com/eventbooking/server/internal/gateway"
	"github.com/eventbooking/server/internal/model"
	"github.com/eventbooking/server/internal/queue"
	"github.com/eventbooking/server/internal/repository"
)

// ErrPaymentNotReceived means the gateway answered authoritatively that no
// money arrived for the reference.  Unlike gateway.ErrUnavailable it is
// final and must not be retried blindly.
var ErrPaymentNotReceived = errors.New("payment not received by gateway")

// PaymentStore is the persistence surface of the reconciler.
type PaymentStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreatePendingPayment(ctx context.Context, p model.PendingPayment) error
	GetPendingPayment(ctx context.Context, referenceID string) (model.PendingPayment, error)
	DeletePendingPayment(ctx context.Context, referenceID string) error
	DeletePendingBefore(ctx context.Context, cutoff time.Time) (int64, error)
	FindConfirmedByPaymentID(ctx context.Context, paymentID string) ([]model.Booking, error)
}

// GatewayClient is the wallet gateway surface; *gateway.Client implements
// it, tests substitute a stub.
type GatewayClient interface {
	CreatePaymentRequest(ctx context.Context, amountCents uint64, referenceID, callbackURL string) (gateway.PaymentRequest, error)
	VerifyReference(ctx context.Context, merchantID, referenceID string) (bool, error)
}

// PendingCache is the read-through cache over pending payloads.  All
// methods are best-effort; the durable store is authoritative.
type PendingCache interface {
	Get(ctx context.Context, referenceID string) (string, bool)
	Set(ctx context.Context, referenceID, payload string)
	Delete(ctx context.Context, referenceID string)
}

// Payment initiation outcomes.
const (
	InitiationRedirect = "REDIRECT"
	InitiationFailed   = "FAILED"
)

// PaymentInitiation is the tagged result of InitiateWalletTransfer.  On
// REDIRECT the client follows PaymentURL; on FAILED the Reason explains
// why and nothing was charged.
type PaymentInitiation struct {
	Status        string `json:"status"`
	PaymentURL    string `json:"paymentUrl,omitempty"`
	TransactionID string `json:"transactionId,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// How long an unfinalized pending payload stays recoverable before the
// retention sweep removes it.
const pendingRetention = 24 * time.Hour

// PaymentService drives the payment-to-booking reconciliation: it parks a
// booking intent while the user pays, then turns a verified payment into
// confirmed bookings exactly once.
type PaymentService struct {
	store       PaymentStore
	bookings    *BookingService
	gateway     GatewayClient
	cache       PendingCache
	clock       clock.Clock
	merchantID  string
	callbackURL string
}

// NewPaymentService constructs a PaymentService.  The cache may be nil.
func NewPaymentService(store PaymentStore, bookings *BookingService, gw GatewayClient, cache PendingCache, clk clock.Clock, merchantID, callbackURL string) *PaymentService {
	if store == nil || bookings == nil || gw == nil || clk == nil {
		panic("nil dependency passed to NewPaymentService")
	}
	return &PaymentService{
		store:       store,
		bookings:    bookings,
		gateway:     gw,
		cache:       cache,
		clock:       clk,
		merchantID:  merchantID,
		callbackURL: callbackURL,
	}
}

// InitiateWalletTransfer prechecks a batch of booking intents, prices it
// server-side, persists the payload durably and only then asks the wallet
// gateway for a payment URL.  The durable write comes first so a crash
// after the user is redirected can never lose the intent.
func (s *PaymentService) InitiateWalletTransfer(ctx context.Context, userID uint64, requests []BookingRequest) (PaymentInitiation, error) {
	if len(requests) == 0 {
		return PaymentInitiation{}, fmt.Errorf("initiate payment: empty booking batch")
	}

	var amountCents uint64
	for i := range requests {
		requests[i].UserID = userID
		cat, err := s.bookings.PrecheckBooking(ctx, requests[i])
		if err != nil {
			return PaymentInitiation{}, err
		}
		amountCents += uint64(requests[i].Seats) * cat.PriceCents
	}

	payload, err := json.Marshal(requests)
	if err != nil {
		return PaymentInitiation{}, fmt.Errorf("initiate payment: encode payload: %w", err)
	}

	now := s.clock.Now()
	referenceID := uuid.NewString()
	pending := model.PendingPayment{
		ReferenceID:    referenceID,
		BookingPayload: string(payload),
		CreatedAt:      now,
	}
	if err := s.store.CreatePendingPayment(ctx, pending); err != nil {
		return PaymentInitiation{}, fmt.Errorf("initiate payment: persist pending booking: %w", err)
	}
	if s.cache != nil {
		s.cache.Set(ctx, referenceID, pending.BookingPayload)
	}

	// Retention sweep piggybacks on initiation traffic.
	if n, err := s.store.DeletePendingBefore(ctx, now.Add(-pendingRetention)); err != nil {
		log.Printf("payment: pending retention sweep failed: %v", err)
	} else if n > 0 {
		log.Printf("payment: swept %d stale pending payments", n)
	}

	req, err := s.gateway.CreatePaymentRequest(ctx, amountCents, referenceID, s.callbackURL)
	if err != nil {
		// The pending record is kept: the user can retry finalization once
		// the gateway recovers, and the sweep reclaims it eventually.
		log.Printf("payment: create request for %s failed: %v", referenceID, err)
		return PaymentInitiation{Status: InitiationFailed, Reason: "WALLET_SERVICE_UNAVAILABLE"}, nil
	}
	return PaymentInitiation{
		Status:        InitiationRedirect,
		PaymentURL:    req.PaymentURL,
		TransactionID: referenceID,
	}, nil
}

// ProcessSuccessfulPayment converts a paid reference into confirmed
// bookings.  It is safe to call any number of times and from concurrent
// callers: the unique payment guard in storage makes the commit happen at
// most once, and every call after the first reports success without side
// effects.
func (s *PaymentService) ProcessSuccessfulPayment(ctx context.Context, referenceID string) ([]model.Booking, error) {
	// Idempotency guard: a booking already carries this payment id.
	existing, err := s.store.FindConfirmedByPaymentID(ctx, referenceID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return existing, nil
	}

	// Never trust the caller: the gateway is the authority on whether
	// money actually moved.
	received, err := s.gateway.VerifyReference(ctx, s.merchantID, referenceID)
	if err != nil {
		return nil, fmt.Errorf("finalize payment %s: %w", referenceID, err)
	}
	if !received {
		return nil, ErrPaymentNotReceived
	}

	requests, err := s.loadPending(ctx, referenceID)
	if err != nil {
		return nil, err
	}

	var booked []model.Booking
	var events []queue.BookingConfirmedEvent
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		booked = booked[:0]
		events = events[:0]
		for i := range requests {
			ref := referenceID
			requests[i].PaymentID = &ref
			// The batch position scopes the uniqueness guard: item i of
			// this reference commits at most once, while the N items of
			// one batch coexist.
			requests[i].PaymentItem = uint32(i)
			b, ev, err := s.bookings.commitBooking(ctx, requests[i])
			if err != nil {
				return err
			}
			booked = append(booked, b)
			events = append(events, ev)
		}
		return s.store.DeletePendingPayment(ctx, referenceID)
	})
	if err != nil {
		// A concurrent finalization of the same reference may have won the
		// race between our guard check and our insert.  Re-check before
		// reporting failure.
		if errors.Is(err, repository.ErrDuplicatePayment) {
			if winner, rerr := s.store.FindConfirmedByPaymentID(ctx, referenceID); rerr == nil && len(winner) > 0 {
				return winner, nil
			}
		}
		return nil, err
	}

	if s.cache != nil {
		s.cache.Delete(ctx, referenceID)
	}
	for _, ev := range events {
		s.bookings.publishConfirmed(ctx, ev)
	}
	return booked, nil
}

// loadPending resolves the parked booking payload, cache first, durable
// store second.
func (s *PaymentService) loadPending(ctx context.Context, referenceID string) ([]BookingRequest, error) {
	var payload string
	if s.cache != nil {
		if v, ok := s.cache.Get(ctx, referenceID); ok {
			payload = v
		}
	}
	if payload == "" {
		pending, err := s.store.GetPendingPayment(ctx, referenceID)
		if err != nil {
			return nil, err
		}
		payload = pending.BookingPayload
	}
	var requests []BookingRequest
	if err := json.Unmarshal([]byte(payload), &requests); err != nil {
		return nil, fmt.Errorf("finalize payment %s: decode pending payload: %w", referenceID, err)
	}
	if len(requests) == 0 {
		return nil, repository.ErrNoPendingBooking
	}
	return requests, nil
}

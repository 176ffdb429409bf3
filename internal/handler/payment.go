package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eventbooking/server/internal/service"
)

// PaymentHandler exposes payment initiation and finalization.
type PaymentHandler struct {
	Payments *service.PaymentService
}

func NewPaymentHandler(payments *service.PaymentService) *PaymentHandler {
	if payments == nil {
		panic("nil service passed to NewPaymentHandler")
	}
	return &PaymentHandler{Payments: payments}
}

type initiateReq struct {
	Bookings []bookingReq `json:"bookings"`
}

type finalizeReq struct {
	ReferenceID string `json:"referenceId"`
}

// InitiateWalletTransfer parks the booking intent and requests a payment
// URL from the wallet gateway.  POST /api/payments/initiate-wallet-transfer
func (h *PaymentHandler) InitiateWalletTransfer(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req initiateReq
	if err := c.Bind(&req); err != nil || len(req.Bookings) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	requests := make([]service.BookingRequest, 0, len(req.Bookings))
	for _, b := range req.Bookings {
		if b.Seats == 0 {
			b.Seats = uint32(len(b.SeatIDs))
		}
		if b.EventCategoryID == 0 || b.Seats == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
		}
		if len(b.SeatIDs) > 0 && uint32(len(b.SeatIDs)) != b.Seats {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
		}
		requests = append(requests, service.BookingRequest{
			EventCategoryID: b.EventCategoryID,
			UserID:          uid,
			SeatIDs:         b.SeatIDs,
			Seats:           b.Seats,
		})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	res, err := h.Payments.InitiateWalletTransfer(ctx, uid, requests)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// FinalizeWallet reconciles a paid reference into confirmed bookings.
// Safe to retry: replays of an already finalized reference succeed without
// booking anything twice.  POST /api/payments/finalize-wallet
func (h *PaymentHandler) FinalizeWallet(c echo.Context) error {
	if _, err := getUserID(c); err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req finalizeReq
	if err := c.Bind(&req); err != nil || req.ReferenceID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	bookings, err := h.Payments.ProcessSuccessfulPayment(ctx, req.ReferenceID)
	if err != nil {
		return writeDomainError(c, err)
	}
	out := make([]bookingResp, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toBookingResp(b))
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "bookings": out})
}

package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eventbooking/server/internal/model"
	"github.com/eventbooking/server/internal/service"
)

// BookingHandler bundles the booking service for seat endpoints.
type BookingHandler struct {
	Bookings *service.BookingService
}

// NewBookingHandler constructs a BookingHandler and panics if the service is nil.
func NewBookingHandler(bookings *service.BookingService) *BookingHandler {
	if bookings == nil {
		panic("nil service passed to NewBookingHandler")
	}
	return &BookingHandler{Bookings: bookings}
}

// ----- DTOs -----

type bookingReq struct {
	EventCategoryID uint64   `json:"eventCategoryId"`
	SeatIDs         []string `json:"seatIds"`
	Seats           uint32   `json:"seats"`
}

type bookingResp struct {
	ID          uint64   `json:"id"`
	CategoryID  uint64   `json:"eventCategoryId"`
	Seats       []string `json:"seats"`
	SeatsBooked uint32   `json:"seatsBooked"`
	Status      string   `json:"status"`
	BookingTime string   `json:"bookingTime"`
}

type holdResp struct {
	CategoryID uint64   `json:"eventCategoryId"`
	Seats      []string `json:"seats"`
	ExpiresAt  string   `json:"expiresAt"`
}

func toBookingResp(b model.Booking) bookingResp {
	return bookingResp{
		ID:          b.ID,
		CategoryID:  b.EventCategoryID,
		Seats:       b.SeatIdentifiers.Sorted(),
		SeatsBooked: b.SeatsBooked,
		Status:      b.Status,
		BookingTime: b.BookingTime.UTC().Format(time.RFC3339),
	}
}

// bindBookingReq validates the common request shape.  When seats is zero
// the quantity is inferred from the explicit seat list.
func bindBookingReq(c echo.Context, userID uint64) (service.BookingRequest, bool) {
	var req bookingReq
	if err := c.Bind(&req); err != nil {
		return service.BookingRequest{}, false
	}
	if req.Seats == 0 {
		req.Seats = uint32(len(req.SeatIDs))
	}
	if req.EventCategoryID == 0 || req.Seats == 0 {
		return service.BookingRequest{}, false
	}
	if len(req.SeatIDs) > 0 && uint32(len(req.SeatIDs)) != req.Seats {
		return service.BookingRequest{}, false
	}
	return service.BookingRequest{
		EventCategoryID: req.EventCategoryID,
		UserID:          userID,
		SeatIDs:         req.SeatIDs,
		Seats:           req.Seats,
	}, true
}

// Book commits a booking atomically.  POST /api/bookings
func (h *BookingHandler) Book(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	req, ok := bindBookingReq(c, uid)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	booking, err := h.Bookings.BookSeats(ctx, req)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusCreated, toBookingResp(booking))
}

// Hold places a soft seat hold for the caller.  POST /api/bookings/hold
func (h *BookingHandler) Hold(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	req, ok := bindBookingReq(c, uid)
	if !ok || len(req.SeatIDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	hold, err := h.Bookings.HoldSeats(ctx, req)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, holdResp{
		CategoryID: hold.EventCategoryID,
		Seats:      hold.SeatIdentifiers.Sorted(),
		ExpiresAt:  hold.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Occupied returns the public occupied-seat view for a category.
// GET /api/bookings/occupied/:categoryId
func (h *BookingHandler) Occupied(c echo.Context) error {
	categoryID, err := pathID(c, "categoryId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid category id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	seats, err := h.Bookings.OccupiedSeats(ctx, categoryID)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"occupiedSeats": seats})
}

// MyBookings lists the caller's bookings.  GET /api/bookings/user
func (h *BookingHandler) MyBookings(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	bookings, err := h.Bookings.UserBookings(ctx, uid)
	if err != nil {
		return writeDomainError(c, err)
	}
	out := make([]bookingResp, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toBookingResp(b))
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": out})
}

// Verify reports ticket validity without consuming it.
// GET /api/bookings/:id/verify
func (h *BookingHandler) Verify(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Bookings.VerifyTicket(ctx, id)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Scan checks a ticket in at the gate.  POST /api/bookings/:id/scan
func (h *BookingHandler) Scan(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Bookings.ScanTicket(ctx, id)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eventbooking/server/internal/gateway"
	"github.com/eventbooking/server/internal/repository"
	"github.com/eventbooking/server/internal/service"
)

// writeDomainError maps the typed errors of the service and repository
// layers onto HTTP responses.  Every body carries a stable machine
// readable "error" code; conflict style errors include their detail
// fields so clients can render a precise message.
func writeDomainError(c echo.Context, err error) error {
	var seatConflict *repository.SeatConflictError
	var insufficient *repository.InsufficientSeatsError
	var ticketLimit *repository.TicketLimitError
	var notOpen *repository.BookingNotOpenError

	switch {
	case errors.As(err, &seatConflict):
		return c.JSON(http.StatusConflict, echo.Map{
			"error": "SEAT_ALREADY_TAKEN",
			"seat":  seatConflict.Seat,
		})
	case errors.As(err, &insufficient):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":     "INSUFFICIENT_SEATS",
			"category":  insufficient.Category,
			"requested": insufficient.Requested,
			"available": insufficient.Available,
		})
	case errors.As(err, &ticketLimit):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"error":     "TICKET_LIMIT_EXCEEDED",
			"eventType": ticketLimit.EventType,
			"limit":     ticketLimit.Limit,
		})
	case errors.As(err, &notOpen):
		return c.JSON(http.StatusForbidden, echo.Map{
			"error":   "BOOKING_NOT_OPEN",
			"opensAt": notOpen.OpensAt,
		})
	case errors.Is(err, service.ErrSeatCountMismatch):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "SEAT_COUNT_MISMATCH"})
	case errors.Is(err, repository.ErrEventFinished):
		return c.JSON(http.StatusGone, echo.Map{"error": "EVENT_FINISHED"})
	case errors.Is(err, repository.ErrCategoryNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "CATEGORY_NOT_FOUND"})
	case errors.Is(err, repository.ErrUserNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "USER_NOT_FOUND"})
	case errors.Is(err, repository.ErrBookingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "BOOKING_NOT_FOUND"})
	case errors.Is(err, repository.ErrNoPendingBooking):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "NO_PENDING_BOOKING"})
	case errors.Is(err, repository.ErrDuplicatePayment):
		return c.JSON(http.StatusConflict, echo.Map{"error": "DUPLICATE_PAYMENT"})
	case errors.Is(err, service.ErrPaymentNotReceived):
		return c.JSON(http.StatusPaymentRequired, echo.Map{"error": "PAYMENT_NOT_RECEIVED"})
	case errors.Is(err, gateway.ErrUnavailable):
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "WALLET_SERVICE_UNAVAILABLE"})
	}
	c.Logger().Error(err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "INTERNAL"})
}

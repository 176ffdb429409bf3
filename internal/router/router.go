package router // registers the HTTP routes of the booking API

import (
	"github.com/labstack/echo/v4"

	"github.com/eventbooking/server/internal/handler"
	"github.com/eventbooking/server/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only the health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the register/login endpoints under /api/auth.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler) {
	g := e.Group("/api/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
}

// RegisterBookings registers the booking endpoints.  The occupied-seats
// view and the gate scanner endpoints are public; everything else needs a
// valid access token.
func RegisterBookings(e *echo.Echo, b *handler.BookingHandler, jwtSecret string) {
	e.GET("/api/bookings/occupied/:categoryId", b.Occupied)
	e.GET("/api/bookings/:id/verify", b.Verify)
	e.POST("/api/bookings/:id/scan", b.Scan)

	auth := e.Group("/api/bookings")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.POST("", b.Book)
	auth.POST("/hold", b.Hold)
	auth.GET("/user", b.MyBookings)
}

// RegisterPayments registers payment initiation, finalization and the
// gateway webhook.  The webhook authenticates itself with the HMAC
// signature, not a JWT.
func RegisterPayments(e *echo.Echo, p *handler.PaymentHandler, w *handler.WebhookHandler, jwtSecret string) {
	e.POST("/api/payments/webhook-callback", w.HandleCallback)

	auth := e.Group("/api/payments")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.POST("/initiate-wallet-transfer", p.InitiateWalletTransfer)
	auth.POST("/finalize-wallet", p.FinalizeWallet)
}

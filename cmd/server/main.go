package main // Entry point of the event booking server

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/eventbooking/server/internal/cache"
	"github.com/eventbooking/server/internal/clock"
	"github.com/eventbooking/server/internal/config"
	"github.com/eventbooking/server/internal/database"
	"github.com/eventbooking/server/internal/gateway"
	"github.com/eventbooking/server/internal/handler"
	"github.com/eventbooking/server/internal/queue"
	"github.com/eventbooking/server/internal/repository"
	"github.com/eventbooking/server/internal/router"
	"github.com/eventbooking/server/internal/service"
	"github.com/eventbooking/server/migrations"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	if err := migrations.Apply(ctx, db); err != nil {
		cancel()
		log.Fatalf("apply migrations: %v", err)
	}
	cancel()

	store := repository.NewStore(db)
	clk := clock.NewSystem()
	publisher := queue.NewPublisher()
	pendingCache := cache.NewPendingCache(config.NewRedisClient())
	wallet := gateway.NewClient(cfg.WalletServiceURL, cfg.WalletAPIKey)

	bookings := service.NewBookingService(store, clk, publisher,
		service.WithHoldTTL(cfg.HoldTTL))
	payments := service.NewPaymentService(store, bookings, wallet, pendingCache,
		clk, cfg.WalletMerchantID, cfg.CallbackURL)

	// Ticket email delivery runs off the broker so a slow SMTP server never
	// blocks a booking response.
	go func() {
		if err := queue.StartTicketEmailConsumer(); err != nil {
			log.Printf("ticket email consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, store))
	router.RegisterBookings(e, handler.NewBookingHandler(bookings), cfg.JWTSecret)
	router.RegisterPayments(e,
		handler.NewPaymentHandler(payments),
		handler.NewWebhookHandler(payments, publisher, cfg.WebhookSecret),
		cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}

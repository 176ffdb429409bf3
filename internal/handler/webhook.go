package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eventbooking/server/internal/model"
	"github.com/eventbooking/server/internal/queue"
)

// PaymentProcessor is the slice of the payment service the webhook needs.
type PaymentProcessor interface {
	ProcessSuccessfulPayment(ctx context.Context, referenceID string) ([]model.Booking, error)
}

// UpdatePublisher pushes payment state changes to interested consumers.
type UpdatePublisher interface {
	PublishPaymentUpdate(ctx context.Context, event queue.PaymentUpdateEvent) error
}

// WebhookHandler receives asynchronous payment notifications from the
// wallet gateway.
type WebhookHandler struct {
	Payments  PaymentProcessor
	Publisher UpdatePublisher
	secret    []byte
}

func NewWebhookHandler(payments PaymentProcessor, pub UpdatePublisher, secret string) *WebhookHandler {
	if payments == nil {
		panic("nil service passed to NewWebhookHandler")
	}
	return &WebhookHandler{Payments: payments, Publisher: pub, secret: []byte(secret)}
}

// webhookPayload mirrors the gateway's notification body.  The gateway
// names the payment reference "reference"; "referenceId" is accepted as
// well for callers that mirror our own finalize request shape.
type webhookPayload struct {
	Event       string `json:"event"`
	Status      string `json:"status"`
	Reference   string `json:"reference"`
	ReferenceID string `json:"referenceId"`
	Amount      uint64 `json:"amount"`
}

func (p webhookPayload) reference() string {
	if p.Reference != "" {
		return p.Reference
	}
	return p.ReferenceID
}

// verifySignature checks that sig is the hex HMAC-SHA256 of body under the
// shared webhook secret.  Comparison is constant time.
func (h *WebhookHandler) verifySignature(body []byte, sig string) bool {
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	want, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	return hmac.Equal(want, mac.Sum(nil))
}

// HandleCallback verifies the X-Signature header over the raw body,
// processes successful payments and answers "OK" quickly so the gateway
// does not re-deliver.  POST /api/payments/webhook-callback
func (h *WebhookHandler) HandleCallback(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
	}
	if !h.verifySignature(body, c.Request().Header.Get("X-Signature")) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid signature"})
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	reference := payload.reference()
	if payload.Event == "payment.success" && payload.Status == "SUCCESS" && reference != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		status := "SUCCESS"
		reason := ""
		if _, err := h.Payments.ProcessSuccessfulPayment(ctx, reference); err != nil {
			// The webhook response never carries the failure: the gateway
			// only needs the acknowledgement, and the client learns the
			// state from the payment.updated push or by finalizing again.
			log.Printf("webhook: process payment %s failed: %v", reference, err)
			status = "FAILED"
			reason = err.Error()
		}
		if h.Publisher != nil {
			update := queue.PaymentUpdateEvent{
				Reference: reference,
				Status:    status,
				Amount:    payload.Amount,
				Reason:    reason,
			}
			if err := h.Publisher.PublishPaymentUpdate(ctx, update); err != nil {
				log.Printf("webhook: publish payment update for %s failed: %v", reference, err)
			}
		}
	}
	return c.String(http.StatusOK, "OK")
}

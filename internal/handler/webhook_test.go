package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/eventbooking/server/internal/model"
	"github.com/eventbooking/server/internal/queue"
)

type stubProcessor struct {
	refs []string
	err  error
}

func (s *stubProcessor) ProcessSuccessfulPayment(ctx context.Context, referenceID string) ([]model.Booking, error) {
	s.refs = append(s.refs, referenceID)
	return nil, s.err
}

type stubUpdatePublisher struct {
	updates []queue.PaymentUpdateEvent
}

func (s *stubUpdatePublisher) PublishPaymentUpdate(ctx context.Context, event queue.PaymentUpdateEvent) error {
	s.updates = append(s.updates, event)
	return nil
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(h *WebhookHandler, body, signature string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook-callback", strings.NewReader(body))
	if signature != "" {
		req.Header.Set("X-Signature", signature)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h.HandleCallback(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestWebhookHandler_HandleCallback(t *testing.T) {
	const secret = "webhook-secret"
	// The gateway names the reference field "reference".
	body := `{"event":"payment.success","status":"SUCCESS","reference":"ref-1","amount":5000}`

	t.Run("valid signature processes the payment and answers OK", func(t *testing.T) {
		proc := &stubProcessor{}
		pub := &stubUpdatePublisher{}
		h := NewWebhookHandler(proc, pub, secret)

		rec := postWebhook(h, body, sign(secret, []byte(body)))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "OK", rec.Body.String())
		require.Equal(t, []string{"ref-1"}, proc.refs)

		require.Len(t, pub.updates, 1)
		require.Equal(t, "ref-1", pub.updates[0].Reference)
		require.Equal(t, "SUCCESS", pub.updates[0].Status)
		require.Equal(t, uint64(5000), pub.updates[0].Amount)
	})

	t.Run("tampered body is rejected with 401", func(t *testing.T) {
		proc := &stubProcessor{}
		h := NewWebhookHandler(proc, &stubUpdatePublisher{}, secret)

		tampered := strings.Replace(body, "5000", "1", 1)
		rec := postWebhook(h, tampered, sign(secret, []byte(body)))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Empty(t, proc.refs)
	})

	t.Run("missing signature is rejected with 401", func(t *testing.T) {
		proc := &stubProcessor{}
		h := NewWebhookHandler(proc, &stubUpdatePublisher{}, secret)

		rec := postWebhook(h, body, "")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Empty(t, proc.refs)
	})

	t.Run("referenceId is accepted as an alias", func(t *testing.T) {
		proc := &stubProcessor{}
		h := NewWebhookHandler(proc, &stubUpdatePublisher{}, secret)

		alias := `{"event":"payment.success","status":"SUCCESS","referenceId":"ref-9","amount":100}`
		rec := postWebhook(h, alias, sign(secret, []byte(alias)))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, []string{"ref-9"}, proc.refs)
	})

	t.Run("success event without a reference is not processed", func(t *testing.T) {
		proc := &stubProcessor{}
		pub := &stubUpdatePublisher{}
		h := NewWebhookHandler(proc, pub, secret)

		blank := `{"event":"payment.success","status":"SUCCESS","amount":100}`
		rec := postWebhook(h, blank, sign(secret, []byte(blank)))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Empty(t, proc.refs)
		require.Empty(t, pub.updates)
	})

	t.Run("non-success events are acknowledged without processing", func(t *testing.T) {
		proc := &stubProcessor{}
		pub := &stubUpdatePublisher{}
		h := NewWebhookHandler(proc, pub, secret)

		pending := `{"event":"payment.pending","status":"PENDING","referenceId":"ref-2"}`
		rec := postWebhook(h, pending, sign(secret, []byte(pending)))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "OK", rec.Body.String())
		require.Empty(t, proc.refs)
		require.Empty(t, pub.updates)
	})

	t.Run("processing failure still acknowledges and pushes FAILED", func(t *testing.T) {
		proc := &stubProcessor{err: context.DeadlineExceeded}
		pub := &stubUpdatePublisher{}
		h := NewWebhookHandler(proc, pub, secret)

		rec := postWebhook(h, body, sign(secret, []byte(body)))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "OK", rec.Body.String())
		require.Len(t, pub.updates, 1)
		require.Equal(t, "FAILED", pub.updates[0].Status)
		require.NotEmpty(t, pub.updates[0].Reason)
	})
}

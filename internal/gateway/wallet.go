// Package gateway implements the HTTP client for the external wallet
// service.  The gateway is treated as an opaque oracle: it creates hosted
// payment sessions and answers whether a reference has been paid.  Calls
// can fail, time out or be answered twice; the client only bounds the
// failure modes with request timeouts and a small retry budget, the
// reconciliation logic above it makes duplicates safe.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"
)

// ErrUnavailable is returned once the retry budget for a gateway call is
// exhausted.  No state has been committed when it surfaces.
var ErrUnavailable = errors.New("wallet gateway unavailable")

const (
	createAttempts = 2
	createBackoff  = 500 * time.Millisecond
	verifyAttempts = 3
	verifyBackoff  = 250 * time.Millisecond
)

// PaymentRequest is the hosted payment session returned by the gateway's
// create-request endpoint.
type PaymentRequest struct {
	PaymentURL string `json:"paymentUrl"`
	Token      string `json:"token"`
}

// Client talks to the wallet service over HTTP.  Every request carries a
// hard timeout so a stalled gateway cannot pin a worker indefinitely.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient returns a Client for the given base URL.  The api key is sent
// as x-api-key on verification calls.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// CreatePaymentRequest asks the gateway to open a hosted payment session
// for the given amount and reference.  The callback URL is where the
// gateway will post its success webhook.  The call is retried once with a
// fixed backoff; after that ErrUnavailable is returned and the caller
// decides what to do with the already-persisted pending record.
func (c *Client) CreatePaymentRequest(ctx context.Context, amountCents uint64, reference, callbackURL string) (PaymentRequest, error) {
	body, err := json.Marshal(map[string]interface{}{
		"amount":      amountCents,
		"reference":   reference,
		"callbackUrl": callbackURL,
	})
	if err != nil {
		return PaymentRequest{}, err
	}

	var lastErr error
	for attempt := 1; attempt <= createAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return PaymentRequest{}, ctx.Err()
			case <-time.After(createBackoff):
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/wallet/transfer", bytes.NewReader(body))
		if err != nil {
			return PaymentRequest{}, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			log.Printf("wallet-gateway: create request attempt %d failed: %v", attempt, err)
			continue
		}
		var out PaymentRequest
		err = decodeResponse(resp, &out)
		if err != nil {
			lastErr = err
			log.Printf("wallet-gateway: create request attempt %d failed: %v", attempt, err)
			continue
		}
		return out, nil
	}
	return PaymentRequest{}, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

// VerifyReference asks the gateway whether a payment with the given
// reference has been received for the merchant.  Retried with escalating
// delay; a definitive "received: false" answer is NOT retried, only
// transport failures are.
func (c *Client) VerifyReference(ctx context.Context, merchantID, referenceID string) (bool, error) {
	q := url.Values{}
	q.Set("merchantId", merchantID)
	q.Set("referenceId", referenceID)
	endpoint := c.baseURL + "/api/external/verify-reference?" + q.Encode()

	var lastErr error
	for attempt := 1; attempt <= verifyAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(time.Duration(attempt-1) * verifyBackoff):
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return false, err
		}
		req.Header.Set("x-api-key", c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			log.Printf("wallet-gateway: verify attempt %d failed: %v", attempt, err)
			continue
		}
		var out struct {
			Received bool `json:"received"`
		}
		err = decodeResponse(resp, &out)
		if err != nil {
			lastErr = err
			log.Printf("wallet-gateway: verify attempt %d failed: %v", attempt, err)
			continue
		}
		return out.Received, nil
	}
	return false, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func decodeResponse(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

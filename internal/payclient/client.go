// Package payclient is the bounded-retry caller payment clients use to
// confirm a gateway transaction with the reconciliation endpoint. It
// bridges the gap between "the gateway said success" and "the server
// recorded it": transport flakiness is retried, terminal rejections are
// surfaced at once, and exhausted retries report Pending rather than
// failure because the server may still credit the payment asynchronously.
//
// Retrying is safe only because the server enforces idempotency on the
// gateway reference; a repeat confirmation replays the recorded payment
// instead of crediting it twice.
package payclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Outcome classifies the end state of a confirmation attempt sequence.
type Outcome string

const (
	// OutcomeConfirmed: the server recorded (or had already recorded) the
	// payment.
	OutcomeConfirmed Outcome = "confirmed"
	// OutcomeRejected: the server refused for a terminal reason; retrying
	// cannot change the answer.
	OutcomeRejected Outcome = "rejected"
	// OutcomePending: attempts ran out without a terminal answer. The
	// payment may still be processed; the payer must not be told it failed.
	OutcomePending Outcome = "pending"
)

type Result struct {
	Outcome          Outcome `json:"outcome"`
	Message          string  `json:"message,omitempty"`
	PaymentID        int64   `json:"payment_id,omitempty"`
	PaymentReference string  `json:"payment_reference,omitempty"`
	Replayed         bool    `json:"replayed,omitempty"`
	Attempts         int     `json:"attempts"`
}

type Client struct {
	BaseURL     string
	HTTPClient  *http.Client
	MaxAttempts int
	BaseDelay   time.Duration
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		HTTPClient:  &http.Client{Timeout: 15 * time.Second},
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
	}
}

// ConfirmPayment asks the server to credit gatewayReference to billID,
// retrying transient failures with a linearly growing backoff. It returns
// an error only when the context ends; every other path is a Result.
func (c *Client) ConfirmPayment(ctx context.Context, gatewayReference string, billID int64) (Result, error) {
	maxAttempts := c.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	baseDelay := c.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}

	var lastMessage string
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, retriable, err := c.confirmOnce(ctx, gatewayReference, billID)
		if err == nil {
			result.Attempts = attempt
			return result, nil
		}
		if ctx.Err() != nil {
			return Result{Attempts: attempt}, ctx.Err()
		}
		if !retriable {
			return Result{Outcome: OutcomeRejected, Message: err.Error(), Attempts: attempt}, nil
		}
		lastMessage = err.Error()

		if attempt < maxAttempts {
			select {
			case <-time.After(time.Duration(attempt) * baseDelay):
			case <-ctx.Done():
				return Result{Attempts: attempt}, ctx.Err()
			}
		}
	}
	return Result{
		Outcome:  OutcomePending,
		Message:  fmt.Sprintf("confirmation not acknowledged after %d attempts: %s", maxAttempts, lastMessage),
		Attempts: maxAttempts,
	}, nil
}

// confirmOnce performs one POST /payments/confirm round trip. The bool
// reports whether a failure is worth retrying: transport errors and 5xx
// are, 4xx rejections are not.
func (c *Client) confirmOnce(ctx context.Context, gatewayReference string, billID int64) (Result, bool, error) {
	body, err := json.Marshal(map[string]any{
		"gateway_reference": gatewayReference,
		"bill_id":           billID,
	})
	if err != nil {
		return Result{}, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/payments/confirm", bytes.NewReader(body))
	if err != nil {
		return Result{}, false, err
	}
	req.Header.Set("Content-Type", "application/json")

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return Result{}, true, fmt.Errorf("confirm request: %w", err)
	}
	defer resp.Body.Close()

	var payload struct {
		Success          bool   `json:"success"`
		Message          string `json:"message"`
		PaymentID        int64  `json:"payment_id"`
		PaymentReference string `json:"payment_reference"`
		Replayed         bool   `json:"replayed"`
	}
	decodeErr := json.NewDecoder(resp.Body).Decode(&payload)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if decodeErr != nil {
			return Result{}, true, fmt.Errorf("decode confirm response: %w", decodeErr)
		}
		if !payload.Success {
			return Result{}, false, fmt.Errorf("confirmation rejected: %s", payload.Message)
		}
		return Result{
			Outcome:          OutcomeConfirmed,
			Message:          payload.Message,
			PaymentID:        payload.PaymentID,
			PaymentReference: payload.PaymentReference,
			Replayed:         payload.Replayed,
		}, false, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		message := payload.Message
		if message == "" {
			message = resp.Status
		}
		return Result{}, false, fmt.Errorf("confirmation rejected: %s", message)
	default:
		message := payload.Message
		if message == "" {
			message = resp.Status
		}
		return Result{}, true, fmt.Errorf("server unavailable: %s", message)
	}
}

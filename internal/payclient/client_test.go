package payclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func fastClient(baseURL string) *Client {
	c := New(baseURL)
	c.BaseDelay = time.Millisecond
	return c
}

func TestConfirmPayment_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/payments/confirm" {
			t.Errorf("unexpected path: %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"success":true,"message":"payment recorded","payment_id":101,"payment_reference":"PAY-20260402-abcd1234"}`))
	}))
	defer ts.Close()

	result, err := fastClient(ts.URL).ConfirmPayment(context.Background(), "ps_ref_1", 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != OutcomeConfirmed {
		t.Errorf("outcome = %q, want confirmed", result.Outcome)
	}
	if result.PaymentID != 101 {
		t.Errorf("payment id = %d", result.PaymentID)
	}
	if result.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", result.Attempts)
	}
}

func TestConfirmPayment_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"success":false,"message":"payment storage unavailable"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"payment_id":101,"replayed":true}`))
	}))
	defer ts.Close()

	result, err := fastClient(ts.URL).ConfirmPayment(context.Background(), "ps_ref_1", 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != OutcomeConfirmed {
		t.Errorf("outcome = %q, want confirmed", result.Outcome)
	}
	if !result.Replayed {
		t.Errorf("expected replayed result")
	}
	if result.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", result.Attempts)
	}
}

func TestConfirmPayment_ExhaustionReportsPending(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"success":false,"message":"payment storage unavailable"}`))
	}))
	defer ts.Close()

	result, err := fastClient(ts.URL).ConfirmPayment(context.Background(), "ps_ref_1", 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != OutcomePending {
		t.Errorf("outcome = %q, want pending", result.Outcome)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server saw %d calls, want 3", got)
	}
	if result.Message == "" {
		t.Errorf("expected message to carry the last failure")
	}
}

func TestConfirmPayment_TerminalRejectionStopsAtOnce(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"success":false,"message":"overpayment rejected"}`))
	}))
	defer ts.Close()

	result, err := fastClient(ts.URL).ConfirmPayment(context.Background(), "ps_ref_1", 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != OutcomeRejected {
		t.Errorf("outcome = %q, want rejected", result.Outcome)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server saw %d calls, want 1", got)
	}
}

func TestConfirmPayment_TransportErrorRetried(t *testing.T) {
	// Point at a closed server so every attempt fails in transport.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close()

	result, err := fastClient(ts.URL).ConfirmPayment(context.Background(), "ps_ref_1", 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != OutcomePending {
		t.Errorf("outcome = %q, want pending", result.Outcome)
	}
}

func TestConfirmPayment_ContextCancelled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fastClient(ts.URL).ConfirmPayment(ctx, "ps_ref_1", 42)
	if err == nil {
		t.Fatalf("expected context error")
	}
}

package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fransoakusi/quickbill-360-sub009/internal/models"
)

func newTestPaystack(t *testing.T, baseURL string) *PaystackService {
	t.Helper()
	svc, err := NewPaystackService(PaystackConfig{
		SecretKey: "sk_test_secret",
		BaseURL:   baseURL,
		Currency:  "GHS",
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return svc
}

func TestVerify_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test_secret" {
			t.Errorf("unexpected authorization header: %q", got)
		}
		if !strings.Contains(r.URL.Path, "/transaction/verify/ps_ref_1") {
			t.Errorf("unexpected path: %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{
            "status": true,
            "message": "Verification successful",
            "data": {
                "status": "success",
                "reference": "ps_ref_1",
                "amount": 21250,
                "currency": "GHS",
                "channel": "mobile_money",
                "paid_at": "2026-04-02T10:00:00Z",
                "customer": {"email": "owner@example.com"}
            }
        }`))
	}))
	defer ts.Close()

	svc := newTestPaystack(t, ts.URL)
	tx, err := svc.Verify(context.Background(), "ps_ref_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.Reference != "ps_ref_1" {
		t.Errorf("reference mismatch: %q", tx.Reference)
	}
	if tx.AmountMinor != 21250 {
		t.Errorf("amount minor mismatch: %d", tx.AmountMinor)
	}
	if !tx.Amount.Equal(d("212.50")) {
		t.Errorf("amount mismatch: %s", tx.Amount)
	}
	if tx.Currency != "GHS" {
		t.Errorf("currency mismatch: %q", tx.Currency)
	}
	if tx.Channel != "mobile_money" {
		t.Errorf("channel mismatch: %q", tx.Channel)
	}
	if tx.CustomerEmail != "owner@example.com" {
		t.Errorf("customer email mismatch: %q", tx.CustomerEmail)
	}
}

func TestVerify_GatewayReportsFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
            "status": true,
            "message": "Verification successful",
            "data": {"status": "failed", "reference": "ps_ref_1", "amount": 21250, "currency": "GHS"}
        }`))
	}))
	defer ts.Close()

	svc := newTestPaystack(t, ts.URL)
	_, err := svc.Verify(context.Background(), "ps_ref_1")
	if !errors.Is(err, models.ErrVerificationFailed) {
		t.Fatalf("expected ErrVerificationFailed, got %v", err)
	}
}

func TestVerify_Non200ReturnsPaystackError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"status":false,"message":"Transaction reference not found"}`))
	}))
	defer ts.Close()

	svc := newTestPaystack(t, ts.URL)
	_, err := svc.Verify(context.Background(), "missing_ref")
	if err == nil {
		t.Fatalf("expected error, got nil")
	}

	apiErr, ok := err.(*PaystackError)
	if !ok {
		t.Fatalf("expected PaystackError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("unexpected status code: %d", apiErr.StatusCode)
	}
	if apiErr.Body == "" {
		t.Errorf("expected body to be populated")
	}
}

func TestVerify_EmptyReference(t *testing.T) {
	svc := newTestPaystack(t, "https://api.paystack.co")
	_, err := svc.Verify(context.Background(), "  ")
	if !errors.Is(err, models.ErrVerificationFailed) {
		t.Fatalf("expected ErrVerificationFailed, got %v", err)
	}
}

func TestInitializeTransaction(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		_, _ = w.Write([]byte(`{
            "status": true,
            "message": "Authorization URL created",
            "data": {
                "authorization_url": "https://checkout.paystack.com/abc123",
                "access_code": "abc123",
                "reference": "QB360-42-xyz"
            }
        }`))
	}))
	defer ts.Close()

	svc := newTestPaystack(t, ts.URL)
	resp, err := svc.InitializeTransaction(context.Background(), InitializeRequest{
		BillID:    42,
		Email:     "owner@example.com",
		Amount:    d("212.50"),
		Reference: "QB360-42-xyz",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.AuthorizationURL != "https://checkout.paystack.com/abc123" {
		t.Errorf("authorization url mismatch: %q", resp.AuthorizationURL)
	}
	if resp.Reference != "QB360-42-xyz" {
		t.Errorf("reference mismatch: %q", resp.Reference)
	}
}

func TestWebhookEvent_UnmarshalJSON_NumericBillID(t *testing.T) {
	payload := []byte(`{
        "event": "charge.success",
        "data": {
            "reference": "ps_ref_1",
            "amount": 21250,
            "currency": "ghs",
            "status": "success",
            "metadata": {"bill_id": 42}
        }
    }`)

	svc := newTestPaystack(t, "https://api.paystack.co")
	e, err := svc.ParseWebhook(strings.NewReader(string(payload)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Event != "charge.success" {
		t.Errorf("event mismatch: %q", e.Event)
	}
	if e.Reference != "ps_ref_1" {
		t.Errorf("reference mismatch: %q", e.Reference)
	}
	if e.BillID != 42 {
		t.Errorf("bill id mismatch: %d", e.BillID)
	}
	if e.Currency != "GHS" {
		t.Errorf("currency mismatch: %q", e.Currency)
	}
	if !e.Amount.Equal(d("212.50")) {
		t.Errorf("amount mismatch: %s", e.Amount)
	}
}

func TestWebhookEvent_UnmarshalJSON_StringBillID(t *testing.T) {
	payload := []byte(`{
        "event": "charge.success",
        "data": {
            "reference": "ps_ref_1",
            "amount": 21250,
            "currency": "GHS",
            "status": "success",
            "metadata": {"bill_id": "42"}
        }
    }`)

	svc := newTestPaystack(t, "https://api.paystack.co")
	e, err := svc.ParseWebhook(strings.NewReader(string(payload)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.BillID != 42 {
		t.Errorf("bill id mismatch: %d", e.BillID)
	}
}

func TestValidateWebhookSignature(t *testing.T) {
	svc := newTestPaystack(t, "https://api.paystack.co")
	body := []byte(`{"event":"charge.success"}`)

	mac := hmac.New(sha512.New, []byte("sk_test_secret"))
	mac.Write(body)
	valid := hex.EncodeToString(mac.Sum(nil))

	if !svc.ValidateWebhookSignature(body, valid) {
		t.Errorf("expected valid signature to pass")
	}
	if svc.ValidateWebhookSignature(body, "deadbeef") {
		t.Errorf("expected wrong signature to fail")
	}
	if svc.ValidateWebhookSignature(body, "") {
		t.Errorf("expected empty signature to fail")
	}
	if svc.ValidateWebhookSignature(body, "not-hex!") {
		t.Errorf("expected non-hex signature to fail")
	}
}

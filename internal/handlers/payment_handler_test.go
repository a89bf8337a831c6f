package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fransoakusi/quickbill-360-sub009/internal/models"
	"github.com/fransoakusi/quickbill-360-sub009/internal/services"
)

type fakeReconciler struct {
	result     services.ReconciliationResult
	err        error
	calls      int
	lastRef    string
	lastBillID int64
}

func (f *fakeReconciler) ApplyPayment(ctx context.Context, gatewayReference string, billID int64) (services.ReconciliationResult, error) {
	f.calls++
	f.lastRef = gatewayReference
	f.lastBillID = billID
	return f.result, f.err
}

type fakeGateway struct {
	sigValid bool
	event    *services.WebhookEvent
	parseErr error
}

func (f *fakeGateway) InitializeTransaction(ctx context.Context, req services.InitializeRequest) (*services.InitializeResponse, error) {
	return &services.InitializeResponse{AuthorizationURL: "https://checkout.example/x", Reference: req.Reference}, nil
}

func (f *fakeGateway) ParseWebhook(r io.Reader) (*services.WebhookEvent, error) {
	if f.parseErr != nil {
		return nil, f.parseErr
	}
	return f.event, nil
}

func (f *fakeGateway) ValidateWebhookSignature(body []byte, signature string) bool {
	return f.sigValid
}

func TestReconciliationErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"bill not found", models.ErrBillNotFound, http.StatusNotFound},
		{"account not found", models.ErrAccountNotFound, http.StatusNotFound},
		{"overpayment", models.ErrOverpaymentRejected, http.StatusUnprocessableEntity},
		{"verification failed", models.ErrVerificationFailed, http.StatusPaymentRequired},
		{"storage failure", models.ErrStorageFailure, http.StatusServiceUnavailable},
		{"wrapped storage failure", errors.Join(models.ErrStorageFailure, errors.New("driver: bad connection")), http.StatusServiceUnavailable},
		{"gateway 4xx passthrough", &services.PaystackError{StatusCode: http.StatusNotFound, Status: "404 Not Found"}, http.StatusNotFound},
		{"gateway 5xx", &services.PaystackError{StatusCode: http.StatusBadGateway, Status: "502 Bad Gateway"}, http.StatusBadGateway},
		{"unknown error", errors.New("boom"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := reconciliationErrorStatus(tt.err); got != tt.want {
				t.Errorf("status = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestConfirmPayment_Success(t *testing.T) {
	rec := &fakeReconciler{result: services.ReconciliationResult{
		PaymentID:        101,
		PaymentReference: "PAY-20260402-abcd1234",
		AmountPaid:       decimal.RequireFromString("212.50"),
		BillStatus:       models.BillStatusPartiallyPaid,
	}}
	h := &PaymentHandler{Reconciler: rec}

	req := httptest.NewRequest(http.MethodPost, "/payments/confirm",
		strings.NewReader(`{"gateway_reference":"ps_ref_1","bill_id":42}`))
	rr := httptest.NewRecorder()
	h.ConfirmPayment(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if rec.lastRef != "ps_ref_1" || rec.lastBillID != 42 {
		t.Errorf("reconciler called with %q/%d", rec.lastRef, rec.lastBillID)
	}

	var resp struct {
		Success          bool   `json:"success"`
		PaymentID        int64  `json:"payment_id"`
		PaymentReference string `json:"payment_reference"`
		Replayed         bool   `json:"replayed"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.PaymentID != 101 || resp.Replayed {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestConfirmPayment_MissingFields(t *testing.T) {
	h := &PaymentHandler{Reconciler: &fakeReconciler{}}

	req := httptest.NewRequest(http.MethodPost, "/payments/confirm",
		strings.NewReader(`{"bill_id":42}`))
	rr := httptest.NewRecorder()
	h.ConfirmPayment(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestConfirmPayment_OverpaymentMapsTo422(t *testing.T) {
	rec := &fakeReconciler{err: models.ErrOverpaymentRejected}
	h := &PaymentHandler{Reconciler: rec}

	req := httptest.NewRequest(http.MethodPost, "/payments/confirm",
		strings.NewReader(`{"gateway_reference":"ps_ref_1","bill_id":42}`))
	rr := httptest.NewRecorder()
	h.ConfirmPayment(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rr.Code)
	}
	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Success {
		t.Errorf("expected success=false")
	}
	if resp.Message == "" {
		t.Errorf("expected message to be populated")
	}
}

func TestWebhook_InvalidSignature(t *testing.T) {
	h := &PaymentHandler{
		Reconciler: &fakeReconciler{},
		Gateway:    &fakeGateway{sigValid: false},
	}

	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(`{}`))
	req.Header.Set("x-paystack-signature", "bad")
	rr := httptest.NewRecorder()
	h.Webhook(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
}

func TestWebhook_ChargeSuccessReconciles(t *testing.T) {
	rec := &fakeReconciler{result: services.ReconciliationResult{PaymentID: 101}}
	h := &PaymentHandler{
		Reconciler: rec,
		Gateway: &fakeGateway{sigValid: true, event: &services.WebhookEvent{
			Event:     "charge.success",
			Reference: "ps_ref_1",
			BillID:    42,
		}},
	}

	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	h.Webhook(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if rec.calls != 1 || rec.lastRef != "ps_ref_1" || rec.lastBillID != 42 {
		t.Errorf("reconciler calls = %d, ref = %q, bill = %d", rec.calls, rec.lastRef, rec.lastBillID)
	}
}

func TestWebhook_IgnoresOtherEvents(t *testing.T) {
	rec := &fakeReconciler{}
	h := &PaymentHandler{
		Reconciler: rec,
		Gateway:    &fakeGateway{sigValid: true, event: &services.WebhookEvent{Event: "transfer.success"}},
	}

	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	h.Webhook(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
	if rec.calls != 0 {
		t.Errorf("reconciler should not run for ignored events")
	}
}

func TestWebhook_TerminalRejectionAcknowledged(t *testing.T) {
	// Overpayment never resolves on redelivery, so the gateway gets a 200.
	rec := &fakeReconciler{err: models.ErrOverpaymentRejected}
	h := &PaymentHandler{
		Reconciler: rec,
		Gateway: &fakeGateway{sigValid: true, event: &services.WebhookEvent{
			Event:     "charge.success",
			Reference: "ps_ref_1",
			BillID:    42,
		}},
	}

	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	h.Webhook(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
}

func TestWebhook_StorageFailureRetried(t *testing.T) {
	rec := &fakeReconciler{err: models.ErrStorageFailure}
	h := &PaymentHandler{
		Reconciler: rec,
		Gateway: &fakeGateway{sigValid: true, event: &services.WebhookEvent{
			Event:     "charge.success",
			Reference: "ps_ref_1",
			BillID:    42,
		}},
	}

	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	h.Webhook(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rr.Code)
	}
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fransoakusi/quickbill-360-sub009/internal/models"
	"github.com/fransoakusi/quickbill-360-sub009/internal/repositories"
	"github.com/fransoakusi/quickbill-360-sub009/internal/services"
)

type reconciler interface {
	ApplyPayment(ctx context.Context, gatewayReference string, billID int64) (services.ReconciliationResult, error)
}

type checkoutGateway interface {
	InitializeTransaction(ctx context.Context, req services.InitializeRequest) (*services.InitializeResponse, error)
	ParseWebhook(r io.Reader) (*services.WebhookEvent, error)
	ValidateWebhookSignature(body []byte, signature string) bool
}

type PaymentHandler struct {
	Reconciler  reconciler
	Gateway     checkoutGateway
	BillRepo    *repositories.BillRepository
	PaymentRepo *repositories.PaymentRepository
	Balance     *services.BalanceService
}

func NewPaymentHandler(rec reconciler, gw checkoutGateway, bills *repositories.BillRepository, payments *repositories.PaymentRepository, balance *services.BalanceService) *PaymentHandler {
	return &PaymentHandler{Reconciler: rec, Gateway: gw, BillRepo: bills, PaymentRepo: payments, Balance: balance}
}

// InitiatePayment opens a gateway checkout session for a bill. The amount
// defaults to the account's remaining balance and may never exceed it.
func (h *PaymentHandler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	if h.Gateway == nil || h.BillRepo == nil || h.Balance == nil {
		errorJSON(w, http.StatusInternalServerError, "payments not initialized")
		return
	}

	var req struct {
		BillID int64  `json:"bill_id"`
		Email  string `json:"email"`
		Amount string `json:"amount,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.BillID <= 0 || strings.TrimSpace(req.Email) == "" {
		errorJSON(w, http.StatusBadRequest, "bill_id and email are required")
		return
	}

	bill, err := h.BillRepo.GetByID(r.Context(), req.BillID)
	if err != nil {
		if errors.Is(err, models.ErrBillNotFound) {
			errorJSON(w, http.StatusNotFound, "bill not found")
			return
		}
		errorJSON(w, http.StatusInternalServerError, "lookup bill: "+err.Error())
		return
	}

	balance, err := h.Balance.AccountBalance(r.Context(), bill.AccountRef())
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, "compute balance: "+err.Error())
		return
	}
	if !balance.RemainingBalance.IsPositive() {
		errorJSON(w, http.StatusUnprocessableEntity, "nothing outstanding on this account")
		return
	}

	amount := balance.RemainingBalance
	if strings.TrimSpace(req.Amount) != "" {
		amount, err = decimal.NewFromString(req.Amount)
		if err != nil || !amount.IsPositive() {
			errorJSON(w, http.StatusBadRequest, "invalid amount")
			return
		}
		if amount.GreaterThan(balance.RemainingBalance) {
			errorJSON(w, http.StatusUnprocessableEntity,
				fmt.Sprintf("amount %s exceeds remaining balance %s", amount, balance.RemainingBalance))
			return
		}
	}

	reference := fmt.Sprintf("QB360-%d-%s", bill.ID, strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	resp, err := h.Gateway.InitializeTransaction(r.Context(), services.InitializeRequest{
		BillID:    bill.ID,
		Email:     req.Email,
		Amount:    amount,
		Reference: reference,
	})
	if err != nil {
		errorJSON(w, gatewayErrorStatus(err), "initialize payment: "+err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":           true,
		"bill_number":       bill.BillNumber,
		"amount":            amount,
		"gateway_reference": resp.Reference,
		"authorization_url": resp.AuthorizationURL,
	})
}

// ConfirmPayment is the reconciliation entry point: the client claims a
// gateway reference settled and asks for it to be credited to a bill.
func (h *PaymentHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	if h.Reconciler == nil {
		errorJSON(w, http.StatusInternalServerError, "payments not initialized")
		return
	}

	var req struct {
		GatewayReference string `json:"gateway_reference"`
		BillID           int64  `json:"bill_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.GatewayReference) == "" || req.BillID <= 0 {
		errorJSON(w, http.StatusBadRequest, "gateway_reference and bill_id are required")
		return
	}

	result, err := h.Reconciler.ApplyPayment(r.Context(), strings.TrimSpace(req.GatewayReference), req.BillID)
	if err != nil {
		errorJSON(w, reconciliationErrorStatus(err), err.Error())
		return
	}

	message := "payment recorded"
	if result.Replayed {
		message = "payment already recorded"
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":           true,
		"message":           message,
		"payment_id":        result.PaymentID,
		"payment_reference": result.PaymentReference,
		"amount_paid":       result.AmountPaid,
		"bill_status":       result.BillStatus,
		"replayed":          result.Replayed,
	})
}

// Webhook handles Paystack event notifications. charge.success runs the
// same reconciliation path as ConfirmPayment; everything else is
// acknowledged and dropped.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if h.Gateway == nil || h.Reconciler == nil {
		errorJSON(w, http.StatusInternalServerError, "payments not initialized")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	if !h.Gateway.ValidateWebhookSignature(body, r.Header.Get("x-paystack-signature")) {
		errorJSON(w, http.StatusUnauthorized, "invalid webhook signature")
		return
	}

	event, err := h.Gateway.ParseWebhook(bytes.NewReader(body))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	if event.Event != "charge.success" {
		respondJSON(w, http.StatusOK, map[string]any{"success": true, "message": "ignored"})
		return
	}
	if event.Reference == "" || event.BillID <= 0 {
		errorJSON(w, http.StatusBadRequest, "missing reference or bill_id metadata")
		return
	}

	result, err := h.Reconciler.ApplyPayment(r.Context(), event.Reference, event.BillID)
	if err != nil {
		// Terminal rejections get a 200 so the gateway stops redelivering;
		// transient storage trouble gets a 5xx so it retries.
		if errors.Is(err, models.ErrStorageFailure) {
			errorJSON(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"success": false, "message": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"payment_id": result.PaymentID,
		"replayed":   result.Replayed,
	})
}

// GetPaymentsByBill returns the receipt data for one bill: its payments
// and the bill-scoped balance view.
func (h *PaymentHandler) GetPaymentsByBill(w http.ResponseWriter, r *http.Request) {
	billID, err := strconv.ParseInt(r.URL.Query().Get(":bill_id"), 10, 64)
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid bill_id")
		return
	}

	payments, err := h.PaymentRepo.ListByBill(r.Context(), billID)
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, "list payments: "+err.Error())
		return
	}
	balance, err := h.Balance.BillBalance(r.Context(), billID)
	if err != nil {
		if errors.Is(err, models.ErrBillNotFound) {
			errorJSON(w, http.StatusNotFound, "bill not found")
			return
		}
		errorJSON(w, http.StatusInternalServerError, "compute balance: "+err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"payments": payments,
		"balance":  balance,
	})
}

// ListRecentPayments is the admin audit list.
func (h *PaymentHandler) ListRecentPayments(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	payments, err := h.PaymentRepo.ListRecent(r.Context(), limit)
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, "list payments: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "payments": payments})
}

// reconciliationErrorStatus maps the failure taxonomy onto HTTP codes the
// retry wrapper understands: 4xx terminal, 5xx retriable.
func reconciliationErrorStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrBillNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrOverpaymentRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrVerificationFailed):
		return http.StatusPaymentRequired
	case errors.Is(err, models.ErrStorageFailure):
		return http.StatusServiceUnavailable
	}
	return gatewayErrorStatus(err)
}

func gatewayErrorStatus(err error) int {
	var apiErr *services.PaystackError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			return apiErr.StatusCode
		}
	}
	return http.StatusBadGateway
}

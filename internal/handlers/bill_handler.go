package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/fransoakusi/quickbill-360-sub009/internal/models"
	"github.com/fransoakusi/quickbill-360-sub009/internal/repositories"
	"github.com/fransoakusi/quickbill-360-sub009/internal/services"
)

type BillHandler struct {
	BillRepo *repositories.BillRepository
	Balance  *services.BalanceService
}

func NewBillHandler(bills *repositories.BillRepository, balance *services.BalanceService) *BillHandler {
	return &BillHandler{BillRepo: bills, Balance: balance}
}

// GetBillByID returns one bill together with its bill-scoped balance.
// The figure is informational; payment authorization always runs against
// the account-scoped balance.
func (h *BillHandler) GetBillByID(w http.ResponseWriter, r *http.Request) {
	billID, err := strconv.ParseInt(r.URL.Query().Get(":id"), 10, 64)
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid bill id")
		return
	}

	bill, err := h.BillRepo.GetByID(r.Context(), billID)
	if err != nil {
		if errors.Is(err, models.ErrBillNotFound) {
			errorJSON(w, http.StatusNotFound, "bill not found")
			return
		}
		errorJSON(w, http.StatusInternalServerError, "lookup bill: "+err.Error())
		return
	}
	balance, err := h.Balance.BillBalance(r.Context(), billID)
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, "compute balance: "+err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"bill":    bill,
		"balance": balance,
	})
}

func (h *BillHandler) GetBillsByAccount(w http.ResponseWriter, r *http.Request) {
	ref, ok := accountRefFromRequest(w, r)
	if !ok {
		return
	}

	bills, err := h.BillRepo.ListByAccount(r.Context(), ref)
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, "list bills: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "bills": bills})
}

// CreateBill ingests a bill row produced by the yearly generation job.
// The amount identity is enforced here; the engine never recomputes it.
func (h *BillHandler) CreateBill(w http.ResponseWriter, r *http.Request) {
	var bill models.Bill
	if err := json.NewDecoder(r.Body).Decode(&bill); err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	if bill.BillNumber == "" || bill.ReferenceID <= 0 || bill.BillingYear == 0 {
		errorJSON(w, http.StatusBadRequest, "bill_number, reference_id and billing_year are required")
		return
	}
	if _, err := models.ParseAccountType(string(bill.BillType)); err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := bill.ValidateAmounts(); err != nil {
		errorJSON(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	created, err := h.BillRepo.Create(r.Context(), bill)
	if err != nil {
		if errors.Is(err, models.ErrDuplicateBillNumber) {
			errorJSON(w, http.StatusConflict, "bill number already exists")
			return
		}
		errorJSON(w, http.StatusInternalServerError, "create bill: "+err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"success": true, "bill": created})
}

// accountRefFromRequest resolves the :type/:id route params into an
// AccountRef once; everything past the boundary works with the tag.
func accountRefFromRequest(w http.ResponseWriter, r *http.Request) (models.AccountRef, bool) {
	accountType, err := models.ParseAccountType(r.URL.Query().Get(":type"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return models.AccountRef{}, false
	}
	id, err := strconv.ParseInt(r.URL.Query().Get(":id"), 10, 64)
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid account id")
		return models.AccountRef{}, false
	}
	return models.AccountRef{Type: accountType, ID: id}, true
}

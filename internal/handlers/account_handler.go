package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fransoakusi/quickbill-360-sub009/internal/models"
	"github.com/fransoakusi/quickbill-360-sub009/internal/repositories"
	"github.com/fransoakusi/quickbill-360-sub009/internal/services"
)

type AccountHandler struct {
	AccountRepo *repositories.AccountRepository
	Balance     *services.BalanceService
}

func NewAccountHandler(accounts *repositories.AccountRepository, balance *services.BalanceService) *AccountHandler {
	return &AccountHandler{AccountRepo: accounts, Balance: balance}
}

// GetBalance returns the account-scoped balance summary, the figure all
// of the account's bills share for the current cycle.
func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	ref, ok := accountRefFromRequest(w, r)
	if !ok {
		return
	}

	account, err := h.AccountRepo.GetByRef(r.Context(), ref)
	if err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			errorJSON(w, http.StatusNotFound, "account not found")
			return
		}
		errorJSON(w, http.StatusInternalServerError, "lookup account: "+err.Error())
		return
	}
	balance, err := h.Balance.AccountBalance(r.Context(), ref)
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, "compute balance: "+err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"account_number": account.AccountNumber,
		"owner_name":     account.OwnerName,
		"account_type":   account.Type,
		"balance":        balance,
	})
}

// CreateAccount registers a billable entity. Registration itself carries
// no tariff logic; the assessed totals arrive from the generation side.
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var account models.Account
	if err := json.NewDecoder(r.Body).Decode(&account); err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := models.ParseAccountType(string(account.Type)); err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	if account.AccountNumber == "" || account.OwnerName == "" {
		errorJSON(w, http.StatusBadRequest, "account_number and owner_name are required")
		return
	}
	if account.TotalPayable.IsNegative() || account.PreviousPayments.IsNegative() {
		errorJSON(w, http.StatusUnprocessableEntity, "amounts must not be negative")
		return
	}
	// previous_payments is maintained solely by the settlement
	// transaction, so the gross-payable reconstruction always matches the
	// payment ledger. A migrated account registers with its remaining
	// amount as total_payable.
	if !account.PreviousPayments.IsZero() {
		errorJSON(w, http.StatusUnprocessableEntity, "previous_payments must be zero at registration; credits enter through the payment ledger")
		return
	}

	created, err := h.AccountRepo.Create(r.Context(), account)
	if err != nil {
		if errors.Is(err, models.ErrDuplicateAccountNumber) {
			errorJSON(w, http.StatusConflict, "account number already exists")
			return
		}
		errorJSON(w, http.StatusInternalServerError, "create account: "+err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"success": true, "account": created})
}

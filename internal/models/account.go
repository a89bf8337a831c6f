package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AccountType distinguishes the two billable entity kinds. Business and
// property accounts live in the same table and carry the same balance
// semantics; the tag is resolved once at the request boundary and passed
// through the engine unchanged.
type AccountType string

const (
	AccountTypeBusiness AccountType = "business"
	AccountTypeProperty AccountType = "property"
)

func ParseAccountType(s string) (AccountType, error) {
	switch AccountType(s) {
	case AccountTypeBusiness:
		return AccountTypeBusiness, nil
	case AccountTypeProperty:
		return AccountTypeProperty, nil
	}
	return "", fmt.Errorf("unknown account type %q", s)
}

// AccountRef identifies one account across both subtypes.
type AccountRef struct {
	Type AccountType `json:"account_type"`
	ID   int64       `json:"account_id"`
}

func (r AccountRef) String() string {
	return fmt.Sprintf("%s/%d", r.Type, r.ID)
}

// Account is the billable entity owning the running balance shared by all
// its bills. TotalPayable is the amount still owed and never drops below
// zero; PreviousPayments is the cumulative amount ever credited and only
// grows. Both columns are mutated exclusively by the reconciliation
// transaction.
type Account struct {
	ID               int64           `json:"id"`
	Type             AccountType     `json:"account_type"`
	AccountNumber    string          `json:"account_number"`
	OwnerName        string          `json:"owner_name"`
	Location         string          `json:"location,omitempty"`
	Telephone        string          `json:"telephone,omitempty"`
	TotalPayable     decimal.Decimal `json:"total_payable"`
	PreviousPayments decimal.Decimal `json:"previous_payments"`
	CreatedAt        time.Time       `json:"created_at"`
}

func (a Account) Ref() AccountRef {
	return AccountRef{Type: a.Type, ID: a.ID}
}

// GrossPayable is the assessed total before any payment was applied:
// the figure the balance calculator measures paid amounts against.
func (a Account) GrossPayable() decimal.Decimal {
	return a.TotalPayable.Add(a.PreviousPayments)
}

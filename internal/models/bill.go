package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type BillStatus string

const (
	BillStatusGenerated     BillStatus = "Generated"
	BillStatusPartiallyPaid BillStatus = "Partially Paid"
	BillStatusPaid          BillStatus = "Paid"
)

// Bill is a yearly charge generated against one account. Amounts are fixed
// at generation time; the reconciliation engine only ever touches Status.
type Bill struct {
	ID               int64           `json:"id"`
	BillNumber       string          `json:"bill_number"`
	BillType         AccountType     `json:"bill_type"`
	ReferenceID      int64           `json:"reference_id"`
	BillingYear      int             `json:"billing_year"`
	OldBill          decimal.Decimal `json:"old_bill"`
	PreviousPayments decimal.Decimal `json:"previous_payments"`
	Arrears          decimal.Decimal `json:"arrears"`
	CurrentBill      decimal.Decimal `json:"current_bill"`
	AmountPayable    decimal.Decimal `json:"amount_payable"`
	Status           BillStatus      `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
}

func (b Bill) AccountRef() AccountRef {
	return AccountRef{Type: b.BillType, ID: b.ReferenceID}
}

// ValidateAmounts checks the generation identity
// amount_payable = old_bill - previous_payments + arrears + current_bill.
// Rows violating it are rejected at ingestion rather than silently stored.
func (b Bill) ValidateAmounts() error {
	want := b.OldBill.Sub(b.PreviousPayments).Add(b.Arrears).Add(b.CurrentBill)
	if !b.AmountPayable.Equal(want) {
		return fmt.Errorf("%w: amount_payable %s, computed %s", ErrInvalidBillTotals, b.AmountPayable, want)
	}
	if b.AmountPayable.IsNegative() {
		return fmt.Errorf("%w: amount_payable is negative", ErrInvalidBillTotals)
	}
	return nil
}

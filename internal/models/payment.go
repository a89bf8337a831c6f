package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusSuccessful PaymentStatus = "Successful"
	PaymentStatusFailed     PaymentStatus = "Failed"
	PaymentStatusPending    PaymentStatus = "Pending"
)

// Payment is one row of the append-only payment ledger. GatewayReference
// carries a unique index: it is the idempotency key that guarantees a
// gateway transaction is credited at most once. Rows are never updated or
// deleted once written.
type Payment struct {
	ID               int64           `json:"id"`
	PaymentReference string          `json:"payment_reference"`
	GatewayReference string          `json:"gateway_reference"`
	BillID           int64           `json:"bill_id"`
	AmountPaid       decimal.Decimal `json:"amount_paid"`
	Method           string          `json:"payment_method"`
	Status           PaymentStatus   `json:"status"`
	PaymentDate      time.Time       `json:"payment_date"`
	Notes            string          `json:"notes,omitempty"`
}

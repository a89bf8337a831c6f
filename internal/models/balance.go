package models

import "github.com/shopspring/decimal"

// BalanceSummary is the derived payment position of an account (or, for
// receipt views, a single bill). TotalPaid counts Successful ledger rows
// only; RemainingBalance is clamped at zero.
type BalanceSummary struct {
	TotalPaid        decimal.Decimal `json:"total_paid"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	PaidFraction     float64         `json:"paid_fraction"`
	IsFullyPaid      bool            `json:"is_fully_paid"`
}

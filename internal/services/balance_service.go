package services

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fransoakusi/quickbill-360-sub009/internal/models"
)

type accountReader interface {
	GetByRef(ctx context.Context, ref models.AccountRef) (models.Account, error)
}

type billReader interface {
	GetByID(ctx context.Context, billID int64) (models.Bill, error)
}

type paymentSummer interface {
	SumSuccessfulByAccount(ctx context.Context, ref models.AccountRef) (decimal.Decimal, error)
	SumSuccessfulByBill(ctx context.Context, billID int64) (decimal.Decimal, error)
}

// BalanceService derives payment positions from the ledger. It never
// writes; all figures come from Successful payment rows and the stored
// assessment amounts.
type BalanceService struct {
	AccountRepo accountReader
	BillRepo    billReader
	PaymentRepo paymentSummer
}

// ComputeBalance is the pure balance formula shared by the account and
// bill views. remaining = max(0, payableAtReference - totalPaid);
// paidFraction is clamped to [0,1] and defined as 1 for a zero assessment.
func ComputeBalance(payableAtReference, totalPaid decimal.Decimal) models.BalanceSummary {
	remaining := payableAtReference.Sub(totalPaid)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	fraction := 1.0
	if payableAtReference.IsPositive() {
		fraction, _ = totalPaid.Div(payableAtReference).Float64()
		if fraction > 1 {
			fraction = 1
		}
		if fraction < 0 {
			fraction = 0
		}
	}
	return models.BalanceSummary{
		TotalPaid:        totalPaid,
		RemainingBalance: remaining,
		PaidFraction:     fraction,
		IsFullyPaid:      !remaining.IsPositive(),
	}
}

// AccountBalance is the authoritative figure for payment authorization:
// the gross assessed amount measured against every Successful payment on
// any of the account's bills.
func (s *BalanceService) AccountBalance(ctx context.Context, ref models.AccountRef) (models.BalanceSummary, error) {
	account, err := s.AccountRepo.GetByRef(ctx, ref)
	if err != nil {
		return models.BalanceSummary{}, err
	}
	totalPaid, err := s.PaymentRepo.SumSuccessfulByAccount(ctx, ref)
	if err != nil {
		return models.BalanceSummary{}, err
	}
	return ComputeBalance(account.GrossPayable(), totalPaid), nil
}

// BillBalance restricts the same formula to one bill's own payments and
// amount_payable. Used for receipts and display only, never to authorize
// a new payment.
func (s *BalanceService) BillBalance(ctx context.Context, billID int64) (models.BalanceSummary, error) {
	bill, err := s.BillRepo.GetByID(ctx, billID)
	if err != nil {
		return models.BalanceSummary{}, err
	}
	totalPaid, err := s.PaymentRepo.SumSuccessfulByBill(ctx, billID)
	if err != nil {
		return models.BalanceSummary{}, err
	}
	return ComputeBalance(bill.AmountPayable, totalPaid), nil
}

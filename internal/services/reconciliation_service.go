package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fransoakusi/quickbill-360-sub009/internal/models"
)

type settlementStore interface {
	paymentSummer
	FindByGatewayReference(ctx context.Context, gatewayReference string) (models.Payment, error)
	ApplySettlement(ctx context.Context, p models.Payment, account models.AccountRef) (models.Payment, models.BillStatus, error)
}

type gatewayVerifier interface {
	Verify(ctx context.Context, reference string) (*VerifiedTransaction, error)
}

type referenceLocker interface {
	Acquire(ctx context.Context, reference string) (func(), error)
}

// ReconciliationService takes a gateway-confirmed transaction and applies
// it to the ledger exactly once. Validation (bill lookup, replay check,
// gateway verification, overpayment check) never mutates anything; the
// only write is the single ApplySettlement transaction.
type ReconciliationService struct {
	BillRepo    billReader
	AccountRepo accountReader
	PaymentRepo settlementStore
	Gateway     gatewayVerifier

	// Optional; nil disables advisory locking and leaves serialization to
	// the gateway_reference unique index alone.
	Locks referenceLocker

	Currency string
	Logger   *slog.Logger
}

// ReconciliationResult reports one accepted (or replayed) application.
type ReconciliationResult struct {
	PaymentID        int64             `json:"payment_id"`
	PaymentReference string            `json:"payment_reference"`
	AmountPaid       decimal.Decimal   `json:"amount_paid"`
	BillStatus       models.BillStatus `json:"bill_status,omitempty"`
	Replayed         bool              `json:"replayed"`
}

func (s *ReconciliationService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// ApplyPayment verifies gatewayReference with the gateway and credits it
// to billID's account. Replaying a reference that was already credited
// returns the original payment and changes nothing.
func (s *ReconciliationService) ApplyPayment(ctx context.Context, gatewayReference string, billID int64) (ReconciliationResult, error) {
	logger := s.logger().With("op", "ApplyPayment", "reference", gatewayReference, "bill_id", billID)

	bill, err := s.BillRepo.GetByID(ctx, billID)
	if err != nil {
		return ReconciliationResult{}, err
	}

	if s.Locks != nil {
		release, err := s.Locks.Acquire(ctx, gatewayReference)
		switch {
		case errors.Is(err, models.ErrReferenceLocked):
			// Another confirmation of this reference is in flight; the
			// caller retries and lands on the replay path.
			return ReconciliationResult{}, fmt.Errorf("%w: %w", models.ErrStorageFailure, err)
		case err != nil:
			logger.Warn("reference lock unavailable, proceeding without", "err", err)
		default:
			defer release()
		}
	}

	if existing, err := s.PaymentRepo.FindByGatewayReference(ctx, gatewayReference); err == nil {
		if existing.Status == models.PaymentStatusSuccessful {
			logger.Info("replaying already-credited reference", "payment_id", existing.ID)
			return replayResult(existing), nil
		}
	} else if !errors.Is(err, models.ErrPaymentNotFound) {
		return ReconciliationResult{}, fmt.Errorf("%w: %w", models.ErrStorageFailure, err)
	}

	verified, err := s.Gateway.Verify(ctx, gatewayReference)
	if err != nil {
		return ReconciliationResult{}, err
	}
	if s.Currency != "" && verified.Currency != s.Currency {
		return ReconciliationResult{}, fmt.Errorf("%w: currency %q, expected %q",
			models.ErrVerificationFailed, verified.Currency, s.Currency)
	}
	if !verified.Amount.IsPositive() {
		return ReconciliationResult{}, fmt.Errorf("%w: non-positive verified amount", models.ErrVerificationFailed)
	}

	account, err := s.AccountRepo.GetByRef(ctx, bill.AccountRef())
	if err != nil {
		return ReconciliationResult{}, err
	}
	totalPaid, err := s.PaymentRepo.SumSuccessfulByAccount(ctx, account.Ref())
	if err != nil {
		return ReconciliationResult{}, fmt.Errorf("%w: %w", models.ErrStorageFailure, err)
	}
	balance := ComputeBalance(account.GrossPayable(), totalPaid)

	if verified.Amount.GreaterThan(balance.RemainingBalance) {
		logger.Error("overpayment rejected",
			"verified_amount", verified.Amount.String(),
			"remaining_balance", balance.RemainingBalance.String(),
			"account", account.Ref().String(),
		)
		return ReconciliationResult{}, fmt.Errorf("%w: %s exceeds remaining %s",
			models.ErrOverpaymentRejected, verified.Amount, balance.RemainingBalance)
	}

	method := verified.Channel
	if method == "" {
		method = "paystack"
	}
	payment := models.Payment{
		PaymentReference: newPaymentReference(),
		GatewayReference: gatewayReference,
		BillID:           bill.ID,
		AmountPaid:       verified.Amount,
		Method:           method,
		Status:           models.PaymentStatusSuccessful,
		PaymentDate:      verified.PaidAt,
		Notes:            verified.CustomerEmail,
	}
	created, billStatus, err := s.PaymentRepo.ApplySettlement(ctx, payment, account.Ref())
	if err != nil {
		if errors.Is(err, models.ErrDuplicateGatewayReference) {
			// Lost the insert race: the winner's row is the credit.
			winner, findErr := s.PaymentRepo.FindByGatewayReference(ctx, gatewayReference)
			if findErr != nil {
				return ReconciliationResult{}, fmt.Errorf("%w: %w", models.ErrStorageFailure, findErr)
			}
			logger.Info("concurrent settlement won the race, replaying", "payment_id", winner.ID)
			return replayResult(winner), nil
		}
		logger.Error("settlement transaction failed", "err", err)
		return ReconciliationResult{}, fmt.Errorf("%w: %w", models.ErrStorageFailure, err)
	}

	logger.Info("payment reconciled",
		"payment_id", created.ID,
		"payment_reference", created.PaymentReference,
		"amount", created.AmountPaid.String(),
		"bill_status", string(billStatus),
	)
	return ReconciliationResult{
		PaymentID:        created.ID,
		PaymentReference: created.PaymentReference,
		AmountPaid:       created.AmountPaid,
		BillStatus:       billStatus,
		Replayed:         false,
	}, nil
}

func replayResult(p models.Payment) ReconciliationResult {
	return ReconciliationResult{
		PaymentID:        p.ID,
		PaymentReference: p.PaymentReference,
		AmountPaid:       p.AmountPaid,
		Replayed:         true,
	}
}

func newPaymentReference() string {
	return "PAY-" + time.Now().Format("20060102") + "-" + uuid.NewString()[:8]
}

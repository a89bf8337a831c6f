package models

import (
	"errors"
)

var (
	ErrNoRecord               = errors.New("models: no matching record found")
	ErrAccountNotFound        = errors.New("models: account not found")
	ErrBillNotFound           = errors.New("models: bill not found")
	ErrPaymentNotFound        = errors.New("models: payment not found")
	ErrDuplicateAccountNumber = errors.New("models: duplicate account number")
	ErrDuplicateBillNumber    = errors.New("models: duplicate bill number")
	ErrInvalidBillTotals      = errors.New("models: bill totals do not add up")
	ErrInvalidCredentials     = errors.New("models: invalid credentials")
)

// Reconciliation failure taxonomy. OverpaymentRejected and
// VerificationFailed are terminal; StorageFailure and ReferenceLocked are
// safe to retry because the gateway_reference unique index turns any
// repeated application into a no-op replay.
var (
	ErrDuplicateGatewayReference = errors.New("models: duplicate gateway reference")
	ErrOverpaymentRejected       = errors.New("payment exceeds remaining balance")
	ErrVerificationFailed        = errors.New("gateway could not confirm transaction")
	ErrStorageFailure            = errors.New("ledger transaction could not commit")
	ErrReferenceLocked           = errors.New("gateway reference is being processed")
)

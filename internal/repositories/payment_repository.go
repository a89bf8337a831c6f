package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fransoakusi/quickbill-360-sub009/internal/models"
)

type PaymentRepository struct {
	DB *sql.DB

	once sync.Once
	err  error
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{DB: db}
}

func (r *PaymentRepository) ensureSchema(ctx context.Context) error {
	r.once.Do(func() {
		const ddl = `
CREATE TABLE IF NOT EXISTS payments (
    id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
    payment_reference VARCHAR(64) NOT NULL,
    gateway_reference VARCHAR(128) NOT NULL,
    bill_id BIGINT UNSIGNED NOT NULL,
    amount_paid DECIMAL(12,2) NOT NULL,
    payment_method VARCHAR(32) NOT NULL DEFAULT 'paystack',
    status ENUM('Successful','Failed','Pending') NOT NULL,
    payment_date TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    notes VARCHAR(512) DEFAULT '',
    PRIMARY KEY (id),
    UNIQUE KEY uniq_payment_reference (payment_reference),
    UNIQUE KEY uniq_gateway_reference (gateway_reference),
    KEY idx_bill (bill_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
`
		_, r.err = r.DB.ExecContext(ctx, ddl)
	})
	return r.err
}

const paymentColumns = `id, payment_reference, gateway_reference, bill_id, amount_paid, payment_method, status, payment_date, notes`

func scanPayment(row interface{ Scan(...any) error }) (models.Payment, error) {
	var p models.Payment
	err := row.Scan(
		&p.ID, &p.PaymentReference, &p.GatewayReference, &p.BillID,
		&p.AmountPaid, &p.Method, &p.Status, &p.PaymentDate, &p.Notes,
	)
	return p, err
}

func (r *PaymentRepository) FindByGatewayReference(ctx context.Context, gatewayReference string) (models.Payment, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return models.Payment{}, err
	}
	row := r.DB.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE gateway_reference = ?`, gatewayReference)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Payment{}, models.ErrPaymentNotFound
		}
		return models.Payment{}, err
	}
	return p, nil
}

// SumSuccessfulByAccount totals every Successful payment recorded against
// any bill of the account. Pending and Failed rows never count.
func (r *PaymentRepository) SumSuccessfulByAccount(ctx context.Context, ref models.AccountRef) (decimal.Decimal, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return decimal.Zero, err
	}
	const q = `
SELECT COALESCE(SUM(p.amount_paid), 0)
FROM payments p
JOIN bills b ON p.bill_id = b.id
WHERE b.bill_type = ? AND b.reference_id = ? AND p.status = 'Successful'
`
	var total decimal.Decimal
	if err := r.DB.QueryRowContext(ctx, q, ref.Type, ref.ID).Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func (r *PaymentRepository) SumSuccessfulByBill(ctx context.Context, billID int64) (decimal.Decimal, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return decimal.Zero, err
	}
	const q = `SELECT COALESCE(SUM(amount_paid), 0) FROM payments WHERE bill_id = ? AND status = 'Successful'`
	var total decimal.Decimal
	if err := r.DB.QueryRowContext(ctx, q, billID).Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func (r *PaymentRepository) ListByBill(ctx context.Context, billID int64) ([]models.Payment, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE bill_id = ? ORDER BY payment_date DESC, id DESC`, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]models.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *PaymentRepository) ListRecent(ctx context.Context, limit int) ([]models.Payment, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+paymentColumns+` FROM payments ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]models.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// ApplySettlement records one verified payment and moves the account and
// bill with it in a single transaction: insert the ledger row, shift the
// account's running balance, recompute the bill status from the account's
// new remaining balance. Either every step commits or none do.
//
// A duplicate gateway_reference aborts the insert with
// models.ErrDuplicateGatewayReference before anything is written; the
// caller resolves it by re-reading the winning row.
func (r *PaymentRepository) ApplySettlement(ctx context.Context, p models.Payment, account models.AccountRef) (models.Payment, models.BillStatus, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return models.Payment{}, "", err
	}
	if p.GatewayReference == "" {
		return models.Payment{}, "", fmt.Errorf("gateway_reference is required")
	}
	if p.PaymentDate.IsZero() {
		p.PaymentDate = time.Now()
	}
	p.Status = models.PaymentStatusSuccessful

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return models.Payment{}, "", err
	}
	defer tx.Rollback()

	const insPayment = `
INSERT INTO payments (payment_reference, gateway_reference, bill_id, amount_paid, payment_method, status, payment_date, notes)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`
	res, err := tx.ExecContext(ctx, insPayment,
		p.PaymentReference, p.GatewayReference, p.BillID, p.AmountPaid, p.Method, p.Status, p.PaymentDate, p.Notes,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return models.Payment{}, "", models.ErrDuplicateGatewayReference
		}
		return models.Payment{}, "", err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Payment{}, "", err
	}
	p.ID = id

	// Single arithmetic update: concurrent settlements on other bills of
	// the same account cannot lose each other's decrement. GREATEST keeps
	// the floor at zero against rounding drift.
	const adjustAccount = `
UPDATE revenue_accounts
SET total_payable = GREATEST(total_payable - ?, 0),
    previous_payments = previous_payments + ?
WHERE account_type = ? AND id = ?
`
	upd, err := tx.ExecContext(ctx, adjustAccount, p.AmountPaid, p.AmountPaid, account.Type, account.ID)
	if err != nil {
		return models.Payment{}, "", err
	}
	affected, err := upd.RowsAffected()
	if err != nil {
		return models.Payment{}, "", err
	}
	if affected == 0 {
		return models.Payment{}, "", models.ErrAccountNotFound
	}

	var remaining decimal.Decimal
	err = tx.QueryRowContext(ctx,
		`SELECT total_payable FROM revenue_accounts WHERE account_type = ? AND id = ?`,
		account.Type, account.ID,
	).Scan(&remaining)
	if err != nil {
		return models.Payment{}, "", err
	}

	status := models.BillStatusPartiallyPaid
	if remaining.IsZero() {
		status = models.BillStatusPaid
	}
	if _, err := tx.ExecContext(ctx, `UPDATE bills SET status = ? WHERE id = ?`, status, p.BillID); err != nil {
		return models.Payment{}, "", err
	}

	if err := tx.Commit(); err != nil {
		return models.Payment{}, "", err
	}
	return p, status, nil
}

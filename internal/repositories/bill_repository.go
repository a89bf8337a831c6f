package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/fransoakusi/quickbill-360-sub009/internal/models"
)

type BillRepository struct {
	DB *sql.DB

	once sync.Once
	err  error
}

func NewBillRepository(db *sql.DB) *BillRepository {
	return &BillRepository{DB: db}
}

func (r *BillRepository) ensureSchema(ctx context.Context) error {
	r.once.Do(func() {
		const ddl = `
CREATE TABLE IF NOT EXISTS bills (
    id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
    bill_number VARCHAR(64) NOT NULL,
    bill_type ENUM('business','property') NOT NULL,
    reference_id BIGINT UNSIGNED NOT NULL,
    billing_year INT NOT NULL,
    old_bill DECIMAL(12,2) NOT NULL DEFAULT 0.00,
    previous_payments DECIMAL(12,2) NOT NULL DEFAULT 0.00,
    arrears DECIMAL(12,2) NOT NULL DEFAULT 0.00,
    current_bill DECIMAL(12,2) NOT NULL DEFAULT 0.00,
    amount_payable DECIMAL(12,2) NOT NULL DEFAULT 0.00,
    status ENUM('Generated','Partially Paid','Paid') NOT NULL DEFAULT 'Generated',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (id),
    UNIQUE KEY uniq_bill_number (bill_number),
    KEY idx_account (bill_type, reference_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
`
		_, r.err = r.DB.ExecContext(ctx, ddl)
	})
	return r.err
}

const billColumns = `id, bill_number, bill_type, reference_id, billing_year, old_bill, previous_payments, arrears, current_bill, amount_payable, status, created_at`

func scanBill(row interface{ Scan(...any) error }) (models.Bill, error) {
	var b models.Bill
	err := row.Scan(
		&b.ID, &b.BillNumber, &b.BillType, &b.ReferenceID, &b.BillingYear,
		&b.OldBill, &b.PreviousPayments, &b.Arrears, &b.CurrentBill, &b.AmountPayable,
		&b.Status, &b.CreatedAt,
	)
	return b, err
}

// Create inserts a bill row produced by the (external) generation job. The
// amount identity is validated by the caller before the row reaches storage.
func (r *BillRepository) Create(ctx context.Context, b models.Bill) (models.Bill, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return models.Bill{}, err
	}
	const q = `
INSERT INTO bills (bill_number, bill_type, reference_id, billing_year, old_bill, previous_payments, arrears, current_bill, amount_payable, status)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`
	if b.Status == "" {
		b.Status = models.BillStatusGenerated
	}
	res, err := r.DB.ExecContext(ctx, q,
		b.BillNumber, b.BillType, b.ReferenceID, b.BillingYear,
		b.OldBill, b.PreviousPayments, b.Arrears, b.CurrentBill, b.AmountPayable, b.Status,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return models.Bill{}, models.ErrDuplicateBillNumber
		}
		return models.Bill{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Bill{}, err
	}
	b.ID = id
	return b, nil
}

func (r *BillRepository) GetByID(ctx context.Context, billID int64) (models.Bill, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return models.Bill{}, err
	}
	row := r.DB.QueryRowContext(ctx, `SELECT `+billColumns+` FROM bills WHERE id = ?`, billID)
	b, err := scanBill(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Bill{}, models.ErrBillNotFound
		}
		return models.Bill{}, err
	}
	return b, nil
}

func (r *BillRepository) GetByNumber(ctx context.Context, billNumber string) (models.Bill, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return models.Bill{}, err
	}
	row := r.DB.QueryRowContext(ctx, `SELECT `+billColumns+` FROM bills WHERE bill_number = ?`, billNumber)
	b, err := scanBill(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Bill{}, models.ErrBillNotFound
		}
		return models.Bill{}, err
	}
	return b, nil
}

func (r *BillRepository) ListByAccount(ctx context.Context, ref models.AccountRef) ([]models.Bill, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return nil, err
	}
	const q = `SELECT ` + billColumns + ` FROM bills WHERE bill_type = ? AND reference_id = ? ORDER BY billing_year DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, q, ref.Type, ref.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bills := make([]models.Bill, 0)
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/fransoakusi/quickbill-360-sub009/internal/models"
)

type AccountRepository struct {
	DB *sql.DB

	once sync.Once
	err  error
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{DB: db}
}

func (r *AccountRepository) ensureSchema(ctx context.Context) error {
	r.once.Do(func() {
		const ddl = `
CREATE TABLE IF NOT EXISTS revenue_accounts (
    id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
    account_type ENUM('business','property') NOT NULL,
    account_number VARCHAR(64) NOT NULL,
    owner_name VARCHAR(255) NOT NULL,
    location VARCHAR(255) DEFAULT '',
    telephone VARCHAR(32) DEFAULT '',
    total_payable DECIMAL(12,2) NOT NULL DEFAULT 0.00,
    previous_payments DECIMAL(12,2) NOT NULL DEFAULT 0.00,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (id),
    UNIQUE KEY uniq_type_number (account_type, account_number)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
`
		_, r.err = r.DB.ExecContext(ctx, ddl)
	})
	return r.err
}

func (r *AccountRepository) Create(ctx context.Context, a models.Account) (models.Account, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return models.Account{}, err
	}
	if a.AccountNumber == "" {
		return models.Account{}, fmt.Errorf("account_number is required")
	}
	const q = `
INSERT INTO revenue_accounts (account_type, account_number, owner_name, location, telephone, total_payable, previous_payments)
VALUES (?, ?, ?, ?, ?, ?, ?)
`
	res, err := r.DB.ExecContext(ctx, q, a.Type, a.AccountNumber, a.OwnerName, a.Location, a.Telephone, a.TotalPayable, a.PreviousPayments)
	if err != nil {
		if isDuplicateKeyError(err) {
			return models.Account{}, models.ErrDuplicateAccountNumber
		}
		return models.Account{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Account{}, err
	}
	a.ID = id
	return a, nil
}

func (r *AccountRepository) GetByRef(ctx context.Context, ref models.AccountRef) (models.Account, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return models.Account{}, err
	}
	const q = `
SELECT id, account_type, account_number, owner_name, location, telephone, total_payable, previous_payments, created_at
FROM revenue_accounts
WHERE account_type = ? AND id = ?
`
	var a models.Account
	err := r.DB.QueryRowContext(ctx, q, ref.Type, ref.ID).Scan(
		&a.ID, &a.Type, &a.AccountNumber, &a.OwnerName, &a.Location, &a.Telephone,
		&a.TotalPayable, &a.PreviousPayments, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Account{}, models.ErrAccountNotFound
		}
		return models.Account{}, err
	}
	return a, nil
}

func (r *AccountRepository) GetByNumber(ctx context.Context, accountType models.AccountType, number string) (models.Account, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return models.Account{}, err
	}
	const q = `
SELECT id, account_type, account_number, owner_name, location, telephone, total_payable, previous_payments, created_at
FROM revenue_accounts
WHERE account_type = ? AND account_number = ?
`
	var a models.Account
	err := r.DB.QueryRowContext(ctx, q, accountType, number).Scan(
		&a.ID, &a.Type, &a.AccountNumber, &a.OwnerName, &a.Location, &a.Telephone,
		&a.TotalPayable, &a.PreviousPayments, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Account{}, models.ErrAccountNotFound
		}
		return models.Account{}, err
	}
	return a, nil
}

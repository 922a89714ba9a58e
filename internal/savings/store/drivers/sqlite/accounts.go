package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/acornbank/acorn/internal/savings/domain"
	"github.com/shopspring/decimal"
)

type accountsRepo struct {
	db dbtx
}

const accountColumns = `id, user_id, number, balance_cents, is_active, created_at, updated_at`

func (r *accountsRepo) CreateAccount(ctx context.Context, a domain.Account) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (id, user_id, number, balance_cents, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.Number, toCents(a.Balance), a.IsActive, a.CreatedAt, a.UpdatedAt,
	)
	return mapConstraint(err)
}

func (r *accountsRepo) GetAccountByID(ctx context.Context, id string) (domain.Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	return scanAccount(row)
}

func (r *accountsRepo) GetActiveAccountByUserID(ctx context.Context, userID string) (domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE user_id = ? AND is_active = 1 LIMIT 1`,
		userID)
	return scanAccount(row)
}

// CreditBalance applies the increment only while the result stays at
// or under max. The guard runs inside the UPDATE so concurrent
// deposits cannot both pass a stale ceiling check.
func (r *accountsRepo) CreditBalance(ctx context.Context, accountID string, amount, max decimal.Decimal) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET balance_cents = balance_cents + ?, updated_at = ?
		WHERE id = ? AND is_active = 1 AND balance_cents + ? <= ?`,
		toCents(amount), time.Now().UTC(), accountID, toCents(amount), toCents(max),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// DebitBalance applies the decrement only while the balance covers it.
// Two racing withdrawals against one balance: exactly one row update
// succeeds.
func (r *accountsRepo) DebitBalance(ctx context.Context, accountID string, amount decimal.Decimal) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET balance_cents = balance_cents - ?, updated_at = ?
		WHERE id = ? AND is_active = 1 AND balance_cents >= ?`,
		toCents(amount), time.Now().UTC(), accountID, toCents(amount),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func scanAccount(row *sql.Row) (domain.Account, error) {
	var (
		a     domain.Account
		cents int64
	)
	err := row.Scan(&a.ID, &a.UserID, &a.Number, &cents, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}
	a.Balance = fromCents(cents)
	return a, nil
}

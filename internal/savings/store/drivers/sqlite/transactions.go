package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/acornbank/acorn/internal/savings/domain"
)

type transactionsRepo struct {
	db dbtx
}

const transactionColumns = `id, ref_id, account_id, type, amount_cents, status,
	reversed_by, reversed_at, reversed_reason, created_at, updated_at`

func (r *transactionsRepo) CreateTransaction(ctx context.Context, t domain.Transaction) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, ref_id, account_id, type, amount_cents, status,
			reversed_by, reversed_at, reversed_reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.RefID, t.AccountID, string(t.Type), toCents(t.Amount), string(t.Status),
		mapStringNull(t.ReversedBy), mapOptionalTime(t.ReversedAt), mapStringNull(t.ReversedReason),
		t.CreatedAt, t.UpdatedAt,
	)
	return err
}

func (r *transactionsRepo) GetTransactionByID(ctx context.Context, id string) (domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	return scanTransaction(row)
}

// The status flips below carry their precondition inside the UPDATE,
// so a record can only ever move forward through the state machine no
// matter how calls interleave.

func (r *transactionsRepo) MarkTransactionCompleted(ctx context.Context, id string) (bool, error) {
	return r.flip(ctx, `
		UPDATE transactions SET status = 'COMPLETED', updated_at = ?
		WHERE id = ? AND status = 'PENDING'`, time.Now().UTC(), id)
}

func (r *transactionsRepo) MarkTransactionCancelled(ctx context.Context, id string) (bool, error) {
	return r.flip(ctx, `
		UPDATE transactions SET status = 'CANCELLED', updated_at = ?
		WHERE id = ? AND status = 'PENDING'`, time.Now().UTC(), id)
}

func (r *transactionsRepo) MarkTransactionReversed(ctx context.Context, id, adminID, reason string, at time.Time) (bool, error) {
	return r.flip(ctx, `
		UPDATE transactions
		SET status = 'REVERSED', reversed_by = ?, reversed_at = ?, reversed_reason = ?, updated_at = ?
		WHERE id = ? AND status != 'REVERSED'`,
		adminID, at, reason, at, id)
}

func (r *transactionsRepo) CancelExpiredTransactions(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET status = 'CANCELLED', updated_at = ?
		WHERE status = 'PENDING' AND created_at < ?`,
		time.Now().UTC(), cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *transactionsRepo) ListAccountTransactions(ctx context.Context, accountID string, limit, offset int) ([]domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE account_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`,
		accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		t, err := scanTransactionRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *transactionsRepo) CountAccountTransactions(ctx context.Context, accountID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE account_id = ?`, accountID).Scan(&n)
	return n, err
}

func (r *transactionsRepo) flip(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func scanTransaction(row *sql.Row) (domain.Transaction, error) {
	var (
		t          domain.Transaction
		typ, st    string
		cents      int64
		by, reason sql.NullString
		at         sql.NullTime
	)
	err := row.Scan(&t.ID, &t.RefID, &t.AccountID, &typ, &cents, &st,
		&by, &at, &reason, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return domain.Transaction{}, mapNotFound(err)
	}
	fillTransaction(&t, typ, st, cents, by, at, reason)
	return t, nil
}

func scanTransactionRows(rows *sql.Rows) (domain.Transaction, error) {
	var (
		t          domain.Transaction
		typ, st    string
		cents      int64
		by, reason sql.NullString
		at         sql.NullTime
	)
	err := rows.Scan(&t.ID, &t.RefID, &t.AccountID, &typ, &cents, &st,
		&by, &at, &reason, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return domain.Transaction{}, err
	}
	fillTransaction(&t, typ, st, cents, by, at, reason)
	return t, nil
}

func fillTransaction(t *domain.Transaction, typ, st string, cents int64, by sql.NullString, at sql.NullTime, reason sql.NullString) {
	t.Type = domain.TransactionType(typ)
	t.Status = domain.TransactionStatus(st)
	t.Amount = fromCents(cents)
	t.ReversedBy = mapNullString(by)
	t.ReversedAt = mapNullTimePtr(at)
	t.ReversedReason = mapNullString(reason)
}

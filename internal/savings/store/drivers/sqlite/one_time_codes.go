package sqlite

import (
	"context"
	"time"

	"github.com/acornbank/acorn/internal/savings/domain"
)

type oneTimeCodesRepo struct {
	db dbtx
}

func (r *oneTimeCodesRepo) CreateOneTimeCode(ctx context.Context, c domain.OneTimeCode) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO one_time_codes (id, user_id, code, purpose, expires_at, is_used, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Code, string(c.Purpose), c.ExpiresAt, c.IsUsed, c.CreatedAt,
	)
	return err
}

// ConsumeOneTimeCode is a compare-and-set on is_used: the lookup and
// the mark happen in one statement, so two racing redemptions of the
// same code can never both see it unused.
func (r *oneTimeCodesRepo) ConsumeOneTimeCode(ctx context.Context, userID, code string, purpose domain.CodePurpose, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE one_time_codes
		SET is_used = 1
		WHERE id = (
			SELECT id FROM one_time_codes
			WHERE user_id = ? AND code = ? AND purpose = ? AND is_used = 0 AND expires_at > ?
			LIMIT 1
		) AND is_used = 0`,
		userID, code, string(purpose), now,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *oneTimeCodesRepo) DeleteDeadOneTimeCodes(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM one_time_codes WHERE is_used = 1 OR expires_at < ?`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

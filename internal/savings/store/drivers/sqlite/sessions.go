package sqlite

import (
	"context"
	"time"

	"github.com/acornbank/acorn/internal/savings/domain"
	"github.com/acornbank/acorn/internal/savings/store"
)

type sessionsRepo struct {
	db dbtx
}

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, device_id, issued_at, access_expires_at,
			refresh_expires_at, is_active, last_used_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.DeviceID, s.IssuedAt, s.AccessExpiresAt,
		s.RefreshExpiresAt, s.IsActive, s.LastUsedAt,
	)
	return err
}

func (r *sessionsRepo) GetSessionByID(ctx context.Context, id string) (domain.Session, error) {
	var s domain.Session
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, device_id, issued_at, access_expires_at,
			refresh_expires_at, is_active, last_used_at
		FROM sessions WHERE id = ?`, id).
		Scan(&s.ID, &s.UserID, &s.DeviceID, &s.IssuedAt, &s.AccessExpiresAt,
			&s.RefreshExpiresAt, &s.IsActive, &s.LastUsedAt)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	return s, nil
}

func (r *sessionsRepo) UpdateSessionExpiry(ctx context.Context, id string, accessExpiresAt, refreshExpiresAt, lastUsedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions
		SET access_expires_at = ?, refresh_expires_at = ?, last_used_at = ?
		WHERE id = ? AND is_active = 1`,
		accessExpiresAt, refreshExpiresAt, lastUsedAt, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *sessionsRepo) RevokeSession(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE sessions SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// RevokeUserSessions returns the revoked ids so the caller can delete
// the matching cache mirrors in the same breath.
func (r *sessionsRepo) RevokeUserSessions(ctx context.Context, userID, exceptID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM sessions WHERE user_id = ? AND is_active = 1 AND id != ?`,
		userID, exceptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE sessions SET is_active = 0 WHERE user_id = ? AND is_active = 1 AND id != ?`,
		userID, exceptID)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context, before time.Time) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE refresh_expires_at < ?`, before)
	return err
}

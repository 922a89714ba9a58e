package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/acornbank/acorn/internal/savings/domain"
	"github.com/acornbank/acorn/internal/savings/store"
)

type devicesRepo struct {
	db dbtx
}

const deviceColumns = `id, user_id, device_id, name, platform, is_verified, last_used_at, created_at`

// UpsertDevice keys on the (user_id, device_id) unique pair. Repeat
// registration keeps the row id and verification state, refreshing
// only the mutable metadata.
func (r *devicesRepo) UpsertDevice(ctx context.Context, d domain.Device) (domain.Device, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (id, user_id, device_id, name, platform, is_verified, last_used_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, device_id) DO UPDATE SET
			name = excluded.name,
			platform = excluded.platform,
			last_used_at = excluded.last_used_at`,
		d.ID, d.UserID, d.DeviceID, d.Name, d.Platform, d.IsVerified, d.LastUsedAt, d.CreatedAt,
	)
	if err != nil {
		return domain.Device{}, err
	}
	return r.GetDevice(ctx, d.UserID, d.DeviceID)
}

func (r *devicesRepo) GetDevice(ctx context.Context, userID, deviceID string) (domain.Device, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE user_id = ? AND device_id = ?`,
		userID, deviceID)
	return scanDevice(row)
}

func (r *devicesRepo) MarkDeviceVerified(ctx context.Context, userID, deviceID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE devices SET is_verified = 1 WHERE user_id = ? AND device_id = ?`,
		userID, deviceID)
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

func (r *devicesRepo) TouchDevice(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE devices SET last_used_at = ? WHERE id = ?`, at, id)
	return err
}

func (r *devicesRepo) ListUserDevices(ctx context.Context, userID string) ([]domain.Device, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE user_id = ? ORDER BY last_used_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Device
	for rows.Next() {
		var d domain.Device
		if err := rows.Scan(&d.ID, &d.UserID, &d.DeviceID, &d.Name, &d.Platform,
			&d.IsVerified, &d.LastUsedAt, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanDevice(row *sql.Row) (domain.Device, error) {
	var d domain.Device
	err := row.Scan(&d.ID, &d.UserID, &d.DeviceID, &d.Name, &d.Platform,
		&d.IsVerified, &d.LastUsedAt, &d.CreatedAt)
	if err != nil {
		return domain.Device{}, mapNotFound(err)
	}
	return d, nil
}

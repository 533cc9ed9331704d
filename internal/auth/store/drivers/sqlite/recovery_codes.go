package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/wardenauth/warden/internal/auth/domain"
)

type recoveryCodesRepo struct {
	db dbtx
}

func (r *recoveryCodesRepo) CreateRecoveryCode(ctx context.Context, c domain.RecoveryCode) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO recovery_codes (id, user_id, code_hash, used, used_at, created_at)
		VALUES (?, ?, ?, 0, NULL, ?)`,
		c.ID, c.UserID, c.CodeHash, time.Now().UTC(),
	)
	return mapConstraint(err)
}

func (r *recoveryCodesRepo) ListUnusedByUser(ctx context.Context, userID string) ([]domain.RecoveryCode, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, code_hash, used, used_at, created_at
		FROM recovery_codes
		WHERE user_id = ? AND used = 0
		ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []domain.RecoveryCode
	for rows.Next() {
		var (
			c      domain.RecoveryCode
			usedAt sql.NullTime
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.CodeHash, &c.Used, &usedAt, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.UsedAt = mapNullTimePtr(usedAt)
		codes = append(codes, c)
	}
	return codes, rows.Err()
}

// MarkRecoveryCodeUsed is guarded on used = 0 so a code can only be
// redeemed once even under concurrent attempts.
func (r *recoveryCodesRepo) MarkRecoveryCodeUsed(ctx context.Context, id string, usedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recovery_codes SET used = 1, used_at = ?
		WHERE id = ? AND used = 0`,
		usedAt.UTC(), id,
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *recoveryCodesRepo) DeleteAllByUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM recovery_codes WHERE user_id = ?`, userID)
	return err
}

func (r *recoveryCodesRepo) CountUnusedByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM recovery_codes WHERE user_id = ? AND used = 0`, userID,
	).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

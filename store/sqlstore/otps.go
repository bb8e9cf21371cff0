package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Agossa1/marketauth/credential"
)

const otpColumns = `id, user_id, code_hash, purpose, expires_at, used, created_at`

type otpRow struct {
	ID        string `db:"id"`
	UserID    string `db:"user_id"`
	CodeHash  string `db:"code_hash"`
	Purpose   string `db:"purpose"`
	ExpiresAt int64  `db:"expires_at"`
	Used      bool   `db:"used"`
	CreatedAt int64  `db:"created_at"`
}

func (r otpRow) otp() credential.OTP {
	return credential.OTP{
		ID:        r.ID,
		UserID:    r.UserID,
		CodeHash:  r.CodeHash,
		Purpose:   credential.Purpose(r.Purpose),
		ExpiresAt: time.UnixMilli(r.ExpiresAt),
		Used:      r.Used,
		CreatedAt: time.UnixMilli(r.CreatedAt),
	}
}

func (s *Store) CreateOTP(ctx context.Context, otp credential.OTP) error {
	query := s.q(`INSERT INTO auth_otps (` + otpColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		otp.ID, otp.UserID, otp.CodeHash, string(otp.Purpose),
		otp.ExpiresAt.UnixMilli(), otp.Used, otp.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) FindLatestValidOTP(ctx context.Context, userID, codeHash string, purpose credential.Purpose, now time.Time) (credential.OTP, error) {
	query := s.q(`
		SELECT ` + otpColumns + ` FROM auth_otps
		WHERE user_id = ? AND purpose = ? AND code_hash = ? AND used = ? AND expires_at > ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`)
	var row otpRow
	if err := s.db.GetContext(ctx, &row, query, userID, string(purpose), codeHash, false, now.UnixMilli()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return credential.OTP{}, credential.ErrNotFound
		}
		return credential.OTP{}, unavailable(err)
	}
	return row.otp(), nil
}

func (s *Store) MarkOTPUsed(ctx context.Context, otp credential.OTP, now time.Time) (bool, error) {
	query := s.q(`UPDATE auth_otps SET used = ? WHERE id = ? AND used = ? AND expires_at > ?`)
	res, err := s.db.ExecContext(ctx, query, true, otp.ID, false, now.UnixMilli())
	if err != nil {
		return false, unavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, unavailable(err)
	}
	return n == 1, nil
}

func (s *Store) InvalidateOTPs(ctx context.Context, userID string, purpose credential.Purpose, exceptID string, now time.Time) (int, error) {
	query := s.q(`
		UPDATE auth_otps SET used = ?
		WHERE user_id = ? AND purpose = ? AND used = ? AND expires_at > ? AND id <> ?
	`)
	res, err := s.db.ExecContext(ctx, query, true, userID, string(purpose), false, now.UnixMilli(), exceptID)
	if err != nil {
		return 0, unavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable(err)
	}
	return int(n), nil
}

// PurgeOTPs deletes codes that expired before cutoff.
func (s *Store) PurgeOTPs(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM auth_otps WHERE expires_at < ?`), cutoff.UnixMilli())
	if err != nil {
		return 0, unavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable(err)
	}
	return int(n), nil
}

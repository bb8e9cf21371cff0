package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Agossa1/marketauth/credential"
)

const userColumns = `id, email, phone, role, password_hash, login_attempts, locked_until, email_verified, phone_verified, last_login, created_at`

type userRow struct {
	ID            string        `db:"id"`
	Email         string        `db:"email"`
	Phone         string        `db:"phone"`
	Role          string        `db:"role"`
	PasswordHash  string        `db:"password_hash"`
	LoginAttempts int           `db:"login_attempts"`
	LockedUntil   sql.NullInt64 `db:"locked_until"`
	EmailVerified bool          `db:"email_verified"`
	PhoneVerified bool          `db:"phone_verified"`
	LastLogin     sql.NullInt64 `db:"last_login"`
	CreatedAt     int64         `db:"created_at"`
}

func (r userRow) user() credential.User {
	return credential.User{
		ID:            r.ID,
		Email:         r.Email,
		Phone:         r.Phone,
		Role:          r.Role,
		PasswordHash:  r.PasswordHash,
		LoginAttempts: r.LoginAttempts,
		LockedUntil:   nullTime(r.LockedUntil),
		EmailVerified: r.EmailVerified,
		PhoneVerified: r.PhoneVerified,
		LastLogin:     nullTime(r.LastLogin),
		CreatedAt:     time.UnixMilli(r.CreatedAt),
	}
}

func (s *Store) CreateUser(ctx context.Context, user credential.User) (credential.User, error) {
	if strings.TrimSpace(user.Email) == "" {
		return credential.User{}, errors.New("sqlstore: email is required")
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	user.Email = credential.NormalizeEmail(user.Email)

	query := s.q(`
		INSERT INTO auth_users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := s.db.ExecContext(ctx, query,
		user.ID, user.Email, user.Phone, user.Role, user.PasswordHash, user.LoginAttempts,
		nullMillis(user.LockedUntil), user.EmailVerified, user.PhoneVerified, nullMillis(user.LastLogin),
		user.CreatedAt.UnixMilli(),
	)
	if err != nil {
		if isDuplicate(err) {
			return credential.User{}, credential.ErrDuplicate
		}
		return credential.User{}, unavailable(err)
	}
	return user, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (credential.User, error) {
	return s.findUser(ctx, `SELECT `+userColumns+` FROM auth_users WHERE email = ?`, credential.NormalizeEmail(email))
}

func (s *Store) FindUserByID(ctx context.Context, id string) (credential.User, error) {
	return s.findUser(ctx, `SELECT `+userColumns+` FROM auth_users WHERE id = ?`, id)
}

func (s *Store) findUser(ctx context.Context, query string, arg string) (credential.User, error) {
	var row userRow
	if err := s.db.GetContext(ctx, &row, s.q(query), arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return credential.User{}, credential.ErrNotFound
		}
		return credential.User{}, unavailable(err)
	}
	return row.user(), nil
}

func (s *Store) UpdateUser(ctx context.Context, id string, patch credential.UserPatch) error {
	if patch.Empty() {
		return nil
	}

	var (
		sets []string
		args []interface{}
	)
	add := func(column string, value interface{}) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	if patch.PasswordHash != nil {
		add("password_hash", *patch.PasswordHash)
	}
	if patch.LoginAttempts != nil {
		add("login_attempts", *patch.LoginAttempts)
	}
	if patch.ClearLock {
		add("locked_until", nil)
	} else if patch.LockedUntil != nil {
		add("locked_until", patch.LockedUntil.UnixMilli())
	}
	if patch.EmailVerified != nil {
		add("email_verified", *patch.EmailVerified)
	}
	if patch.PhoneVerified != nil {
		add("phone_verified", *patch.PhoneVerified)
	}
	if patch.LastLogin != nil {
		add("last_login", patch.LastLogin.UnixMilli())
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, s.q(`UPDATE auth_users SET `+strings.Join(sets, ", ")+` WHERE id = ?`), args...)
	if err != nil {
		return unavailable(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// MySQL reports changed rows, so an identical write is not a miss
		if _, err := s.FindUserByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) RecordLoginFailure(ctx context.Context, id string, maxAttempts int, lockUntil time.Time) (credential.LoginFailure, error) {
	var out credential.LoginFailure

	// locked_until is assigned first: MySQL evaluates assignments left to
	// right, the others against the old row, so both read the old count.
	update := s.q(`
		UPDATE auth_users
		SET locked_until = CASE WHEN login_attempts + 1 >= ? THEN ? ELSE locked_until END,
			login_attempts = login_attempts + 1
		WHERE id = ?
	`)
	read := s.q(`SELECT login_attempts, locked_until FROM auth_users WHERE id = ?`)

	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, update, maxAttempts, lockUntil.UnixMilli(), id)
		if err != nil {
			return unavailable(err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return credential.ErrNotFound
		}

		var row struct {
			LoginAttempts int           `db:"login_attempts"`
			LockedUntil   sql.NullInt64 `db:"locked_until"`
		}
		if err := tx.GetContext(ctx, &row, read, id); err != nil {
			return unavailable(err)
		}
		out = credential.LoginFailure{Attempts: row.LoginAttempts, LockedUntil: nullTime(row.LockedUntil)}
		return nil
	})
	return out, err
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func nullTime(v sql.NullInt64) *time.Time {
	if !v.Valid || v.Int64 <= 0 {
		return nil
	}
	t := time.UnixMilli(v.Int64)
	return &t
}

package sqlstore

import (
	"context"
	"fmt"
)

const usersTable = `
CREATE TABLE IF NOT EXISTS auth_users (
	id VARCHAR(64) PRIMARY KEY,
	email VARCHAR(320) NOT NULL UNIQUE,
	phone VARCHAR(32) NOT NULL DEFAULT '',
	role VARCHAR(64) NOT NULL DEFAULT '',
	password_hash VARCHAR(255) NOT NULL,
	login_attempts INTEGER NOT NULL DEFAULT 0,
	locked_until BIGINT NULL,
	email_verified BOOLEAN NOT NULL DEFAULT FALSE,
	phone_verified BOOLEAN NOT NULL DEFAULT FALSE,
	last_login BIGINT NULL,
	created_at BIGINT NOT NULL
)`

const otpsTable = `
CREATE TABLE IF NOT EXISTS auth_otps (
	id VARCHAR(64) PRIMARY KEY,
	user_id VARCHAR(64) NOT NULL,
	code_hash CHAR(64) NOT NULL,
	purpose VARCHAR(32) NOT NULL,
	expires_at BIGINT NOT NULL,
	used BOOLEAN NOT NULL DEFAULT FALSE,
	created_at BIGINT NOT NULL%s
)`

const otpsIndex = `CREATE INDEX IF NOT EXISTS idx_auth_otps_lookup ON auth_otps (user_id, purpose, used)`

func (s *Store) schema() []string {
	if s.dialect == dialectMySQL {
		// MySQL has no CREATE INDEX IF NOT EXISTS
		return []string{
			usersTable,
			fmt.Sprintf(otpsTable, ",\n\tINDEX idx_auth_otps_lookup (user_id, purpose, used)"),
		}
	}
	return []string{usersTable, fmt.Sprintf(otpsTable, ""), otpsIndex}
}

// Migrate creates the tables and indexes if they do not exist. Statements
// run one at a time since not every driver accepts multi-statement Exec.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlstore migrate: %w", err)
		}
	}
	return nil
}

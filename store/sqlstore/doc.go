// Package sqlstore implements credential.Store on a relational database
// through sqlx.
//
// Supported drivers: "postgres" (lib/pq), "pgx" (jackc/pgx stdlib),
// "mysql" (go-sql-driver/mysql) and "sqlite" (modernc.org/sqlite).
// Timestamps are stored as unix milliseconds so the same statements run on
// every dialect.
//
// Atomicity: the failure increment is one UPDATE whose lock expression reads
// the pre-increment count, followed by a read-back inside the same
// transaction. Code consumption is a conditional UPDATE that only the first
// caller can satisfy.
package sqlstore

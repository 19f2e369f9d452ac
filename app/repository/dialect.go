package repository

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect captures the SQL differences between the supported lock stores.
type Dialect struct {
	Name       string
	DriverName string

	createTable     string
	numberedParams  bool
	uniqueViolation func(err error) bool
}

var MySQL = Dialect{
	Name:       "mysql",
	DriverName: "mysql",
	createTable: `
		CREATE TABLE IF NOT EXISTS task_locks (
			lock_key VARCHAR(255) NOT NULL PRIMARY KEY,
			acquired_at BIGINT NOT NULL,
			ttl_seconds INT NOT NULL
		)
	`,
	uniqueViolation: func(err error) bool {
		var mysqlErr *mysql.MySQLError
		return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
	},
}

var Postgres = Dialect{
	Name:       "postgres",
	DriverName: "pgx",
	createTable: `
		CREATE TABLE IF NOT EXISTS task_locks (
			lock_key VARCHAR(255) NOT NULL PRIMARY KEY,
			acquired_at BIGINT NOT NULL,
			ttl_seconds INTEGER NOT NULL
		)
	`,
	numberedParams: true,
	uniqueViolation: func(err error) bool {
		var pgErr *pgconn.PgError
		return errors.As(err, &pgErr) && pgErr.Code == "23505"
	},
}

var SQLite = Dialect{
	Name:       "sqlite",
	DriverName: "sqlite",
	createTable: `
		CREATE TABLE IF NOT EXISTS task_locks (
			lock_key TEXT NOT NULL PRIMARY KEY,
			acquired_at INTEGER NOT NULL,
			ttl_seconds INTEGER NOT NULL
		)
	`,
	uniqueViolation: func(err error) bool {
		var sqliteErr *sqlite.Error
		if !errors.As(err, &sqliteErr) {
			return false
		}
		code := sqliteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	},
}

// IsUniqueViolation reports whether err is the store's duplicate key error.
func (d Dialect) IsUniqueViolation(err error) bool {
	if err == nil || d.uniqueViolation == nil {
		return false
	}
	return d.uniqueViolation(err)
}

// rebind rewrites ? placeholders into $n for dialects that need it.
func (d Dialect) rebind(query string) string {
	if !d.numberedParams {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

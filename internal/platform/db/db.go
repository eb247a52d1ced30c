package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Dialect identifies the SQL flavour behind a handle.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "postgres"
)

const (
	sqliteDriver = "sqlite"
	pgxDriver    = "pgx"

	// DefaultTimeout bounds a single command run when the caller sets none.
	DefaultTimeout = 30 * time.Second
)

func init() {
	// modernc registers as "sqlite", which sqlx does not map to a bindvar style.
	sqlx.BindDriver(sqliteDriver, sqlx.QUESTION)
}

// DialectFor infers the dialect from a DATABASE_URL value. Anything that is
// not a postgres URL is treated as a SQLite file path.
func DialectFor(dsn string) Dialect {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return DialectPostgres
	}
	return DialectSQLite
}

// DialectOf reports the dialect of an open handle.
func DialectOf(db *sqlx.DB) Dialect {
	if db != nil && db.DriverName() == pgxDriver {
		return DialectPostgres
	}
	return DialectSQLite
}

// Open connects to the database named by dsn and pings it.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("platform/db: empty database url")
	}

	var (
		db  *sqlx.DB
		err error
	)
	switch DialectFor(dsn) {
	case DialectPostgres:
		db, err = sqlx.Open(pgxDriver, dsn)
	default:
		db, err = sqlx.Open(sqliteDriver, sqliteDSN(dsn))
		if err == nil {
			// one writer; a second pooled connection would only see SQLITE_BUSY
			db.SetMaxOpenConns(1)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("platform/db: open: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("platform/db: ping: %w", err)
	}
	return db, nil
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "_pragma=foreign_keys") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

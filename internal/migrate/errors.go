package migrate

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrNoMigrations indicates the migrations directory does not exist.
var ErrNoMigrations = errors.New("migrate: no migrations directory")

// duplicate_* SQLSTATEs raised by DDL on objects that are already present.
var pgAlreadyExists = map[string]struct{}{
	"42P04": {}, // duplicate_database
	"42P06": {}, // duplicate_schema
	"42P07": {}, // duplicate_table
	"42701": {}, // duplicate_column
	"42710": {}, // duplicate_object
	"42723": {}, // duplicate_function
}

// IsAlreadyExists reports whether err is a DDL failure caused by an object
// that already exists. Every other error, including unique violations on
// data, reports false.
func IsAlreadyExists(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		_, ok := pgAlreadyExists[pgErr.Code]
		return ok
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		if liteErr.Code()&0xff != sqlite3.SQLITE_ERROR {
			return false
		}
		msg := strings.ToLower(liteErr.Error())
		return strings.Contains(msg, "already exists") || strings.Contains(msg, "duplicate column name")
	}
	return false
}

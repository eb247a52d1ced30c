package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// WithTx executes fn within a transaction. Postgres runs at RepeatableRead;
// SQLite transactions are serializable already. Any error from fn rolls the
// whole transaction back.
func WithTx(ctx context.Context, db *sqlx.DB, fn func(context.Context, *sqlx.Tx) error) error {
	opts := &sql.TxOptions{}
	if DialectOf(db) == DialectPostgres {
		opts.Isolation = sql.LevelRepeatableRead
	}

	tx, err := db.BeginTxx(ctx, opts)
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}

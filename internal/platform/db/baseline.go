package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
)

//go:embed schema
var schemaFS embed.FS

// MigrateBaseline applies the embedded schema (roles, permissions,
// role_permissions, users) for the dialect of db. Versions already recorded
// in goose_db_version are skipped.
func MigrateBaseline(ctx context.Context, db *sqlx.DB, logger *slog.Logger) ([]*goose.MigrationResult, error) {
	provider, err := newBaselineProvider(db, logger)
	if err != nil {
		return nil, err
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return results, fmt.Errorf("platform/db: baseline up: %w", err)
	}
	return results, nil
}

// BaselineStatus reports the applied/pending state of every embedded version.
func BaselineStatus(ctx context.Context, db *sqlx.DB, logger *slog.Logger) ([]*goose.MigrationStatus, error) {
	provider, err := newBaselineProvider(db, logger)
	if err != nil {
		return nil, err
	}

	status, err := provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("platform/db: baseline status: %w", err)
	}
	return status, nil
}

// The provider is never closed here: Provider.Close closes the caller's *sql.DB.
func newBaselineProvider(db *sqlx.DB, logger *slog.Logger) (*goose.Provider, error) {
	dialect := DialectOf(db)
	fsys, err := fs.Sub(schemaFS, path.Join("schema", string(dialect)))
	if err != nil {
		return nil, fmt.Errorf("platform/db: schema for %s: %w", dialect, err)
	}

	opts := []goose.ProviderOption{goose.WithDisableGlobalRegistry(true)}
	if logger != nil {
		opts = append(opts, goose.WithSlog(logger))
	}
	provider, err := goose.NewProvider(goose.Dialect(dialect), db.DB, fsys, opts...)
	if err != nil {
		return nil, fmt.Errorf("platform/db: goose provider: %w", err)
	}
	return provider, nil
}

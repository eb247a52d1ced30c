package cli

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/lexcms/lexcms-dbtools/internal/app"
	"github.com/lexcms/lexcms-dbtools/internal/rbac"
)

// DBTools bundles the handles shared by the lexdb commands.
type DBTools struct {
	db      *sqlx.DB
	cfg     *app.Config
	logger  *slog.Logger
	catalog rbac.Catalog
}

// NewDBTools constructs a new helper instance.
func NewDBTools(db *sqlx.DB, cfg *app.Config, logger *slog.Logger, catalog rbac.Catalog) (*DBTools, error) {
	if db == nil {
		return nil, errors.New("cli: database handle required")
	}
	if cfg == nil {
		return nil, errors.New("cli: config required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DBTools{db: db, cfg: cfg, logger: logger, catalog: catalog}, nil
}

// ResolveCatalog loads the catalog file at path, or returns the built-in
// catalog when path is blank.
func ResolveCatalog(path string) (rbac.Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return rbac.DefaultCatalog(), nil
	}
	return rbac.LoadCatalog(path)
}

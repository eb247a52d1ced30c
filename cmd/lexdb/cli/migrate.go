package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pressly/goose/v3"

	"github.com/lexcms/lexcms-dbtools/internal/migrate"
	platformdb "github.com/lexcms/lexcms-dbtools/internal/platform/db"
)

// MigrateOptions defines available flags for the migrate command.
type MigrateOptions struct {
	Dir    string
	Stdout io.Writer
	Stderr io.Writer
}

// MigrateCommand applies the embedded baseline schema, then every script in
// the migrations directory. A missing directory only skips the second step.
func (c *DBTools) MigrateCommand(ctx context.Context, opts MigrateOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	dir := strings.TrimSpace(opts.Dir)
	if dir == "" {
		dir = c.cfg.MigrationsDir
	}

	_, _ = fmt.Fprintln(opts.Stdout, "→ Applying baseline schema...")
	results, err := platformdb.MigrateBaseline(ctx, c.db, c.logger)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "migrate: %v\n", err)
		return 1
	}
	if len(results) == 0 {
		_, _ = fmt.Fprintln(opts.Stdout, "   ✓ baseline up to date")
	}
	for _, res := range results {
		_, _ = fmt.Fprintf(opts.Stdout, "   ✓ %s\n", res.Source.Path)
	}

	if dir == "" {
		return 0
	}
	_, _ = fmt.Fprintf(opts.Stdout, "→ Running migrations from %s...\n", dir)
	report, err := migrate.NewRunner(c.db, c.logger).Run(ctx, dir)
	if errors.Is(err, migrate.ErrNoMigrations) {
		_, _ = fmt.Fprintf(opts.Stdout, "   - %s not found, nothing to apply\n", dir)
		return 0
	}
	for _, file := range report.Files {
		_, _ = fmt.Fprintf(opts.Stdout, "   ✓ %s (%d applied, %d skipped)\n", file.Name, file.Applied, file.Skipped)
	}
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "migrate: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(opts.Stdout, "✓ Migrations complete: %d statements applied, %d skipped\n", report.Applied(), report.Skipped())
	return 0
}

// MigrateStatusCommand lists the baseline versions and whether each is applied.
func (c *DBTools) MigrateStatusCommand(ctx context.Context, opts MigrateOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	status, err := platformdb.BaselineStatus(ctx, c.db, c.logger)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "migrate status: %v\n", err)
		return 1
	}
	for _, st := range status {
		state := string(st.State)
		if st.State == goose.StateApplied {
			state = st.AppliedAt.UTC().Format("2006-01-02 15:04:05")
		}
		_, _ = fmt.Fprintf(opts.Stdout, "%5d  %-24s %s\n", st.Source.Version, st.Source.Path, state)
	}
	return 0
}

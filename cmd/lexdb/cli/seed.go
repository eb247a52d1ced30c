package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	platformdb "github.com/lexcms/lexcms-dbtools/internal/platform/db"
	"github.com/lexcms/lexcms-dbtools/internal/rbac"
	"github.com/lexcms/lexcms-dbtools/internal/users"
)

// SeedOptions defines available flags for the seed command.
type SeedOptions struct {
	// BcryptCost overrides the admin password hashing cost; zero means default.
	BcryptCost int
	Stdout     io.Writer
	Stderr     io.Writer
}

// SeedOutcome is everything one committed seed run produced.
type SeedOutcome struct {
	Result       rbac.Result
	Admin        users.User
	AdminCreated bool
}

// SeedCommand seeds the admin account (when enabled) and the RBAC catalog in
// one transaction and prints the outcome. Nothing persists on failure.
func (c *DBTools) SeedCommand(ctx context.Context, opts SeedOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	_, _ = fmt.Fprintln(opts.Stdout, "→ Seeding RBAC...")
	outcome, err := c.Seed(ctx, opts)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "seed: %v\n", err)
		_, _ = fmt.Fprintln(opts.Stderr, "seed: transaction rolled back, nothing was written")
		return 1
	}
	renderSeedHuman(opts.Stdout, outcome)
	return 0
}

// Seed performs the transactional part of SeedCommand.
func (c *DBTools) Seed(ctx context.Context, opts SeedOptions) (SeedOutcome, error) {
	if err := c.catalog.Validate(); err != nil {
		return SeedOutcome{}, err
	}

	cost := opts.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	service := rbac.NewService(rbac.NewRepository(c.db), c.logger, opts.Stdout)

	var outcome SeedOutcome
	err := platformdb.WithTx(ctx, c.db, func(ctx context.Context, tx *sqlx.Tx) error {
		if c.cfg.SeedAdmin {
			admin, created, err := users.NewService(users.NewRepository(tx), cost).EnsureAdmin(ctx, users.Admin{
				Email:    c.cfg.AdminEmail,
				Password: c.cfg.AdminPassword,
				Name:     c.cfg.AdminName,
			})
			if err != nil {
				return fmt.Errorf("ensure admin: %w", err)
			}
			outcome.Admin, outcome.AdminCreated = admin, created
		}

		result, err := service.SeedTx(ctx, rbac.NewTxRepository(tx), c.catalog)
		if err != nil {
			return err
		}
		outcome.Result = result
		return nil
	})
	if err != nil {
		return SeedOutcome{}, err
	}
	return outcome, nil
}

func renderSeedHuman(out io.Writer, outcome SeedOutcome) {
	result := outcome.Result
	_, _ = fmt.Fprintf(out, "✓ Seed complete (run %s)\n", result.RunID)
	if outcome.Admin.ID != 0 {
		state := "already present"
		if outcome.AdminCreated {
			state = "created"
		}
		_, _ = fmt.Fprintf(out, "   admin %s %s (ID: %d)\n", outcome.Admin.Email, state, outcome.Admin.ID)
	}
	_, _ = fmt.Fprintf(out, "   permissions: %d created, %d already present\n", result.PermissionsCreated, result.PermissionsSkipped)
	for _, role := range result.Roles {
		_, _ = fmt.Fprintf(out, "   %s: %d permissions\n", role.Name, role.Granted)
	}
	if result.Bootstrap.Assigned() {
		_, _ = fmt.Fprintf(out, "   user ID %d role: %s\n", result.Bootstrap.UserID, result.Bootstrap.Role)
	} else {
		_, _ = fmt.Fprintf(out, "   user ID %d not found, no role assigned\n", result.Bootstrap.UserID)
	}
}

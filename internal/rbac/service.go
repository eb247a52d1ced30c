package rbac

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
)

// Service seeds and inspects the permission/role/user graph.
type Service struct {
	repo     Repository
	logger   *slog.Logger
	progress io.Writer
}

// NewService constructs a Service. Human-readable progress lines are written
// to progress; pass nil to discard them.
func NewService(repo Repository, logger *slog.Logger, progress io.Writer) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if progress == nil {
		progress = io.Discard
	}
	return &Service{repo: repo, logger: logger, progress: progress}
}

// Seed validates catalog and loads it within a single transaction. On any
// error nothing is committed.
func (s *Service) Seed(ctx context.Context, catalog Catalog) (Result, error) {
	if err := catalog.Validate(); err != nil {
		return Result{}, err
	}
	var result Result
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		result, err = s.SeedTx(ctx, tx, catalog)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

// SeedTx runs the four seeding stages against tx for an already validated
// catalog. The caller owns the transaction and must roll it back when an
// error is returned.
func (s *Service) SeedTx(ctx context.Context, tx TxRepository, catalog Catalog) (Result, error) {
	result := Result{RunID: uuid.NewString()}
	logger := s.logger.With(slog.String("run_id", result.RunID))

	s.printf("→ Creating permissions...\n")
	created, skipped, err := s.seedPermissions(ctx, tx, catalog)
	if err != nil {
		return Result{}, err
	}
	result.PermissionsCreated, result.PermissionsSkipped = created, skipped
	logger.Info("permissions seeded", slog.Int("created", created), slog.Int("skipped", skipped))
	s.printf("   ✓ %d permissions created, %d already present\n", created, skipped)

	s.printf("→ Creating roles...\n")
	roles, err := s.provisionRoles(ctx, tx, catalog)
	if err != nil {
		return Result{}, err
	}
	for _, role := range roles {
		state := "already present"
		if role.Created {
			state = "created"
		}
		logger.Info("role ensured", slog.String("role", role.Name), slog.Int64("id", role.ID), slog.Bool("created", role.Created))
		s.printf("   ✓ role '%s' %s (ID: %d)\n", role.Name, state, role.ID)
	}

	s.printf("→ Linking permissions...\n")
	for i := range roles {
		spec, _ := catalog.Role(roles[i].Name)
		if err := s.linkGrants(ctx, tx, spec, &roles[i]); err != nil {
			return Result{}, err
		}
		for _, key := range roles[i].Missing {
			logger.Debug("grant skipped, permission absent", slog.String("role", roles[i].Name), slog.String("permission", key.String()))
		}
		logger.Info("grants linked", slog.String("role", roles[i].Name), slog.Int("granted", roles[i].Granted), slog.Int("added", roles[i].Added))
		s.printf("   ✓ %d permissions assigned to %s (%d new)\n", roles[i].Granted, roles[i].Name, roles[i].Added)
	}
	result.Roles = roles

	s.printf("→ Assigning bootstrap user...\n")
	bootstrap, err := s.assignBootstrap(ctx, tx, catalog.Bootstrap, roles)
	if err != nil {
		return Result{}, err
	}
	result.Bootstrap = bootstrap
	if bootstrap.Assigned() {
		logger.Info("bootstrap user assigned", slog.Int64("user_id", bootstrap.UserID), slog.String("role", bootstrap.Role), slog.Int64("rows", bootstrap.RowsAffected))
		s.printf("   ✓ user ID %d now has role '%s'\n", bootstrap.UserID, bootstrap.Role)
	} else {
		logger.Warn("bootstrap user not found, nothing assigned", slog.Int64("user_id", bootstrap.UserID), slog.Int64("rows", bootstrap.RowsAffected))
		s.printf("   ! no user with ID %d, role '%s' not assigned\n", bootstrap.UserID, bootstrap.Role)
	}

	return result, nil
}

func (s *Service) seedPermissions(ctx context.Context, tx TxRepository, catalog Catalog) (created, skipped int, err error) {
	for _, spec := range catalog.Permissions() {
		ok, err := tx.InsertPermission(ctx, spec)
		if err != nil {
			return 0, 0, err
		}
		if ok {
			created++
		} else {
			skipped++
		}
	}
	return created, skipped, nil
}

func (s *Service) provisionRoles(ctx context.Context, tx TxRepository, catalog Catalog) ([]RoleResult, error) {
	roles := make([]RoleResult, 0, len(catalog.Roles))
	for _, spec := range catalog.Roles {
		created, err := tx.EnsureRole(ctx, spec)
		if err != nil {
			return nil, err
		}
		// name is unique, so the lookup after insert-or-skip always matches
		role, err := tx.RoleByName(ctx, spec.Name)
		if err != nil {
			return nil, err
		}
		roles = append(roles, RoleResult{Name: spec.Name, ID: role.ID, Created: created})
	}
	return roles, nil
}

func (s *Service) linkGrants(ctx context.Context, tx TxRepository, spec RoleSpec, role *RoleResult) error {
	var ids []int64
	if spec.GrantAll {
		all, err := tx.PermissionIDs(ctx)
		if err != nil {
			return err
		}
		ids = all
	} else {
		for _, key := range spec.Grants {
			id, ok, err := tx.PermissionID(ctx, key)
			if err != nil {
				return err
			}
			if !ok {
				role.Missing = append(role.Missing, key)
				continue
			}
			ids = append(ids, id)
		}
	}

	for _, id := range ids {
		added, err := tx.Grant(ctx, role.ID, id)
		if err != nil {
			return err
		}
		role.Granted++
		if added {
			role.Added++
		}
	}
	return nil
}

func (s *Service) assignBootstrap(ctx context.Context, tx TxRepository, bootstrap Bootstrap, roles []RoleResult) (BootstrapResult, error) {
	result := BootstrapResult{UserID: bootstrap.UserID, Role: bootstrap.Role}
	for _, role := range roles {
		if role.Name == bootstrap.Role {
			result.RoleID = role.ID
		}
	}
	if result.RoleID == 0 {
		return BootstrapResult{}, fmt.Errorf("%w: %s", ErrRoleNotFound, bootstrap.Role)
	}
	rows, err := tx.AssignUserRole(ctx, bootstrap.UserID, result.RoleID)
	if err != nil {
		return BootstrapResult{}, err
	}
	result.RowsAffected = rows
	return result, nil
}

func (s *Service) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.progress, format, args...)
}

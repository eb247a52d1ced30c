package rbac

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	platformdb "github.com/lexcms/lexcms-dbtools/internal/platform/db"
)

// Repository defines RBAC data access.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	ListRoles(ctx context.Context) ([]Role, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	RoleGrants(ctx context.Context, roleID int64) ([]PermissionKey, error)
	UserRoleID(ctx context.Context, userID int64) (roleID sql.NullInt64, found bool, err error)
}

// TxRepository defines the seeding operations run inside one transaction.
// Every insert is conflict-targeted: an existing row is skipped and reported
// as false, any other failure is returned.
type TxRepository interface {
	InsertPermission(ctx context.Context, spec PermissionSpec) (bool, error)
	EnsureRole(ctx context.Context, spec RoleSpec) (bool, error)
	RoleByName(ctx context.Context, name string) (Role, error)
	PermissionIDs(ctx context.Context) ([]int64, error)
	PermissionID(ctx context.Context, key PermissionKey) (int64, bool, error)
	Grant(ctx context.Context, roleID, permissionID int64) (bool, error)
	AssignUserRole(ctx context.Context, userID, roleID int64) (int64, error)
}

var _ Repository = (*sqlRepository)(nil)
var _ TxRepository = (*queries)(nil)

type sqlRepository struct {
	db *sqlx.DB
	*queries
}

// NewRepository returns a Repository backed by db.
func NewRepository(db *sqlx.DB) Repository {
	return &sqlRepository{db: db, queries: &queries{q: db}}
}

// NewTxRepository binds the seeding operations to an open transaction, for
// callers composing several stores in one transaction.
func NewTxRepository(tx *sqlx.Tx) TxRepository {
	return &queries{q: tx}
}

func (r *sqlRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return platformdb.WithTx(ctx, r.db, func(ctx context.Context, tx *sqlx.Tx) error {
		return fn(ctx, &queries{q: tx})
	})
}

type queries struct {
	q sqlx.ExtContext
}

func (r *queries) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.q.ExecContext(ctx, r.q.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *queries) InsertPermission(ctx context.Context, spec PermissionSpec) (bool, error) {
	n, err := r.exec(ctx, `INSERT INTO permissions (module, action, description)
VALUES (?, ?, ?)
ON CONFLICT (module, action) DO NOTHING`, spec.Module, spec.Action, spec.Description)
	if err != nil {
		return false, fmt.Errorf("rbac: insert permission %s: %w", spec.Key(), err)
	}
	return n > 0, nil
}

func (r *queries) EnsureRole(ctx context.Context, spec RoleSpec) (bool, error) {
	n, err := r.exec(ctx, `INSERT INTO roles (name, description, is_system)
VALUES (?, ?, ?)
ON CONFLICT (name) DO NOTHING`, spec.Name, spec.Description, spec.IsSystem)
	if err != nil {
		return false, fmt.Errorf("rbac: insert role %s: %w", spec.Name, err)
	}
	return n > 0, nil
}

func (r *queries) RoleByName(ctx context.Context, name string) (Role, error) {
	var role Role
	err := sqlx.GetContext(ctx, r.q, &role, r.q.Rebind(`SELECT id, name, COALESCE(description, '') AS description, is_system
FROM roles WHERE name = ?`), name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Role{}, fmt.Errorf("%w: %s", ErrRoleNotFound, name)
		}
		return Role{}, fmt.Errorf("rbac: lookup role %s: %w", name, err)
	}
	return role, nil
}

func (r *queries) PermissionIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := sqlx.SelectContext(ctx, r.q, &ids, `SELECT id FROM permissions ORDER BY id`); err != nil {
		return nil, fmt.Errorf("rbac: list permission ids: %w", err)
	}
	return ids, nil
}

func (r *queries) PermissionID(ctx context.Context, key PermissionKey) (int64, bool, error) {
	var id int64
	err := sqlx.GetContext(ctx, r.q, &id, r.q.Rebind(`SELECT id FROM permissions WHERE module = ? AND action = ?`), key.Module, key.Action)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("rbac: lookup permission %s: %w", key, err)
	}
	return id, true, nil
}

func (r *queries) Grant(ctx context.Context, roleID, permissionID int64) (bool, error) {
	n, err := r.exec(ctx, `INSERT INTO role_permissions (role_id, permission_id)
VALUES (?, ?)
ON CONFLICT (role_id, permission_id) DO NOTHING`, roleID, permissionID)
	if err != nil {
		return false, fmt.Errorf("rbac: grant permission %d to role %d: %w", permissionID, roleID, err)
	}
	return n > 0, nil
}

func (r *queries) AssignUserRole(ctx context.Context, userID, roleID int64) (int64, error) {
	n, err := r.exec(ctx, `UPDATE users SET role_id = ? WHERE id = ?`, roleID, userID)
	if err != nil {
		return 0, fmt.Errorf("rbac: assign role %d to user %d: %w", roleID, userID, err)
	}
	return n, nil
}

func (r *queries) ListRoles(ctx context.Context) ([]Role, error) {
	var roles []Role
	if err := sqlx.SelectContext(ctx, r.q, &roles, `SELECT id, name, COALESCE(description, '') AS description, is_system
FROM roles ORDER BY id`); err != nil {
		return nil, fmt.Errorf("rbac: list roles: %w", err)
	}
	return roles, nil
}

func (r *queries) ListPermissions(ctx context.Context) ([]Permission, error) {
	var perms []Permission
	if err := sqlx.SelectContext(ctx, r.q, &perms, `SELECT id, module, action, COALESCE(description, '') AS description
FROM permissions ORDER BY module, action`); err != nil {
		return nil, fmt.Errorf("rbac: list permissions: %w", err)
	}
	return perms, nil
}

func (r *queries) RoleGrants(ctx context.Context, roleID int64) ([]PermissionKey, error) {
	var keys []PermissionKey
	if err := sqlx.SelectContext(ctx, r.q, &keys, r.q.Rebind(`SELECT p.module, p.action
FROM role_permissions rp
JOIN permissions p ON p.id = rp.permission_id
WHERE rp.role_id = ?
ORDER BY p.module, p.action`), roleID); err != nil {
		return nil, fmt.Errorf("rbac: list grants of role %d: %w", roleID, err)
	}
	return keys, nil
}

func (r *queries) UserRoleID(ctx context.Context, userID int64) (sql.NullInt64, bool, error) {
	var roleID sql.NullInt64
	err := sqlx.GetContext(ctx, r.q, &roleID, r.q.Rebind(`SELECT role_id FROM users WHERE id = ?`), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sql.NullInt64{}, false, nil
		}
		return sql.NullInt64{}, false, fmt.Errorf("rbac: lookup user %d: %w", userID, err)
	}
	return roleID, true, nil
}

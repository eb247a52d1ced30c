package rbac

import "errors"

var (
	// ErrInvalidCatalog wraps every catalog validation failure.
	ErrInvalidCatalog = errors.New("rbac: invalid catalog")
	// ErrRoleNotFound indicates a role lookup by name matched nothing.
	ErrRoleNotFound = errors.New("rbac: role not found")
)

// Role represents a named permission grouping.
type Role struct {
	ID          int64  `db:"id"`
	Name        string `db:"name"`
	Description string `db:"description"`
	IsSystem    bool   `db:"is_system"`
}

// Permission represents an atomic capability on a module.
type Permission struct {
	ID          int64  `db:"id"`
	Module      string `db:"module"`
	Action      string `db:"action"`
	Description string `db:"description"`
}

// Key returns the (module, action) pair identifying p.
func (p Permission) Key() PermissionKey {
	return PermissionKey{Module: p.Module, Action: p.Action}
}

// PermissionKey is the unique (module, action) pair of a permission.
type PermissionKey struct {
	Module string `json:"module" yaml:"module" toml:"module" db:"module" validate:"required"`
	Action string `json:"action" yaml:"action" toml:"action" db:"action" validate:"required"`
}

func (k PermissionKey) String() string {
	return k.Module + "." + k.Action
}

// Result summarises one seeding run.
type Result struct {
	RunID              string
	PermissionsCreated int
	PermissionsSkipped int
	Roles              []RoleResult
	Bootstrap          BootstrapResult
}

// Role returns the result recorded for the named role.
func (r Result) Role(name string) (RoleResult, bool) {
	for _, role := range r.Roles {
		if role.Name == name {
			return role, true
		}
	}
	return RoleResult{}, false
}

// RoleResult reports what happened to one role during a run.
type RoleResult struct {
	Name    string
	ID      int64
	Created bool
	// Granted counts permissions linked this run, new or already present.
	Granted int
	// Added counts grants that did not exist before this run.
	Added   int
	Missing []PermissionKey
}

// BootstrapResult reports the bootstrap user assignment.
type BootstrapResult struct {
	UserID       int64
	Role         string
	RoleID       int64
	RowsAffected int64
}

// Assigned reports whether a user row was actually updated.
func (b BootstrapResult) Assigned() bool {
	return b.RowsAffected > 0
}

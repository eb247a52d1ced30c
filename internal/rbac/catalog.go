package rbac

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	// RoleSuperAdmin is granted every permission in the table.
	RoleSuperAdmin = "superadmin"
	// RolePublicUser holds read access to public content.
	RolePublicUser = "public_user"
	// BootstrapUserID is the primary key of the first administrative user.
	BootstrapUserID int64 = 1
)

// Module is a functional area used to namespace permissions.
type Module struct {
	Key         string `json:"key" yaml:"key" toml:"key" validate:"required"`
	Description string `json:"description" yaml:"description" toml:"description" validate:"required"`
}

// Action is a verb combined with every module.
type Action struct {
	Key   string `json:"key" yaml:"key" toml:"key" validate:"required"`
	Label string `json:"label" yaml:"label" toml:"label" validate:"required"`
}

// PermissionSpec describes a permission to insert.
type PermissionSpec struct {
	Module      string `json:"module" yaml:"module" toml:"module" validate:"required"`
	Action      string `json:"action" yaml:"action" toml:"action" validate:"required"`
	Description string `json:"description" yaml:"description" toml:"description"`
}

// Key returns the (module, action) pair of s.
func (s PermissionSpec) Key() PermissionKey {
	return PermissionKey{Module: s.Module, Action: s.Action}
}

// RoleSpec describes a role and the permissions linked to it. A GrantAll role
// receives every permission present in the table at seeding time.
type RoleSpec struct {
	Name        string          `json:"name" yaml:"name" toml:"name" validate:"required"`
	Description string          `json:"description" yaml:"description" toml:"description"`
	IsSystem    bool            `json:"is_system" yaml:"is_system" toml:"is_system"`
	GrantAll    bool            `json:"grant_all" yaml:"grant_all" toml:"grant_all"`
	Grants      []PermissionKey `json:"grants" yaml:"grants" toml:"grants" validate:"omitempty,unique,dive"`
}

// Bootstrap names the user pinned to a role on every run.
type Bootstrap struct {
	UserID int64  `json:"user_id" yaml:"user_id" toml:"user_id" validate:"gt=0"`
	Role   string `json:"role" yaml:"role" toml:"role" validate:"required"`
}

// Catalog is the complete definition a seeding run loads into the store.
type Catalog struct {
	Modules   []Module         `json:"modules" yaml:"modules" toml:"modules" validate:"required,min=1,unique=Key,dive"`
	Actions   []Action         `json:"actions" yaml:"actions" toml:"actions" validate:"required,min=1,unique=Key,dive"`
	Special   []PermissionSpec `json:"special" yaml:"special" toml:"special" validate:"dive"`
	Roles     []RoleSpec       `json:"roles" yaml:"roles" toml:"roles" validate:"required,min=1,unique=Name,dive"`
	Bootstrap Bootstrap        `json:"bootstrap" yaml:"bootstrap" toml:"bootstrap"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and that the bootstrap role is defined.
func (c Catalog) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if _, ok := c.Role(c.Bootstrap.Role); !ok {
		return fmt.Errorf("%w: bootstrap role %q is not defined", ErrInvalidCatalog, c.Bootstrap.Role)
	}
	return nil
}

// Role returns the spec of the named role.
func (c Catalog) Role(name string) (RoleSpec, bool) {
	for _, role := range c.Roles {
		if role.Name == name {
			return role, true
		}
	}
	return RoleSpec{}, false
}

// Permissions returns the module × action product, each described as
// "<action label> <module description, lowercased>", followed by the special
// permissions. A pair may occur twice; on insert the first one wins.
func (c Catalog) Permissions() []PermissionSpec {
	lower := cases.Lower(language.Und)
	out := make([]PermissionSpec, 0, len(c.Modules)*len(c.Actions)+len(c.Special))
	for _, module := range c.Modules {
		desc := lower.String(module.Description)
		for _, action := range c.Actions {
			out = append(out, PermissionSpec{
				Module:      module.Key,
				Action:      action.Key,
				Description: action.Label + " " + desc,
			})
		}
	}
	return append(out, c.Special...)
}

// DistinctPermissions is Permissions with repeated pairs removed, keeping
// the first occurrence.
func (c Catalog) DistinctPermissions() []PermissionSpec {
	all := c.Permissions()
	seen := make(map[PermissionKey]struct{}, len(all))
	out := make([]PermissionSpec, 0, len(all))
	for _, spec := range all {
		if _, ok := seen[spec.Key()]; ok {
			continue
		}
		seen[spec.Key()] = struct{}{}
		out = append(out, spec)
	}
	return out
}

// DefaultCatalog returns the built-in CMS catalog: 15 modules with CRUD
// actions, 17 special permissions, the superadmin and public_user system
// roles, and user 1 pinned to superadmin.
func DefaultCatalog() Catalog {
	return Catalog{
		Modules: []Module{
			{Key: "posts", Description: "Posts and articles"},
			{Key: "pages", Description: "Static pages"},
			{Key: "categories", Description: "Content categories"},
			{Key: "tags", Description: "Content tags"},
			{Key: "comments", Description: "Comments"},
			{Key: "media", Description: "Media library"},
			{Key: "users", Description: "System users"},
			{Key: "roles", Description: "Roles and permissions"},
			{Key: "settings", Description: "System settings"},
			{Key: "menus", Description: "Navigation menus"},
			{Key: "plugins", Description: "Plugins and extensions"},
			{Key: "backups", Description: "Backups"},
			{Key: "audit", Description: "Audit logs"},
			{Key: "webhooks", Description: "Webhooks"},
			{Key: "dashboard", Description: "Admin dashboard"},
		},
		Actions: []Action{
			{Key: "create", Label: "Create"},
			{Key: "read", Label: "Read"},
			{Key: "update", Label: "Update"},
			{Key: "delete", Label: "Delete"},
		},
		Special: []PermissionSpec{
			{Module: "media", Action: "upload", Description: "Upload files to the library"},
			{Module: "media", Action: "delete_others", Description: "Delete files owned by other users"},
			{Module: "comments", Action: "moderate", Description: "Moderate comments"},
			{Module: "comments", Action: "approve", Description: "Approve comments"},
			{Module: "users", Action: "manage_roles", Description: "Assign roles to users"},
			{Module: "users", Action: "manage_2fa", Description: "Manage two-factor authentication"},
			{Module: "settings", Action: "manage", Description: "Manage all settings"},
			{Module: "plugins", Action: "install", Description: "Install plugins"},
			{Module: "plugins", Action: "activate", Description: "Activate and deactivate plugins"},
			{Module: "plugins", Action: "configure", Description: "Configure plugins"},
			{Module: "backups", Action: "create", Description: "Create backups"},
			{Module: "backups", Action: "restore", Description: "Restore from backups"},
			{Module: "backups", Action: "download", Description: "Download backups"},
			{Module: "dashboard", Action: "access", Description: "Access the admin dashboard"},
			{Module: "dashboard", Action: "view_stats", Description: "View dashboard statistics"},
			{Module: "audit", Action: "view", Description: "View audit logs"},
			{Module: "webhooks", Action: "test", Description: "Test webhooks"},
		},
		Roles: []RoleSpec{
			{
				Name:        RoleSuperAdmin,
				Description: "Super administrator with full system access",
				IsSystem:    true,
				GrantAll:    true,
			},
			{
				Name:        RolePublicUser,
				Description: "Public user with read-only access to public content",
				IsSystem:    true,
				Grants: []PermissionKey{
					{Module: "posts", Action: "read"},
					{Module: "pages", Action: "read"},
					{Module: "categories", Action: "read"},
					{Module: "tags", Action: "read"},
					{Module: "media", Action: "read"},
					{Module: "comments", Action: "read"},
					{Module: "comments", Action: "create"},
				},
			},
		},
		Bootstrap: Bootstrap{UserID: BootstrapUserID, Role: RoleSuperAdmin},
	}
}

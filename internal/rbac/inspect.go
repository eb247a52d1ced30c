package rbac

import (
	"context"
	"fmt"
	"sort"
)

// Problem kinds reported by Inspect.
const (
	ProblemMissingPermission = "missing_permission"
	ProblemMissingRole       = "missing_role"
	ProblemMissingGrant      = "missing_grant"
	ProblemUnexpectedGrant   = "unexpected_grant"
	ProblemBootstrapRole     = "bootstrap_role"
)

// Problem is one deviation between the store and the catalog.
type Problem struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// RoleSummary describes a stored role and its grant count.
type RoleSummary struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	IsSystem bool   `json:"is_system"`
	Grants   int    `json:"grants"`
}

// Inspection is a snapshot of the RBAC tables checked against a catalog.
type Inspection struct {
	Permissions     int           `json:"permissions"`
	Roles           []RoleSummary `json:"roles"`
	BootstrapUserID int64         `json:"bootstrap_user_id"`
	BootstrapFound  bool          `json:"bootstrap_found"`
	BootstrapRole   string        `json:"bootstrap_role,omitempty"`
	Problems        []Problem     `json:"problems"`
	Warnings        []string      `json:"warnings"`
}

// OK reports whether no problems were found. Warnings do not count.
func (i Inspection) OK() bool {
	return len(i.Problems) == 0
}

// Inspect reads the RBAC tables and compares them with catalog: every
// catalog permission and role must exist, grant-all roles must hold every
// stored permission, other roles exactly their listed grants that exist, and
// the bootstrap user, when present, must carry the bootstrap role. A missing
// bootstrap user is a warning only.
func (s *Service) Inspect(ctx context.Context, catalog Catalog) (Inspection, error) {
	perms, err := s.repo.ListPermissions(ctx)
	if err != nil {
		return Inspection{}, err
	}
	roles, err := s.repo.ListRoles(ctx)
	if err != nil {
		return Inspection{}, err
	}

	out := Inspection{Permissions: len(perms), BootstrapUserID: catalog.Bootstrap.UserID}
	stored := make(map[PermissionKey]struct{}, len(perms))
	for _, perm := range perms {
		stored[perm.Key()] = struct{}{}
	}
	for _, spec := range catalog.DistinctPermissions() {
		if _, ok := stored[spec.Key()]; !ok {
			out.addProblem(ProblemMissingPermission, "permission %s is not stored", spec.Key())
		}
	}

	byName := make(map[string]Role, len(roles))
	byID := make(map[int64]Role, len(roles))
	for _, role := range roles {
		byName[role.Name] = role
		byID[role.ID] = role
		grants, err := s.repo.RoleGrants(ctx, role.ID)
		if err != nil {
			return Inspection{}, err
		}
		out.Roles = append(out.Roles, RoleSummary{ID: role.ID, Name: role.Name, IsSystem: role.IsSystem, Grants: len(grants)})

		spec, ok := catalog.Role(role.Name)
		if !ok {
			continue
		}
		checkGrants(&out, spec, grants, stored)
	}
	for _, spec := range catalog.Roles {
		if _, ok := byName[spec.Name]; !ok {
			out.addProblem(ProblemMissingRole, "role %s is not stored", spec.Name)
		}
	}

	roleID, found, err := s.repo.UserRoleID(ctx, catalog.Bootstrap.UserID)
	if err != nil {
		return Inspection{}, err
	}
	out.BootstrapFound = found
	switch {
	case !found:
		out.Warnings = append(out.Warnings, fmt.Sprintf("bootstrap user %d does not exist", catalog.Bootstrap.UserID))
	case !roleID.Valid:
		out.addProblem(ProblemBootstrapRole, "bootstrap user %d has no role, want %s", catalog.Bootstrap.UserID, catalog.Bootstrap.Role)
	default:
		out.BootstrapRole = byID[roleID.Int64].Name
		if out.BootstrapRole != catalog.Bootstrap.Role {
			out.addProblem(ProblemBootstrapRole, "bootstrap user %d has role %q, want %s", catalog.Bootstrap.UserID, out.BootstrapRole, catalog.Bootstrap.Role)
		}
	}
	return out, nil
}

func checkGrants(out *Inspection, spec RoleSpec, grants []PermissionKey, stored map[PermissionKey]struct{}) {
	have := make(map[PermissionKey]struct{}, len(grants))
	for _, key := range grants {
		have[key] = struct{}{}
	}

	want := stored
	if !spec.GrantAll {
		want = make(map[PermissionKey]struct{}, len(spec.Grants))
		for _, key := range spec.Grants {
			if _, ok := stored[key]; ok {
				want[key] = struct{}{}
			}
		}
	}

	var missing, extra []string
	for key := range want {
		if _, ok := have[key]; !ok {
			missing = append(missing, key.String())
		}
	}
	for key := range have {
		if _, ok := want[key]; !ok {
			extra = append(extra, key.String())
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)
	for _, key := range missing {
		out.addProblem(ProblemMissingGrant, "role %s lacks %s", spec.Name, key)
	}
	for _, key := range extra {
		out.addProblem(ProblemUnexpectedGrant, "role %s holds %s", spec.Name, key)
	}
}

func (i *Inspection) addProblem(kind, format string, args ...any) {
	i.Problems = append(i.Problems, Problem{Kind: kind, Detail: fmt.Sprintf(format, args...)})
}

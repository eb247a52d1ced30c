package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/lexcms/lexcms-dbtools/internal/rbac"
)

// VerifyOptions defines available flags for the verify command.
type VerifyOptions struct {
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// VerifySummary describes the JSON response for verify.
type VerifySummary struct {
	OK          bool               `json:"ok"`
	Permissions int                `json:"permissions"`
	Roles       []rbac.RoleSummary `json:"roles"`
	Bootstrap   VerifyBootstrap    `json:"bootstrap"`
	Problems    []rbac.Problem     `json:"problems"`
	Warnings    []string           `json:"warnings"`
}

// VerifyBootstrap reports the bootstrap user's current role.
type VerifyBootstrap struct {
	UserID int64  `json:"user_id"`
	Found  bool   `json:"found"`
	Role   string `json:"role,omitempty"`
}

// VerifyCommand compares the stored RBAC state with the catalog. Exit code
// 10 signals that problems were found.
func (c *DBTools) VerifyCommand(ctx context.Context, opts VerifyOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if err := c.catalog.Validate(); err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "verify: %v\n", err)
		return 1
	}

	inspection, err := rbac.NewService(rbac.NewRepository(c.db), c.logger, nil).Inspect(ctx, c.catalog)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "verify: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(buildVerifySummary(inspection)); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "verify: encode json: %v\n", err)
			return 1
		}
	} else {
		renderVerifyHuman(opts.Stdout, inspection)
	}
	if !inspection.OK() {
		return 10
	}
	return 0
}

func buildVerifySummary(in rbac.Inspection) VerifySummary {
	summary := VerifySummary{
		OK:          in.OK(),
		Permissions: in.Permissions,
		Roles:       in.Roles,
		Bootstrap:   VerifyBootstrap{UserID: in.BootstrapUserID, Found: in.BootstrapFound, Role: in.BootstrapRole},
		Problems:    in.Problems,
		Warnings:    in.Warnings,
	}
	if summary.Roles == nil {
		summary.Roles = []rbac.RoleSummary{}
	}
	if summary.Problems == nil {
		summary.Problems = []rbac.Problem{}
	}
	if summary.Warnings == nil {
		summary.Warnings = []string{}
	}
	return summary
}

func renderVerifyHuman(out io.Writer, in rbac.Inspection) {
	_, _ = fmt.Fprintf(out, "Permissions: %d\n", in.Permissions)
	_, _ = fmt.Fprintf(out, "Roles: %d\n", len(in.Roles))
	for _, role := range in.Roles {
		kind := ""
		if role.IsSystem {
			kind = " (system)"
		}
		_, _ = fmt.Fprintf(out, " - %s%s: %d permissions\n", role.Name, kind, role.Grants)
	}
	switch {
	case !in.BootstrapFound:
		_, _ = fmt.Fprintf(out, "User ID %d: not found\n", in.BootstrapUserID)
	case in.BootstrapRole == "":
		_, _ = fmt.Fprintf(out, "User ID %d: no role\n", in.BootstrapUserID)
	default:
		_, _ = fmt.Fprintf(out, "User ID %d: %s\n", in.BootstrapUserID, in.BootstrapRole)
	}
	for _, warning := range in.Warnings {
		_, _ = fmt.Fprintf(out, "warning: %s\n", warning)
	}
	if in.OK() {
		_, _ = fmt.Fprintln(out, "RBAC state matches the catalog.")
		return
	}
	_, _ = fmt.Fprintf(out, "%d problem(s) detected:\n", len(in.Problems))
	for _, problem := range in.Problems {
		_, _ = fmt.Fprintf(out, " - [%s] %s\n", problem.Kind, problem.Detail)
	}
}

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lexcms/lexcms-dbtools/internal/app"
	platformdb "github.com/lexcms/lexcms-dbtools/internal/platform/db"
	"github.com/lexcms/lexcms-dbtools/internal/rbac"
)

func testConfig() *app.Config {
	return &app.Config{
		LogFormat:     "pretty",
		LogLevel:      "error",
		DBTimeout:     platformdb.DefaultTimeout,
		SeedAdmin:     true,
		AdminEmail:    "admin@example.com",
		AdminPassword: "password123",
		AdminName:     "Admin User",
	}
}

func newTestTools(t *testing.T, baseline bool, catalog rbac.Catalog) (*DBTools, *sqlx.DB) {
	t.Helper()
	ctx := context.Background()
	db, err := platformdb.Open(ctx, filepath.Join(t.TempDir(), "lexcms.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	if baseline {
		_, err = platformdb.MigrateBaseline(ctx, db, nil)
		require.NoError(t, err)
	}
	tools, err := NewDBTools(db, testConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)), catalog)
	require.NoError(t, err)
	return tools, db
}

func TestNewDBToolsRequiresHandles(t *testing.T) {
	_, err := NewDBTools(nil, testConfig(), nil, rbac.DefaultCatalog())
	require.Error(t, err)
}

func TestResolveCatalog(t *testing.T) {
	catalog, err := ResolveCatalog("  ")
	require.NoError(t, err)
	require.Len(t, catalog.DistinctPermissions(), 76)

	_, err = ResolveCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestSeedCommandHuman(t *testing.T) {
	tools, db := newTestTools(t, true, rbac.DefaultCatalog())

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	exitCode := tools.SeedCommand(context.Background(), SeedOptions{BcryptCost: bcrypt.MinCost, Stdout: stdout, Stderr: stderr})
	require.Equal(t, 0, exitCode, stderr.String())
	require.Empty(t, stderr.String())

	out := stdout.String()
	require.Contains(t, out, "→ Creating permissions...")
	require.Contains(t, out, "✓ Seed complete")
	require.Contains(t, out, "admin admin@example.com created (ID: 1)")
	require.Contains(t, out, "permissions: 76 created, 1 already present")
	require.Contains(t, out, "superadmin: 76 permissions")
	require.Contains(t, out, "public_user: 7 permissions")
	require.Contains(t, out, "user ID 1 role: superadmin")

	var role string
	require.NoError(t, db.Get(&role, `SELECT r.name FROM users u JOIN roles r ON r.id = u.role_id WHERE u.email = 'admin@example.com'`))
	require.Equal(t, rbac.RoleSuperAdmin, role)

	stdout.Reset()
	exitCode = tools.SeedCommand(context.Background(), SeedOptions{BcryptCost: bcrypt.MinCost, Stdout: stdout, Stderr: stderr})
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "admin admin@example.com already present (ID: 1)")
	require.Contains(t, stdout.String(), "permissions: 0 created, 77 already present")
}

func TestSeedCommandWithoutAdmin(t *testing.T) {
	tools, _ := newTestTools(t, true, rbac.DefaultCatalog())
	tools.cfg.SeedAdmin = false

	stdout := new(bytes.Buffer)
	exitCode := tools.SeedCommand(context.Background(), SeedOptions{Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Equal(t, 0, exitCode)
	require.NotContains(t, stdout.String(), "admin admin@example.com")
	require.Contains(t, stdout.String(), "user ID 1 not found, no role assigned")
}

func TestSeedCommandRollsBack(t *testing.T) {
	catalog := rbac.DefaultCatalog()
	tools, db := newTestTools(t, true, catalog)
	_, err := db.Exec(`DROP TABLE role_permissions`)
	require.NoError(t, err)

	stderr := new(bytes.Buffer)
	exitCode := tools.SeedCommand(context.Background(), SeedOptions{BcryptCost: bcrypt.MinCost, Stdout: new(bytes.Buffer), Stderr: stderr})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "seed: rbac: grant permission")

	var n int
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM users`))
	require.Zero(t, n)
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM permissions`))
	require.Zero(t, n)
}

func TestSeedCommandInvalidCatalog(t *testing.T) {
	catalog := rbac.DefaultCatalog()
	catalog.Roles = nil
	tools, _ := newTestTools(t, true, catalog)

	stderr := new(bytes.Buffer)
	exitCode := tools.SeedCommand(context.Background(), SeedOptions{Stdout: new(bytes.Buffer), Stderr: stderr})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "seed: rbac: invalid catalog")
}

func TestVerifyCommandJSON(t *testing.T) {
	tools, _ := newTestTools(t, true, rbac.DefaultCatalog())
	require.Equal(t, 0, tools.SeedCommand(context.Background(), SeedOptions{BcryptCost: bcrypt.MinCost, Stdout: io.Discard, Stderr: io.Discard}))

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	exitCode := tools.VerifyCommand(context.Background(), VerifyOptions{JSONOutput: true, Stdout: stdout, Stderr: stderr})
	require.Equal(t, 0, exitCode, stderr.String())

	var summary VerifySummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.True(t, summary.OK)
	require.Equal(t, 76, summary.Permissions)
	require.Len(t, summary.Roles, 2)
	require.Equal(t, VerifyBootstrap{UserID: 1, Found: true, Role: rbac.RoleSuperAdmin}, summary.Bootstrap)
	require.Empty(t, summary.Problems)
	require.NotNil(t, summary.Problems)
}

func TestVerifyCommandReportsProblems(t *testing.T) {
	tools, _ := newTestTools(t, true, rbac.DefaultCatalog())

	stdout := new(bytes.Buffer)
	exitCode := tools.VerifyCommand(context.Background(), VerifyOptions{Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Equal(t, 10, exitCode)
	require.Contains(t, stdout.String(), "Permissions: 0")
	require.Contains(t, stdout.String(), "User ID 1: not found")
	require.Contains(t, stdout.String(), "[missing_role] role superadmin is not stored")
}

func TestVerifyCommandWithoutSchema(t *testing.T) {
	tools, _ := newTestTools(t, false, rbac.DefaultCatalog())

	stderr := new(bytes.Buffer)
	exitCode := tools.VerifyCommand(context.Background(), VerifyOptions{Stdout: new(bytes.Buffer), Stderr: stderr})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "verify: rbac: list permissions")
}

func TestMigrateCommand(t *testing.T) {
	tools, db := newTestTools(t, false, rbac.DefaultCatalog())
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0001_posts.sql"), []byte("CREATE TABLE posts (id INTEGER PRIMARY KEY, title TEXT);\n"), 0o600))

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	exitCode := tools.MigrateCommand(context.Background(), MigrateOptions{Dir: dir, Stdout: stdout, Stderr: stderr})
	require.Equal(t, 0, exitCode, stderr.String())
	require.Contains(t, stdout.String(), "00001_rbac.sql")
	require.Contains(t, stdout.String(), "0001_posts.sql (1 applied, 0 skipped)")

	stdout.Reset()
	exitCode = tools.MigrateCommand(context.Background(), MigrateOptions{Dir: dir, Stdout: stdout, Stderr: stderr})
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "baseline up to date")
	require.Contains(t, stdout.String(), "0001_posts.sql (0 applied, 1 skipped)")

	var n int
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('roles', 'posts')`))
	require.Equal(t, 2, n)
}

func TestMigrateCommandMissingDir(t *testing.T) {
	tools, _ := newTestTools(t, false, rbac.DefaultCatalog())

	stdout := new(bytes.Buffer)
	exitCode := tools.MigrateCommand(context.Background(), MigrateOptions{Dir: filepath.Join(t.TempDir(), "absent"), Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "nothing to apply")
}

func TestMigrateCommandFailure(t *testing.T) {
	tools, _ := newTestTools(t, false, rbac.DefaultCatalog())
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0001_bad.sql"), []byte("INSERT INTO nowhere VALUES (1);\n"), 0o600))

	stderr := new(bytes.Buffer)
	exitCode := tools.MigrateCommand(context.Background(), MigrateOptions{Dir: dir, Stdout: new(bytes.Buffer), Stderr: stderr})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "0001_bad.sql statement 1")
}

func TestMigrateStatusCommand(t *testing.T) {
	tools, _ := newTestTools(t, true, rbac.DefaultCatalog())

	stdout := new(bytes.Buffer)
	exitCode := tools.MigrateStatusCommand(context.Background(), MigrateOptions{Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "00001_rbac.sql")
	require.Contains(t, stdout.String(), "00002_users.sql")
	require.NotContains(t, stdout.String(), "pending")
}

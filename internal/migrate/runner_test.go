package migrate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	platformdb "github.com/lexcms/lexcms-dbtools/internal/platform/db"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := platformdb.Open(context.Background(), filepath.Join(t.TempDir(), "migrate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func writeScript(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunnerAppliesInFilenameOrder(t *testing.T) {
	db := openTestDB(t)
	dir := t.TempDir()
	writeScript(t, dir, "0002_posts_title.sql", "ALTER TABLE posts ADD COLUMN title TEXT;\n")
	writeScript(t, dir, "0001_posts.sql", "CREATE TABLE posts (id INTEGER PRIMARY KEY);\nCREATE INDEX posts_id_idx ON posts (id);\n")
	writeScript(t, dir, "README.md", "not sql")

	report, err := NewRunner(db, quietLogger()).Run(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, report.Files, 2)
	require.Equal(t, "0001_posts.sql", report.Files[0].Name)
	require.Equal(t, 3, report.Applied())
	require.Zero(t, report.Skipped())

	_, err = db.Exec(`INSERT INTO posts (id, title) VALUES (1, 'hello')`)
	require.NoError(t, err)
}

func TestRunnerSkipsExistingObjects(t *testing.T) {
	db := openTestDB(t)
	dir := t.TempDir()
	writeScript(t, dir, "0001_posts.sql", "CREATE TABLE posts (id INTEGER PRIMARY KEY);\n--> statement-breakpoint\nALTER TABLE posts ADD COLUMN title TEXT;\n")

	runner := NewRunner(db, quietLogger())
	_, err := runner.Run(context.Background(), dir)
	require.NoError(t, err)

	report, err := runner.Run(context.Background(), dir)
	require.NoError(t, err)
	require.Zero(t, report.Applied())
	require.Equal(t, 2, report.Skipped())
}

func TestRunnerStopsOnOtherErrors(t *testing.T) {
	db := openTestDB(t)
	dir := t.TempDir()
	writeScript(t, dir, "0001_ok.sql", "CREATE TABLE posts (id INTEGER PRIMARY KEY);\n")
	writeScript(t, dir, "0002_bad.sql", "INSERT INTO missing_table VALUES (1);\n")
	writeScript(t, dir, "0003_never.sql", "CREATE TABLE never (id INTEGER);\n")

	report, err := NewRunner(db, quietLogger()).Run(context.Background(), dir)
	require.Error(t, err)
	require.Contains(t, err.Error(), "0002_bad.sql statement 1")
	require.Len(t, report.Files, 2)

	var n int
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM sqlite_master WHERE name = 'never'`))
	require.Zero(t, n)
}

func TestRunnerMissingDirectory(t *testing.T) {
	db := openTestDB(t)
	_, err := NewRunner(db, quietLogger()).Run(context.Background(), filepath.Join(t.TempDir(), "absent"))
	require.ErrorIs(t, err, ErrNoMigrations)
}

func TestIsAlreadyExists(t *testing.T) {
	require.False(t, IsAlreadyExists(nil))
	require.True(t, IsAlreadyExists(&pgconn.PgError{Code: "42P07"}))
	require.True(t, IsAlreadyExists(&pgconn.PgError{Code: "42701"}))
	require.False(t, IsAlreadyExists(&pgconn.PgError{Code: "23505"}))
	require.False(t, IsAlreadyExists(errors.New("relation already exists")))

	db := openTestDB(t)
	_, err := db.Exec(`CREATE TABLE t (id INTEGER)`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE t (id INTEGER)`)
	require.True(t, IsAlreadyExists(err))
	_, err = db.Exec(`ALTER TABLE t ADD COLUMN id INTEGER`)
	require.True(t, IsAlreadyExists(err))
	_, err = db.Exec(`SELECT * FROM nope`)
	require.False(t, IsAlreadyExists(err))
}

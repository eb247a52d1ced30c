package migrate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
)

// FileReport describes the outcome of one migration file.
type FileReport struct {
	Name       string `json:"name"`
	Statements int    `json:"statements"`
	Applied    int    `json:"applied"`
	Skipped    int    `json:"skipped"`
}

// Report summarises a directory run.
type Report struct {
	Dir   string       `json:"dir"`
	Files []FileReport `json:"files"`
}

// Applied returns the number of statements executed successfully.
func (r Report) Applied() int {
	var n int
	for _, f := range r.Files {
		n += f.Applied
	}
	return n
}

// Skipped returns the number of statements skipped as already applied.
func (r Report) Skipped() int {
	var n int
	for _, f := range r.Files {
		n += f.Skipped
	}
	return n
}

// Runner applies a directory of SQL scripts statement by statement.
type Runner struct {
	db     sqlx.ExecerContext
	logger *slog.Logger
}

// NewRunner constructs a Runner executing against db.
func NewRunner(db sqlx.ExecerContext, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{db: db, logger: logger}
}

// Run applies every *.sql file in dir in filename order. Statements failing
// because their object already exists are logged and skipped; any other
// failure stops the run. Statements run outside a transaction, so files
// applied before a failure stay applied and a rerun skips them.
func (r *Runner) Run(ctx context.Context, dir string) (Report, error) {
	report := Report{Dir: dir}
	names, err := listScripts(dir)
	if err != nil {
		return report, err
	}

	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return report, fmt.Errorf("migrate: read %s: %w", name, err)
		}
		stmts := SplitStatements(string(raw))
		file := FileReport{Name: name, Statements: len(stmts)}
		for i, stmt := range stmts {
			if _, err := r.db.ExecContext(ctx, stmt); err != nil {
				if IsAlreadyExists(err) {
					file.Skipped++
					r.logger.Warn("statement skipped, object exists",
						slog.String("file", name), slog.Int("statement", i+1), slog.Any("error", err))
					continue
				}
				report.Files = append(report.Files, file)
				return report, fmt.Errorf("migrate: %s statement %d: %w", name, i+1, err)
			}
			file.Applied++
		}
		r.logger.Info("migration applied", slog.String("file", name),
			slog.Int("applied", file.Applied), slog.Int("skipped", file.Skipped))
		report.Files = append(report.Files, file)
	}
	return report, nil
}

func listScripts(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoMigrations, dir)
		}
		return nil, fmt.Errorf("migrate: read dir %s: %w", dir, err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".sql") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

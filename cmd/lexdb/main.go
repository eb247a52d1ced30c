package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lexcms/lexcms-dbtools/cmd/lexdb/cli"
	"github.com/lexcms/lexcms-dbtools/internal/app"
	platformdb "github.com/lexcms/lexcms-dbtools/internal/platform/db"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string) int {
	var code int
	root := newRootCommand(&code)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return code
}

type globalFlags struct {
	database string
	envFile  string
	catalog  string
}

func newRootCommand(code *int) *cobra.Command {
	flags := &globalFlags{}
	seed := newSeedCommand(flags, code)

	cmd := &cobra.Command{
		Use:           "lexdb",
		Short:         "Database tooling for lexcms: migrations, RBAC seeding and verification",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          seed.RunE,
	}
	cmd.PersistentFlags().StringVar(&flags.database, "database", "", "SQLite path or postgres:// URL (overrides DATABASE_URL)")
	cmd.PersistentFlags().StringVar(&flags.envFile, "env-file", "", "Env file to load before reading configuration (default .env when present)")
	cmd.PersistentFlags().StringVar(&flags.catalog, "catalog", "", "RBAC catalog file in YAML, TOML or JSON (overrides RBAC_CATALOG_FILE)")

	cmd.AddCommand(seed)
	cmd.AddCommand(newMigrateCommand(flags, code))
	cmd.AddCommand(newVerifyCommand(flags, code))
	return cmd
}

func newSeedCommand(flags *globalFlags, code *int) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the permission catalog, system roles and grants, and pin the bootstrap user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTools(cmd.Context(), flags, code, func(ctx context.Context, tools *cli.DBTools) int {
				return tools.SeedCommand(ctx, cli.SeedOptions{Stdout: cmd.OutOrStdout(), Stderr: cmd.ErrOrStderr()})
			})
		},
	}
}

func newMigrateCommand(flags *globalFlags, code *int) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the baseline schema and the SQL scripts in the migrations directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTools(cmd.Context(), flags, code, func(ctx context.Context, tools *cli.DBTools) int {
				return tools.MigrateCommand(ctx, cli.MigrateOptions{Dir: dir, Stdout: cmd.OutOrStdout(), Stderr: cmd.ErrOrStderr()})
			})
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Migrations directory (overrides MIGRATIONS_DIR)")

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List baseline schema versions and their state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTools(cmd.Context(), flags, code, func(ctx context.Context, tools *cli.DBTools) int {
				return tools.MigrateStatusCommand(ctx, cli.MigrateOptions{Stdout: cmd.OutOrStdout(), Stderr: cmd.ErrOrStderr()})
			})
		},
	})
	return cmd
}

func newVerifyCommand(flags *globalFlags, code *int) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Report roles, permission counts and the bootstrap user's role; exit 10 on drift",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTools(cmd.Context(), flags, code, func(ctx context.Context, tools *cli.DBTools) int {
				return tools.VerifyCommand(ctx, cli.VerifyOptions{JSONOutput: jsonOutput, Stdout: cmd.OutOrStdout(), Stderr: cmd.ErrOrStderr()})
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the report as JSON")
	return cmd
}

// withTools loads configuration, opens the database under DB_TIMEOUT and
// stores fn's exit code in code.
func withTools(ctx context.Context, flags *globalFlags, code *int, fn func(context.Context, *cli.DBTools) int) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var envFiles []string
	if flags.envFile != "" {
		envFiles = append(envFiles, flags.envFile)
	}
	cfg, err := app.LoadConfig(envFiles...)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if flags.database != "" {
		cfg.DatabaseURL = flags.database
	}
	if flags.catalog != "" {
		cfg.CatalogFile = flags.catalog
	}

	logger := app.NewLogger(cfg, os.Stderr)

	catalog, err := cli.ResolveCatalog(cfg.CatalogFile)
	if err != nil {
		return err
	}

	timeout := cfg.DBTimeout
	if timeout <= 0 {
		timeout = platformdb.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, err := platformdb.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn("close database", slog.Any("error", err))
		}
	}()

	tools, err := cli.NewDBTools(db, cfg, logger, catalog)
	if err != nil {
		return err
	}
	*code = fn(ctx, tools)
	return nil
}

package app

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// DefaultEnvFile is read when present and no explicit env file is given.
const DefaultEnvFile = ".env"

// Config holds runtime configuration for the lexdb commands.
type Config struct {
	AppEnv string `envconfig:"APP_ENV" default:"development"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL   string        `envconfig:"DATABASE_URL" default:"./lexcms.db"`
	DBTimeout     time.Duration `envconfig:"DB_TIMEOUT" default:"30s"`
	MigrationsDir string        `envconfig:"MIGRATIONS_DIR" default:"./migrations"`

	CatalogFile string `envconfig:"RBAC_CATALOG_FILE"`

	SeedAdmin     bool   `envconfig:"SEED_ADMIN" default:"true"`
	AdminEmail    string `envconfig:"SUPERADMIN_EMAIL" default:"admin@example.com"`
	AdminPassword string `envconfig:"SUPERADMIN_PASSWORD" default:"password123"`
	AdminName     string `envconfig:"SUPERADMIN_NAME" default:"Admin User"`
}

// LoadConfig merges the given env files into the process environment (set
// variables win) and reads configuration from it. With no files given,
// DefaultEnvFile is used when it exists.
func LoadConfig(envFiles ...string) (*Config, error) {
	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadEnvFiles(files []string) error {
	if len(files) == 0 {
		if err := godotenv.Load(DefaultEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("app: load %s: %w", DefaultEnvFile, err)
		}
		return nil
	}
	for _, file := range files {
		if strings.TrimSpace(file) == "" {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return fmt.Errorf("app: load %s: %w", file, err)
		}
	}
	return nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database url must be provided")
	}
	if c.DBTimeout <= 0 {
		return errors.New("db timeout must be positive")
	}
	switch c.LogFormat {
	case "pretty", "json":
	default:
		return fmt.Errorf("unsupported log format %q", c.LogFormat)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.SeedAdmin && (strings.TrimSpace(c.AdminEmail) == "" || c.AdminPassword == "") {
		return errors.New("superadmin email and password must be provided when SEED_ADMIN is enabled")
	}
	return nil
}

// Level returns the configured slog level, defaulting to info.
func (c *Config) Level() slog.Level {
	if c == nil {
		return slog.LevelInfo
	}
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// IsProduction returns true when running against a production environment.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

func parseLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return slog.LevelInfo, fmt.Errorf("unsupported log level %q", raw)
	}
	return level, nil
}

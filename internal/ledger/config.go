package ledger

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/grantwise/schemamigrate/internal/ledger/postgres"
	"github.com/grantwise/schemamigrate/internal/ledger/sqlite"
)

// Supported ledger drivers.
const (
	DriverSqlite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultTableName is the ledger table created when none is configured.
const DefaultTableName = "schema_migrations"

// DefaultDBFileName is the sqlite file used when no store is configured.
const DefaultDBFileName = "schemamigrate.db"

// SqliteConfig configures the sqlite ledger backend.
type SqliteConfig struct {
	Path string `mapstructure:"path"`
}

// PostgresConfig configures the postgres (or CockroachDB) ledger backend.
// An explicit DSN wins; otherwise one is assembled from the components.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (p PostgresConfig) dsn() string {
	if d := strings.TrimSpace(p.DSN); d != "" {
		return d
	}
	host := strings.TrimSpace(p.Host)
	if host == "" {
		return ""
	}
	port := p.Port
	if port == 0 {
		port = 5432
	}
	ssl := strings.TrimSpace(p.SSLMode)
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		strings.TrimSpace(p.User), strings.TrimSpace(p.Password), host, port, strings.TrimSpace(p.DBName), ssl)
}

// Config selects a driver and its connection settings.
type Config struct {
	Driver   string         `mapstructure:"driver"`
	Table    string         `mapstructure:"table"`
	SQLite   SqliteConfig   `mapstructure:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// DecodeConfig builds a Config from a loosely-typed map, as produced by
// config files or embedding callers.
func DecodeConfig(m map[string]interface{}) (Config, error) {
	var cfg Config
	if err := mapstructure.Decode(m, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode ledger config: %w", err)
	}
	return cfg, nil
}

// resolve picks the dialect and DSN for the configured driver.
func (c Config) resolve() (Dialect, string, error) {
	switch strings.ToLower(strings.TrimSpace(c.Driver)) {
	case DriverSqlite, "sqlite3", "":
		path := strings.TrimSpace(c.SQLite.Path)
		if path == "" {
			path = DefaultDBFileName
		}
		return sqlite.NewDialect(), sqlite.DSN(path), nil
	case DriverPostgres, "postgresql", "pg", "cockroachdb":
		dsn := c.Postgres.dsn()
		if dsn == "" {
			return nil, "", fmt.Errorf("postgres ledger requires a dsn or host")
		}
		return postgres.NewDialect(), dsn, nil
	default:
		return nil, "", fmt.Errorf("unsupported ledger driver: %s", c.Driver)
	}
}

// pkg/config/database.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/snowflakedb/gosnowflake"
)

// Sink drivers
const (
	DriverNone      = ""
	DriverPostgres  = "postgres"
	DriverSnowflake = "snowflake"
	DriverSQLite    = "sqlite"
)

// ErrUnknownSinkDriver is returned for a driver name that is not supported
var ErrUnknownSinkDriver = errors.New("sink.driver must be one of: postgres, snowflake, sqlite")

// SinkConfig configures the optional SQL sink for the cleaned table
type SinkConfig struct {
	Driver     string `yaml:"driver"`
	Table      string `yaml:"table"`
	AuditTable string `yaml:"audit_table"`
	BatchSize  int    `yaml:"batch_size"`
	SQLitePath string `yaml:"sqlite_path"`

	Postgres  *PostgresConfig  `yaml:"-"`
	Snowflake *SnowflakeConfig `yaml:"-"`

	// Connection pool settings
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// SnowflakeConfig holds Snowflake connection parameters
type SnowflakeConfig struct {
	User          string
	Password      string
	Account       string
	Warehouse     string
	Database      string
	Schema        string
	Role          string
	Authenticator gosnowflake.AuthType
}

// PostgresConfig holds PostgreSQL connection parameters
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func defaultSinkConfig() SinkConfig {
	return SinkConfig{
		Table:           "survey_cleaned",
		AuditTable:      "cleaning_operations",
		BatchSize:       500,
		SQLitePath:      "output/survey.db",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 10 * time.Minute,
	}
}

// Enabled reports whether a sink driver is configured
func (s *SinkConfig) Enabled() bool {
	return s.Driver != DriverNone
}

// Validate checks the sink settings
func (s *SinkConfig) Validate() error {
	switch s.Driver {
	case DriverNone:
		return nil
	case DriverPostgres:
		if s.Postgres == nil {
			return errors.New("postgreSQL configuration is required")
		}
	case DriverSnowflake:
		if s.Snowflake == nil {
			return errors.New("snowflake configuration is required")
		}
	case DriverSQLite:
		if s.SQLitePath == "" {
			return errors.New("sqlite path is required")
		}
	default:
		return fmt.Errorf("%w: got %q", ErrUnknownSinkDriver, s.Driver)
	}

	if s.Table == "" || s.AuditTable == "" {
		return errors.New("sink table names cannot be empty")
	}
	if s.BatchSize <= 0 {
		return errors.New("batch size must be positive")
	}
	return nil
}

// DSN returns the driver-specific data source name
func (s *SinkConfig) DSN() (string, error) {
	switch s.Driver {
	case DriverPostgres:
		return s.Postgres.ConnectionString(), nil
	case DriverSnowflake:
		return s.Snowflake.ConnectionString()
	case DriverSQLite:
		return s.SQLitePath, nil
	default:
		return "", fmt.Errorf("%w: got %q", ErrUnknownSinkDriver, s.Driver)
	}
}

// loadCredentials reads the credentials required by the selected driver
func (s *SinkConfig) loadCredentials() error {
	switch s.Driver {
	case DriverPostgres:
		pg, err := LoadPostgresConfig()
		if err != nil {
			return err
		}
		s.Postgres = pg
	case DriverSnowflake:
		sf, err := LoadSnowflakeConfig()
		if err != nil {
			return err
		}
		s.Snowflake = sf
	}
	return nil
}

// LoadSnowflakeConfig loads Snowflake configuration from environment variables
func LoadSnowflakeConfig() (*SnowflakeConfig, error) {
	user := os.Getenv("SNOWFLAKE_USER")
	if user == "" {
		return nil, errors.New("SNOWFLAKE_USER environment variable is required")
	}

	account := os.Getenv("SNOWFLAKE_ACCOUNT")
	if account == "" {
		return nil, errors.New("SNOWFLAKE_ACCOUNT environment variable is required")
	}

	authenticator := parseAuthType(getEnv("SNOWFLAKE_AUTHENTICATOR", "snowflake"))

	password := os.Getenv("SNOWFLAKE_PASSWORD")
	if password == "" && authenticator == gosnowflake.AuthTypeSnowflake {
		return nil, errors.New("SNOWFLAKE_PASSWORD environment variable is required")
	}

	return &SnowflakeConfig{
		User:          user,
		Password:      password,
		Account:       account,
		Warehouse:     getEnv("SNOWFLAKE_WAREHOUSE", ""),
		Database:      getEnv("SNOWFLAKE_DATABASE", "SURVEYS"),
		Schema:        getEnv("SNOWFLAKE_SCHEMA", "PUBLIC"),
		Role:          getEnv("SNOWFLAKE_ROLE", ""),
		Authenticator: authenticator,
	}, nil
}

func parseAuthType(s string) gosnowflake.AuthType {
	switch s {
	case "oauth":
		return gosnowflake.AuthTypeOAuth
	case "externalbrowser":
		return gosnowflake.AuthTypeExternalBrowser
	case "username_password_mfa":
		return gosnowflake.AuthTypeUsernamePasswordMFA
	case "jwt":
		return gosnowflake.AuthTypeJwt
	case "token":
		return gosnowflake.AuthTypeTokenAccessor
	case "okta":
		return gosnowflake.AuthTypeOkta
	default:
		return gosnowflake.AuthTypeSnowflake
	}
}

// LoadPostgresConfig loads PostgreSQL configuration from environment variables
func LoadPostgresConfig() (*PostgresConfig, error) {
	user := os.Getenv("POSTGRES_USER")
	if user == "" {
		return nil, errors.New("POSTGRES_USER environment variable is required")
	}

	database := os.Getenv("POSTGRES_DB")
	if database == "" {
		return nil, errors.New("POSTGRES_DB environment variable is required")
	}

	return &PostgresConfig{
		Host:     getEnv("POSTGRES_HOST", "localhost"),
		Port:     getEnvAsInt("POSTGRES_PORT", 5432),
		User:     user,
		Password: os.Getenv("POSTGRES_PASSWORD"),
		Database: database,
		SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
	}, nil
}

// ConnectionString returns a Snowflake DSN built by the driver
func (c *SnowflakeConfig) ConnectionString() (string, error) {
	dsn, err := gosnowflake.DSN(&gosnowflake.Config{
		Account:       c.Account,
		User:          c.User,
		Password:      c.Password,
		Database:      c.Database,
		Schema:        c.Schema,
		Warehouse:     c.Warehouse,
		Role:          c.Role,
		Authenticator: c.Authenticator,
	})
	if err != nil {
		return "", fmt.Errorf("failed to build snowflake DSN: %w", err)
	}
	return dsn, nil
}

// ConnectionString returns a formatted PostgreSQL connection string. Values
// are single-quoted so passwords may contain spaces or quotes.
func (c *PostgresConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		quoteConnValue(c.Host),
		c.Port,
		quoteConnValue(c.User),
		quoteConnValue(c.Password),
		quoteConnValue(c.Database),
		quoteConnValue(c.SSLMode),
	)
}

// quoteConnValue quotes a key=value connection parameter for lib/pq
func quoteConnValue(v string) string {
	return "'" + connValueEscaper.Replace(v) + "'"
}

var connValueEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

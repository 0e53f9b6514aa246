// Package config provides application configuration loaded from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Session  SessionConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Sheets   SheetsConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds; long-poll watches need headroom
	IdleTimeout  int // seconds
}

// DatabaseConfig holds connection settings. Driver is "postgres" or "sqlite";
// for sqlite, SQLitePath names the database file.
type DatabaseConfig struct {
	Driver       string
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	SQLitePath   string
	QueryTimeout time.Duration
	Debug        bool
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Dev           bool
	Migrations    bool
	MigrationsDir string
	AdminEmails   []string
	AdminPassword string
}

// SessionConfig holds session token settings.
type SessionConfig struct {
	Secret       string
	TTL          time.Duration
	CookieSecure bool
	// Store is "redis" or "memory".
	Store string
}

// RedisConfig holds the session store connection.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// StorageConfig holds the document blob store location.
type StorageConfig struct {
	Dir string
}

// SheetsConfig enables the applicant export when both values are set.
type SheetsConfig struct {
	SpreadsheetID   string
	CredentialsFile string
	SheetName       string
}

// Enabled reports whether the export is configured.
func (s SheetsConfig) Enabled() bool {
	return s.SpreadsheetID != "" && s.CredentialsFile != ""
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string
	Format string // "text" or "json"
}

// DSN returns the PostgreSQL connection string in key=value format.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// URL returns the PostgreSQL connection string in URL format, as expected by
// golang-migrate.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// MaskedDSN is DSN with the password hidden, for logs.
func (d DatabaseConfig) MaskedDSN() string {
	if d.Driver == "sqlite" {
		return "sqlite:" + d.SQLitePath
	}
	masked := d
	masked.Password = "***"
	return masked.DSN()
}

// Load reads configuration from environment variables.
// It uses sensible defaults for local development.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 75),
			IdleTimeout:  getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Driver:       getEnv("DB_DRIVER", "postgres"),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "onboarding"),
			Password:     getEnv("DB_PASSWORD", "onboarding123"),
			DBName:       getEnv("DB_NAME", "onboarding"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			SQLitePath:   getEnv("DB_SQLITE_PATH", "onboarding.db"),
			QueryTimeout: getEnvDuration("DB_QUERY_TIMEOUT", 5*time.Second),
			Debug:        getEnvBool("DB_DEBUG", false),
		},
		App: AppConfig{
			Dev:           getEnvBool("DEV", true),
			Migrations:    getEnvBool("MIGRATIONS", false),
			MigrationsDir: getEnv("MIGRATIONS_DIR", "migrations"),
			AdminEmails:   getEnvList("ADMIN_EMAILS"),
			AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		},
		Session: SessionConfig{
			Secret:       getEnv("SESSION_SECRET", "devsessionsecret"),
			TTL:          getEnvDuration("SESSION_TTL", 24*time.Hour),
			CookieSecure: getEnvBool("SESSION_COOKIE_SECURE", false),
			Store:        getEnv("SESSION_STORE", "memory"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Storage: StorageConfig{
			Dir: getEnv("STORAGE_DIR", "data/documents"),
		},
		Sheets: SheetsConfig{
			SpreadsheetID:   getEnv("SHEETS_SPREADSHEET_ID", ""),
			CredentialsFile: getEnv("SHEETS_CREDENTIALS_FILE", ""),
			SheetName:       getEnv("SHEETS_SHEET_NAME", "Applicants"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("config: unsupported DB_DRIVER %q", c.Database.Driver)
	}
	switch c.Session.Store {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: unsupported SESSION_STORE %q", c.Session.Store)
	}
	if !c.App.Dev && c.Session.Secret == "devsessionsecret" {
		return fmt.Errorf("config: SESSION_SECRET must be set outside dev mode")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("config: SESSION_TTL must be positive")
	}
	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvBool accepts "1", "true", "yes" as true; everything else is false.
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "1" || value == "true" || value == "yes"
}

// getEnvDuration parses values like "5s" or "24h".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

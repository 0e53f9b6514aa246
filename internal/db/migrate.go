package db

import (
	"errors"
	"fmt"

	migrate "github.com/golang-migrate/migrate/v4"
	// Registers the postgres driver and file source for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/gorm"

	"github.com/diewo77/go-onboarding/internal/models"
)

// Migrate runs AutoMigrate for all models.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Application{},
		&models.Profile{},
		&models.Document{},
	)
}

// RunSQLMigrations applies the versioned SQL files in dir to the PostgreSQL
// database at url.
func RunSQLMigrations(dir, url string) error {
	m, err := migrate.New("file://"+dir, url)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// RequiredTables are checked after migrating.
var RequiredTables = []string{"users", "applications", "profiles", "documents"}

// CheckSchema fails when a required table is missing.
func CheckSchema(db *gorm.DB) error {
	for _, table := range RequiredTables {
		if !db.Migrator().HasTable(table) {
			return errors.New("missing table after migration: " + table)
		}
	}
	return nil
}

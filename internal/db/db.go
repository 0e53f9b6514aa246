// Package db opens the database, applies the schema and seeds admin accounts.
package db

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/diewo77/go-onboarding/internal/config"
)

const (
	connectAttempts = 10
	connectBackoff  = 2 * time.Second
)

// Connect opens the configured database, retrying while PostgreSQL starts up.
func Connect(cfg config.DatabaseConfig, log logrus.FieldLogger) (*gorm.DB, error) {
	if cfg.Driver == "sqlite" {
		log.WithField("dsn", cfg.MaskedDSN()).Info("opening database")
		return OpenSQLite(cfg.SQLitePath, cfg.Debug)
	}

	gcfg := gormConfig(cfg.Debug)
	log.WithField("dsn", cfg.MaskedDSN()).Info("connecting to database")
	var (
		conn *gorm.DB
		err  error
	)
	for i := 1; i <= connectAttempts; i++ {
		conn, err = gorm.Open(postgres.Open(cfg.DSN()), gcfg)
		if err == nil {
			if err = conn.Exec("SELECT 1").Error; err == nil {
				return conn, nil
			}
		}
		log.WithError(err).WithField("attempt", i).Warn("database not reachable, retrying")
		time.Sleep(connectBackoff)
	}
	return nil, fmt.Errorf("failed to connect database after %d attempts: %w", connectAttempts, err)
}

// OpenSQLite opens a sqlite database. Pass a "file:<name>?mode=memory&cache=shared"
// DSN for a private in-memory database.
func OpenSQLite(dsn string, debug bool) (*gorm.DB, error) {
	conn, err := gorm.Open(sqlite.Open(dsn), gormConfig(debug))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer
	sqlDB.SetMaxOpenConns(1)
	return conn, nil
}

func gormConfig(debug bool) *gorm.Config {
	level := logger.Silent
	if debug {
		level = logger.Info
	}
	return &gorm.Config{Logger: logger.Default.LogMode(level)}
}

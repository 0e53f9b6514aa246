package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/diewo77/go-onboarding/internal/config"
	"github.com/diewo77/go-onboarding/internal/db"
	"github.com/diewo77/go-onboarding/internal/logging"
)

var (
	migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")
	seedOnlyFlag    = flag.Bool("seed-only", false, "Run DB seed and exit")
)

func main() {
	flag.Parse()

	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.Log)
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	conn, err := db.Connect(cfg.Database, log)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}

	if *migrateOnlyFlag {
		if err := migrate(cfg, conn, log); err != nil {
			log.WithError(err).Fatal("migration failed")
		}
		log.Info("migrations completed")
		return
	}
	if *seedOnlyFlag {
		if err := seed(cfg, conn); err != nil {
			log.WithError(err).Fatal("seeding failed")
		}
		log.Info("seeding completed")
		return
	}

	if err := migrate(cfg, conn, log); err != nil {
		log.WithError(err).Fatal("migration failed")
	}
	if err := seed(cfg, conn); err != nil {
		log.WithError(err).Fatal("seeding failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(ctx, cfg, conn, log, appOptions{})
	if err != nil {
		log.WithError(err).Fatal("failed to build application")
	}
	defer app.Close()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      app,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{"port": cfg.Server.Port, "dev": cfg.App.Dev}).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("error during shutdown")
	}
	log.Info("server stopped gracefully")
}

// migrate applies the versioned SQL migrations on PostgreSQL when MIGRATIONS
// is set, and AutoMigrate otherwise.
func migrate(cfg *config.Config, conn *gorm.DB, log logrus.FieldLogger) error {
	if cfg.App.Migrations && cfg.Database.Driver == "postgres" {
		log.WithField("dir", cfg.App.MigrationsDir).Info("applying SQL migrations")
		if err := db.RunSQLMigrations(cfg.App.MigrationsDir, cfg.Database.URL()); err != nil {
			return err
		}
	} else if err := db.Migrate(conn); err != nil {
		return err
	}
	return db.CheckSchema(conn)
}

func seed(cfg *config.Config, conn *gorm.DB) error {
	return db.Seed(conn, db.SeedOptions{AdminEmails: cfg.App.AdminEmails, AdminPassword: cfg.App.AdminPassword})
}

// Package main provides a CLI tool for running database migrations.
package main

import (
	"flag"

	"github.com/case-scanner/internal/config"
	"github.com/case-scanner/internal/logging"
	"github.com/case-scanner/internal/storage"
)

func main() {
	var (
		action = flag.String("action", "up", "Migration action: up, down, version")
		path   = flag.String("path", "migrations", "Path to the migration files")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		logging.GetGlobalLogger().Fatalf("Failed to load configuration: %v", err)
	}

	logging.InitGlobalLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)
	logger := logging.GetGlobalLogger()

	databaseURL := cfg.Database.Postgres.URL()

	switch *action {
	case "up":
		if err := storage.RunMigrations(databaseURL, *path); err != nil {
			logger.WithError(err).Fatal("Migration failed")
		}
		logger.Info("Migrations completed successfully")

	case "down":
		if err := storage.RollbackMigrations(databaseURL, *path); err != nil {
			logger.WithError(err).Fatal("Rollback failed")
		}
		logger.Info("Migration rolled back successfully")

	case "version":
		version, dirty, err := storage.MigrationVersion(databaseURL, *path)
		if err != nil {
			logger.WithError(err).Fatal("Failed to read migration version")
		}
		logger.WithFields(map[string]any{
			"version": version,
			"dirty":   dirty,
		}).Info("Current migration version")

	default:
		logger.Fatalf("Unknown action: %s", *action)
	}
}
